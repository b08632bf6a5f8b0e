// Package scheduler evaluates time-window ScheduleRules once a minute and
// applies the winning rule's action (speed limit, unlimited, or pause) to
// the engine, per spec §4.10.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/speedlimit"
)

// QueueController is the subset of queue.Manager the scheduler drives.
type QueueController interface {
	Pause()
	Resume()
}

const tickInterval = time.Minute

// Scheduler evaluates ScheduleRules on a ticker and applies the first
// matching rule's action, falling back to unlimited/resumed when none
// match.
type Scheduler struct {
	Rules   []domain.ScheduleRule
	Limiter *speedlimit.Limiter
	Queue   QueueController
	Events  interface {
		Publish(domain.Event)
	}

	lastPaused bool
}

// Run blocks, re-evaluating the rule set every tickInterval until ctx is
// cancelled. It evaluates immediately on start so a newly launched process
// picks up whatever window it started inside.
func (s *Scheduler) Run(ctx context.Context) {
	s.evaluate(time.Now())

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.evaluate(now)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) evaluate(now time.Time) {
	rule, matched := matchingRule(s.Rules, now)

	switch {
	case !matched:
		s.applyUnlimited()
	case rule.Action == domain.ScheduleActionPause:
		s.applyPause()
	case rule.Action == domain.ScheduleActionUnlimited:
		s.applyUnlimited()
	case rule.Action == domain.ScheduleActionSpeedLimit:
		s.applyLimit(rule.LimitBps)
	}
}

func (s *Scheduler) applyPause() {
	if s.Queue != nil && !s.lastPaused {
		s.Queue.Pause()
		s.lastPaused = true
	}
}

func (s *Scheduler) applyUnlimited() {
	if s.Queue != nil && s.lastPaused {
		s.Queue.Resume()
		s.lastPaused = false
	}
	if s.Limiter != nil {
		s.Limiter.SetLimit(0)
	}
}

func (s *Scheduler) applyLimit(bps uint64) {
	if s.Queue != nil && s.lastPaused {
		s.Queue.Resume()
		s.lastPaused = false
	}
	if s.Limiter != nil && s.Limiter.CurrentLimit() != bps {
		s.Limiter.SetLimit(bps)
		if s.Events != nil {
			s.Events.Publish(domain.Event{Kind: domain.EventSpeedLimitChanged, At: time.Now()})
		}
	}
}

// matchingRule returns the first enabled rule whose weekday/time window
// contains now. Rule order is the caller's priority order.
func matchingRule(rules []domain.ScheduleRule, now time.Time) (domain.ScheduleRule, bool) {
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if len(r.Weekdays) > 0 {
			if _, ok := r.Weekdays[now.Weekday()]; !ok {
				continue
			}
		}
		if withinWindow(r.StartTime, r.EndTime, now) {
			return r, true
		}
	}
	return domain.ScheduleRule{}, false
}

// withinWindow parses "HH:MM" start/end and checks whether now's local
// clock time falls inside, handling windows that wrap past midnight
// (e.g. 22:00-06:00).
func withinWindow(start, end string, now time.Time) bool {
	startMin, err := parseHHMM(start)
	if err != nil {
		return false
	}
	endMin, err := parseHHMM(end)
	if err != nil {
		return false
	}
	nowMin := now.Hour()*60 + now.Minute()

	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	// Wraps past midnight.
	return nowMin >= startMin || nowMin < endMin
}

func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", domain.ErrScheduleInvalid, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", domain.ErrScheduleInvalid, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", domain.ErrScheduleInvalid, s)
	}
	return h*60 + m, nil
}

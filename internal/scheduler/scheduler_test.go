package scheduler

import (
	"testing"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

func mustTime(t *testing.T, hhmm string) time.Time {
	t.Helper()
	tm, err := time.Parse("15:04", hhmm)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tm
}

func TestWithinWindowSameDay(t *testing.T) {
	if !withinWindow("09:00", "17:00", mustTime(t, "12:00")) {
		t.Fatal("expected 12:00 to be within 09:00-17:00")
	}
	if withinWindow("09:00", "17:00", mustTime(t, "18:00")) {
		t.Fatal("expected 18:00 to be outside 09:00-17:00")
	}
}

func TestWithinWindowWrapsPastMidnight(t *testing.T) {
	if !withinWindow("22:00", "06:00", mustTime(t, "23:30")) {
		t.Fatal("expected 23:30 to be within 22:00-06:00")
	}
	if !withinWindow("22:00", "06:00", mustTime(t, "02:00")) {
		t.Fatal("expected 02:00 to be within 22:00-06:00")
	}
	if withinWindow("22:00", "06:00", mustTime(t, "12:00")) {
		t.Fatal("expected 12:00 to be outside 22:00-06:00")
	}
}

func TestMatchingRuleSkipsDisabledAndWrongWeekday(t *testing.T) {
	now := time.Date(2026, 8, 1, 23, 0, 0, 0, time.UTC) // Saturday
	rules := []domain.ScheduleRule{
		{Name: "disabled", Enabled: false, StartTime: "00:00", EndTime: "23:59"},
		{Name: "weekdays-only", Enabled: true, StartTime: "00:00", EndTime: "23:59",
			Weekdays: map[time.Weekday]struct{}{time.Monday: {}}},
		{Name: "match", Enabled: true, StartTime: "22:00", EndTime: "06:00"},
	}
	rule, ok := matchingRule(rules, now)
	if !ok || rule.Name != "match" {
		t.Fatalf("expected rule %q to match, got %+v (matched=%v)", "match", rule, ok)
	}
}

type fakeQueue struct{ paused, resumed int }

func (f *fakeQueue) Pause()  { f.paused++ }
func (f *fakeQueue) Resume() { f.resumed++ }

func TestEvaluateAppliesPauseThenResumesOnceOutsideWindow(t *testing.T) {
	q := &fakeQueue{}
	s := &Scheduler{
		Rules: []domain.ScheduleRule{
			{Name: "quiet", Enabled: true, StartTime: "22:00", EndTime: "06:00", Action: domain.ScheduleActionPause},
		},
		Queue: q,
	}

	s.evaluate(time.Date(2026, 8, 1, 23, 0, 0, 0, time.UTC))
	s.evaluate(time.Date(2026, 8, 1, 23, 30, 0, 0, time.UTC))
	if q.paused != 1 {
		t.Fatalf("expected exactly one Pause call, got %d", q.paused)
	}

	s.evaluate(time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC))
	if q.resumed != 1 {
		t.Fatalf("expected exactly one Resume call, got %d", q.resumed)
	}
}

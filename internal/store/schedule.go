package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

func encodeWeekdays(days map[time.Weekday]struct{}) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, 0, len(days))
	for d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) map[time.Weekday]struct{} {
	out := make(map[time.Weekday]struct{})
	if s == "" {
		return out
	}
	for _, p := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(p); err == nil {
			out[time.Weekday(n)] = struct{}{}
		}
	}
	return out
}

// UpsertScheduleRule creates or replaces a named ScheduleRule.
func (s *Store) UpsertScheduleRule(ctx context.Context, r domain.ScheduleRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_rules (name, weekdays, start_time, end_time, action, limit_bps, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			weekdays = excluded.weekdays, start_time = excluded.start_time,
			end_time = excluded.end_time, action = excluded.action,
			limit_bps = excluded.limit_bps, enabled = excluded.enabled`,
		r.Name, encodeWeekdays(r.Weekdays), r.StartTime, r.EndTime, int(r.Action), int64(r.LimitBps), r.Enabled)
	return err
}

// ListScheduleRules returns every configured ScheduleRule.
func (s *Store) ListScheduleRules(ctx context.Context) ([]domain.ScheduleRule, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, weekdays, start_time, end_time, action, limit_bps, enabled FROM schedule_rules")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScheduleRule
	for rows.Next() {
		var r domain.ScheduleRule
		var weekdays string
		var action int64
		var limitBps int64
		if err := rows.Scan(&r.Name, &weekdays, &r.StartTime, &r.EndTime, &action, &limitBps, &r.Enabled); err != nil {
			return nil, err
		}
		r.Weekdays = decodeWeekdays(weekdays)
		r.Action = domain.ScheduleAction(action)
		r.LimitBps = uint64(limitBps)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteScheduleRule removes a named rule.
func (s *Store) DeleteScheduleRule(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM schedule_rules WHERE name = ?", name)
	return err
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// HasSeenGUID reports whether the feed's cursor has already recorded guid.
func (s *Store) HasSeenGUID(ctx context.Context, feedURL, guid string) (bool, error) {
	var seen string
	err := s.db.QueryRowContext(ctx, "SELECT seen_ids FROM rss_cursors WHERE feed_url = ?", feedURL).Scan(&seen)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, id := range strings.Split(seen, "\n") {
		if id == guid {
			return true, nil
		}
	}
	return false, nil
}

// MarkGUIDSeen appends guid to the feed's seen set.
func (s *Store) MarkGUIDSeen(ctx context.Context, feedURL, guid string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var seen string
		err := tx.QueryRowContext(ctx, "SELECT seen_ids FROM rss_cursors WHERE feed_url = ?", feedURL).Scan(&seen)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if seen != "" {
			seen += "\n"
		}
		seen += guid
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rss_cursors (feed_url, seen_ids) VALUES (?, ?)
			ON CONFLICT(feed_url) DO UPDATE SET seen_ids = excluded.seen_ids`, feedURL, seen)
		return err
	})
}

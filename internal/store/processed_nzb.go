package store

import (
	"context"
	"database/sql"
	"errors"
)

// MarkNzbProcessed records that the NZB at path (with this fingerprint) has
// been admitted, so a watch folder never re-imports it while the source
// file is left in place.
func (s *Store) MarkNzbProcessed(ctx context.Context, path string, nzbHash []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO processed_nzbs (path, nzb_hash) VALUES (?, ?)", path, nzbHash)
	return err
}

// IsNzbProcessed reports whether path has already been imported.
func (s *Store) IsNzbProcessed(ctx context.Context, path string) (bool, error) {
	var x int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM processed_nzbs WHERE path = ?", path).Scan(&x)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

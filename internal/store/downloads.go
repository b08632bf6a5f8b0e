package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

const downloadColumns = `id, name, nzb_path, nzb_hash, job_name, category, created_at, started_at,
	completed_at, destination, post_process, priority, status, progress_percent, speed_bps,
	size_bytes, downloaded_bytes, cached_password, direct_unpack_state, error_message`

func scanDownload(row interface{ Scan(...any) error }) (*domain.Download, error) {
	var d downloadDBO
	err := row.Scan(&d.ID, &d.Name, &d.NzbPath, &d.NzbHash, &d.JobName, &d.Category, &d.CreatedAt,
		&d.StartedAt, &d.CompletedAt, &d.Destination, &d.PostProcess, &d.Priority, &d.Status,
		&d.ProgressPercent, &d.SpeedBps, &d.SizeBytes, &d.DownloadedBytes, &d.CachedPassword,
		&d.DirectUnpackState, &d.ErrorMessage)
	if err != nil {
		return nil, err
	}
	return d.toDomain(), nil
}

// InsertDownload persists a new Download and returns its assigned ID.
func (s *Store) InsertDownload(ctx context.Context, d *domain.Download) (domain.DownloadID, error) {
	dbo := fromDomainDownload(d)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (name, nzb_path, nzb_hash, job_name, category, destination,
			post_process, priority, status, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dbo.Name, dbo.NzbPath, dbo.NzbHash, dbo.JobName, dbo.Category, dbo.Destination,
		dbo.PostProcess, dbo.Priority, dbo.Status, dbo.SizeBytes)
	if err != nil {
		return 0, fmt.Errorf("store: insert download: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return domain.DownloadID(id), nil
}

// GetDownload fetches one Download by ID.
func (s *Store) GetDownload(ctx context.Context, id domain.DownloadID) (*domain.Download, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+downloadColumns+" FROM downloads WHERE id = ?", int64(id))
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

// GetDownloadByNzbHash looks a Download up by its content fingerprint, used
// by duplicate detection.
func (s *Store) GetDownloadByNzbHash(ctx context.Context, hash []byte) (*domain.Download, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+downloadColumns+" FROM downloads WHERE nzb_hash = ?", hash)
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

// GetDownloadByName looks a Download up by its original NZB name.
func (s *Store) GetDownloadByName(ctx context.Context, name string) (*domain.Download, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+downloadColumns+" FROM downloads WHERE name = ? LIMIT 1", name)
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

// GetDownloadByJobName looks a Download up by its deobfuscated job name.
func (s *Store) GetDownloadByJobName(ctx context.Context, name string) (*domain.Download, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+downloadColumns+" FROM downloads WHERE job_name = ? LIMIT 1", name)
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

// ListDownloads returns every Download, most recently created first.
func (s *Store) ListDownloads(ctx context.Context) ([]*domain.Download, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+downloadColumns+" FROM downloads ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetIncompleteDownloads returns every Download not in a terminal state,
// ordered by priority then creation time — the shape Restore (§4.12) needs.
func (s *Store) GetIncompleteDownloads(ctx context.Context) ([]*domain.Download, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+downloadColumns+` FROM downloads
		WHERE status IN (?, ?, ?, ?)
		ORDER BY priority DESC, created_at ASC`,
		int(domain.StatusQueued), int(domain.StatusDownloading), int(domain.StatusProcessing), int(domain.StatusPaused))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a Download's status.
func (s *Store) UpdateStatus(ctx context.Context, id domain.DownloadID, status domain.Status) error {
	_, err := s.db.ExecContext(ctx, "UPDATE downloads SET status = ? WHERE id = ?", int(status), int64(id))
	return err
}

// UpdateProgress writes the batched progress fields for one Download.
func (s *Store) UpdateProgress(ctx context.Context, id domain.DownloadID, percent float64, speedBps uint64, downloadedBytes int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE downloads SET progress_percent = ?, speed_bps = ?, downloaded_bytes = ? WHERE id = ?",
		percent, int64(speedBps), downloadedBytes, int64(id))
	return err
}

// UpdateError records the terminal error message for a failed Download.
func (s *Store) UpdateError(ctx context.Context, id domain.DownloadID, message string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE downloads SET error_message = ? WHERE id = ?", message, int64(id))
	return err
}

// SetCorrectPassword persists the extraction password that worked, so it
// is offered first on any future extraction of this Download.
func (s *Store) SetCorrectPassword(ctx context.Context, id domain.DownloadID, password string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE downloads SET cached_password = ? WHERE id = ?", password, int64(id))
	return err
}

// GetCachedPassword returns the previously-verified password, if any.
func (s *Store) GetCachedPassword(ctx context.Context, id domain.DownloadID) (string, error) {
	var pw string
	err := s.db.QueryRowContext(ctx, "SELECT cached_password FROM downloads WHERE id = ?", int64(id)).Scan(&pw)
	return pw, err
}

// UpdateDirectUnpackState advances direct_unpack_state. Callers are
// responsible for respecting the monotone invariant (§3).
func (s *Store) UpdateDirectUnpackState(ctx context.Context, id domain.DownloadID, state domain.DirectUnpackState) error {
	_, err := s.db.ExecContext(ctx, "UPDATE downloads SET direct_unpack_state = ? WHERE id = ?", int(state), int64(id))
	return err
}

// DeleteDownload removes a Download and, via ON DELETE CASCADE, its Files
// and Articles.
func (s *Store) DeleteDownload(ctx context.Context, id domain.DownloadID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM downloads WHERE id = ?", int64(id))
	return err
}

package store

import (
	"context"
	"fmt"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// ArticleStatusUpdate is one (article id, new status) pair flushed by the
// pipeline's batcher.
type ArticleStatusUpdate struct {
	ArticleID int64
	Status    domain.ArticleStatus
}

// UpdateArticlesStatusBatch amortises the write cost of many per-segment
// status transitions into one transaction, per spec §4.5's batcher.
func (s *Store) UpdateArticlesStatusBatch(ctx context.Context, updates []ArticleStatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return s.withTxDB(ctx, func(execer execContexter) error {
		stmt, err := execer.PrepareContext(ctx, "UPDATE articles SET status = ? WHERE id = ?")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, u := range updates {
			if _, err := stmt.ExecContext(ctx, int(u.Status), u.ArticleID); err != nil {
				return fmt.Errorf("store: update article %d status: %w", u.ArticleID, err)
			}
		}
		return nil
	})
}

// GetPendingArticles returns every not-yet-resolved Article for a Download,
// ordered by (file_index, segment_number) so writers can stream in order.
func (s *Store) GetPendingArticles(ctx context.Context, downloadID domain.DownloadID) ([]domain.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, download_id, message_id, file_index, segment_number, size_bytes, status
		FROM articles WHERE download_id = ? AND status = ?
		ORDER BY file_index ASC, segment_number ASC`,
		int64(downloadID), int(domain.ArticlePending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		var a articleDBO
		if err := rows.Scan(&a.ID, &a.DownloadID, &a.MessageID, &a.FileIndex, &a.SegmentNumber, &a.SizeBytes, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a.toDomain())
	}
	return out, rows.Err()
}

// GetAllArticles returns every Article for a Download regardless of status,
// ordered by (file_index, segment_number). The pipeline uses this to derive
// each segment's byte offset within its file, since that depends on every
// preceding segment's size, not just the still-pending ones.
func (s *Store) GetAllArticles(ctx context.Context, downloadID domain.DownloadID) ([]domain.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, download_id, message_id, file_index, segment_number, size_bytes, status
		FROM articles WHERE download_id = ?
		ORDER BY file_index ASC, segment_number ASC`,
		int64(downloadID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		var a articleDBO
		if err := rows.Scan(&a.ID, &a.DownloadID, &a.MessageID, &a.FileIndex, &a.SegmentNumber, &a.SizeBytes, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a.toDomain())
	}
	return out, rows.Err()
}

// MarkFileCompleted flags a File as fully assembled.
func (s *Store) MarkFileCompleted(ctx context.Context, downloadID domain.DownloadID, fileIndex int) error {
	_, err := s.db.ExecContext(ctx, "UPDATE files SET completed = 1 WHERE download_id = ? AND file_index = ?",
		int64(downloadID), fileIndex)
	return err
}

// GetNewlyCompletedFiles returns every File marked completed that was not
// in the previously-observed set — used by DirectUnpack's poll loop.
func (s *Store) GetNewlyCompletedFiles(ctx context.Context, downloadID domain.DownloadID, seen map[int]struct{}) ([]domain.File, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, download_id, file_index, filename, completed, length FROM files WHERE download_id = ? AND completed = 1", int64(downloadID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.File
	for rows.Next() {
		var f fileDBO
		if err := rows.Scan(&f.ID, &f.DownloadID, &f.FileIndex, &f.Filename, &f.Completed, &f.Length); err != nil {
			return nil, err
		}
		if _, already := seen[f.FileIndex]; already {
			continue
		}
		out = append(out, f.toDomain())
	}
	return out, rows.Err()
}

// GetDownloadFiles returns every File belonging to a Download, ordered by
// file_index.
func (s *Store) GetDownloadFiles(ctx context.Context, downloadID domain.DownloadID) ([]domain.File, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, download_id, file_index, filename, completed, length FROM files WHERE download_id = ? ORDER BY file_index ASC", int64(downloadID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.File
	for rows.Next() {
		var f fileDBO
		if err := rows.Scan(&f.ID, &f.DownloadID, &f.FileIndex, &f.Filename, &f.Completed, &f.Length); err != nil {
			return nil, err
		}
		out = append(out, f.toDomain())
	}
	return out, rows.Err()
}

// RenameFile overwrites a File's filename, used by DirectRename (§4.8).
func (s *Store) RenameFile(ctx context.Context, downloadID domain.DownloadID, fileIndex int, newName string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE files SET filename = ? WHERE download_id = ? AND file_index = ?",
		newName, int64(downloadID), fileIndex)
	return err
}

// InsertFiles bulk-inserts the logical File rows for a Download.
func (s *Store) InsertFiles(ctx context.Context, downloadID domain.DownloadID, files []domain.File) error {
	if len(files) == 0 {
		return nil
	}
	return s.withTxDB(ctx, func(execer execContexter) error {
		stmt, err := execer.PrepareContext(ctx, "INSERT INTO files (download_id, file_index, filename, length) VALUES (?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, f := range files {
			if _, err := stmt.ExecContext(ctx, int64(downloadID), f.FileIndex, f.Filename, f.Length); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertArticleRows bulk-inserts the segment rows for a Download.
func (s *Store) InsertArticleRows(ctx context.Context, downloadID domain.DownloadID, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}
	return s.withTxDB(ctx, func(execer execContexter) error {
		stmt, err := execer.PrepareContext(ctx, `INSERT INTO articles
			(download_id, message_id, file_index, segment_number, size_bytes, status)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, a := range articles {
			if _, err := stmt.ExecContext(ctx, int64(downloadID), a.MessageID, a.FileIndex, a.SegmentNumber, a.SizeBytes, int(a.Status)); err != nil {
				return err
			}
		}
		return nil
	})
}

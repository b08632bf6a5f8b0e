package store

import (
	"database/sql"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// downloadDBO mirrors the downloads table's column layout for scanning;
// nullable columns use sql.Null* so a fresh row (no started/completed
// timestamp yet) round-trips cleanly.
type downloadDBO struct {
	ID                int64
	Name              string
	NzbPath           string
	NzbHash           []byte
	JobName           string
	Category          string
	CreatedAt         time.Time
	StartedAt         sql.NullTime
	CompletedAt       sql.NullTime
	Destination       string
	PostProcess       int
	Priority          int
	Status            int
	ProgressPercent   float64
	SpeedBps          int64
	SizeBytes         int64
	DownloadedBytes   int64
	CachedPassword    string
	DirectUnpackState int
	ErrorMessage      string
}

func (d *downloadDBO) toDomain() *domain.Download {
	out := &domain.Download{
		ID:                domain.DownloadID(d.ID),
		Name:              d.Name,
		NzbPath:           d.NzbPath,
		NzbHash:           d.NzbHash,
		JobName:           d.JobName,
		Category:          d.Category,
		CreatedAt:         d.CreatedAt,
		Destination:       d.Destination,
		PostProcess:       domain.PostProcessFromInt(d.PostProcess),
		Priority:          domain.Priority(d.Priority),
		Status:            domain.StatusFromInt(d.Status),
		ProgressPercent:   d.ProgressPercent,
		SpeedBps:          uint64(d.SpeedBps),
		SizeBytes:         d.SizeBytes,
		DownloadedBytes:   d.DownloadedBytes,
		CachedCorrectPW:   d.CachedPassword,
		DirectUnpackState: domain.DirectUnpackState(d.DirectUnpackState),
		ErrorMessage:      d.ErrorMessage,
	}
	if d.StartedAt.Valid {
		out.StartedAt = &d.StartedAt.Time
	}
	if d.CompletedAt.Valid {
		out.CompletedAt = &d.CompletedAt.Time
	}
	return out
}

func fromDomainDownload(d *domain.Download) downloadDBO {
	dbo := downloadDBO{
		ID:                int64(d.ID),
		Name:              d.Name,
		NzbPath:           d.NzbPath,
		NzbHash:           d.NzbHash,
		JobName:           d.JobName,
		Category:          d.Category,
		CreatedAt:         d.CreatedAt,
		Destination:       d.Destination,
		PostProcess:       int(d.PostProcess),
		Priority:          int(d.Priority),
		Status:            int(d.Status),
		ProgressPercent:   d.ProgressPercent,
		SpeedBps:          int64(d.SpeedBps),
		SizeBytes:         d.SizeBytes,
		DownloadedBytes:   d.DownloadedBytes,
		CachedPassword:    d.CachedCorrectPW,
		DirectUnpackState: int(d.DirectUnpackState),
		ErrorMessage:      d.ErrorMessage,
	}
	if d.StartedAt != nil {
		dbo.StartedAt = sql.NullTime{Time: *d.StartedAt, Valid: true}
	}
	if d.CompletedAt != nil {
		dbo.CompletedAt = sql.NullTime{Time: *d.CompletedAt, Valid: true}
	}
	return dbo
}

type articleDBO struct {
	ID            int64
	DownloadID    int64
	MessageID     string
	FileIndex     int
	SegmentNumber int
	SizeBytes     int64
	Status        int
}

func (a *articleDBO) toDomain() domain.Article {
	return domain.Article{
		ID:            a.ID,
		DownloadID:    domain.DownloadID(a.DownloadID),
		MessageID:     a.MessageID,
		FileIndex:     a.FileIndex,
		SegmentNumber: a.SegmentNumber,
		SizeBytes:     a.SizeBytes,
		Status:        domain.ArticleStatus(a.Status),
	}
}

type fileDBO struct {
	ID         int64
	DownloadID int64
	FileIndex  int
	Filename   string
	Completed  int
	Length     int64
}

func (f *fileDBO) toDomain() domain.File {
	return domain.File{
		ID:         f.ID,
		DownloadID: domain.DownloadID(f.DownloadID),
		FileIndex:  f.FileIndex,
		Filename:   f.Filename,
		Completed:  f.Completed != 0,
		Length:     f.Length,
	}
}

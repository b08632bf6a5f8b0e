// Package domain holds the core entities, enums, and errors shared across
// the download engine: the types every other package builds on.
package domain

import "time"

// DownloadID is an opaque, monotonically assigned identifier for a Download.
type DownloadID int64

// Status is the lifecycle state of a Download.
type Status int

const (
	StatusQueued Status = iota
	StatusDownloading
	StatusPaused
	StatusProcessing
	StatusComplete
	StatusFailed
)

// StatusFromInt round-trips the integer encoding used by the store and API;
// unknown values fall back to Failed so a corrupt row never reads as healthy.
func StatusFromInt(v int) Status {
	if v < int(StatusQueued) || v > int(StatusFailed) {
		return StatusFailed
	}
	return Status(v)
}

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusDownloading:
		return "downloading"
	case StatusPaused:
		return "paused"
	case StatusProcessing:
		return "processing"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Priority orders admission into the scheduler's queue.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityForce
)

// PostProcess is how far the orchestrator should carry a completed download.
type PostProcess int

const (
	PostProcessNone PostProcess = iota
	PostProcessVerify
	PostProcessRepair
	PostProcessUnpack
	PostProcessUnpackAndCleanup
)

// PostProcessFromInt round-trips the integer encoding; unknown values fall
// back to UnpackAndCleanup, the most conservative (most thorough) choice.
func PostProcessFromInt(v int) PostProcess {
	if v < int(PostProcessNone) || v > int(PostProcessUnpackAndCleanup) {
		return PostProcessUnpackAndCleanup
	}
	return PostProcess(v)
}

// DirectUnpackState tracks the DirectUnpack coordinator's lifecycle for a
// Download. It is monotone: NotStarted -> Active -> {Completed, Cancelled}.
type DirectUnpackState int

const (
	DirectUnpackNotStarted DirectUnpackState = iota
	DirectUnpackActive
	DirectUnpackCompleted
	DirectUnpackCancelled
)

// FileCollisionPolicy controls what happens when a moved artefact already
// exists at the destination.
type FileCollisionPolicy int

const (
	FileCollisionRename FileCollisionPolicy = iota
	FileCollisionOverwrite
	FileCollisionSkip
)

// Download is the core entity: one admitted NZB and everything tracking its
// progress from admission through post-processing.
type Download struct {
	ID       DownloadID
	Name     string
	NzbPath  string
	NzbHash  []byte
	JobName  string
	Category string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Destination string
	PostProcess PostProcess
	Priority    Priority

	Status               Status
	ProgressPercent      float64
	SpeedBps             uint64
	SizeBytes            int64
	DownloadedBytes      int64
	CachedCorrectPW      string
	DirectUnpackState    DirectUnpackState
	ErrorMessage         string
}

// UpdateProgress recomputes ProgressPercent per the spec's invariant: byte
// progress when size is known, otherwise article-count progress.
func (d *Download) UpdateProgress(downloadedArticles, totalArticles int) {
	switch {
	case d.SizeBytes > 0:
		d.ProgressPercent = 100 * float64(d.DownloadedBytes) / float64(d.SizeBytes)
	case totalArticles > 0:
		d.ProgressPercent = 100 * float64(downloadedArticles) / float64(totalArticles)
	default:
		d.ProgressPercent = 0
	}
	if d.ProgressPercent > 100 {
		d.ProgressPercent = 100
	}
	if d.ProgressPercent < 0 {
		d.ProgressPercent = 0
	}
}

// ArticleStatus is the lifecycle of a single segment fetch.
type ArticleStatus int

const (
	ArticlePending ArticleStatus = iota
	ArticleDownloaded
	ArticleFailed
)

// Article is a segment fetch unit owned by exactly one Download.
type Article struct {
	ID            int64
	DownloadID    DownloadID
	MessageID     string
	FileIndex     int
	SegmentNumber int
	SizeBytes     int64
	Status        ArticleStatus
}

// File is a logical NZB file, composed of the Articles sharing its FileIndex.
type File struct {
	ID         int64
	DownloadID DownloadID
	FileIndex  int
	Filename   string
	Completed  bool
	Length     int64
}

// ScheduleAction is what a matching ScheduleRule does to the engine.
type ScheduleAction int

const (
	ScheduleActionSpeedLimit ScheduleAction = iota
	ScheduleActionUnlimited
	ScheduleActionPause
)

// ScheduleRule is a named time-window rule evaluated once a minute.
type ScheduleRule struct {
	Name      string
	Weekdays  map[time.Weekday]struct{} // empty set == all days
	StartTime string                    // "HH:MM", 24h
	EndTime   string                    // "HH:MM", 24h
	Action    ScheduleAction
	LimitBps  uint64 // only meaningful when Action == ScheduleActionSpeedLimit
	Enabled   bool
}

// RssCursor is the set of GUIDs already seen for a given feed.
type RssCursor struct {
	FeedURL string
	SeenIDs map[string]struct{}
}

// ProcessedNzb records the fingerprint of an NZB already imported by a
// watch folder, so the source file is never re-admitted while left in place.
type ProcessedNzb struct {
	Path      string
	NzbHash   []byte
	Processed time.Time
}

// Package directunpack implements the DirectUnpack/DirectRename coordinator
// (spec §4.8): a task that runs alongside the article pipeline, extracting
// and renaming files as soon as enough of them are on disk rather than
// waiting for the whole Download to finish.
package directunpack

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/extract"
	"github.com/jvz-devx/usenet-dl-sub002/internal/par2meta"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

const DefaultPollInterval = 2 * time.Second

// EventSink receives coordinator lifecycle events.
type EventSink interface {
	Publish(domain.Event)
}

// Status is a snapshot of the parent article pipeline, polled once per
// tick so the coordinator can detect the kill switch and completion.
type Status struct {
	FailedArticles int64
	PipelineDone   bool
}

// StatusFunc reports the parent pipeline's current Status.
type StatusFunc func() Status

// Coordinator runs the DirectUnpack loop for a single Download.
type Coordinator struct {
	Store     *store.Store
	Extractor *extract.Dispatcher
	Events    EventSink
	TempDir   string // same base articlepipeline writes into
	Passwords []string

	PollInterval time.Duration
	DirectRename bool
}

func (c *Coordinator) pollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return DefaultPollInterval
}

// Run polls until the pipeline finishes, fails, or ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, id domain.DownloadID, status StatusFunc) {
	_ = c.Store.UpdateDirectUnpackState(ctx, id, domain.DirectUnpackActive)
	c.publish(id, domain.EventDirectUnpackStarted, nil)

	st := &state{
		processed:    make(map[int]struct{}),
		pendingRetry: make(map[int]struct{}),
	}

	ticker := time.NewTicker(c.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := status()
			if snap.FailedArticles > 0 {
				_ = c.Store.UpdateDirectUnpackState(ctx, id, domain.DirectUnpackCancelled)
				c.publish(id, domain.EventDirectUnpackCancelled, domain.DirectUnpackCancelledPayload{
					Reason: "parent pipeline reported failed articles",
				})
				return
			}

			newCount := c.tick(ctx, id, st)

			if snap.PipelineDone && newCount == 0 && len(st.pendingRetry) == 0 {
				_ = c.Store.UpdateDirectUnpackState(ctx, id, domain.DirectUnpackCompleted)
				c.publish(id, domain.EventDirectUnpackComplete, nil)
				return
			}
		}
	}
}

type state struct {
	processed         map[int]struct{}
	pendingRetry      map[int]struct{}
	descriptions      []par2meta.FileEntry
	descParsed        bool
	renameBacklogDone bool
}

// tick processes newly completed files for one poll cycle and retries any
// first-RAR-volumes whose sibling volumes weren't ready last time. It
// returns the number of newly completed files observed this cycle.
func (c *Coordinator) tick(ctx context.Context, id domain.DownloadID, st *state) int {
	newly, err := c.Store.GetNewlyCompletedFiles(ctx, id, st.processed)
	if err != nil {
		return 0
	}
	for _, f := range newly {
		st.processed[f.FileIndex] = struct{}{}
	}

	if c.DirectRename {
		c.maybeParsePar2(ctx, id, newly, st)
		c.applyRenames(ctx, id, newly, st)
	}

	for _, f := range newly {
		if extract.IsFirstRarVolume(f.Filename) {
			c.tryExtractVolume(ctx, id, f, st)
		}
	}
	for fi := range st.pendingRetry {
		f, err := c.fileByIndex(ctx, id, fi)
		if err != nil {
			continue
		}
		c.tryExtractVolume(ctx, id, f, st)
	}

	return len(newly)
}

func (c *Coordinator) maybeParsePar2(ctx context.Context, id domain.DownloadID, newly []domain.File, st *state) {
	if st.descParsed {
		return
	}
	for _, f := range newly {
		if !strings.EqualFold(filepath.Ext(f.Filename), ".par2") {
			continue
		}
		path := c.filePath(id, f.Filename)
		entries, err := par2meta.ParseFile(path)
		if err != nil {
			continue
		}
		st.descriptions = entries
		st.descParsed = true
		return
	}
}

func (c *Coordinator) fileByIndex(ctx context.Context, id domain.DownloadID, fileIndex int) (domain.File, error) {
	files, err := c.Store.GetDownloadFiles(ctx, id)
	if err != nil {
		return domain.File{}, err
	}
	for _, f := range files {
		if f.FileIndex == fileIndex {
			return f, nil
		}
	}
	return domain.File{}, fmt.Errorf("directunpack: file index %d not found", fileIndex)
}

func (c *Coordinator) filePath(id domain.DownloadID, filename string) string {
	return filepath.Join(c.TempDir, fmt.Sprint(int64(id)), filename)
}

func (c *Coordinator) publish(id domain.DownloadID, kind domain.EventKind, payload any) {
	if c.Events == nil {
		return
	}
	c.Events.Publish(domain.Event{Kind: kind, DownloadID: id, At: time.Now(), Payload: payload})
}

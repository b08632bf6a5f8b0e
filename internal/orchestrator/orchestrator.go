// Package orchestrator drives the post-processing state machine from
// spec §4.9: Verifying -> {Extracting | Repairing -> Extracting} ->
// Moving -> Cleaning -> Complete, entered once a Download's article
// pipeline reports DownloadComplete.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/category"
	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/extract"
	"github.com/jvz-devx/usenet-dl-sub002/internal/parity"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

// EventSink receives orchestrator lifecycle events.
type EventSink interface {
	Publish(domain.Event)
}

// Config carries the cleanup/extraction knobs from the Processing
// section of the config surface.
type Config struct {
	TempDir           string
	Passwords         []string
	CleanupExtensions []string // par2, nzb, sfv, srr, nfo by default
	DeleteSamples     bool
	SampleFolderNames []string
	FileCollision     domain.FileCollisionPolicy
}

// Orchestrator carries one Download through post-processing.
type Orchestrator struct {
	Store     *store.Store
	Parity    parity.Handler
	Extractor *extract.Dispatcher
	Category  *category.Router
	Events    EventSink
	Config    Config
}

// StageError reports which stage failed and whether files were kept,
// mirroring domain.StageFailure.
type StageError struct {
	Stage     string
	Err       error
	FilesKept bool
}

func (e *StageError) Error() string {
	return fmt.Sprintf("orchestrator: stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Run carries download id through Verify, Repair, Extract, Move, and
// Cleanup, emitting the corresponding events at each transition.
func (o *Orchestrator) Run(ctx context.Context, id domain.DownloadID) error {
	dl, err := o.Store.GetDownload(ctx, id)
	if err != nil {
		return fmt.Errorf("orchestrator: load download: %w", err)
	}

	workDir := filepath.Join(o.Config.TempDir, fmt.Sprint(int64(id)))

	if err := o.verifyAndRepair(ctx, dl, workDir); err != nil {
		return o.fail(ctx, id, "verify", err, true)
	}

	extractedFiles, err := o.extractStage(ctx, dl, workDir)
	if err != nil {
		return o.fail(ctx, id, "extract", err, true)
	}

	destination, err := o.moveStage(ctx, dl, workDir, extractedFiles)
	if err != nil {
		return o.fail(ctx, id, "move", err, true)
	}

	if dl.PostProcess == domain.PostProcessUnpackAndCleanup {
		if err := o.cleanupStage(ctx, id, destination); err != nil {
			return o.fail(ctx, id, "cleanup", err, true)
		}
	}

	if err := o.Store.UpdateStatus(ctx, id, domain.StatusComplete); err != nil {
		return fmt.Errorf("orchestrator: mark complete: %w", err)
	}
	o.publish(id, domain.EventComplete, nil)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, id domain.DownloadID, stage string, err error, filesKept bool) error {
	_ = o.Store.UpdateStatus(ctx, id, domain.StatusFailed)
	_ = o.Store.UpdateError(ctx, id, err.Error())
	o.publish(id, domain.EventFailed, domain.FailedPayload{Stage: stage, Error: err.Error(), FilesKept: filesKept})
	return &StageError{Stage: stage, Err: err, FilesKept: filesKept}
}

func (o *Orchestrator) publish(id domain.DownloadID, kind domain.EventKind, payload any) {
	if o.Events == nil {
		return
	}
	o.Events.Publish(domain.Event{Kind: kind, DownloadID: id, At: time.Now(), Payload: payload})
}

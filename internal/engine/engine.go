// Package engine composes the article pipeline, DirectUnpack coordinator,
// and post-processing orchestrator into the single queue.Runner the
// scheduling loop drives per download, and exposes the admission entry
// point (AddFile) the HTTP control surface, CLI, and watch-folder
// ingestion all call through.
package engine

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/deobfuscate"
	"github.com/jvz-devx/usenet-dl-sub002/internal/directunpack"
	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/nzbparse"
	"github.com/jvz-devx/usenet-dl-sub002/internal/orchestrator"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

// Pipeline is the subset of articlepipeline.Pipeline the engine drives.
type Pipeline interface {
	Run(ctx context.Context, id domain.DownloadID) error
}

// Engine wires the three per-download stages (fetch, direct-unpack,
// post-process) together and implements queue.Runner against them.
type Engine struct {
	Store        *store.Store
	Pipeline     Pipeline
	DirectUnpack *directunpack.Coordinator
	Orchestrator *orchestrator.Orchestrator
}

// Run fetches every article for id, races an optional DirectUnpack
// coordinator alongside the fetch, then (if the fetch succeeded) hands
// the download to the post-processing orchestrator. This is the single
// entry point queue.Manager calls per admitted download.
//
// The coordinator's Status reflects the fetch only once Pipeline.Run has
// returned: PipelineDone is set then, and FailedArticles becomes 1 when
// Run returned an error. Article failures inside a fetch that still
// succeeds are not reported to the coordinator.
func (e *Engine) Run(ctx context.Context, id domain.DownloadID) error {
	_ = e.Store.UpdateStatus(ctx, id, domain.StatusDownloading)

	var failedArticles int64
	var pipelineDone int32

	pipelineCtx, cancelPipeline := context.WithCancel(ctx)
	defer cancelPipeline()

	duCtx, cancelDU := context.WithCancel(ctx)
	defer cancelDU()

	if e.DirectUnpack != nil {
		status := func() directunpack.Status {
			return directunpack.Status{
				FailedArticles: atomic.LoadInt64(&failedArticles),
				PipelineDone:   atomic.LoadInt32(&pipelineDone) == 1,
			}
		}
		go e.DirectUnpack.Run(duCtx, id, status)
	}

	err := e.Pipeline.Run(pipelineCtx, id)
	atomic.StoreInt32(&pipelineDone, 1)
	if err != nil {
		atomic.AddInt64(&failedArticles, 1)
		// Wait 50ms before the deferred cancel tears the coordinator's
		// context down; it observes the failure only if one of its ticks
		// falls inside that window.
		time.Sleep(50 * time.Millisecond)
		return fmt.Errorf("engine: article pipeline: %w", err)
	}

	// Let DirectUnpack observe PipelineDone and settle before the full
	// post-processing run starts; it is harmless for both to run, since
	// DirectUnpack re-attempts extraction using the same idempotent
	// Dispatcher.Extract the orchestrator itself uses.
	time.Sleep(50 * time.Millisecond)
	cancelDU()

	_ = e.Store.UpdateStatus(ctx, id, domain.StatusProcessing)
	return e.Orchestrator.Run(ctx, id)
}

// Admitter ties the duplicate/disk-space gated admission path (owned by
// internal/queue.Manager.Add) to the NZB-parsing and store-population
// work that happens before a Download is queueable.
type Admitter struct {
	Store         *store.Store
	Queue         QueueAdder
	Deobfuscation deobfuscate.Config
}

// QueueAdder is the subset of queue.Manager the admitter calls.
type QueueAdder interface {
	Add(ctx context.Context, dl *domain.Download) (domain.DownloadID, error)
}

// AddFile parses the NZB at path, builds a Download plus its File/Article
// rows, and admits it through Queue.Add (which itself runs the
// duplicate/disk-space gates). It satisfies watcher.Admitter.
func (a *Admitter) AddFile(ctx context.Context, nzbPath string, nzbHash []byte, category string) (domain.DownloadID, error) {
	f, err := os.Open(nzbPath)
	if err != nil {
		return 0, fmt.Errorf("engine: open nzb: %w", err)
	}
	defer f.Close()

	parsed, err := nzbparse.Parse(f)
	if err != nil {
		return 0, fmt.Errorf("engine: parse nzb: %w", err)
	}
	if len(nzbHash) == 0 {
		nzbHash = nzbparse.Fingerprint(parsed)
	}

	jobName := parsed.Title
	if jobName == "" && len(parsed.Files) > 0 {
		jobName = deobfuscate.Apply(a.Deobfuscation, parsed.Files[0].Subject)
	}

	dl := &domain.Download{
		Name:      parsed.Title,
		NzbPath:   nzbPath,
		NzbHash:   nzbHash,
		JobName:   jobName,
		Category:  category,
		SizeBytes: parsed.TotalSize(),
		Priority:  domain.PriorityNormal,
		Status:    domain.StatusQueued,
	}

	id, err := a.Queue.Add(ctx, dl)
	if err != nil {
		return 0, err
	}

	var files []domain.File
	var articles []domain.Article
	for _, pf := range parsed.Files {
		files = append(files, domain.File{
			DownloadID: id,
			FileIndex:  pf.Index,
			Filename:   pf.Filename,
			Length:     pf.TotalSize(),
		})
		for _, seg := range pf.Segments {
			articles = append(articles, domain.Article{
				DownloadID:    id,
				MessageID:     seg.MessageID,
				FileIndex:     pf.Index,
				SegmentNumber: seg.Number,
				SizeBytes:     seg.Bytes,
				Status:        domain.ArticlePending,
			})
		}
	}

	if err := a.Store.InsertFiles(ctx, id, files); err != nil {
		return id, fmt.Errorf("engine: insert files: %w", err)
	}
	if err := a.Store.InsertArticleRows(ctx, id, articles); err != nil {
		return id, fmt.Errorf("engine: insert articles: %w", err)
	}

	return id, nil
}

// Restore implements spec §4.12's startup recovery in the store: every
// Download left Downloading or Processing is demoted to Queued (they are
// not resumed mid-stream — article status persistence makes a fresh pass
// skip already-downloaded articles). It changes only stored statuses;
// re-admission comes from a queue.Manager built with loadExisting, which
// admits Queued, Downloading and Processing entries alike.
func Restore(ctx context.Context, st *store.Store) error {
	downloads, err := st.GetIncompleteDownloads(ctx)
	if err != nil {
		return fmt.Errorf("engine: restore: load incomplete downloads: %w", err)
	}
	for _, dl := range downloads {
		switch dl.Status {
		case domain.StatusDownloading, domain.StatusProcessing:
			if err := st.UpdateStatus(ctx, dl.ID, domain.StatusQueued); err != nil {
				return fmt.Errorf("engine: restore: demote download %d: %w", dl.ID, err)
			}
		}
	}
	return nil
}

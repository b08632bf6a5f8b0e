// Package articlepipeline drives a single Download from Queued through
// fetch, yEnc decode, and on-disk assembly, per §4.5 of the download
// pipeline design: bounded-concurrency fetch workers, a fast-fail/health
// gate, a 500ms progress ticker, and a batched article-status writer.
package articlepipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/providerpool"
	"github.com/jvz-devx/usenet-dl-sub002/internal/speedlimit"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
	"github.com/jvz-devx/usenet-dl-sub002/internal/yenc"
)

// Defaults for the fast-fail and health-gate heuristics (§4.5).
const (
	DefaultFastFailSampleSize = 10
	DefaultFastFailThreshold  = 0.8
	DefaultMaxFailureRatio    = 0.5
	progressTick              = 500 * time.Millisecond
	maxRetriesPerArticle      = 3
)

// EventSink receives pipeline lifecycle events. Satisfied by
// internal/eventbus.Bus; kept as a narrow interface here so this package
// never imports the bus.
type EventSink interface {
	Publish(domain.Event)
}

// ErrHealthGateTripped reports that the sampled failure ratio exceeded
// max_failure_ratio and the download was aborted.
var ErrHealthGateTripped = errors.New("articlepipeline: health gate tripped")

// ErrFastFailTripped reports the fast-fail heuristic aborted the download.
var ErrFastFailTripped = errors.New("articlepipeline: fast-fail heuristic tripped")

type job struct {
	article    domain.Article
	offset     int64
	retryCount int
	filePath   string
}

type jobResult struct {
	job job
	err error
}

// Pipeline fetches and assembles one Download's articles.
type Pipeline struct {
	Store      *store.Store
	Pool       *providerpool.Pool
	SpeedLimit *speedlimit.Limiter
	Events     EventSink
	TempDir    string // base dir; articles land at TempDir/<download_id>/<filename>

	FastFailSampleSize int
	FastFailThreshold  float64
	MaxFailureRatio    float64
}

func (p *Pipeline) sampleSize() int {
	if p.FastFailSampleSize > 0 {
		return p.FastFailSampleSize
	}
	return DefaultFastFailSampleSize
}

func (p *Pipeline) fastFailThreshold() float64 {
	if p.FastFailThreshold > 0 {
		return p.FastFailThreshold
	}
	return DefaultFastFailThreshold
}

func (p *Pipeline) maxFailureRatio() float64 {
	if p.MaxFailureRatio > 0 {
		return p.MaxFailureRatio
	}
	return DefaultMaxFailureRatio
}

// Run drives download id to completion or failure, returning the error
// that failed it (nil on success). The caller is responsible for the
// Queued->Downloading and Processing->... store transitions around Run.
func (p *Pipeline) Run(ctx context.Context, id domain.DownloadID) error {
	dl, err := p.Store.GetDownload(ctx, id)
	if err != nil {
		return fmt.Errorf("articlepipeline: load download: %w", err)
	}

	allArticles, err := p.Store.GetAllArticles(ctx, id)
	if err != nil {
		return fmt.Errorf("articlepipeline: load articles: %w", err)
	}
	files, err := p.Store.GetDownloadFiles(ctx, id)
	if err != nil {
		return fmt.Errorf("articlepipeline: load files: %w", err)
	}
	filenames := make(map[int]string, len(files))
	for _, f := range files {
		filenames[f.FileIndex] = f.Filename
	}

	offsets := computeOffsets(allArticles)
	totalArticles := len(allArticles)

	pending, err := p.Store.GetPendingArticles(ctx, id)
	if err != nil {
		return fmt.Errorf("articlepipeline: load pending articles: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	capacity := p.Pool.TotalCapacity()
	if capacity <= 0 {
		return fmt.Errorf("articlepipeline: no download capacity available")
	}
	workerCount := capacity + 2
	bufSize := workerCount * 2

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job, bufSize)
	results := make(chan jobResult, bufSize)

	writer := NewFileWriter()
	defer writer.CloseAll()

	sw := newStatusWriter(p.Store)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sw.run(ctx)
	}()

	var downloadedArticles, failedArticles, downloadedBytes int64

	var pwg sync.WaitGroup
	pwg.Add(1)
	go func() {
		defer pwg.Done()
		p.reportProgress(jobCtx, dl, &downloadedArticles, &failedArticles, &downloadedBytes, totalArticles)
	}()

	var workers sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.worker(jobCtx, writer, jobs, results)
		}()
	}

	go p.dispatch(jobCtx, pending, offsets, filenames, dl.ID, jobs)

	var finalErr error
	completed := 0
	for completed < len(pending) {
		select {
		case <-ctx.Done():
			finalErr = ctx.Err()
			completed = len(pending)
		case res := <-results:
			completed++
			if res.err != nil {
				isBusy := errors.Is(res.err, domain.ErrProviderBusy)
				isMissing := errors.Is(res.err, domain.ErrArticleNotFound)
				if (isBusy || isMissing) && res.job.retryCount < maxRetriesPerArticle {
					delay := 100 * time.Millisecond
					next := res.job
					if !isBusy {
						next.retryCount++
						delay = time.Duration(math.Pow(2, float64(next.retryCount))) * time.Second
					}
					completed--
					go func(j job, d time.Duration) {
						t := time.NewTimer(d)
						defer t.Stop()
						select {
						case <-jobCtx.Done():
						case <-t.C:
							select {
							case <-jobCtx.Done():
							case jobs <- j:
							}
						}
					}(next, delay)
					continue
				}

				atomic.AddInt64(&failedArticles, 1)
				sw.enqueue(store.ArticleStatusUpdate{ArticleID: res.job.article.ID, Status: domain.ArticleFailed})
			} else {
				atomic.AddInt64(&downloadedArticles, 1)
				atomic.AddInt64(&downloadedBytes, res.job.article.SizeBytes)
				sw.enqueue(store.ArticleStatusUpdate{ArticleID: res.job.article.ID, Status: domain.ArticleDownloaded})
			}

			if tripped := p.checkGates(int(downloadedArticles+failedArticles), int(failedArticles), totalArticles); tripped != nil {
				finalErr = tripped
				completed = len(pending)
			}
		}
	}

	cancel()
	workers.Wait()
	close(jobs)
	pwg.Wait()
	sw.closeAndWait()
	wg.Wait()

	if finalErr != nil {
		p.publish(domain.Event{Kind: domain.EventDownloadFailed, DownloadID: dl.ID, At: time.Now(), Payload: domain.FailedPayload{
			Stage: "download", Error: finalErr.Error(), FilesKept: true,
		}})
		return finalErr
	}

	p.markCompletedFiles(ctx, dl.ID, allArticles, files)

	p.publish(domain.Event{Kind: domain.EventDownloadComplete, DownloadID: dl.ID, At: time.Now(), Payload: domain.DownloadCompletePayload{
		ArticlesFailed: int(failedArticles), ArticlesTotal: totalArticles,
	}})
	return nil
}

// checkGates evaluates the fast-fail and health-gate heuristics once
// attempted reaches the configured sample size.
func (p *Pipeline) checkGates(attempted, failed, total int) error {
	sample := p.sampleSize()
	if attempted < sample {
		return nil
	}
	ratio := float64(failed) / float64(attempted)
	if attempted == sample && ratio >= p.fastFailThreshold() {
		return ErrFastFailTripped
	}
	if total > 0 && float64(failed)/float64(total) >= p.maxFailureRatio() {
		return ErrHealthGateTripped
	}
	return nil
}

// worker batches as many ready jobs as the pool's pipeline depth allows
// into a single FetchBatch call, so multiple outstanding BODY commands
// share one lease (spec §4.4: "fetch_batch pipelines within a single
// lease"). It falls back to a batch of one when only one job is ready.
func (p *Pipeline) worker(ctx context.Context, writer *FileWriter, jobs <-chan job, results chan<- jobResult) {
	depth := p.Pool.PipelineDepth()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			batch := []job{j}
		drain:
			for len(batch) < depth {
				select {
				case j2, ok := <-jobs:
					if !ok {
						break drain
					}
					batch = append(batch, j2)
				default:
					break drain
				}
			}
			for _, res := range p.processBatch(ctx, writer, batch) {
				select {
				case results <- res:
				case <-ctx.Done():
				}
			}
		}
	}
}

func (p *Pipeline) processBatch(ctx context.Context, writer *FileWriter, batch []job) []jobResult {
	if len(batch) == 1 {
		j := batch[0]
		body, err := p.Pool.Fetch(ctx, j.article.MessageID, nil)
		if err != nil {
			return []jobResult{{job: j, err: fmt.Errorf("fetch: %w", err)}}
		}
		return []jobResult{{job: j, err: p.decodeAndWrite(ctx, writer, j, body)}}
	}

	ids := make([]string, len(batch))
	for i, j := range batch {
		ids[i] = j.article.MessageID
	}
	bodies, errs := p.Pool.FetchBatch(ctx, ids, nil)

	results := make([]jobResult, len(batch))
	for i, j := range batch {
		if errs[i] != nil {
			results[i] = jobResult{job: j, err: fmt.Errorf("fetch: %w", errs[i])}
			continue
		}
		results[i] = jobResult{job: j, err: p.decodeAndWrite(ctx, writer, j, bodies[i])}
	}
	return results
}

func (p *Pipeline) decodeAndWrite(ctx context.Context, writer *FileWriter, j job, body io.ReadCloser) error {
	defer body.Close()

	decoder := yenc.NewDecoder(body)
	if err := decoder.DiscardHeader(); err != nil {
		return fmt.Errorf("yenc header: %w", err)
	}

	data := make([]byte, j.article.SizeBytes)
	n, err := io.ReadFull(decoder, data)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("yenc decode: %w", err)
	}
	if err := decoder.Verify(); err != nil {
		return fmt.Errorf("crc check: %w", err)
	}

	if n == 0 {
		return nil
	}
	if p.SpeedLimit != nil {
		if err := p.SpeedLimit.Acquire(ctx, n); err != nil {
			return fmt.Errorf("speed limiter: %w", err)
		}
	}

	return writer.WriteAt(j.filePath, data[:n], j.offset)
}

func (p *Pipeline) dispatch(ctx context.Context, pending []domain.Article, offsets map[int64]int64, filenames map[int]string, id domain.DownloadID, jobs chan<- job) {
	for _, a := range pending {
		filePath := filepath.Join(p.TempDir, fmt.Sprint(int64(id)), filenames[a.FileIndex])
		j := job{article: a, offset: offsets[a.ID], filePath: filePath}
		select {
		case <-ctx.Done():
			return
		case jobs <- j:
		}
	}
}

func (p *Pipeline) markCompletedFiles(ctx context.Context, id domain.DownloadID, all []domain.Article, files []domain.File) {
	byFile := make(map[int][]domain.Article)
	for _, a := range all {
		byFile[a.FileIndex] = append(byFile[a.FileIndex], a)
	}
	for _, f := range files {
		arts := byFile[f.FileIndex]
		allDownloaded := len(arts) > 0
		for _, a := range arts {
			if a.Status != domain.ArticleDownloaded {
				allDownloaded = false
				break
			}
		}
		if allDownloaded {
			_ = p.Store.MarkFileCompleted(ctx, id, f.FileIndex)
		}
	}
}

func (p *Pipeline) reportProgress(ctx context.Context, dl *domain.Download, downloaded, failed, bytesDone *int64, total int) {
	ticker := time.NewTicker(progressTick)
	defer ticker.Stop()
	var lastBytes int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d := atomic.LoadInt64(downloaded)
			f := atomic.LoadInt64(failed)
			b := atomic.LoadInt64(bytesDone)

			speedBps := uint64(float64(b-lastBytes) / progressTick.Seconds())
			lastBytes = b

			dl.DownloadedBytes = b
			dl.UpdateProgress(int(d), total)
			_ = p.Store.UpdateProgress(ctx, dl.ID, dl.ProgressPercent, speedBps, b)

			health := 100.0
			if total > 0 {
				health = 100 * (1 - float64(f)/float64(total))
			}
			p.publish(domain.Event{Kind: domain.EventDownloading, DownloadID: dl.ID, At: time.Now(), Payload: domain.DownloadingPayload{
				Percent: dl.ProgressPercent, SpeedBps: speedBps, FailedArticles: int(f), TotalArticles: total, HealthPercent: health,
			}})
		}
	}
}

func (p *Pipeline) publish(ev domain.Event) {
	if p.Events != nil {
		p.Events.Publish(ev)
	}
}

// computeOffsets derives each article's byte offset within its file from
// the cumulative size of every lower-numbered segment, so resumed
// downloads place bytes correctly even though only pending segments are
// dispatched.
func computeOffsets(all []domain.Article) map[int64]int64 {
	offsets := make(map[int64]int64, len(all))
	var currentFile = -1
	var running int64
	for _, a := range all {
		if a.FileIndex != currentFile {
			currentFile = a.FileIndex
			running = 0
		}
		offsets[a.ID] = running
		running += a.SizeBytes
	}
	return offsets
}

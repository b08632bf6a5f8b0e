// Package queue admits Downloads into the engine and drives them through
// to completion with a priority-ordered, concurrency-gated loop, the same
// shape as the teacher's QueueManager generalized to spec §4.10's priority
// levels and pre-admission gates.
package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/jvz-devx/usenet-dl-sub002/internal/diskspace"
	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/duplicate"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

// EventSink receives queue lifecycle events.
type EventSink interface {
	Publish(domain.Event)
}

// Runner executes one admitted download end to end (article fetch,
// direct-unpack, post-processing). The queue package only owns admission,
// ordering, and the concurrency gate; Runner is supplied by whatever
// composes the engine.
type Runner interface {
	Run(ctx context.Context, id domain.DownloadID) error
}

// Config carries the admission knobs.
type Config struct {
	MaxConcurrentDownloads int
	Duplicate              duplicate.Config
	DiskSpace              diskspace.Config
}

// Manager holds the in-RAM queue mirror and drives admitted downloads
// through Runner, at most Config.MaxConcurrentDownloads at a time.
type Manager struct {
	mu      sync.RWMutex
	store   *store.Store
	runner  Runner
	events  EventSink
	cfg     Config
	items   []*domain.Download
	cancels map[domain.DownloadID]context.CancelFunc
	paused  bool

	newJobChan chan struct{}
	stopFunc   context.CancelFunc
}

// NewManager builds a Manager. When loadExisting is true, incomplete
// downloads are reloaded from the store (the §4.12 Restore path); pass
// false for one-shot CLI invocations that don't want the whole backlog.
func NewManager(st *store.Store, runner Runner, events EventSink, cfg Config, loadExisting bool) *Manager {
	m := &Manager{
		store:      st,
		runner:     runner,
		events:     events,
		cfg:        cfg,
		cancels:    make(map[domain.DownloadID]context.CancelFunc),
		newJobChan: make(chan struct{}, 1),
	}
	if loadExisting {
		m.loadFromStore()
	}
	return m
}

func (m *Manager) loadFromStore() {
	downloads, err := m.store.GetIncompleteDownloads(context.Background())
	if err != nil {
		return
	}
	m.mu.Lock()
	m.items = downloads
	m.mu.Unlock()
}

// Add admits an NZB as a new Download after running the duplicate and
// disk-space gates, persists it, and wakes the scheduling loop.
func (m *Manager) Add(ctx context.Context, dl *domain.Download) (domain.DownloadID, error) {
	if dl.JobName == "" {
		// JobName is the stable handle duplicate-detection and the API
		// key on when the caller didn't supply one (e.g. NZB files with
		// no distinguishing header); ksuid gives a sortable, collision-
		// resistant value without a round trip to the store.
		dl.JobName = ksuid.New().String()
	}

	if m.cfg.Duplicate.Enabled {
		method, found, err := duplicate.Check(ctx, m.store, m.cfg.Duplicate, dl.NzbHash, dl.Name, dl.JobName)
		if err != nil {
			return 0, fmt.Errorf("queue: duplicate check: %w", err)
		}
		if found {
			m.publish(0, domain.EventDuplicateDetected, domain.DuplicateDetectedPayload{Method: string(method)})
			if m.cfg.Duplicate.Action == duplicate.ActionBlock {
				return 0, &duplicate.ErrDuplicate{Method: method}
			}
		}
	}

	if m.cfg.DiskSpace.Enabled && dl.Destination != "" {
		if err := diskspace.Check(dl.Destination, dl.SizeBytes, m.cfg.DiskSpace); err != nil {
			return 0, err
		}
	}

	id, err := m.store.InsertDownload(ctx, dl)
	if err != nil {
		return 0, fmt.Errorf("queue: insert download: %w", err)
	}
	dl.ID = id

	m.mu.Lock()
	m.items = append(m.items, dl)
	m.mu.Unlock()

	m.publish(id, domain.EventQueued, nil)
	m.wake()
	return id, nil
}

func (m *Manager) wake() {
	select {
	case m.newJobChan <- struct{}{}:
	default:
	}
}

// Start runs the scheduling loop until ctx is cancelled. It admits up to
// MaxConcurrentDownloads pending items at a time, chosen in priority order
// (Force first, then High/Normal/Low, ties broken by CreatedAt ascending).
func (m *Manager) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.stopFunc = cancel
	m.mu.Unlock()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		admitted := m.admitReady(loopCtx, &wg)
		if admitted == 0 {
			select {
			case <-m.newJobChan:
				continue
			case <-time.After(time.Second):
				continue
			case <-loopCtx.Done():
				return
			}
		}
	}
}

func (m *Manager) admitReady(ctx context.Context, wg *sync.WaitGroup) int {
	m.mu.Lock()
	if m.paused {
		m.mu.Unlock()
		return 0
	}
	running := len(m.cancels)
	slots := m.cfg.MaxConcurrentDownloads - running
	if slots <= 0 {
		m.mu.Unlock()
		return 0
	}

	candidates := pendingSorted(m.items)
	admitted := 0
	for _, dl := range candidates {
		if admitted >= slots {
			break
		}
		if _, running := m.cancels[dl.ID]; running {
			continue
		}
		jobCtx, jobCancel := context.WithCancel(ctx)
		m.cancels[dl.ID] = jobCancel
		admitted++

		wg.Add(1)
		go func(dl *domain.Download) {
			defer wg.Done()
			m.runJob(jobCtx, dl)
		}(dl)
	}
	m.mu.Unlock()
	return admitted
}

func (m *Manager) runJob(ctx context.Context, dl *domain.Download) {
	err := m.runner.Run(ctx, dl.ID)

	m.mu.Lock()
	delete(m.cancels, dl.ID)
	if err != nil {
		dl.Status = domain.StatusFailed
	} else {
		dl.Status = domain.StatusComplete
	}
	m.mu.Unlock()

	if err != nil {
		m.publish(dl.ID, domain.EventDownloadFailed, nil)
		return
	}
	m.wake()
}

// pendingSorted returns only Queued/Downloading/Processing items, ordered
// by Priority descending (Force always first) then CreatedAt ascending.
func pendingSorted(items []*domain.Download) []*domain.Download {
	var pending []*domain.Download
	for _, dl := range items {
		switch dl.Status {
		case domain.StatusQueued, domain.StatusDownloading, domain.StatusProcessing:
			pending = append(pending, dl)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// Pause stops new admissions; jobs already running continue to completion.
func (m *Manager) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	m.publish(0, domain.EventQueuePaused, nil)
}

// Resume re-enables admission and wakes the loop.
func (m *Manager) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	m.publish(0, domain.EventQueueResumed, nil)
	m.wake()
}

// Cancel stops a running or queued download by id.
func (m *Manager) Cancel(id domain.DownloadID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		return true
	}
	for _, dl := range m.items {
		if dl.ID == id && dl.Status != domain.StatusComplete && dl.Status != domain.StatusFailed {
			dl.Status = domain.StatusFailed
			return true
		}
	}
	return false
}

// Stop cancels the scheduling loop and every in-flight job.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopFunc != nil {
		m.stopFunc()
	}
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()
}

// Items returns a snapshot of the in-RAM queue.
func (m *Manager) Items() []*domain.Download {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Download, len(m.items))
	copy(out, m.items)
	return out
}

func (m *Manager) publish(id domain.DownloadID, kind domain.EventKind, payload any) {
	if m.events == nil {
		return
	}
	m.events.Publish(domain.Event{Kind: kind, DownloadID: id, At: time.Now(), Payload: payload})
}

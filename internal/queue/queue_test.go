package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

func TestPendingSortedOrdersForceFirstThenPriorityThenCreatedAt(t *testing.T) {
	now := time.Now()
	items := []*domain.Download{
		{ID: 1, Status: domain.StatusQueued, Priority: domain.PriorityNormal, CreatedAt: now.Add(-1 * time.Minute)},
		{ID: 2, Status: domain.StatusQueued, Priority: domain.PriorityForce, CreatedAt: now},
		{ID: 3, Status: domain.StatusQueued, Priority: domain.PriorityHigh, CreatedAt: now.Add(-2 * time.Minute)},
		{ID: 4, Status: domain.StatusQueued, Priority: domain.PriorityNormal, CreatedAt: now.Add(-5 * time.Minute)},
		{ID: 5, Status: domain.StatusComplete, Priority: domain.PriorityForce, CreatedAt: now},
	}

	sorted := pendingSorted(items)

	if len(sorted) != 4 {
		t.Fatalf("expected 4 pending items (complete excluded), got %d", len(sorted))
	}
	want := []domain.DownloadID{2, 3, 4, 1}
	for i, id := range want {
		if sorted[i].ID != id {
			t.Fatalf("position %d: want id %d, got %d", i, id, sorted[i].ID)
		}
	}
}

func TestPendingSortedExcludesTerminalStatuses(t *testing.T) {
	items := []*domain.Download{
		{ID: 1, Status: domain.StatusComplete},
		{ID: 2, Status: domain.StatusFailed},
		{ID: 3, Status: domain.StatusPaused},
	}
	if got := pendingSorted(items); len(got) != 0 {
		t.Fatalf("expected no pending items, got %v", got)
	}
}

func TestManagerPauseBlocksAdmission(t *testing.T) {
	m := &Manager{cfg: Config{MaxConcurrentDownloads: 5}, cancels: map[domain.DownloadID]context.CancelFunc{}}
	m.Pause()
	var wg sync.WaitGroup
	admitted := m.admitReady(context.Background(), &wg)
	wg.Wait()
	if admitted != 0 {
		t.Fatalf("expected 0 admitted while paused, got %d", admitted)
	}
}

type fakeRunner struct{ called chan domain.DownloadID }

func (f *fakeRunner) Run(ctx context.Context, id domain.DownloadID) error {
	f.called <- id
	return nil
}

func TestManagerAdmitReadyRespectsConcurrencyCap(t *testing.T) {
	runner := &fakeRunner{called: make(chan domain.DownloadID, 4)}
	now := time.Now()
	m := &Manager{
		runner:  runner,
		cfg:     Config{MaxConcurrentDownloads: 1},
		cancels: map[domain.DownloadID]context.CancelFunc{},
		items: []*domain.Download{
			{ID: 10, Status: domain.StatusQueued, CreatedAt: now},
			{ID: 11, Status: domain.StatusQueued, CreatedAt: now.Add(time.Second)},
		},
	}
	var wg sync.WaitGroup
	admitted := m.admitReady(context.Background(), &wg)
	if admitted != 1 {
		t.Fatalf("expected 1 admitted under cap of 1, got %d", admitted)
	}
	wg.Wait()

	select {
	case id := <-runner.called:
		if id != 10 {
			t.Fatalf("expected earliest-created download (10) to run first, got %d", id)
		}
	default:
		t.Fatal("expected runner to have been invoked")
	}
}

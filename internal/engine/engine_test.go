package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRestoreDemotesDownloadingAndProcessingToQueued(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.InsertDownload(ctx, &domain.Download{Name: "a", Status: domain.StatusDownloading})
	if err != nil {
		t.Fatalf("InsertDownload: %v", err)
	}

	if err := Restore(ctx, st); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	dl, err := st.GetDownload(ctx, id)
	if err != nil {
		t.Fatalf("GetDownload: %v", err)
	}
	if dl.Status != domain.StatusQueued {
		t.Fatalf("expected status Queued after restore, got %v", dl.Status)
	}
}

func TestRestoreLeavesPausedAlone(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.InsertDownload(ctx, &domain.Download{Name: "a", Status: domain.StatusPaused})
	if err != nil {
		t.Fatalf("InsertDownload: %v", err)
	}

	if err := Restore(ctx, st); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	dl, err := st.GetDownload(ctx, id)
	if err != nil {
		t.Fatalf("GetDownload: %v", err)
	}
	if dl.Status != domain.StatusPaused {
		t.Fatalf("expected Paused to be left alone, got %v", dl.Status)
	}
}

type fakeQueueAdder struct {
	added *domain.Download
}

func (f *fakeQueueAdder) Add(ctx context.Context, dl *domain.Download) (domain.DownloadID, error) {
	f.added = dl
	return 42, nil
}

func TestAddFileParsesNzbAndPersistsFilesAndArticles(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	nzbPath := filepath.Join(t.TempDir(), "release.nzb")
	nzbXML := `<?xml version="1.0" encoding="iso-8859-1"?>
<nzb xmlns="http://www.newzbin.com/DTD/2003/nzb">
  <file poster="poster@example.com" date="1700000000" subject="&quot;release.r00&quot; yEnc (1/2)">
    <groups><group>alt.binaries.test</group></groups>
    <segments>
      <segment bytes="1000" number="1">abc123@example.com</segment>
      <segment bytes="1000" number="2">abc124@example.com</segment>
    </segments>
  </file>
</nzb>`
	if err := os.WriteFile(nzbPath, []byte(nzbXML), 0o644); err != nil {
		t.Fatalf("write nzb: %v", err)
	}

	q := &fakeQueueAdder{}
	a := &Admitter{Store: st, Queue: q}

	id, err := a.AddFile(ctx, nzbPath, nil, "movies")
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected the queue-assigned id to be returned, got %d", id)
	}
	if q.added == nil || q.added.Category != "movies" {
		t.Fatalf("expected Queue.Add to receive the built Download, got %+v", q.added)
	}

	articles, err := st.GetAllArticles(ctx, id)
	if err != nil {
		t.Fatalf("GetAllArticles: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 persisted articles, got %d", len(articles))
	}
}

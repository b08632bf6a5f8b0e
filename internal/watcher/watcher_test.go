package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

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

type recordingAdmitter struct {
	added []string
}

func (a *recordingAdmitter) AddFile(ctx context.Context, nzbPath string, nzbHash []byte, category string) (domain.DownloadID, error) {
	a.added = append(a.added, nzbPath)
	return 1, nil
}

func TestScanFolderAdmitsDroppedNzbAndMovesToProcessed(t *testing.T) {
	dir := t.TempDir()
	nzbPath := filepath.Join(dir, "release.nzb")
	if err := os.WriteFile(nzbPath, []byte("<nzb/>"), 0o644); err != nil {
		t.Fatalf("write nzb: %v", err)
	}

	admitter := &recordingAdmitter{}
	w := &Watcher{
		Store:    openTestStore(t),
		Admitter: admitter,
	}

	w.scanFolder(context.Background(), Folder{Path: dir, PollInterval: time.Second})

	if len(admitter.added) != 1 {
		t.Fatalf("expected 1 admission, got %d", len(admitter.added))
	}
	if _, err := os.Stat(nzbPath); !os.IsNotExist(err) {
		t.Fatal("expected source nzb to be moved out of the watch folder")
	}
	if _, err := os.Stat(filepath.Join(dir, "processed", "release.nzb")); err != nil {
		t.Fatalf("expected nzb under processed/: %v", err)
	}
}

func TestScanFolderSkipsAlreadyProcessedNzb(t *testing.T) {
	dir := t.TempDir()
	nzbPath := filepath.Join(dir, "release.nzb")
	if err := os.WriteFile(nzbPath, []byte("<nzb/>"), 0o644); err != nil {
		t.Fatalf("write nzb: %v", err)
	}

	st := openTestStore(t)
	hash, err := hashFile(nzbPath)
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}
	if err := st.MarkNzbProcessed(context.Background(), nzbPath, hash); err != nil {
		t.Fatalf("MarkNzbProcessed: %v", err)
	}

	admitter := &recordingAdmitter{}
	w := &Watcher{Store: st, Admitter: admitter}
	w.scanFolder(context.Background(), Folder{Path: dir})

	if len(admitter.added) != 0 {
		t.Fatalf("expected no admission for already-processed nzb, got %d", len(admitter.added))
	}
}

func TestIsNzbIsCaseInsensitive(t *testing.T) {
	if !isNzb("Release.NZB") {
		t.Fatal("expected .NZB extension to match")
	}
	if isNzb("readme.txt") {
		t.Fatal("expected .txt to not match")
	}
}

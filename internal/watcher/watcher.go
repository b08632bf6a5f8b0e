// Package watcher ingests NZB files dropped into configured folders,
// feeding them through the same admission path as the HTTP/CLI submit
// route. Supplements spec.md's distillation with the watch-folder
// behavior described in original_source's folder watcher.
package watcher

import (
	"context"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

// Admitter is the admission entrypoint the watcher calls once it has
// fingerprinted a dropped NZB. The same interface the HTTP/CLI submit
// path calls, so a watched file is indistinguishable from a manual add.
type Admitter interface {
	AddFile(ctx context.Context, nzbPath string, nzbHash []byte, category string) (domain.DownloadID, error)
}

// Folder is one configured watch target.
type Folder struct {
	Path         string
	Category     string
	PollInterval time.Duration
}

// Watcher watches (or, as a portability fallback, polls) its configured
// folders for *.nzb files, admits them, and moves the source file to a
// processed/ subdirectory on success so it is never re-admitted.
type Watcher struct {
	Store    *store.Store
	Admitter Admitter
	Folders  []Folder

	fsWatcher *fsnotify.Watcher
}

// Run watches every configured folder until ctx is cancelled. It tries
// fsnotify first for low-latency pickup and falls back to polling any
// folder fsnotify can't watch (e.g. a network mount that doesn't support
// inotify).
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return w.runPollOnly(ctx)
	}
	w.fsWatcher = fw
	defer fw.Close()

	var polled []Folder
	for _, f := range w.Folders {
		if err := fw.Add(f.Path); err != nil {
			polled = append(polled, f)
		}
	}

	if len(polled) > 0 {
		go w.pollFolders(ctx, polled)
	}

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isNzb(ev.Name) {
				continue
			}
			w.ingest(ctx, ev.Name, folderFor(w.Folders, ev.Name))
		case <-fw.Errors:
			// Non-fatal: keep watching other folders.
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) runPollOnly(ctx context.Context) error {
	w.pollFolders(ctx, w.Folders)
	return nil
}

// pollFolders runs one independent polling loop per folder, each on its
// own interval, until ctx is cancelled.
func (w *Watcher) pollFolders(ctx context.Context, folders []Folder) {
	var wg sync.WaitGroup
	for _, f := range folders {
		wg.Add(1)
		go func(f Folder) {
			defer wg.Done()
			interval := f.PollInterval
			if interval <= 0 {
				interval = 10 * time.Second
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			w.scanFolder(ctx, f)
			for {
				select {
				case <-ticker.C:
					w.scanFolder(ctx, f)
				case <-ctx.Done():
					return
				}
			}
		}(f)
	}
	wg.Wait()
}

func (w *Watcher) scanFolder(ctx context.Context, f Folder) {
	entries, err := os.ReadDir(f.Path)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isNzb(e.Name()) {
			continue
		}
		w.ingest(ctx, filepath.Join(f.Path, e.Name()), &f)
	}
}

func (w *Watcher) ingest(ctx context.Context, path string, f *Folder) {
	hash, err := hashFile(path)
	if err != nil {
		return
	}

	processed, err := w.Store.IsNzbProcessed(ctx, path)
	if err != nil || processed {
		return
	}

	category := ""
	if f != nil {
		category = f.Category
	}

	if _, err := w.Admitter.AddFile(ctx, path, hash, category); err != nil {
		return
	}

	_ = w.Store.MarkNzbProcessed(ctx, path, hash)
	moveToProcessed(path)
}

func moveToProcessed(path string) {
	dir := filepath.Join(filepath.Dir(path), "processed")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	dest := filepath.Join(dir, filepath.Base(path))
	_ = os.Rename(path, dest)
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func isNzb(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".nzb")
}

func folderFor(folders []Folder, path string) *Folder {
	dir := filepath.Dir(path)
	for i, f := range folders {
		if filepath.Clean(f.Path) == filepath.Clean(dir) {
			return &folders[i]
		}
	}
	return nil
}

// Package rss defines the contract boundary between this engine's core
// and the out-of-scope RSS feed fetcher/parser (spec.md §1, §4.1): the
// core owns per-feed GUID-seen-set persistence and admission, and
// exposes FeedPoller so an external fetcher can drive that admission
// through the same path as the HTTP/CLI submit route and watch folders.
package rss

import (
	"context"
	"sync"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

// Item is one entry an external feed fetcher has already resolved to a
// local NZB body.
type Item struct {
	GUID     string
	NzbPath  string
	NzbHash  []byte
	Category string
}

// FeedPoller is satisfied by the out-of-scope RSS fetcher/parser: given
// a feed URL, it returns the items currently published on that feed.
// The core never parses RSS/XML itself.
type FeedPoller interface {
	Poll(ctx context.Context, feedURL string) ([]Item, error)
}

// Admitter is the admission entrypoint a new item is handed to, the
// same interface the HTTP/CLI submit path and internal/watcher call.
type Admitter interface {
	AddFile(ctx context.Context, nzbPath string, nzbHash []byte, category string) (domain.DownloadID, error)
}

// Feed is one configured RSS source.
type Feed struct {
	URL          string
	Category     string
	PollInterval time.Duration
}

// Ingestor polls a set of feeds through a FeedPoller, admitting every
// item whose GUID hasn't already been seen on that feed and recording
// the GUID so it is never re-admitted.
type Ingestor struct {
	Store    *store.Store
	Poller   FeedPoller
	Admitter Admitter
	Feeds    []Feed
}

// Run polls every configured feed on its own interval until ctx is
// cancelled.
func (i *Ingestor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, f := range i.Feeds {
		wg.Add(1)
		go func(f Feed) {
			defer wg.Done()
			interval := f.PollInterval
			if interval <= 0 {
				interval = 5 * time.Minute
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			i.pollOnce(ctx, f)
			for {
				select {
				case <-ticker.C:
					i.pollOnce(ctx, f)
				case <-ctx.Done():
					return
				}
			}
		}(f)
	}
	wg.Wait()
}

func (i *Ingestor) pollOnce(ctx context.Context, f Feed) {
	items, err := i.Poller.Poll(ctx, f.URL)
	if err != nil {
		return
	}
	for _, item := range items {
		seen, err := i.Store.HasSeenGUID(ctx, f.URL, item.GUID)
		if err != nil || seen {
			continue
		}

		category := item.Category
		if category == "" {
			category = f.Category
		}
		if _, err := i.Admitter.AddFile(ctx, item.NzbPath, item.NzbHash, category); err != nil {
			continue
		}
		_ = i.Store.MarkGUIDSeen(ctx, f.URL, item.GUID)
	}
}

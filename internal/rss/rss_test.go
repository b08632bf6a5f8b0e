package rss

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

type fakePoller struct {
	items []Item
	calls int
}

func (f *fakePoller) Poll(context.Context, string) ([]Item, error) {
	f.calls++
	return f.items, nil
}

type fakeAdmitter struct {
	admitted []Item
}

func (f *fakeAdmitter) AddFile(_ context.Context, nzbPath string, nzbHash []byte, category string) (domain.DownloadID, error) {
	f.admitted = append(f.admitted, Item{NzbPath: nzbPath, NzbHash: nzbHash, Category: category})
	return domain.DownloadID(len(f.admitted)), nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPollOnceAdmitsUnseenItemsAndMarksThemSeen(t *testing.T) {
	st := openTestStore(t)
	poller := &fakePoller{items: []Item{
		{GUID: "guid-1", NzbPath: "/feed/one.nzb", Category: "movies"},
		{GUID: "guid-2", NzbPath: "/feed/two.nzb"},
	}}
	admitter := &fakeAdmitter{}
	ing := &Ingestor{Store: st, Poller: poller, Admitter: admitter, Feeds: []Feed{{URL: "https://example.com/feed.xml", Category: "default"}}}

	ing.pollOnce(context.Background(), ing.Feeds[0])

	if len(admitter.admitted) != 2 {
		t.Fatalf("expected 2 admitted items, got %d", len(admitter.admitted))
	}
	if admitter.admitted[0].Category != "movies" {
		t.Fatalf("expected per-item category to win, got %q", admitter.admitted[0].Category)
	}
	if admitter.admitted[1].Category != "default" {
		t.Fatalf("expected feed default category fallback, got %q", admitter.admitted[1].Category)
	}

	seen, err := st.HasSeenGUID(context.Background(), "https://example.com/feed.xml", "guid-1")
	if err != nil || !seen {
		t.Fatalf("expected guid-1 to be marked seen, err=%v seen=%v", err, seen)
	}
}

func TestPollOnceSkipsAlreadySeenGUIDs(t *testing.T) {
	st := openTestStore(t)
	feedURL := "https://example.com/feed.xml"
	if err := st.MarkGUIDSeen(context.Background(), feedURL, "guid-1"); err != nil {
		t.Fatalf("MarkGUIDSeen: %v", err)
	}

	poller := &fakePoller{items: []Item{{GUID: "guid-1", NzbPath: "/feed/one.nzb"}}}
	admitter := &fakeAdmitter{}
	ing := &Ingestor{Store: st, Poller: poller, Admitter: admitter, Feeds: []Feed{{URL: feedURL}}}

	ing.pollOnce(context.Background(), ing.Feeds[0])

	if len(admitter.admitted) != 0 {
		t.Fatalf("expected already-seen guid to be skipped, admitted %d", len(admitter.admitted))
	}
}

func TestRunPollsUntilContextCancelled(t *testing.T) {
	st := openTestStore(t)
	poller := &fakePoller{items: nil}
	admitter := &fakeAdmitter{}
	ing := &Ingestor{Store: st, Poller: poller, Admitter: admitter, Feeds: []Feed{
		{URL: "https://example.com/feed.xml", PollInterval: time.Millisecond},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ing.Run(ctx)

	if poller.calls == 0 {
		t.Fatal("expected at least one poll before context cancellation")
	}
}

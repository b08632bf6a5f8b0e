package store

import (
	"context"
	"testing"
)

func TestHasSeenGUIDIsFalseForUnknownFeed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seen, err := s.HasSeenGUID(ctx, "https://example.com/feed.xml", "guid-1")
	if err != nil {
		t.Fatalf("HasSeenGUID: %v", err)
	}
	if seen {
		t.Fatal("expected unseen guid on an unknown feed to report false")
	}
}

func TestMarkGUIDSeenThenHasSeenGUIDRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	feed := "https://example.com/feed.xml"

	if err := s.MarkGUIDSeen(ctx, feed, "guid-1"); err != nil {
		t.Fatalf("MarkGUIDSeen: %v", err)
	}
	if err := s.MarkGUIDSeen(ctx, feed, "guid-2"); err != nil {
		t.Fatalf("MarkGUIDSeen: %v", err)
	}

	seen, err := s.HasSeenGUID(ctx, feed, "guid-1")
	if err != nil {
		t.Fatalf("HasSeenGUID: %v", err)
	}
	if !seen {
		t.Fatal("expected guid-1 to be recorded as seen")
	}

	seen, err = s.HasSeenGUID(ctx, feed, "guid-3")
	if err != nil {
		t.Fatalf("HasSeenGUID: %v", err)
	}
	if seen {
		t.Fatal("expected guid-3 to remain unseen")
	}
}

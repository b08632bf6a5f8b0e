package directunpack

import (
	"testing"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

func TestFilePathJoinsTempDirDownloadIDAndFilename(t *testing.T) {
	c := &Coordinator{TempDir: "/data/tmp"}
	got := c.filePath(domain.DownloadID(42), "movie.rar")
	want := "/data/tmp/42/movie.rar"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPublishNoopWithoutEventSink(t *testing.T) {
	c := &Coordinator{}
	// Must not panic when no EventSink is wired.
	c.publish(domain.DownloadID(1), domain.EventDirectUnpackStarted, nil)
}

type recordingSink struct {
	events []domain.Event
}

func (r *recordingSink) Publish(ev domain.Event) {
	r.events = append(r.events, ev)
}

func TestPublishForwardsToEventSink(t *testing.T) {
	sink := &recordingSink{}
	c := &Coordinator{Events: sink}
	c.publish(domain.DownloadID(7), domain.EventDirectUnpackComplete, nil)
	if len(sink.events) != 1 || sink.events[0].Kind != domain.EventDirectUnpackComplete {
		t.Fatalf("expected one forwarded event, got %+v", sink.events)
	}
}

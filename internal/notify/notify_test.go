package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

func TestHTTPWebhookSinkDeliversSuccessfully(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content type, got %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := &HTTPWebhookSink{NameStr: "test", URL: srv.URL, Timeout: time.Second}
	err := sink.Deliver(context.Background(), domain.Event{Kind: domain.EventComplete, DownloadID: 1})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestHTTPWebhookSinkReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := &HTTPWebhookSink{NameStr: "test", URL: srv.URL, Timeout: time.Second}
	if err := sink.Deliver(context.Background(), domain.Event{Kind: domain.EventFailed}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

type recordingSink struct{ events []domain.Event }

func (r *recordingSink) Publish(ev domain.Event) { r.events = append(r.events, ev) }

type failingWebhook struct{}

func (failingWebhook) Name() string { return "broken" }
func (failingWebhook) Deliver(ctx context.Context, ev domain.Event) error {
	return context.DeadlineExceeded
}
func (failingWebhook) Matches(domain.EventKind) bool { return true }

func TestHTTPWebhookSinkMatchesRespectsConfiguredEventFilter(t *testing.T) {
	sink := &HTTPWebhookSink{NameStr: "test", Events: []string{"Complete"}}
	if !sink.Matches(domain.EventComplete) {
		t.Fatal("expected Complete to match configured filter")
	}
	if sink.Matches(domain.EventFailed) {
		t.Fatal("expected Failed not to match configured filter")
	}
}

func TestDispatchSkipsSinkWhenEventDoesNotMatchFilter(t *testing.T) {
	events := &recordingSink{}
	d := &Dispatcher{
		Webhooks: []WebhookSink{&HTTPWebhookSink{NameStr: "only-complete", URL: "http://127.0.0.1:0", Events: []string{"Complete"}}},
		Events:   events,
	}
	d.Dispatch(context.Background(), domain.Event{Kind: domain.EventFailed})
	if len(events.events) != 0 {
		t.Fatalf("expected no dispatch for a filtered-out event kind, got %+v", events.events)
	}
}

func TestDispatchPublishesWebhookFailedRatherThanPropagating(t *testing.T) {
	events := &recordingSink{}
	d := &Dispatcher{Webhooks: []WebhookSink{failingWebhook{}}, Events: events}

	d.Dispatch(context.Background(), domain.Event{Kind: domain.EventComplete, DownloadID: 9})

	if len(events.events) != 1 || events.events[0].Kind != domain.EventWebhookFailed {
		t.Fatalf("expected exactly one WebhookFailed event, got %+v", events.events)
	}
	if events.events[0].DownloadID != 9 {
		t.Fatalf("expected failure event to carry the original download id")
	}
}

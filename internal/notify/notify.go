// Package notify defines the WebhookSink/ScriptSink contracts the event
// bus's WebhookFailed/ScriptFailed variants report against (spec.md §7:
// a notification failure is logged and emitted, never fails the
// Download), plus a default timeout-bounded HTTP sink so the core is
// runnable standalone without an external dispatcher.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// WebhookSink delivers an event to one configured webhook target.
type WebhookSink interface {
	Name() string
	Deliver(ctx context.Context, ev domain.Event) error
	Matches(kind domain.EventKind) bool
}

// ScriptSink runs one configured script in reaction to an event.
type ScriptSink interface {
	Name() string
	Run(ctx context.Context, ev domain.Event) error
	Matches(kind domain.EventKind) bool
}

// matchesFilter reports whether kind is in filter, or filter is empty
// (an empty configured Events list subscribes to every event kind).
func matchesFilter(filter []string, kind domain.EventKind) bool {
	if len(filter) == 0 {
		return true
	}
	for _, k := range filter {
		if domain.EventKind(k) == kind {
			return true
		}
	}
	return false
}

// EventSink is the narrow interface Dispatcher needs to report its own
// failures back onto the bus without importing internal/eventbus.
type EventSink interface {
	Publish(domain.Event)
}

// Dispatcher fans a subscribed event stream out to every sink whose
// Events filter matches, publishing WebhookFailed/ScriptFailed on the
// bus for any sink that errors rather than propagating the error — a
// dispatch failure never fails the Download it describes.
type Dispatcher struct {
	Webhooks []WebhookSink
	Scripts  []ScriptSink
	Events   EventSink
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) {
	for _, w := range d.Webhooks {
		if !w.Matches(ev.Kind) {
			continue
		}
		if err := w.Deliver(ctx, ev); err != nil {
			d.publishFailure(ev, domain.EventWebhookFailed, w.Name(), err)
		}
	}
	for _, s := range d.Scripts {
		if !s.Matches(ev.Kind) {
			continue
		}
		if err := s.Run(ctx, ev); err != nil {
			d.publishFailure(ev, domain.EventScriptFailed, s.Name(), err)
		}
	}
}

func (d *Dispatcher) publishFailure(ev domain.Event, kind domain.EventKind, sink string, err error) {
	if d.Events == nil {
		return
	}
	d.Events.Publish(domain.Event{
		Kind:       kind,
		DownloadID: ev.DownloadID,
		At:         time.Now(),
		Payload:    fmt.Sprintf("%s: %v", sink, err),
	})
}

// HTTPWebhookSink POSTs the event as JSON with a per-request unique
// delivery ID, timing out per its own TimeoutMs rather than the caller's
// ctx alone.
type HTTPWebhookSink struct {
	NameStr string
	URL     string
	Headers map[string]string
	Timeout time.Duration
	Client  *http.Client
	Events  []string // empty == every event kind
}

func (s *HTTPWebhookSink) Name() string { return s.NameStr }

func (s *HTTPWebhookSink) Matches(kind domain.EventKind) bool { return matchesFilter(s.Events, kind) }

func (s *HTTPWebhookSink) Deliver(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(struct {
		DeliveryID string      `json:"delivery_id"`
		Kind       string      `json:"kind"`
		DownloadID int64       `json:"download_id"`
		At         time.Time   `json:"at"`
		Payload    interface{} `json:"payload,omitempty"`
	}{
		DeliveryID: uuid.NewString(),
		Kind:       string(ev.Kind),
		DownloadID: int64(ev.DownloadID),
		At:         ev.At,
		Payload:    ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal webhook payload: %w", err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook %s returned status %d", s.URL, resp.StatusCode)
	}
	return nil
}

// ScriptExecSink runs an external command per event, passing the event
// kind and download id as environment variables the way notification
// scripts conventionally expect.
type ScriptExecSink struct {
	NameStr string
	Command string
	Args    []string
	Timeout time.Duration
	Events  []string // empty == every event kind
}

func (s *ScriptExecSink) Name() string { return s.NameStr }

func (s *ScriptExecSink) Matches(kind domain.EventKind) bool { return matchesFilter(s.Events, kind) }

func (s *ScriptExecSink) Run(ctx context.Context, ev domain.Event) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.Command, s.Args...)
	cmd.Env = append(cmd.Environ(),
		fmt.Sprintf("USENETDL_EVENT=%s", ev.Kind),
		fmt.Sprintf("USENETDL_DOWNLOAD_ID=%d", int64(ev.DownloadID)),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify: script %s failed: %w (output: %s)", s.Command, err, out)
	}
	return nil
}

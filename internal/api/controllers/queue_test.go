package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/jvz-devx/usenet-dl-sub002/internal/queue"
)

func TestQueueControllerPauseAndResumeReturnNoContent(t *testing.T) {
	m := queue.NewManager(nil, nil, nil, queue.Config{MaxConcurrentDownloads: 1}, false)
	ctrl := &QueueController{Queue: m}
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/queue/pause", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := ctrl.Pause(c); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/queue/resume", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	if err := ctrl.Resume(c); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

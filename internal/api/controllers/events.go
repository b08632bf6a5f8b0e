package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/jvz-devx/usenet-dl-sub002/internal/eventbus"
)

// EventsController streams the event bus as server-sent events. No
// replay: a client only sees events published after it connects, the
// same no-history guarantee eventbus.Bus gives every subscriber.
type EventsController struct {
	Events *eventbus.Bus
}

func (ctrl *EventsController) Stream(c *echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := ctrl.Events.Subscribe()
	defer sub.Unsubscribe()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

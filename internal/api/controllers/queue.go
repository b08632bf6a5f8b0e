package controllers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/jvz-devx/usenet-dl-sub002/internal/queue"
)

// QueueController toggles the queue's global pause/resume state.
type QueueController struct {
	Queue *queue.Manager
}

func (ctrl *QueueController) Pause(c *echo.Context) error {
	ctrl.Queue.Pause()
	return c.NoContent(http.StatusNoContent)
}

func (ctrl *QueueController) Resume(c *echo.Context) error {
	ctrl.Queue.Resume()
	return c.NoContent(http.StatusNoContent)
}

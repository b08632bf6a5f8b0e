package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/jvz-devx/usenet-dl-sub002/internal/api/controllers"
)

// RegisterRoutes wires every control-surface endpoint onto e.
func RegisterRoutes(e *echo.Echo, app *App) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	downloads := &controllers.DownloadsController{
		Store:     app.Store,
		Queue:     app.Queue,
		Admitter:  app.Admitter,
		UploadDir: app.UploadDir,
	}
	e.GET("/api/downloads", downloads.List)
	e.GET("/api/downloads/:id", downloads.Get)
	e.POST("/api/downloads", downloads.Add)
	e.DELETE("/api/downloads/:id", downloads.Cancel)
	e.POST("/api/downloads/:id/pause", downloads.PauseOne)

	queueCtrl := &controllers.QueueController{Queue: app.Queue}
	e.POST("/api/queue/pause", queueCtrl.Pause)
	e.POST("/api/queue/resume", queueCtrl.Resume)

	events := &controllers.EventsController{Events: app.Events}
	e.GET("/api/events", events.Stream)
}

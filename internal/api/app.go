// Package api exposes the HTTP control surface over the engine: list/add/
// cancel downloads, pause/resume the queue, and a live event stream.
// Routing follows the teacher's router.go/controllers split, generalized
// from the teacher's single Newznab indexer endpoint to this engine's
// queue-management surface.
package api

import (
	"context"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/eventbus"
	"github.com/jvz-devx/usenet-dl-sub002/internal/infra/logger"
	"github.com/jvz-devx/usenet-dl-sub002/internal/queue"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

// Admitter is the subset of engine.Admitter the upload endpoint needs;
// kept narrow here so this package never imports internal/engine.
type Admitter interface {
	AddFile(ctx context.Context, nzbPath string, nzbHash []byte, category string) (domain.DownloadID, error)
}

// App bundles the dependencies every controller needs, mirroring the
// teacher's app.Context composition root.
type App struct {
	Store     *store.Store
	Queue     *queue.Manager
	Events    *eventbus.Bus
	Logger    *logger.Logger
	Admitter  Admitter
	UploadDir string
}

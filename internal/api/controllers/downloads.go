// Package controllers holds the per-resource echo handlers the router
// wires up, split out the way the teacher splits NewznabController from
// router.go.
package controllers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/queue"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

// Admitter is the subset of engine.Admitter a Download upload needs.
type Admitter interface {
	AddFile(ctx context.Context, nzbPath string, nzbHash []byte, category string) (domain.DownloadID, error)
}

// DownloadsController exposes CRUD-ish operations over Downloads.
type DownloadsController struct {
	Store     *store.Store
	Queue     *queue.Manager
	Admitter  Admitter
	UploadDir string
}

func (ctrl *DownloadsController) List(c *echo.Context) error {
	downloads, err := ctrl.Store.ListDownloads(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
	return c.JSON(http.StatusOK, downloads)
}

func (ctrl *DownloadsController) Get(c *echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err))
	}
	dl, err := ctrl.Store.GetDownload(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, errBody(err))
	}
	return c.JSON(http.StatusOK, dl)
}

// Add accepts a multipart "nzb" file upload, writes it under UploadDir,
// and admits it through Admitter (the duplicate/disk-space gated path).
func (ctrl *DownloadsController) Add(c *echo.Context) error {
	category := c.QueryParam("category")

	fh, err := c.FormFile("nzb")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err))
	}
	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
	defer src.Close()

	dir := ctrl.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
	dest := filepath.Join(dir, fh.Filename)
	out, err := os.Create(dest)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
	if _, err := out.ReadFrom(src); err != nil {
		out.Close()
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
	out.Close()

	id, err := ctrl.Admitter.AddFile(c.Request().Context(), dest, nil, category)
	if err != nil {
		return c.JSON(http.StatusConflict, errBody(err))
	}
	return c.JSON(http.StatusCreated, map[string]any{"id": id})
}

// Cancel removes a Download and stops its in-flight job, if any.
func (ctrl *DownloadsController) Cancel(c *echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err))
	}
	ctrl.Queue.Cancel(id)
	if err := ctrl.Store.DeleteDownload(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// PauseOne cancels a single in-flight job without removing the Download,
// leaving it eligible for re-admission once resumed via its own status.
func (ctrl *DownloadsController) PauseOne(c *echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err))
	}
	ctrl.Queue.Cancel(id)
	if err := ctrl.Store.UpdateStatus(c.Request().Context(), id, domain.StatusPaused); err != nil {
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c *echo.Context) (domain.DownloadID, error) {
	v, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return domain.DownloadID(v), nil
}

func errBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

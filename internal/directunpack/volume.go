package directunpack

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// tryExtractVolume attempts early extraction of a detected first RAR
// volume. Per §4.8: VolumeNotReady re-queues for the next poll,
// ExtractionFailed/other errors are dropped silently (the full
// post-processing run will retry once the Download completes).
func (c *Coordinator) tryExtractVolume(ctx context.Context, id domain.DownloadID, f domain.File, st *state) {
	archivePath := c.filePath(id, f.Filename)
	destDir := filepath.Join(c.TempDir, fmt.Sprint(int64(id)), "extracted")

	_, err := c.Extractor.Extract(ctx, archivePath, c.Passwords, destDir)
	if err != nil {
		if errors.Is(err, domain.ErrVolumeNotReady) {
			st.pendingRetry[f.FileIndex] = struct{}{}
			return
		}
		delete(st.pendingRetry, f.FileIndex)
		return
	}

	delete(st.pendingRetry, f.FileIndex)
	c.publish(id, domain.EventDirectUnpackExtracted, nil)
}

package orchestrator

import (
	"context"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/extract"
)

// extractStage detects archives in workDir and extracts them concurrently
// via errgroup, since each archive's extraction (including its own
// recursive nested-archive handling) is fully independent of the others.
func (o *Orchestrator) extractStage(ctx context.Context, dl *domain.Download, workDir string) ([]string, error) {
	if dl.PostProcess < domain.PostProcessUnpack {
		return nil, nil
	}

	archives, err := extract.DetectFiles(workDir)
	if err != nil {
		return nil, err
	}
	if len(archives) == 0 {
		return nil, nil
	}

	o.publish(dl.ID, domain.EventExtracting, nil)

	destDir := filepath.Join(workDir, "extracted")

	var mu sync.Mutex
	var extracted []string

	g, gctx := errgroup.WithContext(ctx)
	for _, archive := range archives {
		archive := archive
		g.Go(func() error {
			result, err := o.Extractor.Extract(gctx, archive, o.Config.Passwords, destDir)
			if err != nil {
				return err
			}
			mu.Lock()
			extracted = append(extracted, result.Paths...)
			extracted = append(extracted, result.NestedExtracted...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.publish(dl.ID, domain.EventExtractComplete, nil)
	return extracted, nil
}

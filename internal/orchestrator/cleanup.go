package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// cleanupStage removes, from the top level of destination only, files
// whose extension is in CleanupExtensions (par2/nzb/sfv/srr/nfo by
// default) and, when DeleteSamples is set, folders named in
// SampleFolderNames. Archives are removed only when their extension is in
// CleanupExtensions; archives left in workDir after extraction are not
// removed, and nothing outside destination is touched.
func (o *Orchestrator) cleanupStage(ctx context.Context, id domain.DownloadID, destination string) error {
	o.publish(id, domain.EventCleaning, nil)

	targets, err := o.cleanupTargets(destination)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			return os.RemoveAll(t)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) cleanupTargets(destination string) ([]string, error) {
	entries, err := os.ReadDir(destination)
	if err != nil {
		return nil, err
	}

	extSet := make(map[string]struct{}, len(o.Config.CleanupExtensions))
	for _, e := range o.Config.CleanupExtensions {
		extSet[strings.ToLower(e)] = struct{}{}
	}
	sampleNames := make(map[string]struct{}, len(o.Config.SampleFolderNames))
	for _, n := range o.Config.SampleFolderNames {
		sampleNames[strings.ToLower(n)] = struct{}{}
	}

	var targets []string
	for _, e := range entries {
		name := e.Name()
		lower := strings.ToLower(name)
		full := filepath.Join(destination, name)

		if e.IsDir() {
			if o.Config.DeleteSamples {
				if _, ok := sampleNames[lower]; ok {
					targets = append(targets, full)
				}
			}
			continue
		}

		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(lower)), ".")
		if _, ok := extSet[ext]; ok {
			targets = append(targets, full)
		}
	}
	return targets, nil
}

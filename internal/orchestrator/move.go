package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// moveStage relocates extracted (or, if nothing was extracted, raw
// downloaded) files from workDir into the category-resolved destination.
func (o *Orchestrator) moveStage(ctx context.Context, dl *domain.Download, workDir string, extractedFiles []string) (string, error) {
	destination := dl.Destination
	if o.Category != nil {
		dest, _, _ := o.Category.Resolve(dl.Category, dl.PostProcess)
		if dest != "" {
			destination = dest
		}
	}
	if destination == "" {
		destination = workDir
	}

	o.publish(dl.ID, domain.EventMoving, nil)

	if err := os.MkdirAll(destination, 0o755); err != nil {
		return "", err
	}

	sources := extractedFiles
	if len(sources) == 0 {
		raw, err := rawDownloadedFiles(workDir)
		if err != nil {
			return "", err
		}
		sources = raw
	}

	for _, src := range sources {
		dest, skip, err := resolveCollision(filepath.Join(destination, filepath.Base(src)), o.Config.FileCollision)
		if err != nil {
			return "", err
		}
		if skip {
			continue
		}
		if err := moveFile(src, dest); err != nil {
			return "", err
		}
	}

	return destination, nil
}

// resolveCollision applies the configured FileCollisionPolicy when dest
// already exists: Rename finds the next "name (n).ext" that doesn't
// collide, Overwrite returns dest as-is (moveFile replaces it), and Skip
// reports the move should be dropped entirely.
func resolveCollision(dest string, policy domain.FileCollisionPolicy) (string, bool, error) {
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest, false, nil
	} else if err != nil {
		return "", false, err
	}

	switch policy {
	case domain.FileCollisionOverwrite:
		return dest, false, nil
	case domain.FileCollisionSkip:
		return "", true, nil
	default: // FileCollisionRename
		ext := filepath.Ext(dest)
		base := strings.TrimSuffix(dest, ext)
		for i := 1; ; i++ {
			candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
			if _, err := os.Stat(candidate); os.IsNotExist(err) {
				return candidate, false, nil
			}
		}
	}
}

func rawDownloadedFiles(workDir string) ([]string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, filepath.Join(workDir, e.Name()))
	}
	return out, nil
}

// moveFile renames source to dest, falling back to a copy+remove when
// the two paths are on different filesystems.
func moveFile(source, dest string) error {
	if err := os.Rename(source, dest); err == nil {
		return nil
	}
	return moveCrossDevice(source, dest)
}

func moveCrossDevice(sourcePath, destPath string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(destPath)
		return err
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	src.Close()

	return os.Remove(sourcePath)
}

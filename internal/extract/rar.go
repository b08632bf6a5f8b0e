package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/nwaples/rardecode/v2"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// RarExtractor tries, in order: the external unrar binary (fastest for
// large RAR5 sets), the pure-Go rardecode/v2 library (no binary
// dependency), then external 7z as a last resort.
type RarExtractor struct {
	UnrarPath  string
	SevenZPath string
}

// TryExtract attempts to extract archive into destDir with password,
// returning the paths written. Returns domain.ErrWrongPassword,
// domain.ErrVolumeNotReady, or domain.ErrExtractionFailed on failure.
func (e *RarExtractor) TryExtract(ctx context.Context, archive, password, destDir string) ([]string, error) {
	if e.UnrarPath != "" {
		if paths, err := e.extractWithUnrar(ctx, archive, password, destDir); err == nil {
			return paths, nil
		} else if domain.ErrWrongPassword == err || domain.ErrVolumeNotReady == err {
			return nil, err
		}
	}

	if paths, err := e.extractWithRardecode(archive, password, destDir); err == nil {
		return paths, nil
	} else if err == domain.ErrWrongPassword || err == domain.ErrVolumeNotReady {
		return nil, err
	}

	if e.SevenZPath != "" {
		if paths, err := ExtractSevenZip(ctx, e.SevenZPath, archive, password, destDir); err == nil {
			return paths, nil
		} else if err == domain.ErrWrongPassword {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: tried unrar, rardecode, 7z", domain.ErrExtractionFailed)
}

func (e *RarExtractor) extractWithUnrar(ctx context.Context, archive, password, destDir string) ([]string, error) {
	args := []string{"x", "-o+", "-y", "-kb"}
	if password != "" {
		args = append(args, "-p"+password)
	} else {
		args = append(args, "-p-")
	}
	args = append(args, archive, destDir+string(filepath.Separator))

	cmd := exec.CommandContext(ctx, e.UnrarPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 11 {
			return nil, domain.ErrWrongPassword
		}
		return nil, classifyExtractError(string(out), fmt.Errorf("unrar: %w", err))
	}
	return listExtractedFiles(destDir)
}

func (e *RarExtractor) extractWithRardecode(archive, password, destDir string) ([]string, error) {
	var opts []rardecode.Option
	if password != "" {
		opts = append(opts, rardecode.Password(password))
	}
	r, err := rardecode.OpenReader(archive, opts...)
	if err != nil {
		return nil, classifyExtractError(err.Error(), fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err))
	}
	defer r.Close()

	var written []string
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyExtractError(err.Error(), fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err))
		}

		destPath, ok := SafeJoin(destDir, header.Name)
		if !ok {
			continue
		}
		if header.IsDir {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, err
		}
		_, copyErr := io.Copy(f, r)
		f.Close()
		if copyErr != nil {
			return nil, fmt.Errorf("%w: writing %s: %v", domain.ErrExtractionFailed, destPath, copyErr)
		}
		written = append(written, destPath)
	}
	return written, nil
}

func listExtractedFiles(destDir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(destDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

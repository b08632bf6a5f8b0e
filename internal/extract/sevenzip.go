package extract

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// ExtractSevenZip shells out to 7z/7zz, the only practical way to read
// the 7z container format without vendoring a decoder.
func ExtractSevenZip(ctx context.Context, sevenZPath, archivePath, password, destDir string) ([]string, error) {
	if sevenZPath == "" {
		return nil, fmt.Errorf("%w: no 7z binary configured", domain.ErrExtractionFailed)
	}

	args := []string{"x", archivePath, "-o" + destDir, "-y"}
	if password != "" {
		args = append(args, "-p"+password)
	} else {
		args = append(args, "-p-")
	}

	cmd := exec.CommandContext(ctx, sevenZPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, classifyExtractError(string(out), fmt.Errorf("7z: %w", err))
	}
	return listExtractedFiles(destDir)
}

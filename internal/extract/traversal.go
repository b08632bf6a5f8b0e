package extract

import (
	"path/filepath"
	"strings"
)

// SafeJoin resolves an archive entry name against destDir, rejecting any
// component that would escape it (".." segments, absolute paths, or a
// Windows drive/UNC prefix). Ported from the original Rust extractor's
// `Path::components().filter(Component::Normal)` approach: unsafe
// components are dropped rather than the whole entry rejected, so a path
// like "../../etc/passwd" becomes "etc/passwd" under destDir.
func SafeJoin(destDir, entryName string) (string, bool) {
	entryName = filepath.ToSlash(entryName)
	parts := strings.Split(entryName, "/")

	var safe []string
	for _, p := range parts {
		switch p {
		case "", ".", "..":
			continue
		default:
			if strings.Contains(p, ":") { // drive letter / alternate stream
				continue
			}
			safe = append(safe, p)
		}
	}
	if len(safe) == 0 {
		return "", false
	}

	joined := filepath.Join(append([]string{destDir}, safe...)...)
	cleanDest := filepath.Clean(destDir)
	if joined != cleanDest && !strings.HasPrefix(joined, cleanDest+string(filepath.Separator)) {
		return "", false
	}
	return joined, true
}

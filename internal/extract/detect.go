// Package extract dispatches archives to format-specific extractors with
// password-list probing, path-traversal protection, and recursive
// extraction of nested archives (spec §4.7).
package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies an archive format.
type Kind int

const (
	KindUnknown Kind = iota
	KindRar
	KindSevenZip
	KindZip
)

var (
	rar15Magic  = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}
	rar5Magic   = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}
	sevenZMagic = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	zipMagics   = [][]byte{
		{0x50, 0x4B, 0x03, 0x04},
		{0x50, 0x4B, 0x05, 0x06},
		{0x50, 0x4B, 0x07, 0x08},
	}
)

// DetectKind reads the first few bytes of path and classifies it.
func DetectKind(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return KindUnknown, nil
	}
	header = header[:n]

	if bytes.HasPrefix(header, rar5Magic) || bytes.HasPrefix(header, rar15Magic) {
		return KindRar, nil
	}
	if bytes.HasPrefix(header, sevenZMagic) {
		return KindSevenZip, nil
	}
	for _, m := range zipMagics {
		if bytes.HasPrefix(header, m) {
			return KindZip, nil
		}
	}
	return KindUnknown, nil
}

// IsFirstRarVolume reports whether filename is a standalone .rar or the
// first volume of a .partNN.rar set (§4.8's "first-volume" detection).
func IsFirstRarVolume(filename string) bool {
	lower := strings.ToLower(filepath.Base(filename))
	if !strings.HasSuffix(lower, ".rar") {
		return false
	}
	if !strings.Contains(lower, ".part") {
		return true
	}
	return strings.Contains(lower, ".part01.rar") ||
		strings.Contains(lower, ".part001.rar") ||
		strings.Contains(lower, ".part1.rar")
}

// DetectFiles returns every archive in dir this package knows how to open,
// applying the multi-volume RAR skip rule and taking every .zip/.7z found.
func DetectFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		switch {
		case strings.HasSuffix(lower, ".rar"):
			if IsFirstRarVolume(name) {
				out = append(out, filepath.Join(dir, name))
			}
		case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".7z"):
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

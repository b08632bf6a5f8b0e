package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// Config holds the external tool paths and limits needed to run the
// extraction pipeline. Empty tool paths disable that tier; the Dispatcher
// degrades gracefully to whatever tools are actually configured.
type Config struct {
	UnrarPath         string
	SevenZPath        string
	UnzipPath         string
	MaxRecursionDepth int
	ArchiveExtensions []string
}

// Dispatcher routes an archive to its format-specific extractor and
// drives recursive extraction of anything it unpacks.
type Dispatcher struct {
	cfg Config
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.MaxRecursionDepth <= 0 {
		cfg.MaxRecursionDepth = 3
	}
	if len(cfg.ArchiveExtensions) == 0 {
		cfg.ArchiveExtensions = []string{".rar", ".zip", ".7z"}
	}
	return &Dispatcher{cfg: cfg}
}

// tryExtractFor returns the password-parameterized extract function for
// the detected archive kind, or an error if the kind is unknown.
func (d *Dispatcher) tryExtractFor(kind Kind) (TryExtractFunc, error) {
	switch kind {
	case KindRar:
		rar := &RarExtractor{UnrarPath: d.cfg.UnrarPath, SevenZPath: d.cfg.SevenZPath}
		return rar.TryExtract, nil
	case KindSevenZip:
		return func(ctx context.Context, archive, password, dest string) ([]string, error) {
			return ExtractSevenZip(ctx, d.cfg.SevenZPath, archive, password, dest)
		}, nil
	case KindZip:
		return func(ctx context.Context, archive, password, dest string) ([]string, error) {
			return ExtractZip(ctx, d.cfg.UnzipPath, archive, password, dest)
		}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized archive format", domain.ErrExtractionFailed)
	}
}

// Result describes the outcome of extracting one archive, including
// any nested archives it contained.
type Result struct {
	Paths           []string
	PasswordUsed    string
	NestedExtracted []string
	NestedFailures  []error
}

// Extract detects the archive format, probes passwords, and recurses
// into any nested archives it finds among the extracted files.
func (d *Dispatcher) Extract(ctx context.Context, archivePath string, passwords []string, destDir string) (*Result, error) {
	return d.extractAt(ctx, archivePath, passwords, destDir, 1)
}

// extractAt is Extract for an archive found at the given nesting depth
// (1 for the top-level archive).
func (d *Dispatcher) extractAt(ctx context.Context, archivePath string, passwords []string, destDir string, depth int) (*Result, error) {
	kind, err := DetectKind(archivePath)
	if err != nil {
		return nil, err
	}
	if kind == KindUnknown {
		return nil, fmt.Errorf("%w: %s is not a recognized archive", domain.ErrExtractionFailed, archivePath)
	}

	tryExtract, err := d.tryExtractFor(kind)
	if err != nil {
		return nil, err
	}

	paths, usedPassword, err := Probe(ctx, tryExtract, archivePath, destDir, passwords)
	if err != nil {
		return nil, err
	}

	res := &Result{Paths: paths, PasswordUsed: usedPassword}
	d.recurse(ctx, paths, passwords, destDir, depth, res)
	return res, nil
}

// recurse walks freshly extracted files, extracting any that match the
// configured archive extensions into nested_<stem>_<depth> subdirectories.
// A failure at any nested level is recorded and does not abort the rest.
func (d *Dispatcher) recurse(ctx context.Context, candidates []string, passwords []string, parentDir string, depth int, res *Result) {
	if depth > d.cfg.MaxRecursionDepth {
		return
	}
	for _, path := range candidates {
		if !d.isArchiveExtension(path) {
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		nestedDir := filepath.Join(parentDir, fmt.Sprintf("nested_%s_%d", stem, depth))

		nested, err := d.extractAt(ctx, path, passwords, nestedDir, depth+1)
		if err != nil {
			res.NestedFailures = append(res.NestedFailures, fmt.Errorf("%s: %w", path, err))
			continue
		}
		res.NestedExtracted = append(res.NestedExtracted, nested.Paths...)
		res.NestedExtracted = append(res.NestedExtracted, nested.NestedExtracted...)
		res.NestedFailures = append(res.NestedFailures, nested.NestedFailures...)
	}
}

func (d *Dispatcher) isArchiveExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range d.cfg.ArchiveExtensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

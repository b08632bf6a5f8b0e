package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// TryExtractFunc extracts a single archive with a single password, in
// the shape every format-specific extractor in this package exposes.
type TryExtractFunc func(ctx context.Context, archive, password, destDir string) ([]string, error)

// ErrAllPasswordsFailed reports the count of attempted passwords. It
// wraps domain.ErrAllPasswordsFailed so callers can match it with errors.Is.
type ErrAllPasswordsFailed struct {
	Count int
}

func (e *ErrAllPasswordsFailed) Error() string {
	return fmt.Sprintf("all %d passwords failed", e.Count)
}

func (e *ErrAllPasswordsFailed) Unwrap() error {
	return domain.ErrAllPasswordsFailed
}

// BuildPasswordList assembles the probe order from §4.7: cached correct
// password, per-download override, NZB metadata password, then the
// global password file's lines, de-duplicated while preserving order.
// An empty-string attempt is appended last when tryEmpty is set.
func BuildPasswordList(cachedCorrect, override, nzbPassword string, globalFileLines []string, tryEmpty bool) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(pw string) {
		pw = strings.TrimSpace(pw)
		if pw == "" {
			return
		}
		if _, ok := seen[pw]; ok {
			return
		}
		seen[pw] = struct{}{}
		out = append(out, pw)
	}

	add(cachedCorrect)
	add(override)
	add(nzbPassword)
	for _, line := range globalFileLines {
		add(line)
	}
	if tryEmpty {
		if _, ok := seen[""]; !ok {
			out = append(out, "")
		}
	}
	return out
}

// Probe runs tryExtract against each password in order, stopping at the
// first success, the first non-WrongPassword error, or exhaustion.
// Returns the extracted paths and the password that worked.
func Probe(ctx context.Context, tryExtract TryExtractFunc, archive, destDir string, passwords []string) ([]string, string, error) {
	if len(passwords) == 0 {
		return nil, "", domain.ErrNoPasswordsAvail
	}

	for _, pw := range passwords {
		paths, err := tryExtract(ctx, archive, pw, destDir)
		if err == nil {
			return paths, pw, nil
		}
		if err == domain.ErrWrongPassword {
			continue
		}
		return nil, "", err
	}
	return nil, "", &ErrAllPasswordsFailed{Count: len(passwords)}
}

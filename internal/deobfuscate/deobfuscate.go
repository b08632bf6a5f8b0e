// Package deobfuscate recovers a usable filename from a Usenet post
// subject line, which frequently wraps the real name in extra counters,
// a "yEnc" suffix, or HTML entities.
package deobfuscate

import (
	"html"
	"regexp"
	"strings"
)

var (
	yencSuffix  = regexp.MustCompile(`(?i)\s+yenc.*$`)
	leadCounter = regexp.MustCompile(`^\[\d+/\d+\]\s+`)
	badChars    = regexp.MustCompile(`[\\/:*?"<>|]`)
)

// CleanSubject extracts a safe filename from a raw NNTP subject line.
// It first tries the quoted-filename convention most posters use
// ("some.release" part 01 of 20 (1/20) - "some.release.r00" yEnc),
// taking the last quoted segment, and falls back to stripping the
// trailing yEnc marker and leading counter when no quoted segment is
// present.
func CleanSubject(subject string) string {
	res := html.UnescapeString(subject)

	lastQuote := strings.LastIndex(res, `"`)
	firstQuote := -1
	if lastQuote > 0 {
		firstQuote = strings.LastIndex(res[:lastQuote], `"`)
	}
	if firstQuote != -1 && lastQuote != -1 && firstQuote < lastQuote {
		res = res[firstQuote+1 : lastQuote]
	} else {
		res = yencSuffix.ReplaceAllString(res, "")
		res = leadCounter.ReplaceAllString(res, "")
	}

	res = badChars.ReplaceAllString(res, "_")
	return strings.TrimSpace(res)
}

// Config gates whether CleanSubject's heuristic runs at all, per the
// config surface's automation.deobfuscation {enabled, min_length}.
type Config struct {
	Enabled   bool
	MinLength int
}

// Apply runs CleanSubject only when cfg.Enabled and subject clears
// MinLength; otherwise it returns subject unchanged. A subject shorter
// than MinLength is assumed already terse enough that it isn't an
// obfuscated blob worth re-deriving a filename from.
func Apply(cfg Config, subject string) string {
	if !cfg.Enabled || len(subject) < cfg.MinLength {
		return subject
	}
	return CleanSubject(subject)
}

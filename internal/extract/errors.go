package extract

import (
	"strings"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// isPasswordError heuristically classifies a CLI tool's error message as
// a wrong-password failure. Per spec §9's open question, this mapping is
// deliberately loose: implementers may tighten it without changing the
// external contract.
func isPasswordError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "password") ||
		strings.Contains(lower, "encrypted") ||
		strings.Contains(lower, "bad password") ||
		strings.Contains(lower, "erar_bad_password")
}

func isVolumeNotReadyError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "cannot find volume") ||
		strings.Contains(lower, "next volume") ||
		strings.Contains(lower, "missing volume")
}

func classifyExtractError(msg string, fallback error) error {
	switch {
	case isPasswordError(msg):
		return domain.ErrWrongPassword
	case isVolumeNotReadyError(msg):
		return domain.ErrVolumeNotReady
	default:
		return fallback
	}
}

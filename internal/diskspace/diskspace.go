// Package diskspace implements the pre-admission free-space gate from
// spec §4.10: required = size * size_multiplier + min_free_space,
// rejected when the destination's available space falls short.
package diskspace

import (
	"fmt"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// Config mirrors the config surface's DiskSpaceConfig.
type Config struct {
	Enabled        bool
	MinFreeSpace   int64
	SizeMultiplier float64
}

// Available reports the free bytes on the filesystem holding path.
func Available(path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("diskspace: statfs %s: %w", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// Check verifies the destination has enough free space for a download of
// sizeBytes, per cfg. Returns domain.ErrInsufficientSpace when it doesn't.
func Check(destination string, sizeBytes int64, cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	multiplier := cfg.SizeMultiplier
	if multiplier <= 0 {
		multiplier = 1.0
	}
	required := int64(float64(sizeBytes)*multiplier) + cfg.MinFreeSpace

	available, err := Available(destination)
	if err != nil {
		return err
	}
	if available < required {
		return fmt.Errorf("%w: need %s, have %s", domain.ErrInsufficientSpace,
			humanize.Bytes(uint64(required)), humanize.Bytes(uint64(available)))
	}
	return nil
}

// Package duplicate implements the pre-admission duplicate check from
// spec §4.10: a configurable, ordered list of detection methods and an
// action to take on a match.
package duplicate

import (
	"context"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

// Method identifies one way to detect a duplicate Download.
type Method string

const (
	MethodNzbHash Method = "NzbHash"
	MethodName    Method = "Name"
	MethodJobName Method = "JobName"
)

// Action is what happens when a duplicate is found.
type Action string

const (
	ActionBlock Action = "Block"
	ActionWarn  Action = "Warn"
	ActionAllow Action = "Allow"
)

// Config mirrors the config surface's DuplicateConfig.
type Config struct {
	Enabled bool
	Action  Action
	Methods []Method // priority order
}

// ErrDuplicate is returned by Check when Action is Block and a match was
// found; it wraps domain.ErrDuplicateDownload.
type ErrDuplicate struct {
	Method Method
}

func (e *ErrDuplicate) Error() string {
	return "duplicate download detected via " + string(e.Method)
}

func (e *ErrDuplicate) Unwrap() error {
	return domain.ErrDuplicateDownload
}

// Check runs the configured detection methods in order against st,
// returning the method that matched (if any). The caller interprets the
// result according to cfg.Action: Block should return ErrDuplicate
// immediately, Warn should proceed but emit DuplicateDetected, Allow
// proceeds silently.
func Check(ctx context.Context, st *store.Store, cfg Config, nzbHash []byte, name, jobName string) (Method, bool, error) {
	if !cfg.Enabled {
		return "", false, nil
	}
	for _, m := range cfg.Methods {
		var (
			existing *domain.Download
			err      error
		)
		switch m {
		case MethodNzbHash:
			if len(nzbHash) == 0 {
				continue
			}
			existing, err = st.GetDownloadByNzbHash(ctx, nzbHash)
		case MethodJobName:
			if jobName == "" {
				continue
			}
			existing, err = st.GetDownloadByJobName(ctx, jobName)
		case MethodName:
			if name == "" {
				continue
			}
			existing, err = st.GetDownloadByName(ctx, name)
		default:
			continue
		}
		if err != nil {
			if err == domain.ErrNotFound {
				continue
			}
			return "", false, err
		}
		if existing != nil {
			return m, true, nil
		}
	}
	return "", false, nil
}

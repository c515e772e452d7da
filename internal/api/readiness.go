package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/askmesh/askmesh/internal/config"
)

const defaultReadinessTimeout = 2 * time.Second

// ReadinessCheck reports whether one dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type Pinger interface {
	Ping(ctx context.Context) error
}

func handleReady(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Readiness == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}
	timeout := deps.ReadinessTimeout
	if timeout <= 0 {
		timeout = defaultReadinessTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	err := deps.Readiness(ctx)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}
	writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, map[string]any{
		"failed": failedChecks(err),
	})
}

// CheckPing turns a dependency ping into a readiness check named after the
// dependency.
func CheckPing(name string, pinger Pinger) ReadinessCheck {
	if pinger == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

// CheckObjectStoreConfig only applies when the run archive is enabled.
func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.Archive.Enabled {
			return nil
		}
		switch {
		case cfg.ObjectStore.Endpoint == "":
			return errors.New("archive: object store endpoint is not configured")
		case cfg.ObjectStore.Bucket == "":
			return errors.New("archive: object store bucket is not configured")
		}
		return nil
	}
}

// CombineReadinessChecks runs every non-nil check in order and joins their
// failures.
func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		var errs []error
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

func failedChecks(err error) []string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(joined.Unwrap()))
	for _, inner := range joined.Unwrap() {
		out = append(out, failedChecks(inner)...)
	}
	return out
}

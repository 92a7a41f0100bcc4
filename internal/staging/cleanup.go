// Package staging sweeps job scratch directories left behind by crashed or
// killed processes.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"burnin/internal/logging"
)

// SweepResult contains the outcome of a scratch sweep.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory path with its cleanup error.
type SweepError struct {
	Path  string
	Error error
}

// CleanStale removes job directories under scratchDir older than maxAge.
// Directories named in active are kept regardless of age.
func CleanStale(ctx context.Context, scratchDir string, maxAge time.Duration, active map[string]struct{}, logger *slog.Logger) SweepResult {
	cutoff := time.Now().Add(-maxAge)
	return sweep(ctx, scratchDir, logger, "stale", func(name string, info os.FileInfo) bool {
		if _, ok := active[name]; ok {
			return false
		}
		return info.ModTime().Before(cutoff)
	})
}

// CleanOrphaned removes every job directory under scratchDir that is not in
// active. It is meant for startup, when no job of a previous process can
// still be running.
func CleanOrphaned(ctx context.Context, scratchDir string, active map[string]struct{}, logger *slog.Logger) SweepResult {
	return sweep(ctx, scratchDir, logger, "orphaned", func(name string, _ os.FileInfo) bool {
		_, ok := active[name]
		return !ok
	})
}

func sweep(ctx context.Context, scratchDir string, logger *slog.Logger, reason string, remove func(string, os.FileInfo) bool) SweepResult {
	result := SweepResult{}

	scratchDir = strings.TrimSpace(scratchDir)
	if scratchDir == "" {
		return result
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: scratchDir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(scratchDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			continue
		}
		if !remove(entry.Name(), info) {
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			if logger != nil {
				logger.Warn("failed to remove "+reason+" scratch directory",
					logging.String("path", dirPath),
					logging.Error(err),
					logging.String(logging.FieldEventType, "scratch_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		if logger != nil {
			logger.Info("removed "+reason+" scratch directory",
				logging.String("path", dirPath),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "scratch_cleanup"),
			)
		}
	}

	return result
}

package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"burnin/internal/config"
	"burnin/internal/metadata"
	"burnin/internal/storage"
	"burnin/internal/storage/backend"
)

const probeTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckMetadata opens the SQLite database and pings it.
func CheckMetadata(ctx context.Context, cfg *config.Config) Result {
	const name = "Metadata"

	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	repo, err := metadata.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer repo.Close()
	if err := repo.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeProbeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: cfg.MetadataPath()}
}

// CheckStore opens the configured artifact store and looks up a probe key.
// A missing key is a pass; only transport and permission errors fail.
func CheckStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) Result {
	const name = "Artifact store"

	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	store, err := backend.Open(checkCtx, cfg, logger)
	if err != nil {
		return Result{Name: name, Detail: summarizeProbeError(err)}
	}
	if _, err := store.Exists(checkCtx, storage.Key(cfg.Storage.Prefix, ".healthcheck")); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s: %s", store.Backend(), summarizeProbeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: store.Backend()}
}

func summarizeProbeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timed out after %s", probeTimeout)
	}
	return err.Error()
}

package preflight

import (
	"context"
	"log/slog"

	"burnin/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// CheckPaths verifies every directory burnin writes to.
func CheckPaths(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}
	if cfg.Storage.Backend == config.BackendLocal {
		results = append(results, CheckDirectoryAccess("Artifact directory", cfg.Storage.LocalDir))
	}
	return results
}

// RunAll executes the path checks followed by the metadata and artifact
// store probes.
func RunAll(ctx context.Context, cfg *config.Config, logger *slog.Logger) []Result {
	if cfg == nil {
		return nil
	}
	results := CheckPaths(cfg)
	results = append(results, CheckMetadata(ctx, cfg))
	results = append(results, CheckStore(ctx, cfg, logger))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

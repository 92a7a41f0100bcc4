package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"burnin/internal/api"
	"burnin/internal/config"
	"burnin/internal/deps"
	"burnin/internal/jobs"
	"burnin/internal/logging"
	"burnin/internal/metadata"
	"burnin/internal/staging"
	"burnin/internal/storage"
)

const defaultSweepInterval = 10 * time.Minute

// Components are the long-lived services the daemon owns.
type Components struct {
	Repo         metadata.Repository
	Store        storage.Store
	Orchestrator *jobs.Orchestrator
}

// Daemon runs the HTTP API and background maintenance and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	repo   metadata.Repository
	store  storage.Store
	orch   *jobs.Orchestrator
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	sweepInterval time.Duration
	checkDeps     func() []deps.Status

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	ActiveJobs   int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, c Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || c.Repo == nil || c.Store == nil || c.Orchestrator == nil {
		return nil, errors.New("daemon requires config, repository, store, and orchestrator")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:           cfg,
		logger:        logging.NewComponentLogger(logger, "daemon"),
		repo:          c.Repo,
		store:         c.Store,
		orch:          c.Orchestrator,
		lockPath:      lockPath,
		lock:          flock.New(lockPath),
		sweepInterval: defaultSweepInterval,
		checkDeps: func() []deps.Status {
			return deps.CheckBinaries(deps.Requirements(cfg))
		},
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the lock, reconciles interrupted jobs, and starts serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("ensure data directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another burnin instance is already running for this data directory")
	}

	reconciled, err := d.orch.Reconcile(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "startup reconcile incomplete", "reconcile_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the metadata database and scratch_dir permissions"),
			logging.String(logging.FieldImpact, "some interrupted jobs may still read as processing"),
		)
	} else if reconciled > 0 {
		d.logger.Info("reconciled interrupted jobs",
			logging.Int("count", reconciled),
			logging.String(logging.FieldEventType, "jobs_reconciled"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweepLoop(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("burnin daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops serving and releases the daemon lock. In-flight requests get
// a short grace period.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("burnin daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if closer, ok := d.repo.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.MetadataPath(),
		LockFilePath: d.lockPath,
		ActiveJobs:   len(d.orch.Active()),
	}
}

// Health probes external binaries, the repository, and the artifact store.
func (d *Daemon) Health(ctx context.Context) api.HealthResponse {
	resp := api.HealthResponse{
		Healthy:        true,
		ActiveJobs:     len(d.orch.Active()),
		TranscodeSlots: d.orch.Pool().Size(),
		SlotsInUse:     d.orch.Pool().InUse(),
	}

	statuses := d.checkDeps()
	for _, s := range statuses {
		resp.Dependencies = append(resp.Dependencies, api.DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	if len(deps.Missing(statuses)) > 0 {
		resp.Healthy = false
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	repoStatus := api.ComponentStatus{Name: "metadata", Backend: "sqlite", Reachable: true}
	if err := d.repo.Ping(probeCtx); err != nil {
		repoStatus.Reachable = false
		repoStatus.Detail = err.Error()
	}
	storeStatus := api.ComponentStatus{Name: "artifact_store", Backend: d.store.Backend(), Reachable: true}
	if _, err := d.store.Exists(probeCtx, storage.Key(d.cfg.Storage.Prefix, ".healthcheck")); err != nil {
		storeStatus.Reachable = false
		storeStatus.Detail = err.Error()
	}
	resp.Components = []api.ComponentStatus{repoStatus, storeStatus}
	if !repoStatus.Reachable || !storeStatus.Reachable {
		resp.Healthy = false
	}
	return resp
}

// staleScratchAge is the longest a job can legitimately hold its workspace.
func (d *Daemon) staleScratchAge() time.Duration {
	return d.cfg.FetchTimeout() + d.cfg.TransformTimeout() + d.cfg.StorageTimeout() + d.cfg.MetadataTimeout()
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := staging.CleanStale(ctx, d.cfg.Paths.ScratchDir, d.staleScratchAge(), d.orch.Active(), d.logger)
			if len(result.Removed) > 0 || len(result.Errors) > 0 {
				d.logger.Info("scratch sweep finished",
					logging.Int("removed", len(result.Removed)),
					logging.Int("errors", len(result.Errors)),
					logging.String(logging.FieldEventType, "scratch_sweep"),
				)
			}
		}
	}
}

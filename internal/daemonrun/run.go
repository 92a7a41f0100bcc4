package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"burnin/internal/config"
	"burnin/internal/daemon"
	"burnin/internal/deps"
	"burnin/internal/jobs"
	"burnin/internal/logging"
	"burnin/internal/media/ffprobe"
	"burnin/internal/metadata"
	"burnin/internal/notifications"
	"burnin/internal/preflight"
	"burnin/internal/storage/backend"
	"burnin/internal/subtitles"
	"burnin/internal/transform"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	LogFormat   string
	Development bool
}

// Build opens the metadata store and artifact store and wires the job
// orchestrator around them. Callers own the returned components and must
// close the repository.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (daemon.Components, error) {
	if cfg == nil {
		return daemon.Components{}, errors.New("config is required")
	}
	repo, err := metadata.Open(cfg)
	if err != nil {
		return daemon.Components{}, fmt.Errorf("open metadata store: %w", err)
	}

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		repo.Close()
		return daemon.Components{}, fmt.Errorf("open artifact store: %w", err)
	}

	var prober transform.Prober
	if cfg.Transform.Probe {
		prober = ffprobe.Prober{Binary: cfg.Transform.FFprobeBinary}
	}

	orch, err := jobs.New(cfg, jobs.Collaborators{
		Subtitles: subtitles.NewFetcher(cfg, nil, logger),
		Transform: transform.NewInvoker(cfg, nil, prober, logger),
		Store:     store,
		Repo:      repo,
		Notify:    notifications.NewService(cfg),
	}, logger)
	if err != nil {
		repo.Close()
		return daemon.Components{}, fmt.Errorf("create orchestrator: %w", err)
	}
	return daemon.Components{Repo: repo, Store: store, Orchestrator: orch}, nil
}

// Run starts the burnin daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	for _, r := range preflight.Failed(preflight.CheckPaths(cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "fix directory ownership or permissions"),
		)
	}

	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	logDependencySnapshot(logger, statuses)
	if missing := deps.Missing(statuses); len(missing) > 0 {
		logging.WarnWithContext(logger, "required dependency missing", "dependency_missing",
			logging.String("name", missing[0].Name),
			logging.String("command", missing[0].Command),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set transform.ffmpeg_binary"),
			logging.String(logging.FieldImpact, "submissions will fail at the transcode stage"),
		)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "burnin.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	components, err := Build(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("daemon setup failed", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, components, logger)
	if err != nil {
		if closer, ok := components.Repo.(interface{ Close() error }); ok {
			closer.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("burnin daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if opts.LogLevel == "" && opts.LogFormat == "" && !opts.Development {
		return logging.NewFromConfig(cfg)
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	format := opts.LogFormat
	if format == "" {
		format = cfg.Logging.Format
	}
	outputs := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "burnin.log"))
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      format,
		OutputPaths: outputs,
		Development: opts.Development,
	})
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, statuses []deps.Status) {
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, s := range statuses {
		name := strings.ToLower(s.Name)
		attrs = append(attrs,
			logging.Bool(name+"_available", s.Available),
			logging.String(name+"_binary", s.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"burnin/internal/config"
	"burnin/internal/logging"
	"burnin/internal/media/ffprobe"
	"burnin/internal/services"
)

const (
	stageName        = "transform"
	subtitleFilename = "subtitles.srt"
)

// Prober inspects an encoded file.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Request describes one burn-in encode.
type Request struct {
	Input      string
	WorkDir    string
	OutputName string
	Subtitles  []byte
	Resolution Resolution
	Quality    int
}

// Output describes the encoded artifact.
type Output struct {
	Path       string
	SizeBytes  int64
	Duration   float64
	Resolution string
	Elapsed    time.Duration
}

// Invoker burns subtitles into a video and scales it with ffmpeg.
type Invoker struct {
	runner       Runner
	prober       Prober
	binary       string
	codec        string
	preset       string
	audioCodec   string
	audioBitrate string
	timeout      time.Duration
	logger       *slog.Logger
}

// NewInvoker builds an Invoker from configuration. A nil prober skips output
// inspection; duration is then reported as zero.
func NewInvoker(cfg *config.Config, runner Runner, prober Prober, logger *slog.Logger) *Invoker {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Invoker{
		runner:       runner,
		prober:       prober,
		binary:       cfg.Transform.FFmpegBinary,
		codec:        cfg.Transform.Codec,
		preset:       cfg.Transform.Preset,
		audioCodec:   cfg.Transform.AudioCodec,
		audioBitrate: cfg.Transform.AudioBitrate,
		timeout:      cfg.TransformTimeout(),
		logger:       logging.NewComponentLogger(logger, "transform"),
	}
}

// Burn writes the subtitle track next to the input, runs ffmpeg under the
// configured deadline, and verifies the output.
//
// Failures are tagged services.ErrTranscodeTimeout when the deadline passes,
// services.ErrCancelled when ctx is cancelled by the caller, and
// services.ErrTranscodeFailed otherwise. Invalid resolution or quality is
// rejected before any process starts.
func (i *Invoker) Burn(ctx context.Context, req Request) (Output, error) {
	if _, ok := dimensions[req.Resolution]; !ok {
		return Output{}, services.Wrap(services.ErrInvalidResolution, stageName, "validate",
			fmt.Sprintf("unsupported resolution %q", req.Resolution), nil)
	}
	if err := ValidateQuality(req.Quality); err != nil {
		return Output{}, err
	}
	if strings.TrimSpace(req.Input) == "" || strings.TrimSpace(req.WorkDir) == "" {
		return Output{}, services.Wrap(services.ErrInvalidInput, stageName, "validate", "input and work dir are required", nil)
	}

	srtPath := filepath.Join(req.WorkDir, subtitleFilename)
	if err := os.WriteFile(srtPath, req.Subtitles, 0o644); err != nil {
		return Output{}, services.Wrap(services.ErrTranscodeFailed, stageName, "stage subtitles", "", err)
	}
	name := req.OutputName
	if name == "" {
		name = "output.mp4"
	}
	outPath := filepath.Join(req.WorkDir, name)

	args := BuildArgs(Spec{
		Input:        req.Input,
		Subtitles:    srtPath,
		Output:       outPath,
		Resolution:   req.Resolution,
		Quality:      req.Quality,
		Codec:        i.codec,
		Preset:       i.preset,
		AudioCodec:   i.audioCodec,
		AudioBitrate: i.audioBitrate,
	})

	runCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	logger := logging.WithContext(ctx, i.logger)
	logger.Info("ffmpeg started",
		logging.String("resolution", req.Resolution.String()),
		logging.Int("crf", req.Quality),
		logging.String("preset", i.preset),
	)
	logger.Debug("ffmpeg command", logging.String("binary", i.binary), logging.String("args", strings.Join(args, " ")))

	result, err := i.runner.Run(runCtx, i.binary, args)
	if err != nil {
		return Output{}, i.classify(ctx, runCtx, result, err)
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return Output{}, services.Wrap(services.ErrTranscodeFailed, stageName, "ffmpeg",
			"ffmpeg exited cleanly but produced no output"+tailSuffix(result.StderrTail), err)
	}

	out := Output{
		Path:       outPath,
		SizeBytes:  info.Size(),
		Resolution: req.Resolution.Size(),
		Elapsed:    result.Elapsed,
	}
	i.probe(ctx, logger, &out)

	logger.Info("ffmpeg finished",
		logging.Int64("size_bytes", out.SizeBytes),
		logging.Float64("duration_seconds", out.Duration),
		logging.Duration("elapsed", out.Elapsed),
	)
	return out, nil
}

func (i *Invoker) probe(ctx context.Context, logger *slog.Logger, out *Output) {
	if i.prober == nil {
		return
	}
	probed, err := i.prober.Inspect(ctx, out.Path)
	if err != nil {
		logging.WarnWithContext(logger, "output probe failed", "ffprobe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check transform.ffprobe_binary"),
			logging.String(logging.FieldImpact, "duration will be recorded as zero"),
		)
		return
	}
	out.Duration = probed.DurationSeconds()
	if res := probed.Resolution(); res != "" {
		out.Resolution = res
	}
	if size := probed.SizeBytes(); size > 0 {
		out.SizeBytes = size
	}
}

func (i *Invoker) classify(parent, runCtx context.Context, result Result, err error) error {
	switch {
	case parent.Err() != nil:
		return services.Wrap(services.ErrCancelled, stageName, "ffmpeg", "job cancelled", parent.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTranscodeTimeout, stageName, "ffmpeg",
			fmt.Sprintf("exceeded %s", i.timeout), err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return services.Wrap(services.ErrTranscodeFailed, stageName, "ffmpeg",
			fmt.Sprintf("exit status %d%s", result.ExitCode, tailSuffix(result.StderrTail)), nil)
	}
	return services.Wrap(services.ErrTranscodeFailed, stageName, "ffmpeg", "could not run ffmpeg", err)
}

func tailSuffix(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "\n" + strings.Join(lines, "\n")
}

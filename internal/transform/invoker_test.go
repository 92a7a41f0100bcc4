package transform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"burnin/internal/config"
	"burnin/internal/logging"
	"burnin/internal/media/ffprobe"
	"burnin/internal/services"
)

type fakeRunner struct {
	calls  int
	args   []string
	write  []byte
	result Result
	err    error
	block  bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string) (Result, error) {
	f.calls++
	f.args = args
	if f.block {
		<-ctx.Done()
		return Result{ExitCode: -1}, ctx.Err()
	}
	if f.write != nil {
		if err := os.WriteFile(args[len(args)-1], f.write, 0o644); err != nil {
			return Result{}, err
		}
	}
	return f.result, f.err
}

type fakeProber struct {
	result ffprobe.Result
	err    error
}

func (f fakeProber) Inspect(context.Context, string) (ffprobe.Result, error) {
	return f.result, f.err
}

func newTestInvoker(t *testing.T, runner Runner, prober Prober, timeout time.Duration) *Invoker {
	t.Helper()
	cfg := config.Default()
	cfg.Timeouts.TransformSeconds = 1
	inv := NewInvoker(&cfg, runner, prober, logging.NewNop())
	if timeout > 0 {
		inv.timeout = timeout
	}
	return inv
}

func baseRequest(t *testing.T) Request {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "job_1_original.mp4")
	if err := os.WriteFile(input, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Request{
		Input:      input,
		WorkDir:    dir,
		OutputName: "job_1_final.mp4",
		Subtitles:  []byte("1\n00:00:01,000 --> 00:00:02,000\nHi\n"),
		Resolution: Resolution480p,
		Quality:    23,
	}
}

func TestBurnSuccessProbesOutput(t *testing.T) {
	runner := &fakeRunner{write: []byte("encoded-bytes")}
	prober := fakeProber{result: ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", Width: 854, Height: 480}},
		Format:  ffprobe.Format{Duration: "9.5"},
	}}
	inv := newTestInvoker(t, runner, prober, 0)
	req := baseRequest(t)

	out, err := inv.Burn(context.Background(), req)
	if err != nil {
		t.Fatalf("Burn: %v", err)
	}
	if out.Path != filepath.Join(req.WorkDir, "job_1_final.mp4") {
		t.Fatalf("unexpected output path %q", out.Path)
	}
	if out.SizeBytes != int64(len("encoded-bytes")) || out.Duration != 9.5 || out.Resolution != "854x480" {
		t.Fatalf("unexpected output: %+v", out)
	}
	srt, err := os.ReadFile(filepath.Join(req.WorkDir, subtitleFilename))
	if err != nil || !strings.Contains(string(srt), "Hi") {
		t.Fatalf("expected subtitles staged in work dir, err=%v", err)
	}
	if !strings.Contains(strings.Join(runner.args, " "), "scale=854:480") {
		t.Fatalf("expected scale filter in args %v", runner.args)
	}
}

func TestBurnProbeFailureKeepsOutput(t *testing.T) {
	runner := &fakeRunner{write: []byte("x")}
	inv := newTestInvoker(t, runner, fakeProber{err: errors.New("no ffprobe")}, 0)
	out, err := inv.Burn(context.Background(), baseRequest(t))
	if err != nil {
		t.Fatalf("Burn: %v", err)
	}
	if out.Duration != 0 || out.Resolution != "854x480" {
		t.Fatalf("expected fallback metadata, got %+v", out)
	}
}

func TestBurnRejectsBeforeRunning(t *testing.T) {
	runner := &fakeRunner{}
	inv := newTestInvoker(t, runner, nil, 0)

	req := baseRequest(t)
	req.Resolution = "4k"
	if _, err := inv.Burn(context.Background(), req); !errors.Is(err, services.ErrInvalidResolution) {
		t.Fatalf("expected ErrInvalidResolution, got %v", err)
	}
	req = baseRequest(t)
	req.Quality = 60
	if _, err := inv.Burn(context.Background(), req); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("expected no process launch, got %d", runner.calls)
	}
}

func TestBurnClassifiesFailures(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		stubCommand(t, "failure")
		inv := newTestInvoker(t, ExecRunner{}, nil, 0)
		_, err := inv.Burn(context.Background(), baseRequest(t))
		if !errors.Is(err, services.ErrTranscodeFailed) {
			t.Fatalf("expected ErrTranscodeFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "line 29") {
			t.Fatalf("expected stderr tail in error, got %v", err)
		}
	})
	t.Run("no output", func(t *testing.T) {
		inv := newTestInvoker(t, &fakeRunner{}, nil, 0)
		if _, err := inv.Burn(context.Background(), baseRequest(t)); !errors.Is(err, services.ErrTranscodeFailed) {
			t.Fatalf("expected ErrTranscodeFailed, got %v", err)
		}
	})
	t.Run("timeout", func(t *testing.T) {
		inv := newTestInvoker(t, &fakeRunner{block: true}, nil, 50*time.Millisecond)
		if _, err := inv.Burn(context.Background(), baseRequest(t)); !errors.Is(err, services.ErrTranscodeTimeout) {
			t.Fatalf("expected ErrTranscodeTimeout, got %v", err)
		}
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		inv := newTestInvoker(t, &fakeRunner{block: true}, nil, time.Minute)
		if _, err := inv.Burn(ctx, baseRequest(t)); !errors.Is(err, services.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	})
}

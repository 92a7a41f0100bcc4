package transform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"
)

func stubCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFMPEG_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestExecRunnerSuccess(t *testing.T) {
	stubCommand(t, "success")
	result, err := ExecRunner{}.Run(context.Background(), "ffmpeg", []string{"-version"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("unexpected exit code %d", result.ExitCode)
	}
	if len(result.StderrTail) != 3 || result.StderrTail[2] != "frame=  100 fps=50" {
		t.Fatalf("unexpected stderr tail: %q", result.StderrTail)
	}
}

func TestExecRunnerKeepsStderrTail(t *testing.T) {
	stubCommand(t, "failure")
	result, err := ExecRunner{TailLines: 5}.Run(context.Background(), "ffmpeg", nil)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error, got %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("unexpected exit code %d", result.ExitCode)
	}
	if len(result.StderrTail) != 5 {
		t.Fatalf("expected 5 tail lines, got %d: %q", len(result.StderrTail), result.StderrTail)
	}
	if result.StderrTail[4] != "line 29" {
		t.Fatalf("expected last line retained, got %q", result.StderrTail[4])
	}
}

func TestExecRunnerKillsOnDeadline(t *testing.T) {
	stubCommand(t, "hang")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := ExecRunner{}.Run(ctx, "ffmpeg", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > killGrace {
		t.Fatalf("process was not killed promptly (%s)", elapsed)
	}
}

func TestTailBufferHandlesCarriageReturns(t *testing.T) {
	buf := newTailBuffer(2)
	_, _ = buf.Write([]byte("a\rb\r"))
	_, _ = buf.Write([]byte("c\nd"))
	if got := buf.Lines(); len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		fmt.Fprint(os.Stderr, "Input #0, mov,mp4\nframe=   50 fps=50\rframe=  100 fps=50\n")
		os.Exit(0)
	case "failure":
		for i := 0; i < 30; i++ {
			fmt.Fprintf(os.Stderr, "line %d\n", i)
		}
		os.Exit(3)
	case "hang":
		time.Sleep(time.Minute)
		os.Exit(0)
	default:
		os.Exit(2)
	}
}

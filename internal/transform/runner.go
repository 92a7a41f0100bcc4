package transform

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var commandContext = exec.CommandContext

const (
	defaultTailLines = 20
	killGrace        = 5 * time.Second
)

// Result reports how an external process ended.
type Result struct {
	ExitCode   int
	StderrTail []string
	Elapsed    time.Duration
}

// Runner executes an external command. Implementations must stop the process
// when ctx is done.
type Runner interface {
	Run(ctx context.Context, name string, args []string) (Result, error)
}

// ExecRunner runs commands as local child processes. Each child leads its own
// process group so cancellation reaches any helpers ffmpeg spawns.
type ExecRunner struct {
	TailLines int
}

// Run starts name with args and waits for it. A non-zero exit yields an
// *exec.ExitError; ctx expiry kills the process group and yields ctx.Err().
func (r ExecRunner) Run(ctx context.Context, name string, args []string) (Result, error) {
	tailLines := r.TailLines
	if tailLines <= 0 {
		tailLines = defaultTailLines
	}
	stderr := newTailBuffer(tailLines)

	cmd := commandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return err
	}
	cmd.WaitDelay = killGrace

	start := time.Now()
	err := cmd.Run()
	result := Result{
		ExitCode:   -1,
		StderrTail: stderr.Lines(),
		Elapsed:    time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil && ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, err
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	mu      sync.Mutex
	n       int
	lines   []string
	partial strings.Builder
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range string(p) {
		switch c {
		case '\n', '\r':
			// ffmpeg redraws its progress line with bare carriage returns.
			b.flushLocked()
		default:
			b.partial.WriteRune(c)
		}
	}
	return len(p), nil
}

func (b *tailBuffer) flushLocked() {
	line := strings.TrimSpace(b.partial.String())
	b.partial.Reset()
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if len(b.lines) > b.n {
		b.lines = b.lines[len(b.lines)-b.n:]
	}
}

// Lines returns the retained lines, including any unterminated trailing line.
func (b *tailBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
	return append([]string(nil), b.lines...)
}

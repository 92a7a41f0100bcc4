package ffprobe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio"},
			{CodecType: "video", Width: 640, Height: 360, Duration: "12.5"},
		},
		Format: Format{Duration: "12.48", Size: "1000"},
	}
	if got := result.Resolution(); got != "640x360" {
		t.Fatalf("unexpected resolution: %q", got)
	}
	if result.DurationSeconds() != 12.48 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "7"}},
		Format:  Format{Duration: "bad", Size: "-1"},
	}
	if result.DurationSeconds() != 7 {
		t.Fatalf("expected fallback to stream duration, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.Resolution() != "" {
		t.Fatalf("expected empty resolution without dimensions, got %q", result.Resolution())
	}
}

func TestInspectDecodesOutput(t *testing.T) {
	stubCommand(t, "ok")
	result, err := Prober{Binary: "ffprobe"}.Inspect(context.Background(), "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.Resolution() != "1280x720" || result.DurationSeconds() != 3.5 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestInspectReportsFailure(t *testing.T) {
	stubCommand(t, "fail")
	if _, err := Inspect(context.Background(), "", "/tmp/missing.mp4"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Inspect(context.Background(), "ffprobe", " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func stubCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFPROBE_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFPROBE_HELPER_MODE") {
	case "ok":
		fmt.Println(`{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":1280,"height":720}],"format":{"duration":"3.5","size":"2048"}}`)
		os.Exit(0)
	default:
		fmt.Fprintln(os.Stderr, "No such file or directory")
		os.Exit(1)
	}
}

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"burnin/internal/api"
	"burnin/internal/metadata"
	"burnin/internal/testsupport"
)

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Config file present: yes")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[storage]")
	requireContains(t, out, env.cfg.Storage.LocalDir)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("very-secret"))

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "<redacted>")
}

func TestVideosListShowDelete(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"videos", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("videos list: %v", err)
	}
	requireContains(t, out, "No videos found")

	saved := seedRecord(t, env.cfg, "job_0000aaaa", metadata.StatusSaved)
	processing := seedRecord(t, env.cfg, "job_0000bbbb", metadata.StatusProcessing)

	out, _, err = runCLI(t, []string{"videos", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("videos list: %v", err)
	}
	requireContains(t, out, "job_0000aaaa")
	requireContains(t, out, "job_0000bbbb")
	requireContains(t, out, "3.0 MiB")

	out, _, err = runCLI(t, []string{"videos", "list", "--status", "saved", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("videos list --json: %v", err)
	}
	var list api.VideoListResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count != 1 || list.Items[0].JobID != "job_0000aaaa" {
		t.Fatalf("unexpected filtered list: %+v", list)
	}

	out, _, err = runCLI(t, []string{"videos", "show", saved.ID}, env.configPath)
	if err != nil {
		t.Fatalf("videos show: %v", err)
	}
	requireContains(t, out, "Saved")
	requireContains(t, out, "640x360")
	requireContains(t, out, saved.StreamURL)

	if _, _, err := runCLI(t, []string{"videos", "show", "missing"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown video")
	}

	_, stderr, err := runCLI(t, []string{"videos", "delete", processing.ID}, env.configPath)
	if err == nil {
		t.Fatal("expected processing record delete to fail")
	}
	requireContains(t, stderr, processing.ID)

	out, _, err = runCLI(t, []string{"videos", "delete", saved.ID}, env.configPath)
	if err != nil {
		t.Fatalf("videos delete: %v", err)
	}
	requireContains(t, out, "Deleted "+saved.ID)

	out, _, err = runCLI(t, []string{"videos", "list", "--status", "saved"}, env.configPath)
	if err != nil {
		t.Fatalf("videos list: %v", err)
	}
	requireContains(t, out, "No videos found")
}

func TestSubmitRequiresSubtitles(t *testing.T) {
	env := setupCLITestEnv(t)
	video := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, video, 64)

	_, _, err := runCLI(t, []string{"submit", video}, env.configPath)
	if err == nil {
		t.Fatal("expected submit without subtitles to fail")
	}
	requireContains(t, err.Error(), "--srt")
}

func TestSubmitRecordsValidationFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	video := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, video, 64)
	srt := filepath.Join(t.TempDir(), "subs.srt")
	if err := os.WriteFile(srt, []byte(testsupport.SampleSRT), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}

	out, _, err := runCLI(t, []string{"submit", video, "--srt", srt, "--resolution", "4k", "--json"}, env.configPath)
	if err == nil {
		t.Fatal("expected invalid resolution to fail")
	}
	var env2 api.ErrorEnvelope
	if err := json.Unmarshal([]byte(out), &env2); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, out)
	}
	if env2.Error.Code != "invalid_resolution" {
		t.Fatalf("expected invalid_resolution, got %q", env2.Error.Code)
	}
	if env2.Video == nil || env2.Video.Status != "failed" {
		t.Fatalf("expected failed record in envelope, got %+v", env2.Video)
	}
}

func TestCheckReportsBinaries(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "Artifact store")
}

func TestCheckFailsWithoutFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Transform.FFmpegBinary = filepath.Join(t.TempDir(), "no-ffmpeg")
	data, err := env.cfg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(env.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatal("expected check to fail without ffmpeg")
	}
	requireContains(t, out, "[ERROR]")
}

func TestTestNotify(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify disabled: %v", err)
	}
	requireContains(t, out, "Notifications disabled")

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	env.cfg.Notifications.NtfyTopic = srv.URL + "/burnin"
	data, err := env.cfg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(env.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err = runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if hits.Load() != 1 {
		t.Fatalf("expected one ntfy request, got %d", hits.Load())
	}
}

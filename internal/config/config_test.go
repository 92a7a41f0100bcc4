package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"burnin/internal/config"
)

func clearStorageEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_REGION", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "BURNIN_API_TOKEN"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearStorageEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantScratch := filepath.Join(tempHome, ".local", "share", "burnin", "scratch")
	if cfg.Paths.ScratchDir != wantScratch {
		t.Fatalf("unexpected scratch dir: got %q want %q", cfg.Paths.ScratchDir, wantScratch)
	}
	if cfg.Server.Bind != "127.0.0.1:8005" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if cfg.Storage.Backend != config.BackendLocal {
		t.Fatalf("expected local backend by default, got %q", cfg.Storage.Backend)
	}
	if cfg.Transform.Preset != "medium" || cfg.Transform.Codec != "libx264" {
		t.Fatalf("unexpected transform defaults: %+v", cfg.Transform)
	}
	if cfg.Streaming.ChunkSize != 1024*1024 {
		t.Fatalf("unexpected chunk size: %d", cfg.Streaming.ChunkSize)
	}
	if cfg.MetadataPath() != filepath.Join(tempHome, ".local", "share", "burnin", "burnin.db") {
		t.Fatalf("unexpected metadata path: %q", cfg.MetadataPath())
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	clearStorageEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"server": map[string]any{
			"bind":       "0.0.0.0:9000",
			"public_url": "https://videos.example.com/",
		},
		"limits": map[string]any{
			"allowed_extensions": []string{"MP4", ".webm", "mp4"},
		},
		"transform": map[string]any{
			"preset":          "Fast",
			"max_concurrent":  0,
			"default_quality": 30,
		},
		"storage": map[string]any{
			"backend": "S3",
			"bucket":  "final-videos",
			"prefix":  "/out",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Server.PublicURL != "https://videos.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Server.PublicURL)
	}
	if got := strings.Join(cfg.Limits.AllowedExtensions, ","); got != ".mp4,.webm" {
		t.Fatalf("unexpected extensions: %q", got)
	}
	if cfg.Transform.Preset != "fast" {
		t.Fatalf("expected lowercased preset, got %q", cfg.Transform.Preset)
	}
	if cfg.Transform.MaxConcurrent != 1 {
		t.Fatalf("expected max_concurrent floor of 1, got %d", cfg.Transform.MaxConcurrent)
	}
	if cfg.Storage.Backend != config.BackendS3 || cfg.Storage.Prefix != "out/" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if got := cfg.StreamURL("job_1_final.mp4"); got != "https://videos.example.com/api/video_storage/job_1_final.mp4" {
		t.Fatalf("unexpected stream url: %q", got)
	}
}

func TestNormalizeUsesEnvironmentCredentials(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MINIO_ACCESS_KEY", "minio")
	t.Setenv("MINIO_SECRET_KEY", "minio-secret")
	t.Setenv("BURNIN_API_TOKEN", " token ")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	body := "[storage]\nbackend = \"minio\"\nbucket = \"videos\"\nendpoint = \"localhost:9000\"\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.AccessKeyID != "minio" || cfg.Storage.SecretAccessKey != "minio-secret" {
		t.Fatalf("expected minio credentials from env, got %q/%q", cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey)
	}
	if cfg.Server.APIToken != "token" {
		t.Fatalf("expected api token from env, got %q", cfg.Server.APIToken)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"preset", func(c *config.Config) { c.Transform.Preset = "turbo" }, "transform.preset"},
		{"quality", func(c *config.Config) { c.Transform.DefaultQuality = 52 }, "default_quality"},
		{"resolution", func(c *config.Config) { c.Transform.DefaultResolution = "4k" }, "default_resolution"},
		{"chunk", func(c *config.Config) { c.Streaming.ChunkSize = 1024 }, "streaming.chunk_size"},
		{"timeout", func(c *config.Config) { c.Timeouts.TransformSeconds = 0 }, "timeouts.transform_seconds"},
		{"upload", func(c *config.Config) { c.Limits.MaxUploadBytes = 0 }, "max_upload_bytes"},
		{"s3 bucket", func(c *config.Config) { c.Storage.Backend = config.BackendS3 }, "storage.bucket"},
		{"backend", func(c *config.Config) { c.Storage.Backend = "gcs" }, "storage.backend"},
		{"half credentials", func(c *config.Config) { c.Storage.AccessKeyID = "only" }, "must be set together"},
		{"public url", func(c *config.Config) { c.Server.PublicURL = "videos.local" }, "server.public_url"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/topic" }, "notifications.ntfy_topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestExtensionAllowed(t *testing.T) {
	cfg := config.Default()
	for name, want := range map[string]bool{
		"clip.mp4":  true,
		"CLIP.MKV":  true,
		"clip.webm": false,
		"clip":      false,
	} {
		if got := cfg.ExtensionAllowed(name); got != want {
			t.Fatalf("ExtensionAllowed(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCreateSampleLoads(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}

func TestEncodeRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Server.APIToken = "secret-token"
	cfg.Storage.SecretAccessKey = "secret-key"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(data), "secret-token") || strings.Contains(string(data), "secret-key") {
		t.Fatalf("expected secrets redacted, got:\n%s", data)
	}
}

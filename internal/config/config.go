package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP listener and access configuration.
type Server struct {
	Bind        string  `toml:"bind"`
	PublicURL   string  `toml:"public_url"`
	APIToken    string  `toml:"api_token"`
	SubmitRate  float64 `toml:"submit_rate"`
	SubmitBurst int     `toml:"submit_burst"`
}

// Paths contains scratch, data, and log directories.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
}

// Limits bounds what a job submission may contain.
type Limits struct {
	MaxUploadBytes    int64    `toml:"max_upload_bytes"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// Timeouts holds per-stage deadlines in seconds.
type Timeouts struct {
	FetchSeconds     int `toml:"fetch_seconds"`
	TransformSeconds int `toml:"transform_seconds"`
	StorageSeconds   int `toml:"storage_seconds"`
	MetadataSeconds  int `toml:"metadata_seconds"`
}

// Transform contains ffmpeg invocation settings.
type Transform struct {
	FFmpegBinary      string `toml:"ffmpeg_binary"`
	FFprobeBinary     string `toml:"ffprobe_binary"`
	Codec             string `toml:"codec"`
	Preset            string `toml:"preset"`
	AudioCodec        string `toml:"audio_codec"`
	AudioBitrate      string `toml:"audio_bitrate"`
	DefaultQuality    int    `toml:"default_quality"`
	DefaultResolution string `toml:"default_resolution"`
	MaxConcurrent     int    `toml:"max_concurrent"`
	// Probe controls whether the encoded output is inspected with ffprobe.
	Probe bool `toml:"probe"`
}

// Subtitles contains remote subtitle retrieval settings.
type Subtitles struct {
	MaxBytes  int64  `toml:"max_bytes"`
	UserAgent string `toml:"user_agent"`
}

// Streaming contains range-read settings.
type Streaming struct {
	ChunkSize int `toml:"chunk_size"`
}

// Storage selects and configures the artifact store backend.
type Storage struct {
	Backend           string `toml:"backend"` // s3, minio, or local
	Bucket            string `toml:"bucket"`
	Prefix            string `toml:"prefix"`
	Region            string `toml:"region"`
	Endpoint          string `toml:"endpoint"`
	Profile           string `toml:"profile"`
	AccessKeyID       string `toml:"access_key_id"`
	SecretAccessKey   string `toml:"secret_access_key"`
	ForcePathStyle    bool   `toml:"force_path_style"`
	UseSSL            bool   `toml:"use_ssl"`
	CreateBucket      bool   `toml:"create_bucket"`
	PresignTTLSeconds int    `toml:"presign_ttl_seconds"`
	LocalDir          string `toml:"local_dir"`
}

// Notifications configures ntfy job-outcome alerts.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for burnin.
//
// Configuration sections by subsystem:
//   - Server: listener, public URL, token, and submission rate
//   - Paths: scratch, data, and log directories
//   - Limits: upload size ceiling and extension allow-list
//   - Timeouts: per-stage deadlines
//   - Transform: ffmpeg binary, codec, preset, and concurrency
//   - Subtitles: remote subtitle fetch settings
//   - Streaming: chunk size for range responses
//   - Storage: artifact store backend and credentials
//   - Notifications: ntfy topic for job outcomes
//   - Logging: log format and level
type Config struct {
	Server    Server    `toml:"server"`
	Paths     Paths     `toml:"paths"`
	Limits    Limits    `toml:"limits"`
	Timeouts  Timeouts  `toml:"timeouts"`
	Transform Transform `toml:"transform"`
	Subtitles Subtitles `toml:"subtitles"`
	Streaming Streaming `toml:"streaming"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/burnin/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("burnin.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the service writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.ScratchDir, c.Paths.DataDir}
	if c.Paths.LogDir != "" {
		dirs = append(dirs, c.Paths.LogDir)
	}
	if c.Storage.Backend == BackendLocal {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MetadataPath returns the SQLite database location.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Paths.DataDir, "burnin.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "burnin.lock")
}

// FetchTimeout returns the subtitle fetch deadline.
func (c *Config) FetchTimeout() time.Duration {
	return seconds(c.Timeouts.FetchSeconds)
}

// TransformTimeout returns the ffmpeg deadline.
func (c *Config) TransformTimeout() time.Duration {
	return seconds(c.Timeouts.TransformSeconds)
}

// StorageTimeout returns the artifact store deadline.
func (c *Config) StorageTimeout() time.Duration {
	return seconds(c.Timeouts.StorageSeconds)
}

// MetadataTimeout returns the metadata write deadline.
func (c *Config) MetadataTimeout() time.Duration {
	return seconds(c.Timeouts.MetadataSeconds)
}

// PresignTTL returns the lifetime of presigned artifact URLs.
func (c *Config) PresignTTL() time.Duration {
	return seconds(c.Storage.PresignTTLSeconds)
}

// StreamURL builds the public streaming link for a stored artifact filename.
func (c *Config) StreamURL(filename string) string {
	return strings.TrimRight(c.Server.PublicURL, "/") + "/api/video_storage/" + filename
}

// ExtensionAllowed reports whether a filename carries an allowed extension.
func (c *Config) ExtensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	for _, allowed := range c.Limits.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	if redacted.Server.APIToken != "" {
		redacted.Server.APIToken = "<redacted>"
	}
	if redacted.Storage.SecretAccessKey != "" {
		redacted.Storage.SecretAccessKey = "<redacted>"
	}
	return toml.Marshal(redacted)
}

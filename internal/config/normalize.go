package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeLimits()
	c.normalizeTransform()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.PublicURL = strings.TrimRight(strings.TrimSpace(c.Server.PublicURL), "/")
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://" + c.Server.Bind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("BURNIN_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLimits() {
	if len(c.Limits.AllowedExtensions) == 0 {
		c.Limits.AllowedExtensions = append([]string(nil), defaultAllowedExtensions...)
		return
	}
	exts := make([]string, 0, len(c.Limits.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.Limits.AllowedExtensions))
	for _, ext := range c.Limits.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	c.Limits.AllowedExtensions = exts
}

func (c *Config) normalizeTransform() {
	c.Transform.FFmpegBinary = strings.TrimSpace(c.Transform.FFmpegBinary)
	if c.Transform.FFmpegBinary == "" {
		c.Transform.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transform.FFprobeBinary = strings.TrimSpace(c.Transform.FFprobeBinary)
	if c.Transform.FFprobeBinary == "" {
		c.Transform.FFprobeBinary = defaultFFprobeBinary
	}
	c.Transform.Codec = strings.TrimSpace(c.Transform.Codec)
	if c.Transform.Codec == "" {
		c.Transform.Codec = defaultCodec
	}
	c.Transform.Preset = strings.ToLower(strings.TrimSpace(c.Transform.Preset))
	if c.Transform.Preset == "" {
		c.Transform.Preset = defaultPreset
	}
	c.Transform.AudioCodec = strings.TrimSpace(c.Transform.AudioCodec)
	if c.Transform.AudioCodec == "" {
		c.Transform.AudioCodec = defaultAudioCodec
	}
	c.Transform.AudioBitrate = strings.TrimSpace(c.Transform.AudioBitrate)
	if c.Transform.AudioBitrate == "" {
		c.Transform.AudioBitrate = defaultAudioBitrate
	}
	c.Transform.DefaultResolution = strings.ToLower(strings.TrimSpace(c.Transform.DefaultResolution))
	if c.Transform.DefaultResolution == "" {
		c.Transform.DefaultResolution = defaultResolution
	}
	if c.Transform.MaxConcurrent <= 0 {
		c.Transform.MaxConcurrent = 1
	}
	c.Subtitles.UserAgent = strings.TrimSpace(c.Subtitles.UserAgent)
	if c.Subtitles.UserAgent == "" {
		c.Subtitles.UserAgent = defaultSubtitleUserAgent
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultBackend
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Prefix = strings.TrimLeft(strings.TrimSpace(c.Storage.Prefix), "/")
	if c.Storage.Prefix != "" && !strings.HasSuffix(c.Storage.Prefix, "/") {
		c.Storage.Prefix += "/"
	}
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok && strings.TrimSpace(value) != "" {
			c.Storage.Region = strings.TrimSpace(value)
		} else {
			c.Storage.Region = defaultRegion
		}
	}

	accessEnv, secretEnv := "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"
	if c.Storage.Backend == BackendMinIO {
		accessEnv, secretEnv = "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY"
	}
	c.Storage.AccessKeyID = strings.TrimSpace(c.Storage.AccessKeyID)
	if c.Storage.AccessKeyID == "" {
		if value, ok := os.LookupEnv(accessEnv); ok {
			c.Storage.AccessKeyID = strings.TrimSpace(value)
		}
	}
	c.Storage.SecretAccessKey = strings.TrimSpace(c.Storage.SecretAccessKey)
	if c.Storage.SecretAccessKey == "" {
		if value, ok := os.LookupEnv(secretEnv); ok {
			c.Storage.SecretAccessKey = strings.TrimSpace(value)
		}
	}

	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = defaultLocalDir
	}
	var err error
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

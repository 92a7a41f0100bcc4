package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"timeouts.fetch_seconds":      c.Timeouts.FetchSeconds,
		"timeouts.transform_seconds":  c.Timeouts.TransformSeconds,
		"timeouts.storage_seconds":    c.Timeouts.StorageSeconds,
		"timeouts.metadata_seconds":   c.Timeouts.MetadataSeconds,
		"storage.presign_ttl_seconds": c.Storage.PresignTTLSeconds,
	}); err != nil {
		return err
	}
	if err := c.validateTransform(); err != nil {
		return err
	}
	if c.Streaming.ChunkSize < minChunkSize {
		return fmt.Errorf("streaming.chunk_size must be at least %d bytes", minChunkSize)
	}
	if c.Subtitles.MaxBytes <= 0 {
		return errors.New("subtitles.max_bytes must be positive")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return c.validateStorage()
}

func (c *Config) validateServer() error {
	if !strings.HasPrefix(c.Server.PublicURL, "http://") && !strings.HasPrefix(c.Server.PublicURL, "https://") {
		return fmt.Errorf("server.public_url must be an http(s) URL, got %q", c.Server.PublicURL)
	}
	if c.Server.SubmitRate < 0 {
		return errors.New("server.submit_rate must not be negative")
	}
	if c.Server.SubmitRate > 0 && c.Server.SubmitBurst <= 0 {
		return errors.New("server.submit_burst must be positive when server.submit_rate is set")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxUploadBytes <= 0 {
		return errors.New("limits.max_upload_bytes must be positive")
	}
	if len(c.Limits.AllowedExtensions) == 0 {
		return errors.New("limits.allowed_extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateTransform() error {
	if !slices.Contains(ValidPresets, c.Transform.Preset) {
		return fmt.Errorf("transform.preset %q is not one of %s", c.Transform.Preset, strings.Join(ValidPresets, ", "))
	}
	if c.Transform.DefaultQuality < 0 || c.Transform.DefaultQuality > 51 {
		return errors.New("transform.default_quality must be between 0 and 51")
	}
	switch c.Transform.DefaultResolution {
	case "360p", "480p", "720p", "1080p":
	default:
		return fmt.Errorf("transform.default_resolution %q is not supported", c.Transform.DefaultResolution)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be set for the local backend")
		}
	case BackendS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set for the s3 backend")
		}
	case BackendMinIO:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set for the minio backend")
		}
		if c.Storage.Endpoint == "" {
			return errors.New("storage.endpoint must be set for the minio backend")
		}
		if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			return errors.New("storage.access_key_id and storage.secret_access_key are required for the minio backend (or set MINIO_ACCESS_KEY/MINIO_SECRET_KEY)")
		}
	default:
		return fmt.Errorf("storage.backend %q must be one of s3, minio, local", c.Storage.Backend)
	}
	if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
		return errors.New("storage.access_key_id and storage.secret_access_key must be set together")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

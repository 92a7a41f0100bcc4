// Package config loads, normalizes, and validates burnin configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// AWS_ACCESS_KEY_ID and BURNIN_API_TOKEN. The Config type centralizes every
// knob the server and CLI need: stage timeouts, upload limits, ffmpeg
// settings, and the artifact store backend.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

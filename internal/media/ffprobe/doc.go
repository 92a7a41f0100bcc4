// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect (or the Prober value type) runs ffprobe and returns a Result whose
// helpers report the container duration, size, and primary video resolution
// of an encoded artifact.
package ffprobe

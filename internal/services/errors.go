package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidResolution   = errors.New("invalid resolution")
	ErrSubtitleUnavailable = errors.New("subtitle unavailable")
	ErrTranscodeTimeout    = errors.New("transcode timeout")
	ErrTranscodeFailed     = errors.New("transcode failed")
	ErrStorageWriteFailed  = errors.New("storage write failed")
	ErrMetadataWriteFailed = errors.New("metadata write failed")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	ErrNotFound            = errors.New("not found")
	ErrCancelled           = errors.New("cancelled")
)

// Kind is the stable, serializable name of an error category. It is stored on
// failed job records and returned in API error envelopes.
type Kind string

const (
	KindNone                Kind = ""
	KindInvalidInput        Kind = "invalid_input"
	KindInvalidResolution   Kind = "invalid_resolution"
	KindSubtitleUnavailable Kind = "subtitle_unavailable"
	KindTranscodeTimeout    Kind = "transcode_timeout"
	KindTranscodeFailed     Kind = "transcode_failed"
	KindStorageWriteFailed  Kind = "storage_write_failed"
	KindMetadataWriteFailed Kind = "metadata_write_failed"
	KindRangeNotSatisfiable Kind = "range_not_satisfiable"
	KindNotFound            Kind = "not_found"
	KindCancelled           Kind = "cancelled"
	KindInternal            Kind = "internal"
)

// ordered so a more specific marker wins when several are wrapped together.
var kindMarkers = []struct {
	marker error
	kind   Kind
}{
	{ErrCancelled, KindCancelled},
	{ErrInvalidResolution, KindInvalidResolution},
	{ErrInvalidInput, KindInvalidInput},
	{ErrSubtitleUnavailable, KindSubtitleUnavailable},
	{ErrTranscodeTimeout, KindTranscodeTimeout},
	{ErrTranscodeFailed, KindTranscodeFailed},
	{ErrStorageWriteFailed, KindStorageWriteFailed},
	{ErrMetadataWriteFailed, KindMetadataWriteFailed},
	{ErrRangeNotSatisfiable, KindRangeNotSatisfiable},
	{ErrNotFound, KindNotFound},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		if err != nil {
			return fmt.Errorf("%s: %w", detail, err)
		}
		return errors.New(detail)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err against the sentinel markers. Bare context
// cancellation maps to KindCancelled; unmarked errors map to KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, km := range kindMarkers {
		if errors.Is(err, km.marker) {
			return km.kind
		}
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindInternal
}

// Marker returns the sentinel error for a kind, or nil for KindNone and
// KindInternal.
func (k Kind) Marker() error {
	for _, km := range kindMarkers {
		if km.kind == k {
			return km.marker
		}
	}
	return nil
}

func (k Kind) String() string {
	return string(k)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

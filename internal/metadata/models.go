package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a job record.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusSaved      Status = "saved"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusProcessing, StatusSaved, StatusFailed}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a user-supplied string into a Status.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// Terminal reports whether no further status change is accepted.
func (s Status) Terminal() bool {
	return s == StatusSaved || s == StatusFailed
}

func (s Status) String() string { return string(s) }

// Record describes one aggregation job and its outcome.
type Record struct {
	ID                  string    `json:"video_id"`
	JobID               string    `json:"job_id"`
	SourceVideoID       string    `json:"source_video_id,omitempty"`
	Status              Status    `json:"status"`
	OriginalFilename    string    `json:"original_filename"`
	FinalFilename       string    `json:"final_filename,omitempty"`
	RequestedResolution string    `json:"requested_resolution"`
	Resolution          string    `json:"resolution,omitempty"`
	Quality             int       `json:"quality"`
	Duration            float64   `json:"duration,omitempty"`
	FileSize            int64     `json:"file_size,omitempty"`
	StorageKey          string    `json:"storage_key,omitempty"`
	StorageLocation     string    `json:"storage_location,omitempty"`
	StreamURL           string    `json:"stream_url,omitempty"`
	Error               string    `json:"error,omitempty"`
	ErrorKind           string    `json:"error_kind,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Patch lists the fields an update may change. Nil fields are left alone.
type Patch struct {
	// Descriptive fields, editable at any time.
	OriginalFilename *string `json:"original_filename,omitempty"`
	SourceVideoID    *string `json:"source_video_id,omitempty"`

	// Lifecycle fields, rejected once the record is terminal.
	Status          *Status  `json:"-"`
	FinalFilename   *string  `json:"-"`
	Resolution      *string  `json:"-"`
	Duration        *float64 `json:"-"`
	FileSize        *int64   `json:"-"`
	StorageKey      *string  `json:"-"`
	StorageLocation *string  `json:"-"`
	StreamURL       *string  `json:"-"`
	Error           *string  `json:"-"`
	ErrorKind       *string  `json:"-"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.OriginalFilename == nil && p.SourceVideoID == nil && !p.touchesLifecycle()
}

func (p Patch) touchesLifecycle() bool {
	return p.Status != nil || p.FinalFilename != nil || p.Resolution != nil ||
		p.Duration != nil || p.FileSize != nil || p.StorageKey != nil ||
		p.StorageLocation != nil || p.StreamURL != nil || p.Error != nil ||
		p.ErrorKind != nil
}

func (p Patch) apply(rec *Record) {
	setString(&rec.OriginalFilename, p.OriginalFilename)
	setString(&rec.SourceVideoID, p.SourceVideoID)
	if p.Status != nil {
		rec.Status = *p.Status
	}
	setString(&rec.FinalFilename, p.FinalFilename)
	setString(&rec.Resolution, p.Resolution)
	if p.Duration != nil {
		rec.Duration = *p.Duration
	}
	if p.FileSize != nil {
		rec.FileSize = *p.FileSize
	}
	setString(&rec.StorageKey, p.StorageKey)
	setString(&rec.StorageLocation, p.StorageLocation)
	setString(&rec.StreamURL, p.StreamURL)
	setString(&rec.Error, p.Error)
	setString(&rec.ErrorKind, p.ErrorKind)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// checkTransition validates a patch against the current record.
func checkTransition(current *Record, patch Patch) error {
	if current.Status.Terminal() && patch.touchesLifecycle() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, current.ID, current.Status)
	}
	next := *current
	patch.apply(&next)
	switch next.Status {
	case StatusProcessing:
		return nil
	case StatusSaved:
		if strings.TrimSpace(next.StorageLocation) == "" {
			return fmt.Errorf("%w: saved record requires a storage location", ErrInvalidTransition)
		}
		if next.Error != "" {
			return fmt.Errorf("%w: saved record cannot carry an error", ErrInvalidTransition)
		}
	case StatusFailed:
		if next.StorageLocation != "" {
			return fmt.Errorf("%w: failed record cannot carry a storage location", ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next.Status)
	}
	return nil
}

// Filter narrows List results.
type Filter struct {
	Status Status
}

// Page bounds List results.
type Page struct {
	Skip  int
	Limit int
}

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 500
)

// Normalize applies the default and maximum page sizes.
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	return p
}

// Repository is the metadata capability the orchestrator and API depend on.
type Repository interface {
	Create(ctx context.Context, rec Record) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	GetByJobID(ctx context.Context, jobID string) (*Record, error)
	GetBySource(ctx context.Context, sourceVideoID string) ([]*Record, error)
	GetByFilename(ctx context.Context, filename string) ([]*Record, error)
	List(ctx context.Context, filter Filter, page Page) ([]*Record, error)
	Update(ctx context.Context, id string, patch Patch) (*Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	FailProcessing(ctx context.Context, reason, kind string) ([]*Record, error)
	Ping(ctx context.Context) error
}

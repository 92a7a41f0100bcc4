package api

import (
	"time"

	"burnin/internal/metadata"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Video describes a job record in a transport-friendly format.
type Video struct {
	ID                  string  `json:"video_id"`
	JobID               string  `json:"job_id"`
	SourceVideoID       string  `json:"source_video_id,omitempty"`
	Status              string  `json:"status"`
	OriginalFilename    string  `json:"original_filename"`
	FinalFilename       string  `json:"final_filename,omitempty"`
	RequestedResolution string  `json:"requested_resolution"`
	Resolution          string  `json:"resolution,omitempty"`
	Quality             int     `json:"quality"`
	Duration            float64 `json:"duration,omitempty"`
	FileSize            int64   `json:"file_size,omitempty"`
	StorageLocation     string  `json:"storage_location,omitempty"`
	StreamURL           string  `json:"stream_url,omitempty"`
	Error               string  `json:"error,omitempty"`
	ErrorKind           string  `json:"error_kind,omitempty"`
	CreatedAt           string  `json:"created_at,omitempty"`
	UpdatedAt           string  `json:"updated_at,omitempty"`
}

// VideoListResponse wraps a page of videos.
type VideoListResponse struct {
	Count int     `json:"count"`
	Items []Video `json:"items"`
	Skip  int     `json:"skip"`
	Limit int     `json:"limit"`
}

// VideoResponse wraps a single video.
type VideoResponse struct {
	Video Video `json:"video"`
}

// ProcessResponse is returned when a submitted job is saved.
type ProcessResponse struct {
	Status        string          `json:"status"`
	JobID         string          `json:"job_id"`
	VideoID       string          `json:"video_id"`
	SourceVideoID string          `json:"source_video_id,omitempty"`
	Message       string          `json:"message"`
	StreamingURL  string          `json:"streaming_url"`
	Metadata      ProcessMetadata `json:"metadata"`
}

// ProcessMetadata summarizes the encoded artifact.
type ProcessMetadata struct {
	OriginalFilename string  `json:"original_filename"`
	FinalFilename    string  `json:"final_filename"`
	Resolution       string  `json:"resolution"`
	Duration         float64 `json:"duration"`
	FileSize         int64   `json:"file_size"`
}

// StatusResponse acknowledges an operation with no other payload.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// VideoPatch is the JSON body accepted by PATCH /api/videos/{id}. Only
// descriptive fields may be edited.
type VideoPatch struct {
	OriginalFilename *string `json:"original_filename,omitempty"`
	SourceVideoID    *string `json:"source_video_id,omitempty"`
}

// PresignResponse carries a time-limited artifact URL.
type PresignResponse struct {
	VideoID   string `json:"video_id"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// ErrorBody is the inner object of an error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope is returned for every failed request. Job submissions that
// ran to a failed record also carry the record.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
	Video *Video    `json:"video,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// ComponentStatus reports reachability of a backing service.
type ComponentStatus struct {
	Name      string `json:"name"`
	Backend   string `json:"backend,omitempty"`
	Reachable bool   `json:"reachable"`
	Detail    string `json:"detail,omitempty"`
}

// HealthResponse aggregates runtime health for API consumers.
type HealthResponse struct {
	Healthy        bool               `json:"healthy"`
	Dependencies   []DependencyStatus `json:"dependencies"`
	Components     []ComponentStatus  `json:"components"`
	ActiveJobs     int                `json:"active_jobs"`
	TranscodeSlots int                `json:"transcode_slots"`
	SlotsInUse     int                `json:"slots_in_use"`
}

// ServiceInfo is served at the root path.
type ServiceInfo struct {
	Service     string   `json:"service"`
	Version     string   `json:"version"`
	Resolutions []string `json:"resolutions"`
	Endpoints   []string `json:"endpoints"`
}

// FromRecord converts a metadata record into its wire form.
func FromRecord(rec *metadata.Record) Video {
	if rec == nil {
		return Video{}
	}
	return Video{
		ID:                  rec.ID,
		JobID:               rec.JobID,
		SourceVideoID:       rec.SourceVideoID,
		Status:              rec.Status.String(),
		OriginalFilename:    rec.OriginalFilename,
		FinalFilename:       rec.FinalFilename,
		RequestedResolution: rec.RequestedResolution,
		Resolution:          rec.Resolution,
		Quality:             rec.Quality,
		Duration:            rec.Duration,
		FileSize:            rec.FileSize,
		StorageLocation:     rec.StorageLocation,
		StreamURL:           rec.StreamURL,
		Error:               rec.Error,
		ErrorKind:           rec.ErrorKind,
		CreatedAt:           formatTimestamp(rec.CreatedAt),
		UpdatedAt:           formatTimestamp(rec.UpdatedAt),
	}
}

// NewProcessResponse summarizes a saved record.
func NewProcessResponse(rec *metadata.Record) ProcessResponse {
	return ProcessResponse{
		Status:        "success",
		JobID:         rec.JobID,
		VideoID:       rec.ID,
		SourceVideoID: rec.SourceVideoID,
		Message:       "Video processed and stored successfully",
		StreamingURL:  rec.StreamURL,
		Metadata: ProcessMetadata{
			OriginalFilename: rec.OriginalFilename,
			FinalFilename:    rec.FinalFilename,
			Resolution:       rec.Resolution,
			Duration:         rec.Duration,
			FileSize:         rec.FileSize,
		},
	}
}

// FromRecords converts a slice of records, skipping nil entries.
func FromRecords(recs []*metadata.Record) []Video {
	out := make([]Video, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		out = append(out, FromRecord(rec))
	}
	return out
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

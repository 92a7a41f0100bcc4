package daemon

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"burnin/internal/api"
	"burnin/internal/jobs"
	"burnin/internal/services"
	"burnin/internal/subtitles"
)

const (
	// multipartMemory is held in memory before form files spill to disk.
	multipartMemory = 32 << 20
	// multipartOverhead covers boundaries, headers, and small text fields.
	multipartOverhead = 1 << 20
)

// handleProcess runs one job synchronously and answers with its outcome.
func (s *apiServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	if limit := s.bodyLimit(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeErr(w, formError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := jobs.Request{
		Size:          -1,
		Resolution:    r.FormValue("resolution"),
		SourceVideoID: r.FormValue("source_video_id"),
	}

	video, header, err := r.FormFile("video")
	switch {
	case err == nil:
		defer video.Close()
		req.Video = video
		req.OriginalFilename = header.Filename
		req.Size = header.Size
	case !errors.Is(err, http.ErrMissingFile):
		s.writeErr(w, formError(err))
		return
	}

	quality, err := parseQuality(r.FormValue("crf_value"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	req.Quality = quality

	src, err := s.subtitleSource(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	req.Subtitles = src

	rec, err := s.daemon.orch.Submit(r.Context(), req)
	if err != nil {
		env := api.NewErrorEnvelope(err)
		if rec != nil {
			video := api.FromRecord(rec)
			env.Video = &video
		}
		s.writeJSON(w, api.HTTPStatus(err), env)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewProcessResponse(rec))
}

func (s *apiServer) bodyLimit() int64 {
	if s.cfg.Limits.MaxUploadBytes <= 0 {
		return 0
	}
	return s.cfg.Limits.MaxUploadBytes + s.cfg.Subtitles.MaxBytes + multipartOverhead
}

// subtitleSource prefers an uploaded srt_file over srt_url.
func (s *apiServer) subtitleSource(r *http.Request) (subtitles.Source, error) {
	src := subtitles.Source{URL: strings.TrimSpace(r.FormValue("srt_url"))}
	file, _, err := r.FormFile("srt_file")
	if errors.Is(err, http.ErrMissingFile) {
		return src, nil
	}
	if err != nil {
		return src, formError(err)
	}
	defer file.Close()

	reader := io.Reader(file)
	if limit := s.cfg.Subtitles.MaxBytes; limit > 0 {
		reader = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return src, services.Wrap(services.ErrSubtitleUnavailable, "subtitles", "read upload", "", err)
	}
	src.Inline = data
	return src, nil
}

func parseQuality(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	q, err := strconv.Atoi(value)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, "validate", "quality", "crf_value must be an integer", err)
	}
	return &q, nil
}

func formError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return services.Wrap(services.ErrInvalidInput, "upload", "read form", "request body too large", err)
	}
	return services.Wrap(services.ErrInvalidInput, "upload", "read form", "expected multipart/form-data", err)
}

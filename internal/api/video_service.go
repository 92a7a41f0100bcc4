package api

import (
	"context"
	"strings"

	"burnin/internal/metadata"
	"burnin/internal/services"
)

// VideoStore abstracts the metadata operations the video routes need.
type VideoStore interface {
	Get(ctx context.Context, id string) (*metadata.Record, error)
	GetBySource(ctx context.Context, sourceVideoID string) ([]*metadata.Record, error)
	GetByFilename(ctx context.Context, filename string) ([]*metadata.Record, error)
	List(ctx context.Context, filter metadata.Filter, page metadata.Page) ([]*metadata.Record, error)
	Update(ctx context.Context, id string, patch metadata.Patch) (*metadata.Record, error)
}

// VideoService exposes video record operations returning API DTOs.
type VideoService struct {
	store VideoStore
}

// NewVideoService constructs a VideoService around the provided store.
func NewVideoService(store VideoStore) *VideoService {
	if store == nil {
		return nil
	}
	return &VideoService{store: store}
}

// ListQuery carries the raw list filter values from a request.
type ListQuery struct {
	Status string
	Skip   int
	Limit  int
}

// List returns a page of videos, newest first.
func (s *VideoService) List(ctx context.Context, q ListQuery) (VideoListResponse, error) {
	page := metadata.Page{Skip: q.Skip, Limit: q.Limit}.Normalize()
	resp := VideoListResponse{Items: []Video{}, Skip: page.Skip, Limit: page.Limit}
	if s == nil || s.store == nil {
		return resp, nil
	}
	var filter metadata.Filter
	if value := strings.TrimSpace(q.Status); value != "" {
		status, err := metadata.ParseStatus(value)
		if err != nil {
			return resp, services.Wrap(services.ErrInvalidInput, "videos", "list", "", err)
		}
		filter.Status = status
	}
	recs, err := s.store.List(ctx, filter, page)
	if err != nil {
		return resp, err
	}
	resp.Items = FromRecords(recs)
	resp.Count = len(resp.Items)
	return resp, nil
}

// Describe fetches a single video.
func (s *VideoService) Describe(ctx context.Context, id string) (*Video, error) {
	if s == nil || s.store == nil {
		return nil, metadata.ErrNotFound
	}
	rec, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	video := FromRecord(rec)
	return &video, nil
}

// BySource lists videos produced from an upstream source id, newest first.
// No match is reported as not found.
func (s *VideoService) BySource(ctx context.Context, sourceID string) ([]Video, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "videos", "by source", "source id is required", nil)
	}
	if s == nil || s.store == nil {
		return []Video{}, nil
	}
	recs, err := s.store.GetBySource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "videos", "by source", "no video for source "+sourceID, nil)
	}
	return FromRecords(recs), nil
}

// ByFilename lists videos whose original or final filename matches.
func (s *VideoService) ByFilename(ctx context.Context, filename string) ([]Video, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "videos", "by filename", "filename is required", nil)
	}
	if s == nil || s.store == nil {
		return []Video{}, nil
	}
	recs, err := s.store.GetByFilename(ctx, filename)
	if err != nil {
		return nil, err
	}
	return FromRecords(recs), nil
}

// Edit applies a descriptive patch.
func (s *VideoService) Edit(ctx context.Context, id string, patch VideoPatch) (*Video, error) {
	if patch.OriginalFilename == nil && patch.SourceVideoID == nil {
		return nil, services.Wrap(services.ErrInvalidInput, "videos", "edit", "no editable fields supplied", nil)
	}
	if patch.OriginalFilename != nil && strings.TrimSpace(*patch.OriginalFilename) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "videos", "edit", "original_filename cannot be blank", nil)
	}
	if s == nil || s.store == nil {
		return nil, metadata.ErrNotFound
	}
	rec, err := s.store.Update(ctx, strings.TrimSpace(id), metadata.Patch{
		OriginalFilename: patch.OriginalFilename,
		SourceVideoID:    patch.SourceVideoID,
	})
	if err != nil {
		return nil, err
	}
	video := FromRecord(rec)
	return &video, nil
}

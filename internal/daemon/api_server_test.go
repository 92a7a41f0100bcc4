package daemon

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burnin/internal/api"
	"burnin/internal/deps"
	"burnin/internal/metadata"
	"burnin/internal/testsupport"
)

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) (*httptest.Server, *Daemon, *metadata.Store) {
	t.Helper()
	d, _, repo := newTestDaemon(t, opts...)
	srv := httptest.NewServer(d.api.routes())
	t.Cleanup(srv.Close)
	return srv, d, repo
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return do(t, req)
}

func submit(t *testing.T, srv *httptest.Server, fields map[string]string) api.ProcessResponse {
	t.Helper()
	resp := do(t, multipartRequest(t, srv.URL+"/api/process-video/", fields, videoUpload("movie.mp4")...))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[api.ProcessResponse](t, resp)
}

func seed(t *testing.T, repo *metadata.Store, jobID string, status metadata.Status) *metadata.Record {
	t.Helper()
	rec := metadata.Record{
		JobID:               jobID,
		Status:              status,
		OriginalFilename:    jobID + ".mp4",
		RequestedResolution: "720p",
		Quality:             23,
	}
	switch status {
	case metadata.StatusSaved:
		rec.FinalFilename = jobID + "_final.mp4"
		rec.StorageKey = rec.FinalFilename
		rec.StorageLocation = "local://" + rec.FinalFilename
	case metadata.StatusFailed:
		rec.Error = "transcode failed"
		rec.ErrorKind = "transcode_failed"
	}
	created, err := repo.Create(t.Context(), rec)
	require.NoError(t, err)
	return created
}

func TestProcessVideoLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	processed := submit(t, srv, map[string]string{
		"resolution":      "480p",
		"crf_value":       "20",
		"source_video_id": "src-42",
	})
	assert.Equal(t, "success", processed.Status)
	assert.True(t, strings.HasPrefix(processed.JobID, "job_"))
	assert.Equal(t, "src-42", processed.SourceVideoID)
	assert.Equal(t, "movie.mp4", processed.Metadata.OriginalFilename)
	assert.Equal(t, processed.JobID+"_final.mp4", processed.Metadata.FinalFilename)
	assert.Equal(t, "854x480", processed.Metadata.Resolution)
	assert.EqualValues(t, 2048, processed.Metadata.FileSize)
	assert.Contains(t, processed.StreamingURL, "/api/video_storage/"+processed.Metadata.FinalFilename)

	list := decode[api.VideoListResponse](t, get(t, srv.URL+"/api/videos/"))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, processed.VideoID, list.Items[0].ID)
	assert.Equal(t, "saved", list.Items[0].Status)
	assert.Equal(t, 20, list.Items[0].Quality)

	one := decode[api.VideoResponse](t, get(t, srv.URL+"/api/videos/"+processed.VideoID))
	assert.Equal(t, "480p", one.Video.RequestedResolution)

	bySource := decode[api.VideoListResponse](t, get(t, srv.URL+"/api/videos/by-source/src-42"))
	assert.Equal(t, 1, bySource.Count)

	presigned := decode[api.PresignResponse](t, get(t, srv.URL+"/api/videos/"+processed.VideoID+"/url"))
	assert.Equal(t, processed.VideoID, presigned.VideoID)
	assert.Equal(t, processed.StreamingURL, presigned.URL)

	streamPath := srv.URL + "/api/video_storage/" + processed.Metadata.FinalFilename
	full := get(t, streamPath)
	body, err := io.ReadAll(full.Body)
	require.NoError(t, err)
	full.Body.Close()
	assert.Equal(t, http.StatusOK, full.StatusCode)
	assert.Len(t, body, 2048)
	assert.Equal(t, "bytes", full.Header.Get("Accept-Ranges"))

	req, err := http.NewRequest(http.MethodGet, streamPath, nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=16-31")
	partial := do(t, req)
	body, err = io.ReadAll(partial.Body)
	require.NoError(t, err)
	partial.Body.Close()
	assert.Equal(t, http.StatusPartialContent, partial.StatusCode)
	assert.Equal(t, "bytes 16-31/2048", partial.Header.Get("Content-Range"))
	assert.Equal(t, "0123456789abcdef", string(body))

	req, err = http.NewRequest(http.MethodGet, streamPath, nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=4096-")
	unsatisfiable := do(t, req)
	unsatisfiable.Body.Close()
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, unsatisfiable.StatusCode)
	assert.Equal(t, "bytes */2048", unsatisfiable.Header.Get("Content-Range"))

	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/api/videos/"+processed.VideoID, nil)
	require.NoError(t, err)
	deleted := do(t, req)
	require.Equal(t, http.StatusOK, deleted.StatusCode)
	assert.Equal(t, "success", decode[api.StatusResponse](t, deleted).Status)

	missing := get(t, srv.URL+"/api/videos/"+processed.VideoID)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Equal(t, "not_found", decode[api.ErrorEnvelope](t, missing).Error.Code)

	gone := get(t, streamPath)
	gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestProcessVideoValidationFailureIsRecorded(t *testing.T) {
	srv, _, repo := newTestServer(t)

	files := videoUpload("notes.txt")
	resp := do(t, multipartRequest(t, srv.URL+"/api/process-video", map[string]string{"resolution": "720p"}, files...))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decode[api.ErrorEnvelope](t, resp)
	assert.Equal(t, "invalid_input", env.Error.Code)
	require.NotNil(t, env.Video)
	assert.Equal(t, "failed", env.Video.Status)
	assert.Equal(t, "invalid_input", env.Video.ErrorKind)

	rec, err := repo.Get(t.Context(), env.Video.ID)
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusFailed, rec.Status)
}

func TestProcessVideoRejectsBadFields(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := do(t, multipartRequest(t, srv.URL+"/api/process-video/", map[string]string{"resolution": "4k"}, videoUpload("movie.mp4")...))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_resolution", decode[api.ErrorEnvelope](t, resp).Error.Code)

	resp = do(t, multipartRequest(t, srv.URL+"/api/process-video/", map[string]string{"crf_value": "high"}, videoUpload("movie.mp4")...))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decode[api.ErrorEnvelope](t, resp)
	assert.Equal(t, "invalid_input", env.Error.Code)
	assert.Nil(t, env.Video)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/process-video/", strings.NewReader(`{"video":"x"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp = do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", decode[api.ErrorEnvelope](t, resp).Error.Code)
}

func TestProcessVideoWithoutSubtitlesFails(t *testing.T) {
	srv, _, _ := newTestServer(t)

	files := videoUpload("movie.mp4")[:1]
	resp := do(t, multipartRequest(t, srv.URL+"/api/process-video/", nil, files...))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	env := decode[api.ErrorEnvelope](t, resp)
	assert.Equal(t, "subtitle_unavailable", env.Error.Code)
	require.NotNil(t, env.Video)
	assert.Equal(t, "failed", env.Video.Status)
}

func TestProcessVideoTooLarge(t *testing.T) {
	srv, _, _ := newTestServer(t, testsupport.WithMaxUploadBytes(16))

	resp := do(t, multipartRequest(t, srv.URL+"/api/process-video/", nil, videoUpload("movie.mp4")...))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "invalid_input", decode[api.ErrorEnvelope](t, resp).Error.Code)
}

func TestMutatingRoutesRequireToken(t *testing.T) {
	srv, _, _ := newTestServer(t, testsupport.WithAPIToken("s3cret"))

	resp := do(t, multipartRequest(t, srv.URL+"/api/process-video/", nil, videoUpload("movie.mp4")...))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
	assert.Equal(t, "unauthorized", decode[api.ErrorEnvelope](t, resp).Error.Code)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/videos/anything", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp = do(t, req)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	list := get(t, srv.URL+"/api/videos")
	list.Body.Close()
	assert.Equal(t, http.StatusOK, list.StatusCode, "reads stay open")

	authed := multipartRequest(t, srv.URL+"/api/process-video/", nil, videoUpload("movie.mp4")...)
	authed.Header.Set("Authorization", "Bearer s3cret")
	resp = do(t, authed)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubmissionRateLimit(t *testing.T) {
	srv, _, _ := newTestServer(t, testsupport.WithSubmitRate(0.001, 1))

	submit(t, srv, nil)

	resp := do(t, multipartRequest(t, srv.URL+"/api/process-video/", nil, videoUpload("movie.mp4")...))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	resp.Body.Close()
}

func TestListVideosQuery(t *testing.T) {
	srv, _, repo := newTestServer(t)
	seed(t, repo, "job_00000001", metadata.StatusSaved)
	seed(t, repo, "job_00000002", metadata.StatusFailed)
	seed(t, repo, "job_00000003", metadata.StatusSaved)

	saved := decode[api.VideoListResponse](t, get(t, srv.URL+"/api/videos?status=saved"))
	assert.Equal(t, 2, saved.Count)

	page := decode[api.VideoListResponse](t, get(t, srv.URL+"/api/videos?skip=1&limit=1"))
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Skip)

	for _, query := range []string{"status=bogus", "skip=abc", "limit=x"} {
		resp := get(t, srv.URL+"/api/videos?"+query)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		resp.Body.Close()
	}

	resp := get(t, srv.URL+"/api/videos/by-source/unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPatchVideo(t *testing.T) {
	srv, _, repo := newTestServer(t)
	rec := seed(t, repo, "job_0000000a", metadata.StatusSaved)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/videos/"+rec.ID, strings.NewReader(`{"original_filename":"renamed.mp4"}`))
	require.NoError(t, err)
	resp := do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "renamed.mp4", decode[api.VideoResponse](t, resp).Video.OriginalFilename)

	req, err = http.NewRequest(http.MethodPatch, srv.URL+"/api/videos/"+rec.ID, strings.NewReader(`{"status":"saved"}`))
	require.NoError(t, err)
	resp = do(t, req)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "status is not editable")
}

func TestDeleteProcessingVideoRejected(t *testing.T) {
	srv, _, repo := newTestServer(t)
	rec := testsupport.NewRecord(t, repo, "job_0000000b", "clip.mp4")

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/videos/"+rec.ID, nil)
	require.NoError(t, err)
	resp := do(t, req)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStreamRejectsUnsafeNames(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, name := range []string{"..%2Fsecret.mp4", "not-a-job.mp4", "job_1_final.mp4"} {
		resp := get(t, srv.URL+"/api/video_storage/"+name)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, name)
		resp.Body.Close()
	}
}

func TestHealthAndInfo(t *testing.T) {
	srv, d, _ := newTestServer(t)
	d.checkDeps = func() []deps.Status {
		return []deps.Status{{Name: "FFmpeg", Command: "ffmpeg", Available: true}}
	}

	resp := get(t, srv.URL+"/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[api.HealthResponse](t, resp)
	assert.True(t, health.Healthy)
	require.Len(t, health.Components, 2)
	assert.Equal(t, "local", health.Components[1].Backend)
	assert.Equal(t, d.orch.Pool().Size(), health.TranscodeSlots)

	d.checkDeps = func() []deps.Status {
		return []deps.Status{{Name: "FFmpeg", Command: "ffmpeg", Available: false, Detail: "not found"}}
	}
	resp = get(t, srv.URL+"/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, decode[api.HealthResponse](t, resp).Healthy)

	info := decode[api.ServiceInfo](t, get(t, srv.URL+"/"))
	assert.Equal(t, "burnin", info.Service)
	assert.Equal(t, []string{"360p", "480p", "720p", "1080p"}, info.Resolutions)

	resp = get(t, srv.URL+"/api/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode[api.ErrorEnvelope](t, resp).Error.Code)
}

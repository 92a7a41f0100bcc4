package daemon

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"burnin/internal/config"
	"burnin/internal/jobs"
	"burnin/internal/logging"
	"burnin/internal/metadata"
	"burnin/internal/storage/local"
	"burnin/internal/subtitles"
	"burnin/internal/testsupport"
	"burnin/internal/transform"
)

// writingTransformer stands in for ffmpeg by writing a fixed payload.
type writingTransformer struct{}

func (writingTransformer) Burn(_ context.Context, req transform.Request) (transform.Output, error) {
	out := filepath.Join(req.WorkDir, req.OutputName)
	payload := bytes.Repeat([]byte("0123456789abcdef"), 128)
	if err := os.WriteFile(out, payload, 0o644); err != nil {
		return transform.Output{}, err
	}
	return transform.Output{
		Path:       out,
		SizeBytes:  int64(len(payload)),
		Duration:   12.25,
		Resolution: req.Resolution.Size(),
	}, nil
}

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, *config.Config, *metadata.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	repo := testsupport.MustOpenStore(t, cfg)
	store, err := local.New(cfg.Storage.LocalDir, cfg.StreamURL)
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	orch, err := jobs.New(cfg, jobs.Collaborators{
		Subtitles: subtitles.NewFetcher(cfg, nil, logging.NewNop()),
		Transform: writingTransformer{},
		Store:     store,
		Repo:      repo,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("jobs.New: %v", err)
	}
	d, err := New(cfg, Components{Repo: repo, Store: store, Orchestrator: orch}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, cfg, repo
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, url string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func videoUpload(name string) []formFile {
	return []formFile{
		{field: "video", name: name, data: []byte("not really an mp4 but long enough")},
		{field: "srt_file", name: "subs.srt", data: []byte(testsupport.SampleSRT)},
	}
}

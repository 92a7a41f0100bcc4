package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burnin/internal/api"
	"burnin/internal/metadata"
	"burnin/internal/services"
	"burnin/internal/testsupport"
)

func newService(t *testing.T) (*api.VideoService, *metadata.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return api.NewVideoService(store), store
}

func TestVideoServiceListFiltersAndPages(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	for _, id := range []string{"job_a", "job_b", "job_c"} {
		testsupport.NewRecord(t, store, id, id+".mp4")
	}
	failed := metadata.StatusFailed
	reason := "boom"
	first, err := store.GetByJobID(ctx, "job_a")
	require.NoError(t, err)
	_, err = store.Update(ctx, first.ID, metadata.Patch{Status: &failed, Error: &reason})
	require.NoError(t, err)

	resp, err := svc.List(ctx, api.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 3)
	assert.Equal(t, metadata.DefaultPageLimit, resp.Limit)
	assert.Equal(t, "job_c", resp.Items[0].JobID, "newest first")

	resp, err = svc.List(ctx, api.ListQuery{Status: "FAILED"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "job_a", resp.Items[0].JobID)

	resp, err = svc.List(ctx, api.ListQuery{Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "job_b", resp.Items[0].JobID)

	_, err = svc.List(ctx, api.ListQuery{Status: "done"})
	assert.Equal(t, services.KindInvalidInput, services.KindOf(err))
}

func TestVideoServiceDescribeAndLookups(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, metadata.Record{
		JobID:               "job_lookup1",
		SourceVideoID:       "src-9",
		OriginalFilename:    "talk.mov",
		FinalFilename:       "job_lookup1_final.mp4",
		RequestedResolution: "720p",
		Quality:             23,
	})
	require.NoError(t, err)

	video, err := svc.Describe(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "processing", video.Status)
	_, err = time.Parse(time.RFC3339, video.CreatedAt)
	assert.NoError(t, err)

	_, err = svc.Describe(ctx, "missing")
	assert.Equal(t, services.KindNotFound, services.KindOf(err))

	bySource, err := svc.BySource(ctx, "src-9")
	require.NoError(t, err)
	require.Len(t, bySource, 1)

	byName, err := svc.ByFilename(ctx, "job_lookup1_final.mp4")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, rec.ID, byName[0].ID)

	_, err = svc.BySource(ctx, " ")
	assert.Equal(t, services.KindInvalidInput, services.KindOf(err))
}

func TestVideoServiceEdit(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	rec := testsupport.NewRecord(t, store, "job_edit1", "before.mp4")

	name := "after.mp4"
	video, err := svc.Edit(ctx, rec.ID, api.VideoPatch{OriginalFilename: &name})
	require.NoError(t, err)
	assert.Equal(t, "after.mp4", video.OriginalFilename)

	_, err = svc.Edit(ctx, rec.ID, api.VideoPatch{})
	assert.Equal(t, services.KindInvalidInput, services.KindOf(err))

	blank := " "
	_, err = svc.Edit(ctx, rec.ID, api.VideoPatch{OriginalFilename: &blank})
	assert.Equal(t, services.KindInvalidInput, services.KindOf(err))

	_, err = svc.Edit(ctx, "missing", api.VideoPatch{OriginalFilename: &name})
	assert.Equal(t, services.KindNotFound, services.KindOf(err))
}

func TestVideoServiceBySourceMissing(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.BySource(context.Background(), "src-none")
	assert.Equal(t, services.KindNotFound, services.KindOf(err))
}

package testsupport

import (
	"context"
	"testing"

	"burnin/internal/config"
	"burnin/internal/metadata"
)

// MustOpenStore opens a metadata.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *metadata.Store {
	t.Helper()

	store, err := metadata.Open(cfg)
	if err != nil {
		t.Fatalf("metadata.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecord creates a processing record for tests using the provided store.
func NewRecord(t testing.TB, store *metadata.Store, jobID, filename string) *metadata.Record {
	t.Helper()

	rec, err := store.Create(context.Background(), metadata.Record{
		JobID:               jobID,
		OriginalFilename:    filename,
		RequestedResolution: "360p",
		Quality:             23,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return rec
}

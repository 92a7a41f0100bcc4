package jobs

import (
	"context"
	"fmt"

	"burnin/internal/logging"
	"burnin/internal/metadata"
	"burnin/internal/services"
	"burnin/internal/staging"
)

// RestartReason is recorded on jobs found processing at startup.
const RestartReason = "Service restarted before the job finished"

// Reconcile fails records left in processing by a previous process and
// removes their scratch directories. It must run before any Submit.
func (o *Orchestrator) Reconcile(ctx context.Context) (int, error) {
	logger := o.logger
	failed, err := o.deps.Repo.FailProcessing(ctx, RestartReason, services.KindCancelled.String())
	for _, rec := range failed {
		logger.Warn("failed interrupted job",
			logging.String(logging.FieldJobID, rec.JobID),
			logging.String("video_id", rec.ID),
			logging.String(logging.FieldEventType, "job_reconciled"),
		)
	}
	if err != nil {
		return len(failed), services.Wrap(services.ErrMetadataWriteFailed, "reconcile", "fail processing", "", err)
	}

	result := staging.CleanOrphaned(ctx, o.cfg.Paths.ScratchDir, o.Active(), logger)
	if len(result.Errors) > 0 {
		return len(failed), fmt.Errorf("clean scratch: %w", result.Errors[0].Error)
	}
	return len(failed), nil
}

// Delete removes a finished job's artifact and then its record. Jobs still
// processing cannot be deleted.
func (o *Orchestrator) Delete(ctx context.Context, videoID string) error {
	rec, err := o.deps.Repo.Get(ctx, videoID)
	if err != nil {
		return err
	}
	if rec.Status == metadata.StatusProcessing {
		return services.Wrap(services.ErrInvalidInput, "delete", "status", "job is still processing", nil)
	}
	if rec.StorageKey != "" {
		sctx, cancel := context.WithTimeout(ctx, o.cfg.StorageTimeout())
		defer cancel()
		if err := o.deps.Store.Delete(sctx, rec.StorageKey); err != nil {
			return services.Wrap(services.ErrStorageWriteFailed, "delete", "artifact", rec.StorageKey, err)
		}
	}
	if _, err := o.deps.Repo.Delete(ctx, videoID); err != nil {
		return services.Wrap(services.ErrMetadataWriteFailed, "delete", "record", videoID, err)
	}
	logging.WithContext(services.WithJobID(ctx, rec.JobID), o.logger).Info("job deleted",
		logging.String("video_id", videoID),
		logging.String(logging.FieldEventType, "job_deleted"),
	)
	return nil
}

// PresignURL mints a time-limited read URL for a saved job.
func (o *Orchestrator) PresignURL(ctx context.Context, videoID string) (string, *metadata.Record, error) {
	rec, err := o.deps.Repo.Get(ctx, videoID)
	if err != nil {
		return "", nil, err
	}
	if rec.Status != metadata.StatusSaved || rec.StorageKey == "" {
		return "", rec, services.Wrap(services.ErrNotFound, "presign", "artifact",
			fmt.Sprintf("job %s has no stored artifact (status %s)", rec.JobID, rec.Status), nil)
	}
	sctx, cancel := context.WithTimeout(ctx, o.cfg.StorageTimeout())
	defer cancel()
	url, err := o.deps.Store.Presign(sctx, rec.StorageKey)
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			return "", rec, err
		}
		return "", rec, fmt.Errorf("presign %s: %w", rec.StorageKey, err)
	}
	return url, rec, nil
}

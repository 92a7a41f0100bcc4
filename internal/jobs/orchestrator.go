package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"burnin/internal/config"
	"burnin/internal/logging"
	"burnin/internal/metadata"
	"burnin/internal/services"
	"burnin/internal/storage"
	"burnin/internal/subtitles"
	"burnin/internal/transform"
)

// SubtitleResolver turns a subtitle source into validated SRT bytes.
type SubtitleResolver interface {
	Resolve(ctx context.Context, src subtitles.Source) ([]byte, error)
}

// Transformer burns subtitles into a video.
type Transformer interface {
	Burn(ctx context.Context, req transform.Request) (transform.Output, error)
}

// Notifier receives terminal job outcomes. Delivery is best effort.
type Notifier interface {
	JobSaved(ctx context.Context, rec *metadata.Record) error
	JobFailed(ctx context.Context, rec *metadata.Record, cause error) error
}

// Collaborators are the capabilities an Orchestrator sequences. Notify is
// optional.
type Collaborators struct {
	Subtitles SubtitleResolver
	Transform Transformer
	Store     storage.Store
	Repo      metadata.Repository
	Notify    Notifier
}

func (c Collaborators) validate() error {
	switch {
	case c.Subtitles == nil:
		return errors.New("subtitle resolver is required")
	case c.Transform == nil:
		return errors.New("transformer is required")
	case c.Store == nil:
		return errors.New("artifact store is required")
	case c.Repo == nil:
		return errors.New("metadata repository is required")
	}
	return nil
}

// Request is one job submission.
type Request struct {
	// JobID is generated when empty.
	JobID            string
	OriginalFilename string
	// Video is read once into the job workspace.
	Video io.Reader
	// Size is the declared payload size, or -1 when unknown.
	Size          int64
	Subtitles     subtitles.Source
	Resolution    string
	Quality       *int
	SourceVideoID string
}

// Orchestrator runs jobs.
type Orchestrator struct {
	cfg    *config.Config
	deps   Collaborators
	pool   *Pool
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// New builds an Orchestrator. The transcode pool is sized from
// transform.max_concurrent.
func New(cfg *config.Config, deps Collaborators, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		pool:   NewPool(cfg.Transform.MaxConcurrent),
		logger: logging.NewComponentLogger(logger, "orchestrator"),
		active: make(map[string]struct{}),
	}, nil
}

// Active returns the ids of jobs whose workspace is currently held.
func (o *Orchestrator) Active() map[string]struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]struct{}, len(o.active))
	for id := range o.active {
		out[id] = struct{}{}
	}
	return out
}

// track marks jobID active. It reports false when the job is already
// running in this process.
func (o *Orchestrator) track(jobID string) (func(), bool) {
	o.mu.Lock()
	if _, running := o.active[jobID]; running {
		o.mu.Unlock()
		return nil, false
	}
	o.active[jobID] = struct{}{}
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.active, jobID)
		o.mu.Unlock()
	}, true
}

// Pool exposes the transcode pool for health reporting.
func (o *Orchestrator) Pool() *Pool { return o.pool }

// NewJobID returns a fresh job_<8 hex> identifier.
func NewJobID() string {
	return "job_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// FinalFilename is the artifact name for a job.
func FinalFilename(jobID string) string {
	return jobID + "_final.mp4"
}

// Submit runs a job to a terminal state and returns its record.
//
// The returned error is nil only when the record is saved. On failure the
// record, when one could be written, is returned alongside an error tagged
// with the failure kind. Scratch files are gone by the time Submit returns.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*metadata.Record, error) {
	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		jobID = NewJobID()
	}
	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, o.logger)

	base := metadata.Record{
		JobID:               jobID,
		SourceVideoID:       strings.TrimSpace(req.SourceVideoID),
		OriginalFilename:    filepath.Base(strings.TrimSpace(req.OriginalFilename)),
		FinalFilename:       FinalFilename(jobID),
		RequestedResolution: strings.TrimSpace(req.Resolution),
		Quality:             o.cfg.Transform.DefaultQuality,
	}
	if base.RequestedResolution == "" {
		base.RequestedResolution = o.cfg.Transform.DefaultResolution
	}
	if req.Quality != nil {
		base.Quality = *req.Quality
	}

	resolution, err := o.validate(req, base)
	if err != nil {
		return o.reject(ctx, logger, base, err)
	}

	logger.Info("job accepted",
		logging.String("original_filename", base.OriginalFilename),
		logging.String("resolution", resolution.String()),
		logging.Int("crf", base.Quality),
		logging.String(logging.FieldEventType, "job_accepted"),
	)

	rec, err := o.create(ctx, base)
	if err != nil {
		logging.ErrorWithContext(logger, "job record create failed", "job_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the metadata database"),
		)
		return nil, err
	}
	if rec.Status != metadata.StatusProcessing {
		return rec, services.Wrap(services.ErrInvalidInput, "validate", "job id",
			fmt.Sprintf("job %s already finished as %s", jobID, rec.Status), nil)
	}

	untrack, ok := o.track(jobID)
	if !ok {
		return rec, services.Wrap(services.ErrInvalidInput, "validate", "job id",
			fmt.Sprintf("job %s is already running", jobID), nil)
	}
	defer untrack()
	ws, err := AcquireWorkspace(o.cfg.Paths.ScratchDir, jobID)
	if err != nil {
		return o.fail(ctx, rec, "", services.Wrap(services.ErrInvalidInput, "workspace", "acquire", "", err))
	}
	defer func() {
		if err := ws.Release(); err != nil {
			logging.WarnWithContext(logger, "workspace cleanup failed", "workspace_cleanup_failed",
				logging.String("path", ws.Dir()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed until the next stale sweep"),
			)
		}
	}()

	return o.run(ctx, logger, rec, ws, req, resolution)
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, rec *metadata.Record, ws *Workspace, req Request, resolution transform.Resolution) (*metadata.Record, error) {
	started := time.Now()

	input, err := o.spool(services.WithStage(ctx, "spool"), ws, req)
	if err != nil {
		return o.fail(ctx, rec, "", err)
	}

	srt, err := o.deps.Subtitles.Resolve(services.WithStage(ctx, "subtitles"), req.Subtitles)
	if err != nil {
		return o.fail(ctx, rec, "", err)
	}

	output, err := o.burn(services.WithStage(ctx, "transform"), logger, ws, rec, input, srt, resolution)
	if err != nil {
		return o.fail(ctx, rec, "", err)
	}
	if output.Duration <= 0 {
		// Without a probe, the last subtitle cue is the best lower bound.
		if end := subtitles.LastCueEnd(subtitles.Parse(srt)); end > 0 {
			output.Duration = end.Seconds()
			logging.WarnWithContext(logger, "output duration unknown, using subtitle end", "duration_estimated",
				logging.Float64("duration_seconds", output.Duration),
				logging.String(logging.FieldErrorHint, "enable transform.probe or check transform.ffprobe_binary"),
				logging.String(logging.FieldImpact, "recorded duration is estimated from the subtitles"),
			)
		}
	}

	key := storage.Key(o.cfg.Storage.Prefix, rec.FinalFilename)
	loc, err := o.upload(services.WithStage(ctx, "upload"), output.Path, key)
	if err != nil {
		// A failed multipart upload can leave a partial object behind.
		return o.fail(ctx, rec, key, err)
	}

	saved := metadata.StatusSaved
	location := loc.URI()
	streamURL := o.cfg.StreamURL(rec.FinalFilename)
	final, err := o.update(ctx, rec.ID, metadata.Patch{
		Status:          &saved,
		Resolution:      &output.Resolution,
		Duration:        &output.Duration,
		FileSize:        &output.SizeBytes,
		StorageKey:      &key,
		StorageLocation: &location,
		StreamURL:       &streamURL,
	})
	if err != nil {
		committed, ok := o.committedSave(ctx, logger, rec.ID, err)
		if !ok {
			return o.fail(ctx, rec, key, err)
		}
		final = committed
	}

	logger.Info("job saved",
		logging.String("storage_location", location),
		logging.Int64("file_size", output.SizeBytes),
		logging.Float64("duration_seconds", output.Duration),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "job_saved"),
	)
	o.notify(ctx, logger, func(nctx context.Context, n Notifier) error { return n.JobSaved(nctx, final) })
	return final, nil
}

// committedSave re-reads a record after a saved write reported an error.
// The write may have committed anyway; a saved record is the outcome and
// its artifact must stay.
func (o *Orchestrator) committedSave(ctx context.Context, logger *slog.Logger, id string, writeErr error) (*metadata.Record, bool) {
	mctx, cancel := o.metadataContext(ctx)
	defer cancel()
	current, err := o.deps.Repo.Get(mctx, id)
	if err != nil || current.Status != metadata.StatusSaved {
		return nil, false
	}
	logging.WarnWithContext(logger, "saved write reported an error but committed", "job_save_ambiguous",
		logging.Error(writeErr),
		logging.String(logging.FieldErrorHint, "check metadata database latency"),
		logging.String(logging.FieldImpact, "none; the job is saved"),
	)
	return current, true
}

func (o *Orchestrator) validate(req Request, base metadata.Record) (transform.Resolution, error) {
	if req.Video == nil {
		return "", services.Wrap(services.ErrInvalidInput, "validate", "video", "no video payload supplied", nil)
	}
	if base.OriginalFilename == "" || base.OriginalFilename == "." {
		return "", services.Wrap(services.ErrInvalidInput, "validate", "filename", "video filename is required", nil)
	}
	if !o.cfg.ExtensionAllowed(base.OriginalFilename) {
		return "", services.Wrap(services.ErrInvalidInput, "validate", "extension",
			fmt.Sprintf("%q is not one of %s", filepath.Ext(base.OriginalFilename), strings.Join(o.cfg.Limits.AllowedExtensions, ", ")), nil)
	}
	if limit := o.cfg.Limits.MaxUploadBytes; limit > 0 && req.Size > limit {
		return "", tooLarge(req.Size, limit)
	}
	if req.Size == 0 {
		return "", services.Wrap(services.ErrInvalidInput, "validate", "video", "video payload is empty", nil)
	}
	resolution, err := transform.ParseResolution(base.RequestedResolution)
	if err != nil {
		return "", err
	}
	if err := transform.ValidateQuality(base.Quality); err != nil {
		return "", err
	}
	if req.Subtitles.IsZero() {
		return "", services.Wrap(services.ErrSubtitleUnavailable, "validate", "subtitles", "no subtitle file or url supplied", nil)
	}
	return resolution, nil
}

// ErrTooLarge marks InvalidInput failures caused by the upload ceiling.
var ErrTooLarge = errors.New("payload too large")

func tooLarge(size, limit int64) error {
	return services.Wrap(services.ErrInvalidInput, "validate", "size",
		fmt.Sprintf("video of %d bytes exceeds limit of %d", size, limit), ErrTooLarge)
}

// reject records a job that failed validation directly as failed.
func (o *Orchestrator) reject(ctx context.Context, logger *slog.Logger, base metadata.Record, cause error) (*metadata.Record, error) {
	kind := services.KindOf(cause)
	base.Status = metadata.StatusFailed
	base.FinalFilename = ""
	base.Error = cause.Error()
	base.ErrorKind = kind.String()

	logger.Warn("job rejected",
		logging.String(logging.FieldErrorKind, kind.String()),
		logging.Error(cause),
		logging.String(logging.FieldEventType, "job_rejected"),
	)

	rec, err := o.create(ctx, base)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return rec, cause
}

func (o *Orchestrator) metadataContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.cfg.MetadataTimeout())
}

// create inserts the initial record. Like update it is detached from ctx:
// once a submission reaches the repository it always leaves a record, and a
// cancelled client resolves to failed through the normal stage path.
func (o *Orchestrator) create(ctx context.Context, rec metadata.Record) (*metadata.Record, error) {
	mctx, cancel := o.metadataContext(ctx)
	defer cancel()
	created, err := o.deps.Repo.Create(mctx, rec)
	if err != nil {
		return nil, services.Wrap(services.ErrMetadataWriteFailed, "metadata", "create", "", err)
	}
	return created, nil
}

// update writes a terminal or progress patch. Writes are detached from ctx
// so a cancelled client still leaves a resolved record behind.
func (o *Orchestrator) update(ctx context.Context, id string, patch metadata.Patch) (*metadata.Record, error) {
	mctx, cancel := o.metadataContext(ctx)
	defer cancel()
	rec, err := o.deps.Repo.Update(mctx, id, patch)
	if err != nil {
		return nil, services.Wrap(services.ErrMetadataWriteFailed, "metadata", "update", "", err)
	}
	return rec, nil
}

func (o *Orchestrator) spool(ctx context.Context, ws *Workspace, req Request) (string, error) {
	ext := strings.ToLower(filepath.Ext(req.OriginalFilename))
	path := ws.Path("source" + ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", services.Wrap(services.ErrInvalidInput, "spool", "create", "", err)
	}
	defer f.Close()

	src := req.Video
	limit := o.cfg.Limits.MaxUploadBytes
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(f, &contextReader{ctx: ctx, r: src})
	if err != nil {
		if ctx.Err() != nil {
			return "", services.Wrap(services.ErrCancelled, "spool", "copy", "job cancelled", ctx.Err())
		}
		return "", services.Wrap(services.ErrInvalidInput, "spool", "copy", "could not read video payload", err)
	}
	if limit > 0 && n > limit {
		return "", tooLarge(n, limit)
	}
	if n == 0 {
		return "", services.Wrap(services.ErrInvalidInput, "spool", "copy", "video payload is empty", nil)
	}
	if err := f.Close(); err != nil {
		return "", services.Wrap(services.ErrInvalidInput, "spool", "close", "", err)
	}
	return path, nil
}

func (o *Orchestrator) burn(ctx context.Context, logger *slog.Logger, ws *Workspace, rec *metadata.Record, input string, srt []byte, resolution transform.Resolution) (transform.Output, error) {
	waitStart := time.Now()
	release, err := o.pool.Acquire(ctx)
	if err != nil {
		return transform.Output{}, services.Wrap(services.ErrCancelled, "transform", "queue", "job cancelled while waiting for a transcode slot", err)
	}
	defer release()
	if waited := time.Since(waitStart); waited > time.Second {
		logger.Info("transcode slot acquired", logging.Duration("waited", waited))
	}

	return o.deps.Transform.Burn(ctx, transform.Request{
		Input:      input,
		WorkDir:    ws.Dir(),
		OutputName: rec.FinalFilename,
		Subtitles:  srt,
		Resolution: resolution,
		Quality:    rec.Quality,
	})
}

func (o *Orchestrator) upload(ctx context.Context, path, key string) (storage.Location, error) {
	uctx, cancel := context.WithTimeout(ctx, o.cfg.StorageTimeout())
	defer cancel()
	loc, err := o.deps.Store.Put(uctx, path, key)
	if err != nil {
		if ctx.Err() != nil {
			return storage.Location{}, services.Wrap(services.ErrCancelled, "upload", "put", "job cancelled", err)
		}
		return storage.Location{}, services.Wrap(services.ErrStorageWriteFailed, "upload", "put", key, err)
	}
	return loc, nil
}

// fail moves rec to failed. uploadedKey names an artifact that was stored
// before the failure and must be removed. Cleanup errors are logged and
// never replace cause.
func (o *Orchestrator) fail(ctx context.Context, rec *metadata.Record, uploadedKey string, cause error) (*metadata.Record, error) {
	logger := logging.WithContext(ctx, o.logger)
	kind := services.KindOf(cause)
	if kind == services.KindInternal && ctx.Err() != nil {
		kind = services.KindCancelled
		cause = services.Wrap(services.ErrCancelled, "", "", "job cancelled", cause)
	}

	if uploadedKey != "" {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.StorageTimeout())
		if err := o.deps.Store.Delete(dctx, uploadedKey); err != nil {
			logging.WarnWithContext(logger, "orphaned artifact delete failed", "artifact_cleanup_failed",
				logging.String("key", uploadedKey),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the object manually"),
				logging.String(logging.FieldImpact, "storage holds an artifact with no saved record"),
			)
		}
		cancel()
	}

	failed := metadata.StatusFailed
	message := cause.Error()
	kindName := kind.String()
	updated, err := o.update(ctx, rec.ID, metadata.Patch{Status: &failed, Error: &message, ErrorKind: &kindName})
	if err != nil {
		logging.ErrorWithContext(logger, "failed to record job failure", "job_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, kindName),
			logging.String(logging.FieldErrorHint, "check the metadata database; the record may stay in processing until restart"),
		)
		updated = rec
	}

	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.String(logging.FieldErrorKind, kindName),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, hintFor(kind)),
	)
	o.notify(ctx, logger, func(nctx context.Context, n Notifier) error { return n.JobFailed(nctx, updated, cause) })
	return updated, cause
}

const notifyTimeout = 10 * time.Second

func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, send func(context.Context, Notifier) error) {
	if o.deps.Notify == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := send(nctx, o.deps.Notify); err != nil {
		logging.WarnWithContext(logger, "job notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func hintFor(kind services.Kind) string {
	switch kind {
	case services.KindSubtitleUnavailable:
		return "check the subtitle URL or upload a valid SRT file"
	case services.KindTranscodeTimeout:
		return "raise timeouts.transform_seconds or lower the resolution"
	case services.KindTranscodeFailed:
		return "inspect the ffmpeg output in the error field"
	case services.KindStorageWriteFailed:
		return "check artifact store credentials and connectivity"
	case services.KindMetadataWriteFailed:
		return "check the metadata database"
	case services.KindCancelled:
		return "resubmit the job"
	}
	return "check logs for details"
}

// contextReader stops a copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

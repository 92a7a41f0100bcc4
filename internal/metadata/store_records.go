package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Create inserts rec in the processing state, or any state when the caller
// supplies one (validation failures are recorded directly as failed). A
// record that already exists for rec.JobID is returned unchanged, so a
// retried create after an ambiguous failure never yields a duplicate.
func (s *Store) Create(ctx context.Context, rec Record) (*Record, error) {
	if strings.TrimSpace(rec.JobID) == "" {
		return nil, errors.New("create record: job id is required")
	}
	if rec.Status == "" {
		rec.Status = StatusProcessing
	}
	if _, err := ParseStatus(string(rec.Status)); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	if err := checkTransition(&Record{Status: StatusProcessing}, Patch{Status: &rec.Status, StorageLocation: &rec.StorageLocation, Error: &rec.Error}); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.execWithRetry(ctx,
		`INSERT INTO videos (`+recordColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id) DO NOTHING`,
		rec.ID,
		rec.JobID,
		nullableString(rec.SourceVideoID),
		rec.Status,
		rec.OriginalFilename,
		nullableString(rec.FinalFilename),
		rec.RequestedResolution,
		nullableString(rec.Resolution),
		rec.Quality,
		rec.Duration,
		rec.FileSize,
		nullableString(rec.StorageKey),
		nullableString(rec.StorageLocation),
		nullableString(rec.StreamURL),
		nullableString(rec.Error),
		nullableString(rec.ErrorKind),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	return s.GetByJobID(ctx, rec.JobID)
}

// Get fetches a record by video id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	return s.getOne(ctx, "id", id)
}

// GetByJobID fetches a record by job id.
func (s *Store) GetByJobID(ctx context.Context, jobID string) (*Record, error) {
	return s.getOne(ctx, "job_id", jobID)
}

func (s *Store) getOne(ctx context.Context, column, value string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM videos WHERE `+column+` = ?`, value)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, column, value)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// GetBySource returns records produced from an upstream video id, newest first.
func (s *Store) GetBySource(ctx context.Context, sourceVideoID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+recordColumns+` FROM videos WHERE source_video_id = ? ORDER BY created_at DESC, rowid DESC`,
		sourceVideoID,
	)
	if err != nil {
		return nil, fmt.Errorf("query by source: %w", err)
	}
	return scanRecords(rows)
}

// GetByFilename returns records whose original or final filename matches,
// newest first.
func (s *Store) GetByFilename(ctx context.Context, filename string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+recordColumns+` FROM videos
         WHERE original_filename = ? OR final_filename = ?
         ORDER BY created_at DESC, rowid DESC`,
		filename, filename,
	)
	if err != nil {
		return nil, fmt.Errorf("query by filename: %w", err)
	}
	return scanRecords(rows)
}

// List returns records newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, filter Filter, page Page) ([]*Record, error) {
	page = page.Normalize()
	query := `SELECT ` + recordColumns + ` FROM videos`
	var args []any
	if filter.Status != "" {
		if _, err := ParseStatus(string(filter.Status)); err != nil {
			return nil, err
		}
		query += ` WHERE status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Skip)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return scanRecords(rows)
}

// Count returns the number of records per status.
func (s *Store) Count(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(*) FROM videos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// Update applies patch to the record with the given id and returns the
// stored result. Terminal records accept only descriptive edits.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (*Record, error) {
	ctx = ensureContext(ctx)
	var updated *Record
	err := retryOnBusy(ctx, func() error {
		var txErr error
		updated, txErr = s.updateTx(ctx, id, patch)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) updateTx(ctx context.Context, id string, patch Patch) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM videos WHERE id = ?`, id)
	current, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if err := checkTransition(current, patch); err != nil {
		return nil, err
	}

	next := *current
	patch.apply(&next)
	next.UpdatedAt = nextUpdatedAt(s.now(), current.UpdatedAt)

	res, err := tx.ExecContext(ctx,
		`UPDATE videos
         SET source_video_id = ?, status = ?, original_filename = ?, final_filename = ?,
             resolution = ?, duration = ?, file_size = ?, storage_key = ?,
             storage_location = ?, stream_url = ?, error_message = ?, error_kind = ?,
             updated_at = ?
         WHERE id = ? AND updated_at = ?`,
		nullableString(next.SourceVideoID),
		next.Status,
		next.OriginalFilename,
		nullableString(next.FinalFilename),
		nullableString(next.Resolution),
		next.Duration,
		next.FileSize,
		nullableString(next.StorageKey),
		nullableString(next.StorageLocation),
		nullableString(next.StreamURL),
		nullableString(next.Error),
		nullableString(next.ErrorKind),
		formatTime(next.UpdatedAt),
		id,
		formatTime(current.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("update record %s: concurrent modification", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return &next, nil
}

// Delete removes a record. It reports whether a row was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	return n > 0, nil
}

// FailProcessing moves every record still in processing to failed. It runs
// at startup, when no job from a previous process can still be live.
func (s *Store) FailProcessing(ctx context.Context, reason, kind string) ([]*Record, error) {
	failed := StatusFailed
	var out []*Record
	for {
		stuck, err := s.List(ctx, Filter{Status: StatusProcessing}, Page{Limit: MaxPageLimit})
		if err != nil {
			return out, err
		}
		if len(stuck) == 0 {
			return out, nil
		}
		for _, rec := range stuck {
			updated, err := s.Update(ctx, rec.ID, Patch{Status: &failed, Error: &reason, ErrorKind: &kind})
			if err != nil {
				return out, err
			}
			out = append(out, updated)
		}
	}
}

package metadata

import (
	"database/sql"
	"time"
)

const recordColumns = "id, job_id, source_video_id, status, original_filename, final_filename, requested_resolution, resolution, quality, duration, file_size, storage_key, storage_location, stream_url, error_message, error_kind, created_at, updated_at"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec             Record
		status          string
		sourceVideoID   sql.NullString
		finalFilename   sql.NullString
		resolution      sql.NullString
		storageKey      sql.NullString
		storageLocation sql.NullString
		streamURL       sql.NullString
		errorMessage    sql.NullString
		errorKind       sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.JobID,
		&sourceVideoID,
		&status,
		&rec.OriginalFilename,
		&finalFilename,
		&rec.RequestedResolution,
		&resolution,
		&rec.Quality,
		&rec.Duration,
		&rec.FileSize,
		&storageKey,
		&storageLocation,
		&streamURL,
		&errorMessage,
		&errorKind,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	rec.SourceVideoID = sourceVideoID.String
	rec.FinalFilename = finalFilename.String
	rec.Resolution = resolution.String
	rec.StorageKey = storageKey.String
	rec.StorageLocation = storageLocation.String
	rec.StreamURL = streamURL.String
	rec.Error = errorMessage.String
	rec.ErrorKind = errorKind.String
	rec.CreatedAt = parseTime(createdRaw)
	rec.UpdatedAt = parseTime(updatedRaw)
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	defer rows.Close()
	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// nextUpdatedAt keeps updated_at strictly increasing even when the wall
// clock stalls or steps backwards.
func nextUpdatedAt(now, previous time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	floor := previous.Add(time.Microsecond)
	if now.Before(floor) {
		return floor
	}
	return now
}

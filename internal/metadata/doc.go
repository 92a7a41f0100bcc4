// Package metadata persists job records in SQLite.
//
// A Record is created in the processing state as soon as a job is accepted
// and reaches exactly one terminal state, saved or failed. The store
// enforces that lifecycle: Create is idempotent by job id, Update never
// leaves a terminal state, and updated_at strictly increases on every
// write. Lookups by source video id and by filename back the secondary
// query routes.
package metadata

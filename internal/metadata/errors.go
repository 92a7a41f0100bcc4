package metadata

import (
	"errors"
	"fmt"

	"burnin/internal/services"
)

var (
	// ErrNotFound is returned when no record matches the requested id.
	ErrNotFound = fmt.Errorf("metadata record %w", services.ErrNotFound)

	// ErrTerminal is returned when an update tries to change the lifecycle
	// fields of a saved or failed record.
	ErrTerminal = errors.New("record is in a terminal state")

	// ErrInvalidTransition is returned when a terminal write would break
	// the saved/failed invariants.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

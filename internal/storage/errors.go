package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound indicates the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnavailable indicates the store could not be reached or is failing.
	ErrUnavailable = errors.New("store unavailable")

	// ErrThrottled indicates the request was rate limited by the store.
	ErrThrottled = errors.New("request throttled")
)

// Error wraps backend-specific errors with context.
type Error struct {
	// Op is the operation that failed (Put, Stat, ...).
	Op string
	// Backend is the store type (s3, minio, file).
	Backend string
	Bucket  string
	Key     string
	// Err is a sentinel above when the failure could be classified, otherwise
	// the raw backend error.
	Err error
	// Cause keeps the raw backend error when Err was replaced by a sentinel.
	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Backend, e.Op)
	switch {
	case e.Key != "" && e.Bucket != "":
		msg += fmt.Sprintf(": %s/%s", e.Bucket, e.Key)
	case e.Key != "":
		msg += ": " + e.Key
	case e.Bucket != "":
		msg += ": " + e.Bucket
	}
	msg += fmt.Sprintf(": %v", e.Err)
	if e.Cause != nil && e.Cause != e.Err {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying errors for errors.Is/As support.
func (e *Error) Unwrap() []error {
	if e.Cause != nil && e.Cause != e.Err {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

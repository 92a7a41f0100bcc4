// Package storage defines the artifact store capability used to persist
// final encodes, and the error vocabulary shared by its backends.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ContentTypeMP4 is stored with every artifact and echoed when streaming.
const ContentTypeMP4 = "video/mp4"

// Location identifies a stored artifact.
type Location struct {
	Backend string
	Bucket  string
	Key     string
}

// URI renders the location as scheme://bucket/key (file:///path for the
// local backend).
func (l Location) URI() string {
	if l.Bucket == "" {
		return fmt.Sprintf("%s://%s", l.Backend, l.Key)
	}
	return fmt.Sprintf("%s://%s/%s", l.Backend, l.Bucket, l.Key)
}

// ObjectInfo describes a stored artifact.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ByteRange is an inclusive byte span.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// Store persists and serves encoded artifacts.
//
// Put uploads a local file and is never retried by implementations. Delete
// of a missing key succeeds. Exists reports false, not an error, for a
// missing key. Open with a nil range returns the whole object.
type Store interface {
	Put(ctx context.Context, localPath, key string) (Location, error)
	Presign(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Open(ctx context.Context, key string, rng *ByteRange) (io.ReadCloser, error)
	// EnsureBucket creates the bucket or root directory when missing.
	EnsureBucket(ctx context.Context) error
	Backend() string
}

// Key joins a prefix and an artifact filename.
func Key(prefix, filename string) string {
	if prefix == "" {
		return filename
	}
	return strings.TrimSuffix(prefix, "/") + "/" + filename
}

// ValidFilename reports whether name is a bare artifact filename that cannot
// escape the key prefix.
func ValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return path.Base(name) == name
}

// Package local implements storage.Store on a directory of the host
// filesystem. Presigned URLs point back at the service's own streaming
// route since there is no external object server to sign for.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"burnin/internal/storage"
)

const backendName = "file"

// URLFunc maps an artifact filename to a client-reachable URL.
type URLFunc func(filename string) string

// Store keeps artifacts under Root.
type Store struct {
	root   string
	urlFor URLFunc
}

var _ storage.Store = (*Store)(nil)

// New returns a store rooted at root. urlFor builds Presign results.
func New(root string, urlFor URLFunc) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("local: root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local: resolve root: %w", err)
	}
	if urlFor == nil {
		return nil, errors.New("local: url builder is required")
	}
	return &Store{root: abs, urlFor: urlFor}, nil
}

// Root returns the absolute directory artifacts are written to.
func (s *Store) Root() string { return s.root }

// Backend reports the store type.
func (s *Store) Backend() string { return backendName }

func (s *Store) resolve(op, key string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(key, `\`, "/"))
	if clean == "/" || strings.Contains(key, "..") {
		return "", &storage.Error{Op: op, Backend: backendName, Key: key, Err: fmt.Errorf("invalid key %q", key)}
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *Store) wrap(op, key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &storage.Error{Op: op, Backend: backendName, Key: key, Err: storage.ErrNotFound, Cause: err}
	}
	if errors.Is(err, fs.ErrPermission) {
		return &storage.Error{Op: op, Backend: backendName, Key: key, Err: storage.ErrAccessDenied, Cause: err}
	}
	return &storage.Error{Op: op, Backend: backendName, Key: key, Err: err}
}

// Put copies localPath into the store through a temp file and rename so
// readers never observe a partial artifact.
func (s *Store) Put(ctx context.Context, localPath, key string) (storage.Location, error) {
	dest, err := s.resolve("Put", key)
	if err != nil {
		return storage.Location{}, err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return storage.Location{}, s.wrap("Put", key, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return storage.Location{}, s.wrap("Put", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return storage.Location{}, s.wrap("Put", key, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: src}); err != nil {
		cleanup()
		return storage.Location{}, s.wrap("Put", key, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return storage.Location{}, s.wrap("Put", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return storage.Location{}, s.wrap("Put", key, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return storage.Location{}, s.wrap("Put", key, err)
	}
	return storage.Location{Backend: backendName, Key: dest}, nil
}

// Presign returns the streaming URL for the artifact. Local artifacts carry
// no signature or expiry.
func (s *Store) Presign(ctx context.Context, key string) (string, error) {
	if _, err := s.Stat(ctx, key); err != nil {
		return "", err
	}
	return s.urlFor(path.Base(key)), nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.resolve("Delete", key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return s.wrap("Delete", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if storage.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Stat returns artifact metadata.
func (s *Store) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	p, err := s.resolve("Stat", key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return storage.ObjectInfo{}, s.wrap("Stat", key, err)
	}
	if info.IsDir() {
		return storage.ObjectInfo{}, s.wrap("Stat", key, fs.ErrNotExist)
	}
	contentType := mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" || strings.EqualFold(filepath.Ext(p), ".mp4") {
		contentType = storage.ContentTypeMP4
	}
	return storage.ObjectInfo{Key: key, Size: info.Size(), ContentType: contentType, LastModified: info.ModTime()}, nil
}

// Open streams key, or the inclusive span rng of it.
func (s *Store) Open(_ context.Context, key string, rng *storage.ByteRange) (io.ReadCloser, error) {
	p, err := s.resolve("Open", key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, s.wrap("Open", key, err)
	}
	if rng == nil {
		return f, nil
	}
	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, s.wrap("Open", key, err)
	}
	return &sectionReader{Reader: io.LimitReader(f, rng.Length()), Closer: f}, nil
}

// EnsureBucket creates the root directory.
func (s *Store) EnsureBucket(context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return &storage.Error{Op: "EnsureBucket", Backend: backendName, Key: s.root, Err: err}
	}
	return nil
}

type sectionReader struct {
	io.Reader
	io.Closer
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

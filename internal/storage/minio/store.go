// Package minio implements storage.Store on a MinIO server.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"burnin/internal/storage"
)

const backendName = "minio"

// Config configures a MinIO store.
type Config struct {
	// Endpoint is host:port. A http:// or https:// prefix overrides UseSSL.
	Endpoint          string
	Bucket            string
	Region            string
	AccessKeyID       string
	SecretAccessKey   string
	UseSSL            bool
	PresignTTLSeconds int
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Endpoint) == "":
		return errors.New("minio: endpoint is required")
	case c.Bucket == "":
		return errors.New("minio: bucket name is required")
	case c.AccessKeyID == "" || c.SecretAccessKey == "":
		return errors.New("minio: access key ID and secret access key are required")
	case c.PresignTTLSeconds <= 0:
		return errors.New("minio: presign ttl must be positive")
	}
	return nil
}

// splitEndpoint strips an optional scheme from endpoint.
func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	endpoint = strings.TrimSpace(endpoint)
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https") {
		return u.Host, u.Scheme == "https"
	}
	return strings.TrimSuffix(endpoint, "/"), useSSL
}

// api is the subset of *minio.Client the store calls.
type api interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration, params url.Values) (*url.URL, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
}

type openFunc func(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, error)

// Store implements storage.Store for MinIO.
type Store struct {
	client api
	open   openFunc
	bucket string
	region string
	ttl    time.Duration
}

var _ storage.Store = (*Store)(nil)

// New connects a MinIO client. No request is made until first use.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &storage.Error{Op: "New", Backend: backendName, Bucket: cfg.Bucket, Err: fmt.Errorf("minio connection: %w", err)}
	}
	return newWithClient(client, openObject(client), cfg.Bucket, cfg.Region, time.Duration(cfg.PresignTTLSeconds)*time.Second), nil
}

func newWithClient(client api, open openFunc, bucket, region string, ttl time.Duration) *Store {
	return &Store{client: client, open: open, bucket: bucket, region: region, ttl: ttl}
}

// openObject surfaces missing-object errors at open time; minio defers
// them to the first Read otherwise.
func openObject(client *minio.Client) openFunc {
	return func(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
		obj, err := client.GetObject(ctx, bucket, object, opts)
		if err != nil {
			return nil, err
		}
		if _, err := obj.Stat(); err != nil {
			_ = obj.Close()
			return nil, err
		}
		return obj, nil
	}
}

// Backend reports the store type.
func (s *Store) Backend() string { return backendName }

// Put uploads localPath to key as video/mp4.
func (s *Store) Put(ctx context.Context, localPath, key string) (storage.Location, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return storage.Location{}, &storage.Error{Op: "Put", Backend: backendName, Bucket: s.bucket, Key: key, Err: err}
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return storage.Location{}, &storage.Error{Op: "Put", Backend: backendName, Bucket: s.bucket, Key: key, Err: err}
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, file, stat.Size(), minio.PutObjectOptions{
		ContentType: storage.ContentTypeMP4,
	})
	if err != nil {
		return storage.Location{}, s.wrapError("Put", key, err)
	}
	return storage.Location{Backend: backendName, Bucket: s.bucket, Key: key}, nil
}

// Presign returns a time-limited GET URL for key.
func (s *Store) Presign(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, nil)
	if err != nil {
		return "", s.wrapError("Presign", key, err)
	}
	return u.String(), nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		wrapped := s.wrapError("Delete", key, err)
		if storage.IsNotFound(wrapped) {
			return nil
		}
		return wrapped
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

// Stat returns object metadata.
func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, s.wrapError("Stat", key, err)
	}
	return storage.ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// Open streams key, or the inclusive span rng of it.
func (s *Store) Open(ctx context.Context, key string, rng *storage.ByteRange) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if rng != nil {
		if err := opts.SetRange(rng.Start, rng.End); err != nil {
			return nil, &storage.Error{Op: "Open", Backend: backendName, Bucket: s.bucket, Key: key, Err: err}
		}
	}
	body, err := s.open(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, s.wrapError("Open", key, err)
	}
	return body, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return s.wrapError("BucketExists", "", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return s.wrapError("MakeBucket", "", err)
	}
	return nil
}

func (s *Store) wrapError(op, key string, err error) error {
	wrapped := &storage.Error{Op: op, Backend: backendName, Bucket: s.bucket, Key: key, Err: err}
	if sentinel := classify(err); sentinel != nil {
		wrapped.Err = sentinel
		wrapped.Cause = err
	}
	return wrapped
}

func classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchObject":
		return storage.ErrNotFound
	case "NoSuchBucket":
		return storage.ErrBucketNotFound
	case "AccessDenied":
		return storage.ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return storage.ErrInvalidCredentials
	case "SlowDown", "XMinioServerNotInitialized":
		return storage.ErrThrottled
	case "ServiceUnavailable", "InternalError":
		return storage.ErrUnavailable
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return storage.ErrNotFound
	case http.StatusForbidden:
		return storage.ErrAccessDenied
	case http.StatusServiceUnavailable:
		return storage.ErrUnavailable
	}
	if strings.Contains(err.Error(), "connection refused") {
		return storage.ErrUnavailable
	}
	return nil
}

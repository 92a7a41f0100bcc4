package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burnin/internal/storage"
)

var errNoSuchKey = minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound, Message: "The specified key does not exist."}

type fakeClient struct {
	objects      map[string][]byte
	contentType  map[string]string
	bucketExists bool
	madeBucket   string
	madeRegion   string
	presignTTL   time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, contentType: map[string]string{}, bucketExists: true}
}

func (f *fakeClient) PutObject(_ context.Context, _, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(data)) != size {
		return minio.UploadInfo{}, errors.New("short body")
	}
	f.objects[object] = data
	f.contentType[object] = opts.ContentType
	return minio.UploadInfo{Key: object, Size: size}, nil
}

func (f *fakeClient) PresignedGetObject(_ context.Context, bucket, object string, expires time.Duration, _ url.Values) (*url.URL, error) {
	f.presignTTL = expires
	return url.Parse("http://minio.local:9000/" + bucket + "/" + object + "?X-Amz-Expires=3600")
}

func (f *fakeClient) RemoveObject(_ context.Context, _, object string, _ minio.RemoveObjectOptions) error {
	delete(f.objects, object)
	return nil
}

func (f *fakeClient) StatObject(_ context.Context, _, object string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	data, ok := f.objects[object]
	if !ok {
		return minio.ObjectInfo{}, errNoSuchKey
	}
	return minio.ObjectInfo{Key: object, Size: int64(len(data)), ContentType: f.contentType[object]}, nil
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeClient) MakeBucket(_ context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.madeBucket = bucket
	f.madeRegion = opts.Region
	return nil
}

func (f *fakeClient) opener() openFunc {
	return func(_ context.Context, _, object string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
		data, ok := f.objects[object]
		if !ok {
			return nil, errNoSuchKey
		}
		if hdr := opts.Header().Get("Range"); hdr != "" {
			var start, end int
			if _, err := fmt.Sscanf(hdr, "bytes=%d-%d", &start, &end); err != nil {
				return nil, err
			}
			data = data[start : end+1]
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

func newTestStore(f *fakeClient) *Store {
	return newWithClient(f, f.opener(), "videos", "us-east-1", time.Hour)
}

func TestValidate(t *testing.T) {
	valid := Config{Endpoint: "localhost:9000", Bucket: "videos", AccessKeyID: "minio", SecretAccessKey: "minio123", PresignTTLSeconds: 60}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.Endpoint = ""
	assert.ErrorContains(t, missing.Validate(), "endpoint")

	missing = valid
	missing.SecretAccessKey = ""
	assert.ErrorContains(t, missing.Validate(), "secret access key")
}

func TestSplitEndpoint(t *testing.T) {
	host, secure := splitEndpoint("https://minio.example.com", false)
	assert.Equal(t, "minio.example.com", host)
	assert.True(t, secure)

	host, secure = splitEndpoint("localhost:9000", false)
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)
}

func TestRoundTrip(t *testing.T) {
	client := newFakeClient()
	store := newTestStore(client)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "job_1_final.mp4")
	require.NoError(t, os.WriteFile(src, []byte("abcdefghij"), 0o644))

	loc, err := store.Put(ctx, src, "videos/job_1_final.mp4")
	require.NoError(t, err)
	assert.Equal(t, "minio://videos/videos/job_1_final.mp4", loc.URI())
	assert.Equal(t, storage.ContentTypeMP4, client.contentType["videos/job_1_final.mp4"])

	info, err := store.Stat(ctx, "videos/job_1_final.mp4")
	require.NoError(t, err)
	assert.EqualValues(t, 10, info.Size)

	body, err := store.Open(ctx, "videos/job_1_final.mp4", &storage.ByteRange{Start: 3, End: 6})
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "defg", string(data))

	presigned, err := store.Presign(ctx, "videos/job_1_final.mp4")
	require.NoError(t, err)
	assert.Contains(t, presigned, "/videos/videos/job_1_final.mp4")
	assert.Equal(t, time.Hour, client.presignTTL)

	require.NoError(t, store.Delete(ctx, "videos/job_1_final.mp4"))
	exists, err := store.Exists(ctx, "videos/job_1_final.mp4")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Open(ctx, "videos/job_1_final.mp4", nil)
	assert.True(t, storage.IsNotFound(err))
}

func TestEnsureBucketCreatesMissing(t *testing.T) {
	client := newFakeClient()
	client.bucketExists = false
	store := newWithClient(client, client.opener(), "videos", "eu-central-1", time.Hour)

	require.NoError(t, store.EnsureBucket(context.Background()))
	assert.Equal(t, "videos", client.madeBucket)
	assert.Equal(t, "eu-central-1", client.madeRegion)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", errNoSuchKey, storage.ErrNotFound},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404}, storage.ErrBucketNotFound},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}, storage.ErrAccessDenied},
		{"bad signature", minio.ErrorResponse{Code: "SignatureDoesNotMatch", StatusCode: 403}, storage.ErrInvalidCredentials},
		{"bare 404", minio.ErrorResponse{StatusCode: 404}, storage.ErrNotFound},
		{"bare 503", minio.ErrorResponse{StatusCode: 503}, storage.ErrUnavailable},
		{"refused", errors.New("dial tcp 127.0.0.1:9000: connect: connection refused"), storage.ErrUnavailable},
		{"other", errors.New("boom"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

// Package backend builds the configured storage.Store.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"burnin/internal/config"
	"burnin/internal/logging"
	"burnin/internal/storage"
	"burnin/internal/storage/local"
	"burnin/internal/storage/minio"
	"burnin/internal/storage/s3"
)

// Open constructs the store selected by cfg.Storage.Backend and, when
// create_bucket is set (always for local), makes sure its bucket exists.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage: config is required")
	}
	logger = logging.NewComponentLogger(logger, "storage")
	sc := cfg.Storage

	var (
		store  storage.Store
		err    error
		ensure = sc.CreateBucket
	)
	switch sc.Backend {
	case config.BackendS3:
		store, err = s3.New(ctx, s3.Config{
			Bucket:            sc.Bucket,
			Region:            sc.Region,
			Endpoint:          sc.Endpoint,
			Profile:           sc.Profile,
			AccessKeyID:       sc.AccessKeyID,
			SecretAccessKey:   sc.SecretAccessKey,
			ForcePathStyle:    sc.ForcePathStyle,
			PresignTTLSeconds: sc.PresignTTLSeconds,
		})
	case config.BackendMinIO:
		store, err = minio.New(minio.Config{
			Endpoint:          sc.Endpoint,
			Bucket:            sc.Bucket,
			Region:            sc.Region,
			AccessKeyID:       sc.AccessKeyID,
			SecretAccessKey:   sc.SecretAccessKey,
			UseSSL:            sc.UseSSL,
			PresignTTLSeconds: sc.PresignTTLSeconds,
		})
	case config.BackendLocal:
		store, err = local.New(sc.LocalDir, cfg.StreamURL)
		ensure = true
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", sc.Backend)
	}
	if err != nil {
		return nil, err
	}

	if ensure {
		ectx, cancel := context.WithTimeout(ctx, cfg.StorageTimeout())
		defer cancel()
		if err := store.EnsureBucket(ectx); err != nil {
			return nil, fmt.Errorf("storage: ensure bucket: %w", err)
		}
	}

	logger.Info("artifact store ready",
		logging.String("backend", store.Backend()),
		logging.String("bucket", sc.Bucket),
		logging.String("prefix", sc.Prefix),
	)
	return store, nil
}

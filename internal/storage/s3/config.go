// Package s3 implements storage.Store on AWS S3 and S3-compatible services.
package s3

import "errors"

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

// Config configures an S3 store.
//
// Credentials follow the AWS SDK v2 default chain unless AccessKeyID and
// SecretAccessKey are both set. For S3-compatible services set Endpoint and
// usually ForcePathStyle; no default region is applied in that case.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	// PresignTTLSeconds bounds the lifetime of presigned GET URLs.
	PresignTTLSeconds int
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3: bucket name is required")
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return errors.New("s3: access key ID and secret access key must be provided together")
	}
	if c.PresignTTLSeconds <= 0 {
		return errors.New("s3: presign ttl must be positive")
	}
	return nil
}

// resolveRegion applies the us-east-1 fallback for AWS proper once the SDK
// has had its chance to resolve a region from config, env, or profile.
func resolveRegion(endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}

// Package minio implements provider.Store on top of minio-go for MinIO and
// other S3-compatible servers that prefer the MinIO client.
package minio

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/3leaps/keeptree/pkg/provider"
)

// DefaultMaxKeys is the default page size for List operations.
const DefaultMaxKeys = 1000

// Config configures a MinIO provider.
type Config struct {
	// Endpoint is host[:port] without scheme (required).
	Endpoint string

	// Bucket is the bucket name (required).
	Bucket string

	// AccessKeyID and SecretAccessKey are static credentials.
	// Both empty means anonymous access.
	AccessKeyID     string
	SecretAccessKey string

	// Secure selects https.
	Secure bool

	// Region is sent with MakeBucket and request signing. Optional.
	Region string

	// MaxKeys is the default page size for List operations.
	MaxKeys int
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "minio config: " + e.Field + ": " + e.Message
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return &ConfigError{Field: "Endpoint", Message: "endpoint is required"}
	}
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}
	return nil
}

// Provider implements provider.Store using minio-go.
type Provider struct {
	client  *minio.Client
	bucket  string
	region  string
	maxKeys int
}

var _ provider.Store = (*Provider)(nil)

// New creates a MinIO provider. No network calls are made.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Secure: cfg.Secure,
		Region: cfg.Region,
	}
	if cfg.AccessKeyID != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderMinio, Container: cfg.Bucket, Err: err}
	}

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	return &Provider{client: client, bucket: cfg.Bucket, region: cfg.Region, maxKeys: maxKeys}, nil
}

// CreateContainer creates the bucket.
func (p *Provider) CreateContainer(ctx context.Context) error {
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region}); err != nil {
		return p.wrapError("CreateContainer", "", err)
	}
	return nil
}

// PutObject uploads an object. A no-overwrite put sends If-None-Match: *.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, size int64, opts provider.PutOptions) error {
	putOpts := minio.PutObjectOptions{ContentType: opts.ContentType}
	if putOpts.ContentType == "" {
		putOpts.ContentType = "application/octet-stream"
	}
	if !opts.Overwrite {
		putOpts.SetMatchETagExcept("*")
	}

	if _, err := p.client.PutObject(ctx, p.bucket, key, body, size, putOpts); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

// DeleteObject deletes an object.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	if err := p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	return nil
}

// List returns a page of objects with the given prefix.
//
// minio-go streams listings over a channel; a page is cut after MaxKeys
// objects and the last key becomes the continuation token.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = p.maxKeys
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := p.client.ListObjects(listCtx, p.bucket, minio.ListObjectsOptions{
		Prefix:     opts.Prefix,
		Recursive:  true,
		StartAfter: opts.ContinuationToken,
	})

	result := &provider.ListResult{Objects: make([]provider.ObjectSummary, 0, maxKeys)}
	for obj := range ch {
		if obj.Err != nil {
			return nil, p.wrapError("List", "", obj.Err)
		}
		if len(result.Objects) == maxKeys {
			result.IsTruncated = true
			result.ContinuationToken = result.Objects[maxKeys-1].Key
			break
		}
		result.Objects = append(result.Objects, provider.ObjectSummary{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return result, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:        op,
		Provider:  provider.ProviderMinio,
		Container: p.bucket,
		Key:       key,
		Err:       err,
	}
	resp := minio.ToErrorResponse(err)
	if sentinel := sentinelForCode(resp.Code); sentinel != nil {
		wrapped.Err = sentinel
	}
	return wrapped
}

// sentinelForCode maps a MinIO/S3 error code to a provider sentinel.
func sentinelForCode(code string) error {
	switch code {
	case "NoSuchKey", "NotFound":
		return provider.ErrNotFound
	case "NoSuchBucket":
		return provider.ErrContainerNotFound
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists", "PreconditionFailed":
		return provider.ErrAlreadyExists
	case "XMinioStorageFull", "XMinioServerNotInitialized", "ServiceUnavailable", "InternalError":
		return provider.ErrProviderUnavailable
	case "AccessDenied":
		return provider.ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return provider.ErrInvalidCredentials
	case "SlowDown", "SlowDownRead", "SlowDownWrite":
		return provider.ErrThrottled
	}
	return nil
}

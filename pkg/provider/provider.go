// Package provider defines abstractions for blob container storage.
//
// A Store is bound to a single container at construction time and exposes
// the minimal capability set needed to mirror directory trees: container
// creation, conditional object upload, object deletion and prefix listing.
// Authentication is the provider's concern; callers only hand over a
// connection description.
package provider

import (
	"context"
	"io"
	"time"
)

// Store abstracts a single blob container.
//
// Implementations should:
//   - Map provider errors onto the sentinel errors in this package
//   - Support pagination via continuation tokens
//   - Be safe for sequential reuse across calls
type Store interface {
	// CreateContainer creates the container.
	// Returns ErrAlreadyExists if it is already present.
	CreateContainer(ctx context.Context) error

	// PutObject uploads size bytes from body to key.
	// When opts.Overwrite is false and key exists, returns ErrAlreadyExists.
	PutObject(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error

	// DeleteObject removes key.
	// Returns ErrNotFound if the object does not exist.
	DeleteObject(ctx context.Context, key string) error

	// List returns a page of objects with the given prefix.
	// Returns ErrContainerNotFound if the container does not exist.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Close releases any resources held by the store.
	Close() error
}

// PutOptions configures a PutObject operation.
type PutOptions struct {
	// Overwrite replaces an existing object. When false the upload is
	// conditional on the key being absent.
	Overwrite bool

	// ContentType is the MIME type stored with the object.
	// Empty lets the provider choose its default.
	ContentType string
}

// ListOptions configures a List operation.
type ListOptions struct {
	// Prefix filters results to keys starting with this value.
	// Empty string lists all objects.
	Prefix string

	// ContinuationToken resumes listing from a previous ListResult.
	// Empty string starts from the beginning.
	ContinuationToken string

	// MaxKeys limits the number of objects returned per page.
	// Zero uses provider default (typically 1000).
	MaxKeys int
}

// ListResult contains a page of objects from a List operation.
type ListResult struct {
	// Objects contains the object summaries for this page.
	Objects []ObjectSummary

	// ContinuationToken is used to retrieve the next page.
	// Empty string indicates no more pages.
	ContinuationToken string

	// IsTruncated indicates whether more results are available.
	IsTruncated bool
}

// ObjectSummary contains basic metadata returned from List operations.
type ObjectSummary struct {
	// Key is the full object name in the container.
	Key string

	// Size is the object size in bytes.
	Size int64

	// LastModified is when the object was last modified.
	LastModified time.Time
}

// ListAll pages through every object under prefix.
func ListAll(ctx context.Context, s Store, prefix string) ([]ObjectSummary, error) {
	var (
		all   []ObjectSummary
		token string
	)
	for {
		res, err := s.List(ctx, ListOptions{Prefix: prefix, ContinuationToken: token})
		if err != nil {
			return nil, err
		}
		all = append(all, res.Objects...)
		if !res.IsTruncated || res.ContinuationToken == "" {
			return all, nil
		}
		token = res.ContinuationToken
	}
}

// ProviderType identifies a storage provider.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or S3-compatible storage.
	ProviderS3 ProviderType = "s3"

	// ProviderMinio represents a MinIO server accessed with minio-go.
	ProviderMinio ProviderType = "minio"

	// ProviderFile represents a local directory acting as a container.
	ProviderFile ProviderType = "file"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}

package blobsync

import (
	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/3leaps/keeptree/pkg/provider"
)

// Option customizes a Client.
type Option func(*Client)

// WithStore injects a store instead of opening one from the connection
// string. The client takes ownership and closes it in Close.
func WithStore(s provider.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithLocalFS sets the filesystem used for local trees and uploads.
// Defaults to the host filesystem rooted at "/".
func WithLocalFS(fsys billy.Filesystem) Option {
	return func(c *Client) {
		if fsys != nil {
			c.fs = fsys
		}
	}
}

// WithRateLimit caps remote calls per second. Zero or less means unlimited.
func WithRateLimit(opsPerSecond float64) Option {
	return func(c *Client) { c.rateLimit = opsPerSecond }
}

// UploadOptions controls UploadTree.
type UploadOptions struct {
	// Overwrite replaces objects that already exist.
	Overwrite bool

	// IgnoreHidden skips files with any dot-prefixed path segment.
	IgnoreHidden bool

	// RemoveKeep deletes placeholders under every prefix that received a file.
	RemoveKeep bool

	// SkipExisting records an existing object as skipped instead of failing.
	// Only consulted when Overwrite is false.
	SkipExisting bool

	// Exclude holds doublestar patterns matched against the slash-separated
	// path relative to the upload root.
	Exclude []string
}

// DefaultUploadOptions overwrites, ignores hidden files and removes
// placeholders.
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{
		Overwrite:    true,
		IgnoreHidden: true,
		RemoveKeep:   true,
	}
}

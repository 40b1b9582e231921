// Package blobsync mirrors directory trees onto a blob container.
//
// Blob stores have no real directories, so an otherwise empty prefix is made
// visible with a zero-byte placeholder object named ".keep". Placeholders are
// created when a prefix is ensured and removed again once a real file lands
// under the same prefix.
package blobsync

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/keeptree/pkg/connect"
	"github.com/3leaps/keeptree/pkg/provider"
	"github.com/3leaps/keeptree/pkg/tree"
)

// PlaceholderName is the object name used to mark an empty prefix.
const PlaceholderName = ".keep"

// Config identifies the remote container.
type Config struct {
	// ConnectionString is parsed by pkg/connect.
	ConnectionString string

	// Container is the bucket or directory name all operations target.
	Container string
}

// Validate checks that both fields are set.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ConnectionString) == "" {
		return &ConfigError{Field: "ConnectionString", Message: "connection string is required"}
	}
	if strings.TrimSpace(c.Container) == "" {
		return &ConfigError{Field: "Container", Message: "container name is required"}
	}
	return nil
}

// Client runs tree operations against one container.
//
// Calls are sequential and never rolled back; a failure leaves earlier
// effects in place.
type Client struct {
	cfg       Config
	store     provider.Store
	fs        billy.Filesystem
	log       *zap.Logger
	rateLimit float64

	// nil if unlimited
	limiter *rate.Limiter
}

// New validates cfg and opens the store.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.fs == nil {
		c.fs = osfs.New("/")
	}
	if c.rateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(c.rateLimit), 1)
	}

	if c.store == nil {
		store, err := connect.Open(ctx, cfg.ConnectionString, cfg.Container)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		c.store = store
	}

	c.log = c.log.With(zap.String("container", cfg.Container))
	return c, nil
}

// Container returns the configured container name.
func (c *Client) Container() string { return c.cfg.Container }

// Close releases the store.
func (c *Client) Close() error {
	return c.store.Close()
}

// EnsurePath makes sure the container exists and, when placeholders is set,
// that prefix carries a placeholder. An empty prefix only ensures the
// container.
func (c *Client) EnsurePath(ctx context.Context, prefix string, placeholders bool) error {
	if err := c.ensureContainer(ctx); err != nil {
		return err
	}
	prefix = tree.TrimPrefix(prefix)
	if !placeholders || prefix == "" {
		return nil
	}
	return c.ensurePlaceholder(ctx, prefix)
}

// EnsureTree ensures the container and, when placeholders is set, a
// placeholder at every leaf of spec rooted at base.
func (c *Client) EnsureTree(ctx context.Context, base string, spec tree.Spec, placeholders bool) error {
	if err := c.ensureContainer(ctx); err != nil {
		return err
	}
	leaves, err := tree.CollectLeafPrefixes(tree.TrimPrefix(base), spec)
	if err != nil {
		return err
	}
	if !placeholders {
		return nil
	}
	for _, p := range leaves {
		if p == "" {
			continue
		}
		if err := c.ensurePlaceholder(ctx, p); err != nil {
			return err
		}
	}
	c.log.Debug("Tree ensured", zap.String("base", base), zap.Int("leaves", len(leaves)))
	return nil
}

// CreateLocalTree creates root and one directory per leaf of spec beneath it
// on the client's local filesystem.
func (c *Client) CreateLocalTree(ctx context.Context, root string, spec tree.Spec) error {
	return CreateLocalTree(ctx, c.fs, root, spec)
}

// CreateLocalTree is Client.CreateLocalTree without a store. The CLI uses it
// so local-tree works without a connection.
func CreateLocalTree(ctx context.Context, fsys billy.Filesystem, root string, spec tree.Spec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fsys.MkdirAll(root, tree.DirPerm); err != nil {
		return fmt.Errorf("create local root %s: %w", root, err)
	}
	return tree.CreateLocalTree(fsys, root, spec)
}

// DeleteFile deletes one object. Leading and trailing slashes are stripped
// from name; a name that is empty afterwards is a ValidationError. A missing
// object is not an error.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	name = tree.TrimPrefix(strings.TrimSpace(name))
	if name == "" {
		return &ValidationError{Field: "name", Message: "object name is required"}
	}
	if err := c.wait(ctx); err != nil {
		return err
	}
	if err := c.store.DeleteObject(ctx, name); err != nil {
		if provider.IsNotFound(err) {
			c.log.Debug("Object already absent", zap.String("name", name))
			return nil
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	c.log.Debug("Object deleted", zap.String("name", name))
	return nil
}

func (c *Client) ensureContainer(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if err := c.store.CreateContainer(ctx); err != nil {
		if provider.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("ensure container %s: %w", c.cfg.Container, err)
	}
	c.log.Info("Container created")
	return nil
}

func (c *Client) ensurePlaceholder(ctx context.Context, prefix string) error {
	name := placeholderFor(prefix)
	if err := c.wait(ctx); err != nil {
		return err
	}
	err := c.store.PutObject(ctx, name, bytes.NewReader(nil), 0, provider.PutOptions{Overwrite: false})
	if err != nil {
		if provider.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("create placeholder %s: %w", name, err)
	}
	c.log.Debug("Placeholder created", zap.String("name", name))
	return nil
}

// wait blocks until the rate limiter allows a request.
// Returns immediately if rate limiting is disabled.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return ctx.Err()
	}
	return c.limiter.Wait(ctx)
}

func placeholderFor(prefix string) string {
	return tree.JoinPrefix(prefix, PlaceholderName)
}

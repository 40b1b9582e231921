// Package file implements provider.Store on a local directory.
//
// The container is a directory under BaseDir and object keys are
// slash-separated paths below it. Directories are implicit: they are created
// on upload and pruned when their last object is deleted, which mirrors how
// hierarchical blob stores model folders.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/3leaps/keeptree/pkg/provider"
)

// Provider implements provider.Store for a local directory.
type Provider struct {
	baseDir   string
	container string
	root      string
}

var _ provider.Store = (*Provider)(nil)

type Config struct {
	// BaseDir holds one directory per container.
	BaseDir string

	// Container is the directory name under BaseDir.
	Container string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	name := strings.TrimSpace(c.Container)
	if name == "" {
		return fmt.Errorf("container is required")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid container name %q", c.Container)
	}
	return nil
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := filepath.Clean(cfg.BaseDir)
	return &Provider{
		baseDir:   base,
		container: cfg.Container,
		root:      filepath.Join(base, cfg.Container),
	}, nil
}

// Root returns the container directory.
func (p *Provider) Root() string { return p.root }

func (p *Provider) Close() error { return nil }

func (p *Provider) CreateContainer(ctx context.Context) error {
	_ = ctx
	if err := os.MkdirAll(p.baseDir, 0o755); err != nil {
		return p.wrapError("CreateContainer", "", err)
	}
	if err := os.Mkdir(p.root, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return p.wrapError("CreateContainer", "", provider.ErrAlreadyExists)
		}
		return p.wrapError("CreateContainer", "", err)
	}
	return nil
}

// PutObject writes body to a temporary file and moves it into place.
// Without Overwrite the final step is a hard link, which fails if the key
// already exists.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, size int64, opts provider.PutOptions) error {
	_ = ctx
	_ = size
	if err := p.requireContainer("PutObject", key); err != nil {
		return err
	}
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".keeptree-put-*")
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := tmp.Close(); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	if !opts.Overwrite {
		if err := os.Link(tmpName, full); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return p.wrapError("PutObject", key, provider.ErrAlreadyExists)
			}
			return p.wrapError("PutObject", key, err)
		}
		return nil
	}

	if err := os.Rename(tmpName, full); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

// DeleteObject removes a file, or an empty directory node.
//
// Deleting a directory that still has entries returns
// provider.ErrDirectoryNotEmpty. Empty parent directories are pruned up to
// the container root.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	_ = ctx
	if err := p.requireContainer("DeleteObject", key); err != nil {
		return err
	}
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	if full == p.root {
		return p.wrapError("DeleteObject", key, fmt.Errorf("invalid key path"))
	}

	st, err := os.Stat(full)
	if err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	if st.IsDir() {
		entries, err := os.ReadDir(full)
		if err != nil {
			return p.wrapError("DeleteObject", key, err)
		}
		if len(entries) > 0 {
			return p.wrapError("DeleteObject", key, provider.ErrDirectoryNotEmpty)
		}
	}

	if err := os.Remove(full); err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	p.pruneEmptyParents(filepath.Dir(full))
	return nil
}

// List returns a page of objects whose keys start with opts.Prefix.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	_ = ctx
	if err := p.requireContainer("List", ""); err != nil {
		return nil, err
	}
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	objects, err := p.collect(opts.Prefix)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}

	start := 0
	if opts.ContinuationToken != "" {
		// Start strictly after the last returned key.
		start = sort.Search(len(objects), func(i int) bool {
			return objects[i].Key > opts.ContinuationToken
		})
	}

	end := start + maxKeys
	if end > len(objects) {
		end = len(objects)
	}

	res := &provider.ListResult{Objects: objects[start:end]}
	if end < len(objects) {
		res.IsTruncated = true
		res.ContinuationToken = objects[end-1].Key
	}
	return res, nil
}

func (p *Provider) collect(prefix string) ([]provider.ObjectSummary, error) {
	var objects []provider.ObjectSummary
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".keeptree-put-") {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, provider.ObjectSummary{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (p *Provider) pruneEmptyParents(dir string) {
	for dir != p.root && strings.HasPrefix(dir, p.root+string(filepath.Separator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (p *Provider) requireContainer(op, key string) error {
	st, err := os.Stat(p.root)
	if err == nil && st.IsDir() {
		return nil
	}
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return p.wrapError(op, key, provider.ErrContainerNotFound)
	}
	return p.wrapError(op, key, err)
}

func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "/")
	// Prevent path traversal.
	clean := filepath.Clean("/" + key)
	clean = strings.TrimPrefix(clean, "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path")
	}
	return filepath.Join(p.root, filepath.FromSlash(clean)), nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Container: p.container, Key: key, Err: err}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		wrapped.Err = provider.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}

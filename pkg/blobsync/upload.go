package blobsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"github.com/3leaps/keeptree/pkg/match"
	"github.com/3leaps/keeptree/pkg/provider"
	"github.com/3leaps/keeptree/pkg/tree"
)

// Skip reasons reported in UploadResult.Skipped.
const (
	SkipHidden   = match.ReasonHidden
	SkipExcluded = match.ReasonExcluded
	SkipExists   = "exists"
)

// sniffLen is how much of a file is read for content type detection.
const sniffLen = 3072

// SkippedFile is a local file UploadTree did not upload.
type SkippedFile struct {
	// Path is relative to the upload root, slash-separated.
	Path string

	// Name is the object name the file would have had. Empty for hidden and
	// excluded files.
	Name string

	Reason string
}

// UploadResult summarizes an UploadTree call.
type UploadResult struct {
	// Uploaded lists object names in walk order.
	Uploaded []string

	Skipped []SkippedFile

	// Placeholders lists the placeholder names cleared after the walk, in
	// sorted prefix order.
	Placeholders []string

	// Bytes is the total size of uploaded files.
	Bytes int64
}

// UploadTree uploads every file under the local directory root to object
// names rooted at blobPrefix.
//
// The root must be an existing directory, otherwise ErrLocalRootNotDir is
// returned before anything is uploaded. After the walk, with RemoveKeep set,
// the placeholder of every prefix that received a file is deleted.
//
// On error the partial result is returned alongside it.
func (c *Client) UploadTree(ctx context.Context, root, blobPrefix string, opts UploadOptions) (*UploadResult, error) {
	matcher, err := match.New(match.Config{Excludes: opts.Exclude, IncludeHidden: !opts.IgnoreHidden})
	if err != nil {
		return nil, &ValidationError{Field: "exclude", Message: err.Error()}
	}

	if err := c.ensureContainer(ctx); err != nil {
		return nil, err
	}

	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local root: %w", err)
	}
	info, err := c.fs.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrLocalRootNotDir)
	}

	blobPrefix = tree.TrimPrefix(blobPrefix)
	res := &UploadResult{}
	prefixes := make(map[string]struct{})
	uploaded := make(map[string]struct{})

	walkErr := util.Walk(c.fs, root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = tree.ToSlash(rel)

		if reason := matcher.Reason(rel); reason != "" {
			res.Skipped = append(res.Skipped, SkippedFile{Path: rel, Reason: reason})
			return nil
		}

		name := tree.JoinPrefix(blobPrefix, rel)
		if err := c.uploadFile(ctx, p, name, fi.Size(), opts.Overwrite); err != nil {
			if !opts.Overwrite && opts.SkipExisting && provider.IsAlreadyExists(err) {
				res.Skipped = append(res.Skipped, SkippedFile{Path: rel, Name: name, Reason: SkipExists})
				recordPrefix(prefixes, name)
				return nil
			}
			return err
		}

		res.Uploaded = append(res.Uploaded, name)
		res.Bytes += fi.Size()
		uploaded[name] = struct{}{}
		recordPrefix(prefixes, name)
		return nil
	})
	if walkErr != nil {
		return res, walkErr
	}

	c.log.Info("Tree uploaded",
		zap.String("root", root),
		zap.String("prefix", blobPrefix),
		zap.Int("uploaded", len(res.Uploaded)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int64("bytes", res.Bytes),
	)

	if !opts.RemoveKeep {
		return res, nil
	}
	removed, err := c.removePlaceholders(ctx, prefixes, uploaded)
	res.Placeholders = removed
	return res, err
}

func (c *Client) uploadFile(ctx context.Context, localPath, name string, size int64, overwrite bool) error {
	f, err := c.fs.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	contentType, err := detectContentType(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", localPath, err)
	}

	if err := c.wait(ctx); err != nil {
		return err
	}
	opts := provider.PutOptions{Overwrite: overwrite, ContentType: contentType}
	if err := c.store.PutObject(ctx, name, f, size, opts); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	c.log.Debug("Object uploaded", zap.String("name", name), zap.Int64("size", size), zap.String("content_type", contentType))
	return nil
}

// detectContentType sniffs the head of f and rewinds it.
func detectContentType(f io.ReadSeeker) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mimetype.Detect(buf[:n]).String(), nil
}

// removePlaceholders deletes the placeholder of every prefix in sorted order.
// Placeholders that were themselves just uploaded are left alone.
func (c *Client) removePlaceholders(ctx context.Context, prefixes map[string]struct{}, uploaded map[string]struct{}) ([]string, error) {
	sorted := make([]string, 0, len(prefixes))
	for p := range prefixes {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var removed []string
	for _, p := range sorted {
		name := placeholderFor(p)
		if _, ok := uploaded[name]; ok {
			continue
		}
		if err := c.wait(ctx); err != nil {
			return removed, err
		}
		if err := c.store.DeleteObject(ctx, name); err != nil {
			if provider.IsNotFound(err) {
				continue
			}
			return removed, fmt.Errorf("remove placeholder %s: %w", name, err)
		}
		removed = append(removed, name)
		c.log.Debug("Placeholder removed", zap.String("name", name))
	}
	return removed, nil
}

func recordPrefix(prefixes map[string]struct{}, name string) {
	if dir := path.Dir(name); dir != "." {
		prefixes[dir] = struct{}{}
	}
}

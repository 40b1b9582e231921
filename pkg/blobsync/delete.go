package blobsync

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/3leaps/keeptree/pkg/provider"
	"github.com/3leaps/keeptree/pkg/tree"
)

// DeleteResult summarizes a DeleteFolder call.
type DeleteResult struct {
	// Deleted lists object names in deletion order.
	Deleted []string

	// Skipped lists names the store refused because they still have
	// children (hierarchical stores only).
	Skipped []string
}

// DeleteFolder deletes every object under prefix. An empty prefix deletes
// the whole container content.
//
// Names are deleted longest first so that hierarchical stores see children
// before their parents. A missing container is a no-op. On error the partial
// result is returned alongside it.
func (c *Client) DeleteFolder(ctx context.Context, prefix string) (*DeleteResult, error) {
	listPrefix := tree.TrimPrefix(prefix)
	if listPrefix != "" {
		listPrefix += "/"
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	objects, err := provider.ListAll(ctx, c.store, listPrefix)
	if err != nil {
		if provider.IsContainerNotFound(err) {
			c.log.Debug("Container missing, nothing to delete", zap.String("prefix", listPrefix))
			return &DeleteResult{}, nil
		}
		return nil, fmt.Errorf("list %q: %w", listPrefix, err)
	}

	names := make([]string, 0, len(objects))
	for _, o := range objects {
		names = append(names, o.Key)
	}
	sortForDeletion(names)

	res := &DeleteResult{}
	for _, name := range names {
		if err := c.wait(ctx); err != nil {
			return res, err
		}
		err := c.store.DeleteObject(ctx, name)
		switch {
		case err == nil:
			res.Deleted = append(res.Deleted, name)
		case provider.IsNotFound(err):
		case provider.IsDirectoryNotEmpty(err):
			res.Skipped = append(res.Skipped, name)
			c.log.Debug("Skipping non-empty directory", zap.String("name", name))
		default:
			return res, fmt.Errorf("delete %s: %w", name, err)
		}
	}

	c.log.Info("Folder deleted",
		zap.String("prefix", listPrefix),
		zap.Int("deleted", len(res.Deleted)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// sortForDeletion orders names by descending length, then descending name.
func sortForDeletion(names []string) {
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] > names[j]
	})
}

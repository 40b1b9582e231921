package tree

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
)

// DirPerm is the permission used for directories created by CreateLocalTree.
const DirPerm = 0o755

// CollectLeafPrefixes returns one prefix per leaf of spec, rooted at base.
//
// Traversal is depth-first in declaration order. Each prefix is base joined
// with every ancestor name. A leaf spec with an empty base yields a single
// empty prefix.
func CollectLeafPrefixes(base string, spec Spec) ([]string, error) {
	var leaves []string
	if err := walk(base, "", spec, &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func walk(prefix, at string, spec Spec, leaves *[]string) error {
	if spec.IsLeaf() {
		*leaves = append(*leaves, TrimPrefix(prefix))
		return nil
	}
	for i, e := range spec {
		if e.Name == "" {
			return structuralf(at, "entry %d: name must be a non-empty string", i)
		}
		if err := walk(JoinPrefix(prefix, e.Name), JoinPrefix(at, e.Name), e.Children, leaves); err != nil {
			return err
		}
	}
	return nil
}

// CreateLocalTree creates one directory under root for every leaf of spec.
//
// Existing directories are left untouched. No files are created.
func CreateLocalTree(fsys billy.Filesystem, root string, spec Spec) error {
	prefixes, err := CollectLeafPrefixes("", spec)
	if err != nil {
		return err
	}
	for _, p := range prefixes {
		dir := root
		if p != "" {
			dir = fsys.Join(root, p)
		}
		if err := fsys.MkdirAll(dir, DirPerm); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

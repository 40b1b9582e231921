package tree

import (
	"fmt"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML or JSON document into a Spec.
//
// The document root must be a mapping. Every key must be a non-empty
// string and every value must itself be a mapping; "{}" marks a leaf.
// Declaration order is preserved.
//
//	projects:
//	  alpha: {}
//	  beta:
//	    raw: {}
//	archive: {}
func Parse(data []byte) (Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, structuralf("", "document is empty")
	}
	return fromNode("", doc.Content[0])
}

// ParseFile reads and parses a spec document from fsys.
func ParseFile(fsys billy.Filesystem, path string) (Spec, error) {
	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read tree spec %s: %w", path, err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse tree spec %s: %w", path, err)
	}
	return spec, nil
}

func fromNode(at string, n *yaml.Node) (Spec, error) {
	for n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return nil, structuralf(at, "value must be a mapping, got %s", describeNode(n))
	}

	spec := make(Spec, 0, len(n.Content)/2)
	seen := make(map[string]struct{}, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.ShortTag() != "!!str" {
			return nil, structuralf(at, "key at line %d must be a string", key.Line)
		}
		if key.Value == "" {
			return nil, structuralf(at, "key at line %d must be non-empty", key.Line)
		}
		if _, dup := seen[key.Value]; dup {
			return nil, structuralf(at, "duplicate key %q", key.Value)
		}
		seen[key.Value] = struct{}{}

		children, err := fromNode(JoinPrefix(at, key.Value), val)
		if err != nil {
			return nil, err
		}
		spec = append(spec, Entry{Name: key.Value, Children: children})
	}
	return spec, nil
}

func describeNode(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return "null"
		}
		return fmt.Sprintf("scalar %q", n.Value)
	default:
		return "unsupported node"
	}
}

// FromValue converts generically decoded data into a Spec.
//
// Accepted node types are map[string]any, map[any]any with string keys,
// and Spec. Go maps carry no order, so keys are visited in sorted order.
func FromValue(v any) (Spec, error) {
	return fromValue("", v)
}

func fromValue(at string, v any) (Spec, error) {
	switch m := v.(type) {
	case Spec:
		if _, err := CollectLeafPrefixes(at, m); err != nil {
			return nil, err
		}
		return m, nil
	case map[string]any:
		return fromStringMap(at, m)
	case map[any]any:
		sm := make(map[string]any, len(m))
		for k, child := range m {
			name, ok := k.(string)
			if !ok {
				return nil, structuralf(at, "key %v must be a string, got %T", k, k)
			}
			sm[name] = child
		}
		return fromStringMap(at, sm)
	default:
		return nil, structuralf(at, "value must be a mapping, got %T", v)
	}
}

func fromStringMap(at string, m map[string]any) (Spec, error) {
	names := make([]string, 0, len(m))
	for k := range m {
		if k == "" {
			return nil, structuralf(at, "keys must be non-empty strings")
		}
		names = append(names, k)
	}
	sort.Strings(names)

	spec := make(Spec, 0, len(names))
	for _, name := range names {
		children, err := fromValue(JoinPrefix(at, name), m[name])
		if err != nil {
			return nil, err
		}
		spec = append(spec, Entry{Name: name, Children: children})
	}
	return spec, nil
}

// Package tree describes directory hierarchies as nested, ordered mappings
// and converts them into slash-joined leaf prefixes.
//
// A Spec is an ordered list of named entries. An entry whose Children is
// empty is a leaf: a directory with no further declared children. The same
// leaf prefixes are used as remote object-name prefixes and as local
// directory paths.
package tree

// Entry is a single named node of a Spec.
type Entry struct {
	// Name is one or more path segments. Surrounding slashes are ignored.
	Name string

	// Children describes the subtree below Name. Empty means leaf.
	Children Spec
}

// Spec is a tree specification. Iteration order is declaration order.
type Spec []Entry

// Dir returns an entry with the given children.
func Dir(name string, children ...Entry) Entry {
	return Entry{Name: name, Children: Spec(children)}
}

// IsLeaf reports whether the spec declares no children.
func (s Spec) IsLeaf() bool {
	return len(s) == 0
}

// Names returns the entry names at this level in declaration order.
func (s Spec) Names() []string {
	names := make([]string, 0, len(s))
	for _, e := range s {
		names = append(names, e.Name)
	}
	return names
}

// Lookup returns the children of the named entry at this level.
func (s Spec) Lookup(name string) (Spec, bool) {
	for _, e := range s {
		if e.Name == name {
			return e.Children, true
		}
	}
	return nil, false
}

// Leaves returns the number of leaf nodes in the spec.
// An empty spec is itself a single leaf.
func (s Spec) Leaves() int {
	if s.IsLeaf() {
		return 1
	}
	n := 0
	for _, e := range s {
		n += e.Children.Leaves()
	}
	return n
}

package taxonomy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind tags what a node holds.
type Kind uint8

const (
	KindInternal Kind = iota + 1
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// ErrKindConflict is returned when one path is needed both as a branch and as a leaf set.
var ErrKindConflict = errors.New("taxonomy node kind conflict")

// ConflictError names the path whose node kind disagrees between entries.
type ConflictError struct {
	Path      []string
	EntryID   string
	Existing  Kind
	Requested Kind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("taxonomy path %q is a %s node, entry %s needs a %s node",
		strings.Join(e.Path, " / "), e.Existing, e.EntryID, e.Requested)
}

func (e *ConflictError) Is(target error) bool { return target == ErrKindConflict }

// Ref points at one classified resource.
type Ref struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Branch is a labelled edge to a child node.
type Branch struct {
	Label string
	Node  *Node
}

// Node is either internal (labelled children) or a leaf (a set of refs), never both.
type Node struct {
	kind Kind

	// internal
	branches []*Branch
	index    map[string]*Branch

	// leaf
	refs []Ref
	ids  map[string]struct{}
}

func newInternal() *Node {
	return &Node{kind: KindInternal, index: make(map[string]*Branch)}
}

func newLeaf() *Node {
	return &Node{kind: KindLeaf, ids: make(map[string]struct{})}
}

// Kind reports the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Branches returns children in insertion order. Empty for leaves.
func (n *Node) Branches() []Branch {
	out := make([]Branch, 0, len(n.branches))
	for _, b := range n.branches {
		out = append(out, *b)
	}
	return out
}

// Refs returns the leaf set in insertion order. Empty for internal nodes.
func (n *Node) Refs() []Ref {
	out := make([]Ref, len(n.refs))
	copy(out, n.refs)
	return out
}

// Child looks a label up with the same folding used while building.
func (n *Node) Child(label string) (*Node, bool) {
	if n.kind != KindInternal {
		return nil, false
	}
	b, ok := n.index[newFolder().key(label)]
	if !ok {
		return nil, false
	}
	return b.Node, true
}

// Len is the number of children or refs.
func (n *Node) Len() int {
	if n.kind == KindLeaf {
		return len(n.refs)
	}
	return len(n.branches)
}

// MarshalJSON renders internal nodes as objects in insertion order and leaves as arrays.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.kind == KindLeaf {
		return json.Marshal(n.Refs())
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, b := range n.branches {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(b.Label)
		if err != nil {
			return nil, err
		}
		val, err := b.Node.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Tree is the hierarchical index. The root is always internal.
type Tree struct {
	root *Node
}

// Root returns the top-level node.
func (t *Tree) Root() *Node { return t.root }

// Empty reports whether no entry was placed.
func (t *Tree) Empty() bool { return t.root.Len() == 0 }

// Lookup walks a label path from the root.
func (t *Tree) Lookup(path ...string) (*Node, bool) {
	n := t.root
	for _, label := range path {
		next, ok := n.Child(label)
		if !ok {
			return nil, false
		}
		n = next
	}
	return n, true
}

// Count returns the number of refs stored across all leaves.
func (t *Tree) Count() int { return countRefs(t.root) }

func countRefs(n *Node) int {
	if n.kind == KindLeaf {
		return len(n.refs)
	}
	total := 0
	for _, b := range n.branches {
		total += countRefs(b.Node)
	}
	return total
}

func (t *Tree) MarshalJSON() ([]byte, error) { return t.root.MarshalJSON() }

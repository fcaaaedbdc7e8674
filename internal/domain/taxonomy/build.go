package taxonomy

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

// flattenedFormat is the content format that never gets its own level.
const flattenedFormat = "html"

// Build aggregates history into a fresh tree.
//
// Entries without a classification are skipped. Each classified entry is placed at
// urlType / contentFormat (omitted for html) / hierarchy..., and its ref is added to
// the leaf set at the end of that path unless the id is already there.
// Branch labels match case-insensitively after trimming; the first label seen is kept.
func Build(entries []classification.HistoryEntry) (*Tree, error) {
	b := builder{root: newInternal(), fold: newFolder()}
	for i := range entries {
		if err := b.add(&entries[i]); err != nil {
			return nil, err
		}
	}
	return &Tree{root: b.root}, nil
}

// BuildFrom is Build over pointers, as returned by repositories.
func BuildFrom(entries []*classification.HistoryEntry) (*Tree, error) {
	flat := make([]classification.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			flat = append(flat, *e)
		}
	}
	return Build(flat)
}

// Path returns the labels under which a classification is filed, leaf label last.
func Path(c classification.Classification) []string {
	c = c.WithDefaults()
	path := make([]string, 0, 2+len(c.ContentTypeHierarchy))
	path = append(path, c.URLType)
	if newFolder().key(c.ContentFormat) != flattenedFormat {
		path = append(path, c.ContentFormat)
	}
	return append(path, c.ContentTypeHierarchy...)
}

type builder struct {
	root *Node
	fold folder
}

func (b *builder) add(e *classification.HistoryEntry) error {
	if !e.Classified() {
		return nil
	}
	path := Path(*e.Classification)

	n := b.root
	for depth, label := range path {
		want := KindInternal
		if depth == len(path)-1 {
			want = KindLeaf
		}
		next, err := b.findOrCreate(n, label, want)
		if err != nil {
			if ce, ok := err.(*ConflictError); ok {
				ce.Path = append([]string(nil), path[:depth+1]...)
				ce.EntryID = e.ID
			}
			return err
		}
		n = next
	}

	if _, dup := n.ids[e.ID]; dup {
		return nil
	}
	n.ids[e.ID] = struct{}{}
	n.refs = append(n.refs, Ref{ID: e.ID, URL: e.URL})
	return nil
}

func (b *builder) findOrCreate(parent *Node, label string, want Kind) (*Node, error) {
	key := b.fold.key(label)
	if br, ok := parent.index[key]; ok {
		if br.Node.kind != want {
			return nil, &ConflictError{Existing: br.Node.kind, Requested: want}
		}
		return br.Node, nil
	}

	child := newInternal()
	if want == KindLeaf {
		child = newLeaf()
	}
	br := &Branch{Label: strings.TrimSpace(label), Node: child}
	parent.index[key] = br
	parent.branches = append(parent.branches, br)
	return child, nil
}

// folder produces normalized branch keys. A cases.Caser is not safe for concurrent use,
// so each build gets its own.
type folder struct {
	caser cases.Caser
}

func newFolder() folder { return folder{caser: cases.Fold()} }

func (f folder) key(label string) string {
	return f.caser.String(strings.TrimSpace(label))
}

package object

import (
	"context"
	"strings"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/codec"
	"github.com/attaca-vcs/attaca/modules/digest"
)

// TreeEntry is one sorted mapping from path-component name to a Reference
// of kind {Small, Large, Tree}, matching §3's Tree entity exactly.
type TreeEntry struct {
	Name string
	Ref  Reference
}

// Tree is the decoded, in-memory view of a Tree object, sorted by Name
// with a name-lookup cache the way the teacher's object/tree.go keeps an
// `m map[string]*TreeEntry` alongside the ordered slice to make repeated
// FindEntry/Entry calls O(1) instead of a binary search each time.
type Tree struct {
	Handle  backend.Handle
	Entries []TreeEntry

	byName map[string]*TreeEntry
}

func newTree(h backend.Handle, entries []TreeEntry) *Tree {
	t := &Tree{Handle: h, Entries: entries, byName: make(map[string]*TreeEntry, len(entries))}
	for i := range entries {
		t.byName[entries[i].Name] = &t.Entries[i]
	}
	return t
}

// FetchTree loads and decodes a Tree object.
func FetchTree(ctx context.Context, f Fetcher, h backend.Handle) (*Tree, error) {
	raw, refHandles, err := f.Load(ctx, h)
	if err != nil {
		return nil, err
	}
	refDigests := make([]digest.Digest, len(refHandles))
	handleByDigest := make(map[digest.Digest]backend.Handle, len(refHandles))
	for i, rh := range refHandles {
		d, err := f.Digest("", rh)
		if err != nil {
			return nil, err
		}
		refDigests[i] = d
		handleByDigest[d] = rh
	}
	blob := codec.Blob{Bytes: raw, Refs: refDigests}
	decoded, err := codec.DecodeTree(blob)
	if err != nil {
		return nil, err
	}
	entries := make([]TreeEntry, len(decoded))
	for i, e := range decoded {
		ref := Reference{Handle: handleByDigest[e.Ref]}
		if e.Kind == codec.TreeEntryTree {
			ref.Kind = KindTree
		} else {
			ref.Size = e.Size
			ref.Depth = e.Depth
			if e.Depth > 0 {
				ref.Kind = KindLarge
			} else {
				ref.Kind = KindSmall
			}
		}
		entries[i] = TreeEntry{Name: e.Name, Ref: ref}
	}
	return newTree(h, entries), nil
}

// Entry returns the entry named name, if present.
func (t *Tree) Entry(name string) (TreeEntry, bool) {
	e, ok := t.byName[name]
	if !ok {
		return TreeEntry{}, false
	}
	return *e, true
}

// SortedNames returns entry names in ascending order (they already are,
// since DecodeTree rejects out-of-order input, but this is the documented
// iteration contract for callers).
func (t *Tree) SortedNames() []string {
	names := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		names[i] = e.Name
	}
	return names
}

// BuildTree assembles and finishes a Tree object from entries (which need
// not be pre-sorted; EncodeTree sorts them).
func BuildTree(ctx context.Context, reg *backend.Registry, entries []TreeEntry, childHandles map[digest.Digest]backend.Handle) (Reference, error) {
	codecEntries := make([]codec.TreeEntry, len(entries))
	digestOf := make(map[digest.Digest]backend.Handle, len(entries))
	for i, e := range entries {
		d, err := reg.Digest("", e.Ref.Handle)
		if err != nil {
			return Reference{}, err
		}
		digestOf[d] = e.Ref.Handle
		kind := codec.TreeEntryData
		if e.Ref.Kind == KindTree {
			kind = codec.TreeEntryTree
		}
		codecEntries[i] = codec.TreeEntry{
			Name:  e.Name,
			Kind:  kind,
			Size:  e.Ref.Size,
			Depth: e.Ref.Depth,
			Ref:   d,
		}
	}
	blob := codec.EncodeTree(codecEntries)
	b := reg.Builder()
	if _, err := b.Write(blob.Bytes); err != nil {
		return Reference{}, err
	}
	for _, d := range blob.Refs {
		h, ok := digestOf[d]
		if !ok {
			return Reference{}, atcerr.NewInvariantViolation("Tree builder: unresolved child digest %s", d)
		}
		b.AddReference(h)
	}
	h, err := reg.Finish(ctx, b)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Kind: KindTree, Handle: h}, nil
}

// SplitPath splits a slash-separated path into components, rejecting
// empty components (the name charset Tree entries enforce).
func SplitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	var components []string
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			components = append(components, c)
		}
	}
	return components
}

package object

import (
	"context"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/codec"
	"github.com/attaca-vcs/attaca/modules/digest"
)

// LargeChild is one entry of a Large(d) object: the half-open byte range
// it covers, plus a Reference to the child (Small when Depth==1, otherwise
// Large(Depth-1)).
type LargeChild struct {
	Start int64
	End   int64
	Ref   Reference
}

// Large is the decoded, in-memory view of a Large(d) object.
type Large struct {
	Depth    int
	Size     int64
	Children []LargeChild
	Handle   backend.Handle
}

// FetchLarge loads and decodes a Large object at the given depth.
func FetchLarge(ctx context.Context, f Fetcher, h backend.Handle, depth int) (*Large, error) {
	if depth < 1 {
		return nil, atcerr.NewInvariantViolation("Large depth must be >= 1, got %d", depth)
	}
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
	entries, err := codec.DecodeLarge(blob, nil)
	if err != nil {
		return nil, err
	}
	childKind := KindSmall
	childDepth := 0
	if depth > 1 {
		childKind = KindLarge
		childDepth = depth - 1
	}
	children := make([]LargeChild, len(entries))
	var size int64
	for i, e := range entries {
		children[i] = LargeChild{
			Start: e.Start,
			End:   e.End,
			Ref: Reference{
				Kind:   childKind,
				Size:   e.End - e.Start,
				Depth:  childDepth,
				Handle: handleByDigest[e.Ref],
			},
		}
		if e.End > size {
			size = e.End
		}
	}
	return &Large{Depth: depth, Size: size, Children: children, Handle: h}, nil
}

// LargeBuilder accumulates Small/Large children in input order and emits a
// Large(1) (or, via Finish with depth>1 composition performed by the share
// pipeline, a deeper Large) reference.
type LargeBuilder struct {
	entries []codec.LargeEntry
	offset  int64
	depth   int
}

func NewLargeBuilder(depth int) *LargeBuilder {
	return &LargeBuilder{depth: depth}
}

// Push appends a child covering [offset, offset+size) and advances the
// running offset, matching the share pipeline's "ranges are assigned by
// accumulating child sizes" rule (§4.5 step 3).
func (lb *LargeBuilder) Push(size int64, childDigest digest.Digest) {
	lb.entries = append(lb.entries, codec.LargeEntry{
		Start: lb.offset,
		End:   lb.offset + size,
		Ref:   childDigest,
	})
	lb.offset += size
}

func (lb *LargeBuilder) Len() int { return len(lb.entries) }

// Finish resolves every accumulated child digest to a handle through reg
// (reserving handles for already-known digests), builds the canonical
// Large blob, and finishes it.
func (lb *LargeBuilder) Finish(ctx context.Context, reg *backend.Registry, childDigests map[digest.Digest]backend.Handle) (Reference, error) {
	blob := codec.EncodeLarge(lb.entries)
	b := reg.Builder()
	if _, err := b.Write(blob.Bytes); err != nil {
		return Reference{}, err
	}
	for _, d := range blob.Refs {
		h, ok := childDigests[d]
		if !ok {
			return Reference{}, atcerr.NewInvariantViolation("Large builder: unresolved child digest %s", d)
		}
		b.AddReference(h)
	}
	h, err := reg.Finish(ctx, b)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Kind: KindLarge, Size: lb.offset, Depth: lb.depth, Handle: h}, nil
}

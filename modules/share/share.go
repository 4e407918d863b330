// Package share implements the ingestion pipeline that turns an arbitrary
// byte stream into a content-addressed object.Reference: the splitter cuts
// the stream into content-defined ranges, each range becomes a Small blob,
// and the accumulated Small references are folded into a Large(depth) tree
// once there is more than one of them. This is the write-side counterpart
// to object.Fetch*, grounded on §4.5.
package share

import (
	"bytes"
	"context"
	"io"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/attaca-vcs/attaca/modules/splitter"
	"github.com/attaca-vcs/attaca/modules/streamio"
)

// Options configures Share. The zero value uses splitter.DefaultParameters
// and a single-level (depth 1) Large tree regardless of child count.
type Options struct {
	SplitParameters splitter.Parameters

	// FanoutCeiling, when positive, bounds how many children a single
	// Large level may hold before the pipeline groups them under an
	// additional depth via a secondary content-defined split over the
	// sequence of child digests (the §4.5 step-4 extension point). Zero
	// disables grouping: a single Large(1) is emitted no matter how many
	// children it has.
	FanoutCeiling int
}

var zeroParams splitter.Parameters

func (o Options) splitParams() splitter.Parameters {
	if o.SplitParameters == zeroParams {
		return splitter.DefaultParameters
	}
	return o.SplitParameters
}

type shareChild struct {
	size   int64
	digest digest.Digest
	handle backend.Handle
}

// Share reads source to exhaustion and returns a Reference of kind Small
// (for a stream that splits into zero or one chunk) or Large(d) otherwise.
func Share(ctx context.Context, reg *backend.Registry, source io.Reader, opts Options) (object.Reference, error) {
	buffered := streamio.GetBufioReader(source)
	defer streamio.PutBufioReader(buffered)

	sp, err := splitter.New(buffered, opts.splitParams())
	if err != nil {
		return object.Reference{}, err
	}

	var children []shareChild
	var singleton object.Reference

	for {
		var buf bytes.Buffer
		r, ok, ferr := sp.Find(&buf)
		if ferr != nil {
			return object.Reference{}, ferr
		}
		if !ok {
			break
		}
		ref, berr := object.BuildSmall(ctx, reg, buf.Bytes())
		if berr != nil {
			return object.Reference{}, berr
		}
		d, derr := reg.Digest("", ref.Handle)
		if derr != nil {
			return object.Reference{}, derr
		}
		singleton = ref
		children = append(children, shareChild{size: r.End - r.Start, digest: d, handle: ref.Handle})
	}

	switch len(children) {
	case 0:
		return object.BuildSmall(ctx, reg, nil)
	case 1:
		return singleton, nil
	}

	return buildLarge(ctx, reg, children, 1, opts)
}

// buildLarge folds children into one or more Large levels. With no
// FanoutCeiling configured, or while the flat child count stays within it,
// a single Large(depth) is emitted directly. Otherwise children are grouped
// by a secondary content-defined split over their digest bytes (the §4.5
// step-4 extension point), each group finished as a Large(depth) node, and
// the resulting group references recursed into a Large(depth+1) above them.
func buildLarge(ctx context.Context, reg *backend.Registry, children []shareChild, depth int, opts Options) (object.Reference, error) {
	if opts.FanoutCeiling <= 0 || len(children) <= opts.FanoutCeiling {
		lb := object.NewLargeBuilder(depth)
		digests := make(map[digest.Digest]backend.Handle, len(children))
		for _, c := range children {
			lb.Push(c.size, c.digest)
			digests[c.digest] = c.handle
		}
		return lb.Finish(ctx, reg, digests)
	}

	groups := groupByDigestSplit(children, opts.FanoutCeiling)
	var next []shareChild
	for _, g := range groups {
		lb := object.NewLargeBuilder(depth)
		digests := make(map[digest.Digest]backend.Handle, len(g))
		var size int64
		for _, c := range g {
			lb.Push(c.size, c.digest)
			digests[c.digest] = c.handle
			size += c.size
		}
		ref, err := lb.Finish(ctx, reg, digests)
		if err != nil {
			return object.Reference{}, err
		}
		d, err := reg.Digest("", ref.Handle)
		if err != nil {
			return object.Reference{}, err
		}
		next = append(next, shareChild{size: size, digest: d, handle: ref.Handle})
	}
	if len(next) == 1 {
		return object.Reference{Kind: object.KindLarge, Size: next[0].size, Depth: depth, Handle: next[0].handle}, nil
	}
	return buildLarge(ctx, reg, next, depth+1, opts)
}

// groupByDigestSplit partitions children into consecutive groups. Each
// group's nominal size is 64/len(children) clamped to [lo, hi], where hi is
// min(9, ceiling) and lo is min(4, hi). A group closes early at the first
// child from offset lo up to (not including) the nominal size whose digest's
// first byte has its low three bits clear; when the nominal size equals lo
// there is no such candidate and groups are fixed-size. The final group
// takes whatever children remain and may hold fewer than lo.
func groupByDigestSplit(children []shareChild, ceiling int) [][]shareChild {
	const target = 64
	lo, hi := 4, 9
	if hi > ceiling {
		hi = ceiling
	}
	if lo > hi {
		lo = hi
	}

	var groups [][]shareChild
	i := 0
	for i < len(children) {
		groupTarget := lo
		if target/len(children) > lo {
			groupTarget = target / len(children)
		}
		if groupTarget > hi {
			groupTarget = hi
		}
		if groupTarget < lo {
			groupTarget = lo
		}

		end := i + groupTarget
		if end > len(children) {
			end = len(children)
		}
		// Look for a content-derived boundary within [i+lo, end) by
		// checking the low three bits of each candidate child's first
		// digest byte, falling back to end if none hits.
		boundary := end
		for j := i + lo; j < end && j < len(children); j++ {
			if children[j].digest[0]&0x07 == 0 {
				boundary = j
				break
			}
		}
		if boundary <= i {
			boundary = end
		}
		groups = append(groups, children[i:boundary])
		i = boundary
	}
	return groups
}

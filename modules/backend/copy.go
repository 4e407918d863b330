package backend

import (
	"context"

	"github.com/attaca-vcs/attaca/modules/digest"
)

// Copy traverses the object graph rooted at h on src, recursively copying
// children before reconstructing their parents on dst via dst's builder
// (§4.4). It is idempotent: a blob already present on dst (by digest) is
// never re-written, so re-running Copy over a partially-copied graph only
// sends the missing blobs.
func Copy(ctx context.Context, src, dst *Registry, h Handle) (Handle, error) {
	return copyOne(ctx, src, dst, h, make(map[digest.Digest]Handle))
}

func copyOne(ctx context.Context, src, dst *Registry, h Handle, seen map[digest.Digest]Handle) (Handle, error) {
	d, err := src.Digest("", h)
	if err != nil {
		return Handle{}, err
	}
	if cached, ok := seen[d]; ok {
		return cached, nil
	}
	if existing, ok, err := dst.Resolve(ctx, "", d); err != nil {
		return Handle{}, err
	} else if ok {
		seen[d] = existing
		return existing, nil
	}

	contents, refs, err := src.Load(ctx, h)
	if err != nil {
		return Handle{}, err
	}
	dstRefs := make([]Handle, len(refs))
	for i, r := range refs {
		dh, err := copyOne(ctx, src, dst, r, seen)
		if err != nil {
			return Handle{}, err
		}
		dstRefs[i] = dh
	}

	b := dst.Builder()
	if _, err := b.Write(contents); err != nil {
		return Handle{}, err
	}
	for _, dh := range dstRefs {
		b.AddReference(dh)
	}
	result, err := dst.Finish(ctx, b)
	if err != nil {
		return Handle{}, err
	}
	seen[d] = result
	return result, nil
}

package object

import (
	"context"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/codec"
)

// FetchSmall loads and decodes a Small blob's contents.
func FetchSmall(ctx context.Context, f Fetcher, h backend.Handle) ([]byte, error) {
	bytes, refs, err := f.Load(ctx, h)
	if err != nil {
		return nil, err
	}
	if len(refs) != 0 {
		return nil, atcerr.NewMalformedObject("Small", "Small objects carry no references")
	}
	return codec.DecodeSmall(codec.Blob{Bytes: bytes})
}

// BuildSmall writes a finished Small object and returns its Reference.
func BuildSmall(ctx context.Context, reg *backend.Registry, contents []byte) (Reference, error) {
	b := reg.Builder()
	if _, err := b.Write(contents); err != nil {
		return Reference{}, err
	}
	h, err := reg.Finish(ctx, b)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Kind: KindSmall, Size: int64(len(contents)), Depth: 0, Handle: h}, nil
}

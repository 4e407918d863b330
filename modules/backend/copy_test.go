package backend_test

import (
	"context"
	"testing"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/memory"
	"github.com/stretchr/testify/require"
)

func TestCopyReproducesGraphOnTarget(t *testing.T) {
	ctx := context.Background()
	src, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	dst, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)

	leaf := src.Builder()
	leaf.Write([]byte("leaf"))
	leafHandle, err := src.Finish(ctx, leaf)
	require.NoError(t, err)

	parent := src.Builder()
	parent.Write([]byte("parent"))
	parent.AddReference(leafHandle)
	parentHandle, err := src.Finish(ctx, parent)
	require.NoError(t, err)

	copiedHandle, err := backend.Copy(ctx, src, dst, parentHandle)
	require.NoError(t, err)

	gotBytes, gotRefs, err := dst.Load(ctx, copiedHandle)
	require.NoError(t, err)
	require.Equal(t, []byte("parent"), gotBytes)
	require.Len(t, gotRefs, 1)

	leafBytes, _, err := dst.Load(ctx, gotRefs[0])
	require.NoError(t, err)
	require.Equal(t, []byte("leaf"), leafBytes)

	srcDigest, err := src.Digest("", parentHandle)
	require.NoError(t, err)
	dstDigest, err := dst.Digest("", copiedHandle)
	require.NoError(t, err)
	require.Equal(t, srcDigest, dstDigest)
}

func TestCopyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	dst, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)

	b := src.Builder()
	b.Write([]byte("solo"))
	h, err := src.Finish(ctx, b)
	require.NoError(t, err)

	h1, err := backend.Copy(ctx, src, dst, h)
	require.NoError(t, err)
	h2, err := backend.Copy(ctx, src, dst, h)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

package backend_test

import (
	"context"
	"testing"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/memory"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/stretchr/testify/require"
)

func TestFinishLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	defer reg.Close()

	b := reg.Builder()
	_, _ = b.Write([]byte("hello world"))
	h, err := reg.Finish(ctx, b)
	require.NoError(t, err)

	contents, refs, err := reg.Load(ctx, h)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), contents)
	require.Empty(t, refs)
}

func TestFinishDedupesIdenticalBlobs(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	defer reg.Close()

	mk := func() backend.Handle {
		b := reg.Builder()
		_, _ = b.Write([]byte("same bytes"))
		h, err := reg.Finish(ctx, b)
		require.NoError(t, err)
		return h
	}
	h1 := mk()
	h2 := mk()
	require.Equal(t, h1, h2, "identical content must dedupe to the same handle")
}

func TestResolveAfterFinish(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	defer reg.Close()

	b := reg.Builder()
	_, _ = b.Write([]byte("resolvable"))
	h, err := reg.Finish(ctx, b)
	require.NoError(t, err)

	d, err := reg.Digest("", h)
	require.NoError(t, err)

	resolved, ok, err := reg.Resolve(ctx, "", d)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, reg.Id(h), reg.Id(resolved))
}

func TestResolveMissingReturnsFalse(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	defer reg.Close()

	_, ok, err := reg.Resolve(ctx, "", digest.Of([]byte("never written")))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSwapBranchesLinearisability(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	defer reg.Close()

	mkCommit := func(tag byte) backend.Handle {
		b := reg.Builder()
		_, _ = b.Write([]byte{tag})
		h, err := reg.Finish(ctx, b)
		require.NoError(t, err)
		return h
	}
	c1 := mkCommit(1)
	c2 := mkCommit(2)

	empty := map[string]backend.Handle{}
	err = reg.SwapBranches(ctx, empty, map[string]backend.Handle{"main": c1})
	require.NoError(t, err)

	// A second swap from the same stale "prev" must fail.
	err = reg.SwapBranches(ctx, empty, map[string]backend.Handle{"main": c2})
	require.ErrorIs(t, err, atcerr.ErrCompareFailed)

	loaded, err := reg.LoadBranches(ctx)
	require.NoError(t, err)
	require.Equal(t, reg.Id(c1), reg.Id(loaded["main"]))
}

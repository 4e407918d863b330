package hierarchy_test

import (
	"context"
	"sync"
	"testing"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/memory"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/attaca-vcs/attaca/modules/hierarchy"
	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/stretchr/testify/require"
)

func buildFixture(t *testing.T, ctx context.Context, reg *backend.Registry) object.Reference {
	t.Helper()

	leaf, err := object.BuildSmall(ctx, reg, []byte("leaf contents"))
	require.NoError(t, err)
	leafDigest, err := reg.Digest("", leaf.Handle)
	require.NoError(t, err)

	sub, err := object.BuildTree(ctx, reg, []object.TreeEntry{
		{Name: "leaf.txt", Ref: leaf},
	}, map[digest.Digest]backend.Handle{leafDigest: leaf.Handle})
	require.NoError(t, err)
	subDigest, err := reg.Digest("", sub.Handle)
	require.NoError(t, err)

	root, err := object.BuildTree(ctx, reg, []object.TreeEntry{
		{Name: "dir", Ref: sub},
	}, map[digest.Digest]backend.Handle{subDigest: sub.Handle})
	require.NoError(t, err)
	return root
}

func TestGetEmptyPathReturnsRoot(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	root := buildFixture(t, ctx, reg)
	h := hierarchy.New(reg, root)

	got, ok, err := h.Get(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, root.Handle, got.Handle)
}

func TestGetNestedPath(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	root := buildFixture(t, ctx, reg)
	h := hierarchy.New(reg, root)

	got, ok, err := h.Get(ctx, []string{"dir", "leaf.txt"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, object.KindSmall, got.Kind)

	contents, err := object.FetchSmall(ctx, reg, got.Handle)
	require.NoError(t, err)
	require.Equal(t, []byte("leaf contents"), contents)
}

func TestGetMissingComponentReturnsFalse(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	root := buildFixture(t, ctx, reg)
	h := hierarchy.New(reg, root)

	_, ok, err := h.Get(ctx, []string{"nonexistent"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConcurrentGetsShareSingleExpand(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	root := buildFixture(t, ctx, reg)
	h := hierarchy.New(reg, root)

	var wg sync.WaitGroup
	results := make([]bool, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok, err := h.Get(ctx, []string{"dir", "leaf.txt"})
			require.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()
	for _, ok := range results {
		require.True(t, ok)
	}
}

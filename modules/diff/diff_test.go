package diff_test

import (
	"context"
	"sort"
	"testing"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/memory"
	"github.com/attaca-vcs/attaca/modules/diff"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *backend.Registry {
	t.Helper()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func buildTree(t *testing.T, ctx context.Context, reg *backend.Registry, entries map[string]string) object.Reference {
	t.Helper()
	var treeEntries []object.TreeEntry
	handles := map[digest.Digest]backend.Handle{}
	for name, contents := range entries {
		ref, err := object.BuildSmall(ctx, reg, []byte(contents))
		require.NoError(t, err)
		d, err := reg.Digest("", ref.Handle)
		require.NoError(t, err)
		handles[d] = ref.Handle
		treeEntries = append(treeEntries, object.TreeEntry{Name: name, Ref: ref})
	}
	ref, err := object.BuildTree(ctx, reg, treeEntries, handles)
	require.NoError(t, err)
	return ref
}

func TestDiffStagedScenario(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	head := buildTree(t, ctx, reg, map[string]string{"a": "x", "b": "y"})
	candidate := buildTree(t, ctx, reg, map[string]string{"a": "x", "b": "y-prime", "c": "z"})

	changes, err := diff.Diff(ctx, reg, head, candidate, diff.Options{})
	require.NoError(t, err)

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	require.Len(t, changes, 2)
	require.Equal(t, diff.Modified, changes[0].Kind)
	require.Equal(t, "b", changes[0].Path)
	require.Equal(t, diff.Added, changes[1].Kind)
	require.Equal(t, "c", changes[1].Path)
}

func TestDiffIdenticalTreesYieldNoChanges(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	tree := buildTree(t, ctx, reg, map[string]string{"a": "x", "b": "y"})
	changes, err := diff.Diff(ctx, reg, tree, tree, diff.Options{})
	require.NoError(t, err)
	require.Empty(t, changes)
}

func TestDiffRemoval(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	head := buildTree(t, ctx, reg, map[string]string{"a": "x", "b": "y"})
	candidate := buildTree(t, ctx, reg, map[string]string{"a": "x"})

	changes, err := diff.Diff(ctx, reg, head, candidate, diff.Options{})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, diff.Removed, changes[0].Kind)
	require.Equal(t, "b", changes[0].Path)
}

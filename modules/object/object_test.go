package object_test

import (
	"context"
	"testing"
	"time"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/memory"
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

func TestSmallRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	ref, err := object.BuildSmall(ctx, reg, []byte("hello attaca"))
	require.NoError(t, err)
	require.Equal(t, object.KindSmall, ref.Kind)

	got, err := object.FetchSmall(ctx, reg, ref.Handle)
	require.NoError(t, err)
	require.Equal(t, []byte("hello attaca"), got)
}

func TestTreeRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	fileRef, err := object.BuildSmall(ctx, reg, []byte("file contents"))
	require.NoError(t, err)

	childHandles := map[digest.Digest]backend.Handle{}
	fd, err := reg.Digest("", fileRef.Handle)
	require.NoError(t, err)
	childHandles[fd] = fileRef.Handle

	treeRef, err := object.BuildTree(ctx, reg, []object.TreeEntry{
		{Name: "a.txt", Ref: fileRef},
	}, childHandles)
	require.NoError(t, err)

	tree, err := object.FetchTree(ctx, reg, treeRef.Handle)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 1)
	entry, ok := tree.Entry("a.txt")
	require.True(t, ok)
	require.Equal(t, object.KindSmall, entry.Ref.Kind)

	contents, err := object.FetchSmall(ctx, reg, entry.Ref.Handle)
	require.NoError(t, err)
	require.Equal(t, []byte("file contents"), contents)
}

func TestLargeRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	c1, err := object.BuildSmall(ctx, reg, []byte("AAAA"))
	require.NoError(t, err)
	c2, err := object.BuildSmall(ctx, reg, []byte("BBBBB"))
	require.NoError(t, err)

	lb := object.NewLargeBuilder(1)
	d1, err := reg.Digest("", c1.Handle)
	require.NoError(t, err)
	d2, err := reg.Digest("", c2.Handle)
	require.NoError(t, err)
	lb.Push(4, d1)
	lb.Push(5, d2)

	largeRef, err := lb.Finish(ctx, reg, map[digest.Digest]backend.Handle{d1: c1.Handle, d2: c2.Handle})
	require.NoError(t, err)
	require.Equal(t, int64(9), largeRef.Size)

	large, err := object.FetchLarge(ctx, reg, largeRef.Handle, 1)
	require.NoError(t, err)
	require.Len(t, large.Children, 2)
	require.Equal(t, int64(0), large.Children[0].Start)
	require.Equal(t, int64(4), large.Children[0].End)
	require.Equal(t, int64(4), large.Children[1].Start)
	require.Equal(t, int64(9), large.Children[1].End)
}

func TestCommitRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	fileRef, err := object.BuildSmall(ctx, reg, []byte("x"))
	require.NoError(t, err)
	fd, _ := reg.Digest("", fileRef.Handle)
	treeRef, err := object.BuildTree(ctx, reg, []object.TreeEntry{{Name: "x", Ref: fileRef}},
		map[digest.Digest]backend.Handle{fd: fileRef.Handle})
	require.NoError(t, err)

	name := "Ada Lovelace"
	msg := "initial import"
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	commitRef, err := object.BuildCommit(ctx, reg, object.CommitRequest{
		Subtree:   treeRef,
		Timestamp: ts,
		Author:    object.Author{Name: &name},
		Message:   &msg,
	})
	require.NoError(t, err)

	c, err := object.FetchCommit(ctx, reg, commitRef.Handle)
	require.NoError(t, err)
	require.Equal(t, ts.UnixNano(), c.Timestamp.UnixNano())
	require.Equal(t, name, *c.Author.Name)
	require.Equal(t, msg, *c.Message)
	require.Empty(t, c.Parents)
}

package fsck_test

import (
	"context"
	"testing"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/memory"
	"github.com/attaca-vcs/attaca/modules/fsck"
	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/stretchr/testify/require"
)

func TestFsckPositiveOnFreshGraph(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	leaf, err := object.BuildSmall(ctx, reg, []byte("leaf"))
	require.NoError(t, err)

	mismatches, err := fsck.Check(ctx, reg, leaf.Handle)
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestFsckDetectsTamperedBlob(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	reg, err := backend.NewRegistry(store)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	leaf, err := object.BuildSmall(ctx, reg, []byte("original contents"))
	require.NoError(t, err)
	leafDigest, err := reg.Digest("", leaf.Handle)
	require.NoError(t, err)

	// Tamper with the stored bytes directly through the underlying store,
	// bypassing the registry (which would otherwise dedupe/refuse).
	tampered, err := store.GetBlob(ctx, leafDigest)
	require.NoError(t, err)
	tampered.Bytes = []byte("tampered contents!!")
	require.NoError(t, store.Overwrite(ctx, leafDigest, tampered))

	mismatches, err := fsck.Check(ctx, reg, leaf.Handle)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	require.Equal(t, leafDigest, mismatches[0].Expected)
}

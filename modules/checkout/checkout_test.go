package checkout_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/memory"
	"github.com/attaca-vcs/attaca/modules/checkout"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/attaca-vcs/attaca/modules/share"
	"github.com/attaca-vcs/attaca/modules/splitter"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *backend.Registry {
	t.Helper()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestCheckoutSmallFile(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	dir := t.TempDir()

	ref, err := object.BuildSmall(ctx, reg, []byte("tiny contents"))
	require.NoError(t, err)

	path := filepath.Join(dir, "file.txt")
	require.NoError(t, checkout.CheckoutFileFromData(ctx, reg, ref, nil, path, checkout.Options{}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("tiny contents"), got)
}

func TestCheckoutLargeFileFromScratch(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	dir := t.TempDir()

	params := splitter.Parameters{Stride: 1, StridesPerWindow: 32, SplitMarker: 1, Log2Modulus: 5}
	data := make([]byte, 30000)
	for i := range data {
		data[i] = byte(i * 13 % 253)
	}

	ref, err := share.Share(ctx, reg, bytes.NewReader(data), share.Options{SplitParameters: params})
	require.NoError(t, err)
	require.Equal(t, object.KindLarge, ref.Kind)

	path := filepath.Join(dir, "file.bin")
	require.NoError(t, checkout.CheckoutFileFromData(ctx, reg, ref, nil, path, checkout.Options{}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCheckoutLargeFileWithOverlapSkipsMatchingRanges(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	dir := t.TempDir()

	params := splitter.Parameters{Stride: 1, StridesPerWindow: 32, SplitMarker: 1, Log2Modulus: 5}

	oldData := make([]byte, 20000)
	for i := range oldData {
		oldData[i] = byte(i % 197)
	}
	oldRef, err := share.Share(ctx, reg, bytes.NewReader(oldData), share.Options{SplitParameters: params})
	require.NoError(t, err)

	path := filepath.Join(dir, "file.bin")
	require.NoError(t, checkout.CheckoutFileFromData(ctx, reg, oldRef, nil, path, checkout.Options{}))

	// Build new data sharing its first half byte-for-byte with oldData.
	newData := make([]byte, len(oldData))
	copy(newData, oldData[:len(oldData)/2])
	for i := len(oldData) / 2; i < len(newData); i++ {
		newData[i] = byte((i * 91) % 251)
	}
	newRef, err := share.Share(ctx, reg, bytes.NewReader(newData), share.Options{SplitParameters: params})
	require.NoError(t, err)

	require.NoError(t, checkout.CheckoutFileFromData(ctx, reg, newRef, &oldRef, path, checkout.Options{}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, newData, got)
}

func TestCheckoutPathFromTreeCreatesAndRemoves(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	dir := t.TempDir()

	fileRef, err := object.BuildSmall(ctx, reg, []byte("hello"))
	require.NoError(t, err)
	fd, _ := reg.Digest("", fileRef.Handle)
	treeRef, err := object.BuildTree(ctx, reg, []object.TreeEntry{{Name: "a.txt", Ref: fileRef}},
		map[digest.Digest]backend.Handle{fd: fileRef.Handle})
	require.NoError(t, err)

	// A stray file in the workspace that is absent from the tree must be
	// removed by reconciliation.
	stray := filepath.Join(dir, "stray.txt")
	require.NoError(t, os.WriteFile(stray, []byte("leftover"), 0o644))

	require.NoError(t, checkout.CheckoutPathFromTree(ctx, reg, treeRef, nil, dir, checkout.Options{}))

	_, err = os.Stat(stray)
	require.True(t, os.IsNotExist(err))

	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

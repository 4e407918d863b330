package share_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/memory"
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

func reassemble(t *testing.T, ctx context.Context, reg *backend.Registry, ref object.Reference) []byte {
	t.Helper()
	switch ref.Kind {
	case object.KindSmall:
		b, err := object.FetchSmall(ctx, reg, ref.Handle)
		require.NoError(t, err)
		return b
	case object.KindLarge:
		large, err := object.FetchLarge(ctx, reg, ref.Handle, ref.Depth)
		require.NoError(t, err)
		var out []byte
		for _, c := range large.Children {
			out = append(out, reassemble(t, ctx, reg, c.Ref)...)
		}
		return out
	default:
		t.Fatalf("unexpected kind %v", ref.Kind)
		return nil
	}
}

func TestShareEmpty(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	ref, err := share.Share(ctx, reg, bytes.NewReader(nil), share.Options{})
	require.NoError(t, err)
	require.Equal(t, object.KindSmall, ref.Kind)

	got := reassemble(t, ctx, reg, ref)
	require.Empty(t, got)
}

func TestShareSingleChunk(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	data := []byte("a small file that never reaches a chunk boundary")
	ref, err := share.Share(ctx, reg, bytes.NewReader(data), share.Options{})
	require.NoError(t, err)
	require.Equal(t, object.KindSmall, ref.Kind)
	require.Equal(t, data, reassemble(t, ctx, reg, ref))
}

func TestShareMultiChunkReassemblesByteForByte(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	// Force tiny chunks so a few-KB input definitely splits into several
	// ranges, exercising the Large(1) path.
	params := splitter.Parameters{Stride: 1, StridesPerWindow: 64, SplitMarker: 1, Log2Modulus: 6}

	data := make([]byte, 20000)
	for i := range data {
		data[i] = byte(i * 7 % 251)
	}

	ref, err := share.Share(ctx, reg, bytes.NewReader(data), share.Options{SplitParameters: params})
	require.NoError(t, err)
	require.Equal(t, object.KindLarge, ref.Kind)
	require.Equal(t, data, reassemble(t, ctx, reg, ref))
}

func TestShareIsDeterministicForIdenticalInput(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	params := splitter.Parameters{Stride: 1, StridesPerWindow: 32, SplitMarker: 1, Log2Modulus: 5}
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog, "), 200)

	ref1, err := share.Share(ctx, reg, bytes.NewReader(data), share.Options{SplitParameters: params})
	require.NoError(t, err)
	ref2, err := share.Share(ctx, reg, bytes.NewReader(data), share.Options{SplitParameters: params})
	require.NoError(t, err)
	require.Equal(t, ref1.Handle, ref2.Handle)
}

func TestShareWithFanoutCeilingGroupsIntoDeeperLarge(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	params := splitter.Parameters{Stride: 1, StridesPerWindow: 16, SplitMarker: 1, Log2Modulus: 4}
	data := make([]byte, 50000)
	for i := range data {
		data[i] = byte(i * 7 % 251)
	}

	ref, err := share.Share(ctx, reg, bytes.NewReader(data), share.Options{SplitParameters: params, FanoutCeiling: 9})
	require.NoError(t, err)
	require.Equal(t, object.KindLarge, ref.Kind)
	require.Greater(t, ref.Depth, 1)
	require.Equal(t, data, reassemble(t, ctx, reg, ref))
}

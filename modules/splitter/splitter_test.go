package splitter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, data []byte, params Parameters) ([]Range, []byte) {
	t.Helper()
	sp, err := New(bytes.NewReader(data), params)
	require.NoError(t, err)
	var out bytes.Buffer
	var ranges []Range
	for {
		r, ok, err := sp.Find(&out)
		require.NoError(t, err)
		if !ok {
			break
		}
		ranges = append(ranges, r)
	}
	return ranges, out.Bytes()
}

func TestSplit1(t *testing.T) {
	data := []byte{
		0, 1, 2, 3, 255, 5, 6, 7, 255, 255, 255, 11, 12, 13, 14, 15, 16, 17, 18, 19, 255, 21,
		22, 23, 24, 25, 26, 255, 28, 29, 30, 31,
	}
	params := Parameters{Stride: 1, StridesPerWindow: 1, Log2Modulus: 8, SplitMarker: 255}
	ranges, out := drain(t, data, params)
	require.Equal(t, []Range{
		{0, 5}, {5, 9}, {9, 10}, {10, 11}, {11, 21}, {21, 28}, {28, 32},
	}, ranges)
	require.Equal(t, data, out)
}

func TestSplit2(t *testing.T) {
	data := []byte{
		0, 1, 2, 128, 127, 5, 6, 7, 248, 127, 128, 11, 12, 13, 14, 15, 16, 17, 18, 19, 236, 21,
		22, 23, 24, 25, 26, 255, 28, 29, 30, 31,
	}
	params := Parameters{Stride: 1, StridesPerWindow: 2, Log2Modulus: 8, SplitMarker: 255}
	ranges, out := drain(t, data, params)
	require.Equal(t, []Range{
		{0, 5}, {5, 9}, {9, 11}, {11, 21}, {21, 32},
	}, ranges)
	require.Equal(t, data, out)
}

func TestSplitEmptyYieldsSingleEmptyRange(t *testing.T) {
	ranges, out := drain(t, nil, DefaultParameters)
	require.Equal(t, []Range{{0, 0}}, ranges)
	require.Empty(t, out)
}

func TestSplitBoundaryStabilityOnSharedSubsequence(t *testing.T) {
	params := Parameters{Stride: 1, StridesPerWindow: 64, Log2Modulus: 6, SplitMarker: 3}
	shared := make([]byte, 4*params.StridesPerWindow)
	for i := range shared {
		shared[i] = byte((i*37 + 11) % 251)
	}
	x := append([]byte{9, 9, 9}, shared...)
	y := append([]byte{1, 2}, shared...)

	boundariesOf := func(data []byte) []int64 {
		ranges, _ := drain(t, data, params)
		offsets := make([]int64, 0, len(ranges)+1)
		for _, r := range ranges {
			offsets = append(offsets, r.End)
		}
		return offsets
	}

	xOffsets := boundariesOf(x)
	yOffsets := boundariesOf(y)

	toRelative := func(offsets []int64, prefixLen int64) map[int64]bool {
		set := make(map[int64]bool)
		for _, o := range offsets {
			if o > prefixLen {
				set[o-prefixLen] = true
			}
		}
		return set
	}
	xRel := toRelative(xOffsets, 3)
	yRel := toRelative(yOffsets, 2)

	found := 0
	for rel := range xRel {
		if yRel[rel] {
			found++
		}
	}
	require.Greater(t, found, 0, "expected at least one shared interior boundary")
}

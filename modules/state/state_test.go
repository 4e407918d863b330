package state_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/memory"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/attaca-vcs/attaca/modules/state"
	"github.com/stretchr/testify/require"
)

func TestStateSaveLoadRoundTrip(t *testing.T) {
	s := state.Empty()
	s.Head = state.Head{Kind: state.HeadBranch, Branch: "main"}
	candidate := digest.Of([]byte("candidate tree"))
	s.Candidate = &candidate
	s.RemoteRefs["origin"] = map[string]digest.Digest{"main": digest.Of([]byte("remote commit"))}
	state.SetUpstream(s, "main", "origin", "main")

	path := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, state.Save(path, s))

	got, err := state.Load(path)
	require.NoError(t, err)
	require.Equal(t, state.HeadBranch, got.Head.Kind)
	require.Equal(t, "main", got.Head.Branch)
	require.Equal(t, candidate, *got.Candidate)
	require.Equal(t, s.RemoteRefs["origin"]["main"], got.RemoteRefs["origin"]["main"])
	require.Equal(t, state.Upstream{Remote: "origin", Branch: "main"}, got.Upstreams["main"])
}

func TestStateLoadMissingFileYieldsEmpty(t *testing.T) {
	got, err := state.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, state.HeadEmpty, got.Head.Kind)
}

func TestBranchCASConflict(t *testing.T) {
	ctx := context.Background()
	reg, err := backend.NewRegistry(memory.New())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	b1 := reg.Builder()
	b1.Write([]byte("commit1"))
	c1, err := reg.Finish(ctx, b1)
	require.NoError(t, err)
	b2 := reg.Builder()
	b2.Write([]byte("commit2"))
	c2, err := reg.Finish(ctx, b2)
	require.NoError(t, err)

	require.NoError(t, state.CreateBranch(ctx, reg, "main", c1))

	prev, err := reg.LoadBranches(ctx)
	require.NoError(t, err)

	// First caller swaps from prev successfully.
	next1 := map[string]backend.Handle{"main": c2}
	require.NoError(t, reg.SwapBranches(ctx, prev, next1))

	// Second caller's swap from the same stale prev must fail.
	next2 := map[string]backend.Handle{"main": c1}
	err = reg.SwapBranches(ctx, prev, next2)
	require.ErrorIs(t, err, atcerr.ErrCompareFailed)

	current, err := reg.LoadBranches(ctx)
	require.NoError(t, err)
	require.Equal(t, c2, current["main"])
}

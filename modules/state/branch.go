package state

import (
	"context"
	"maps"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/checkout"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/attaca-vcs/attaca/modules/object"
)

// CreateBranch points a new branch name at commitHandle via the read-
// produce-swap discipline §4.10 mandates: no automatic retry on
// atcerr.ErrCompareFailed, the caller re-derives and re-issues.
func CreateBranch(ctx context.Context, reg *backend.Registry, name string, commitHandle backend.Handle) error {
	prev, err := reg.LoadBranches(ctx)
	if err != nil {
		return err
	}
	if _, exists := prev[name]; exists {
		return atcerr.NewInvariantViolation("branch %q already exists", name)
	}
	next := maps.Clone(prev)
	next[name] = commitHandle
	return reg.SwapBranches(ctx, prev, next)
}

// DeleteBranch removes name from the branch set via compare-and-swap.
func DeleteBranch(ctx context.Context, reg *backend.Registry, name string) error {
	prev, err := reg.LoadBranches(ctx)
	if err != nil {
		return err
	}
	if _, exists := prev[name]; !exists {
		return atcerr.NewNotFound("branch", name)
	}
	next := maps.Clone(prev)
	delete(next, name)
	return reg.SwapBranches(ctx, prev, next)
}

// SetUpstream records that the local branch tracks remote/upstreamBranch.
func SetUpstream(s *State, branch, remote, upstreamBranch string) {
	s.Upstreams[branch] = Upstream{Remote: remote, Branch: upstreamBranch}
}

// Fetch opens remote, copies every reachable commit graph under each of its
// branches into local (§4.4 cross-backend copy), records the resulting
// snapshot into s.RemoteRefs[remoteName], and advances any local branch
// with a matching upstream via compare-and-swap.
func Fetch(ctx context.Context, local, remote *backend.Registry, remoteName string, s *State) error {
	remoteBranches, err := remote.LoadBranches(ctx)
	if err != nil {
		return err
	}

	snapshot := make(map[string]digest.Digest, len(remoteBranches))
	for name, h := range remoteBranches {
		copied, err := backend.Copy(ctx, remote, local, h)
		if err != nil {
			return err
		}
		d, err := local.Digest("", copied)
		if err != nil {
			return err
		}
		snapshot[name] = d
	}
	s.RemoteRefs[remoteName] = snapshot

	for localBranch, up := range s.Upstreams {
		if up.Remote != remoteName {
			continue
		}
		commitDigest, ok := snapshot[up.Branch]
		if !ok {
			continue
		}
		handle, found, err := local.Resolve(ctx, "", commitDigest)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		prev, err := local.LoadBranches(ctx)
		if err != nil {
			return err
		}
		next := maps.Clone(prev)
		next[localBranch] = handle
		if err := local.SwapBranches(ctx, prev, next); err != nil {
			return err
		}
	}
	return nil
}

// Push copies the local branch's commit graph into remote and then
// compare-and-swaps the remote branch set to point at the new handle.
func Push(ctx context.Context, local, remote *backend.Registry, branchName string) error {
	localBranches, err := local.LoadBranches(ctx)
	if err != nil {
		return err
	}
	h, ok := localBranches[branchName]
	if !ok {
		return atcerr.NewNotFound("branch", branchName)
	}
	copied, err := backend.Copy(ctx, local, remote, h)
	if err != nil {
		return err
	}
	prev, err := remote.LoadBranches(ctx)
	if err != nil {
		return err
	}
	next := maps.Clone(prev)
	next[branchName] = copied
	return remote.SwapBranches(ctx, prev, next)
}

// Pull is fetch followed by a checkout of the upstream branch onto the
// current local branch; it requires HEAD to already name that branch.
func Pull(ctx context.Context, local, remote *backend.Registry, remoteName string, s *State, workDir string, opts checkout.Options) error {
	if s.Head.Kind != HeadBranch {
		return atcerr.NewInvariantViolation("pull requires HEAD to be a named branch")
	}
	branchName := s.Head.Branch
	up, ok := s.Upstreams[branchName]
	if !ok || up.Remote != remoteName {
		return atcerr.NewInvariantViolation("branch %q has no upstream on remote %q", branchName, remoteName)
	}

	var previousSubtree *object.Reference
	if prevHandle, found, err := previousHeadHandle(ctx, local, s); err == nil && found {
		prevCommit, err := object.FetchCommit(ctx, local, prevHandle)
		if err == nil {
			previousSubtree = &prevCommit.Subtree
		}
	}

	if err := Fetch(ctx, local, remote, remoteName, s); err != nil {
		return err
	}

	branches, err := local.LoadBranches(ctx)
	if err != nil {
		return err
	}
	handle, ok := branches[branchName]
	if !ok {
		return atcerr.NewNotFound("branch", branchName)
	}
	commit, err := object.FetchCommit(ctx, local, handle)
	if err != nil {
		return err
	}
	return checkout.CheckoutPathFromTree(ctx, local, commit.Subtree, previousSubtree, workDir, opts)
}

func previousHeadHandle(ctx context.Context, local *backend.Registry, s *State) (backend.Handle, bool, error) {
	if s.Head.Kind != HeadBranch {
		return backend.Handle{}, false, nil
	}
	branches, err := local.LoadBranches(ctx)
	if err != nil {
		return backend.Handle{}, false, err
	}
	h, ok := branches[s.Head.Branch]
	return h, ok, nil
}

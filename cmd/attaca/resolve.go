package main

import (
	"context"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/attaca-vcs/attaca/modules/state"
)

// resolveCommit turns a ref string (a branch name, or a raw hex digest)
// into a commit handle. An empty ref resolves HEAD.
func resolveCommit(ctx context.Context, reg *backend.Registry, w *workspace, ref string) (backend.Handle, error) {
	if ref == "" || ref == "HEAD" {
		return headHandle(ctx, reg, w)
	}
	branches, err := reg.LoadBranches(ctx)
	if err != nil {
		return backend.Handle{}, err
	}
	if h, ok := branches[ref]; ok {
		return h, nil
	}
	if digest.ValidHex(ref) {
		d, err := digest.Parse(ref)
		if err != nil {
			return backend.Handle{}, err
		}
		h, found, err := reg.Resolve(ctx, "", d)
		if err != nil {
			return backend.Handle{}, err
		}
		if found {
			return h, nil
		}
	}
	return backend.Handle{}, atcerr.NewNotFound("ref", ref)
}

// headHandle resolves the workspace's current HEAD to a commit handle.
func headHandle(ctx context.Context, reg *backend.Registry, w *workspace) (backend.Handle, error) {
	switch w.state.Head.Kind {
	case state.HeadBranch:
		branches, err := reg.LoadBranches(ctx)
		if err != nil {
			return backend.Handle{}, err
		}
		h, ok := branches[w.state.Head.Branch]
		if !ok {
			return backend.Handle{}, atcerr.NewNotFound("branch", w.state.Head.Branch)
		}
		return h, nil
	case state.HeadDetached:
		h, found, err := reg.Resolve(ctx, "", w.state.Head.Commit)
		if err != nil {
			return backend.Handle{}, err
		}
		if !found {
			return backend.Handle{}, atcerr.NewNotFound("commit", w.state.Head.Commit.String())
		}
		return h, nil
	default:
		return backend.Handle{}, atcerr.NewNotFound("HEAD", "workspace has no commits yet")
	}
}

// headCommit resolves HEAD to its decoded Commit, or nil if HEAD is empty.
func headCommit(ctx context.Context, reg *backend.Registry, w *workspace) (*object.Commit, error) {
	if w.state.Head.Kind == state.HeadEmpty {
		return nil, nil
	}
	h, err := headHandle(ctx, reg, w)
	if err != nil {
		return nil, err
	}
	return object.FetchCommit(ctx, reg, h)
}

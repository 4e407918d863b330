package main

import (
	"context"
	"fmt"

	"github.com/attaca-vcs/attaca/modules/checkout"
	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/attaca-vcs/attaca/modules/state"
)

type checkoutCmd struct {
	Ref   string   `arg:"" help:"Branch name or commit digest to check out."`
	Paths []string `arg:"" optional:"" help:"Restrict the checkout to these paths."`
}

func (c *checkoutCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	previousCommit, err := headCommit(ctx, w.reg, w)
	if err != nil {
		return err
	}
	var previousSubtree *object.Reference
	if previousCommit != nil {
		previousSubtree = &previousCommit.Subtree
	}

	h, err := resolveCommit(ctx, w.reg, w, c.Ref)
	if err != nil {
		return err
	}
	commit, err := object.FetchCommit(ctx, w.reg, h)
	if err != nil {
		return err
	}

	if len(c.Paths) > 0 {
		err = checkout.CheckoutPathsFromTree(ctx, w.reg, commit.Subtree, previousSubtree, w.root, c.Paths, checkout.Options{})
	} else {
		err = checkout.CheckoutPathFromTree(ctx, w.reg, commit.Subtree, previousSubtree, w.root, checkout.Options{})
	}
	if err != nil {
		return err
	}

	branches, err := w.reg.LoadBranches(ctx)
	if err != nil {
		return err
	}
	updatedHead := false
	for name, branchHandle := range branches {
		if branchHandle == h {
			w.state.Head = state.Head{Kind: state.HeadBranch, Branch: name}
			updatedHead = true
			break
		}
	}
	if !updatedHead {
		d, err := w.reg.Digest("", h)
		if err != nil {
			return err
		}
		w.state.Head = state.Head{Kind: state.HeadDetached, Commit: d}
	}
	if err := w.save(); err != nil {
		return err
	}
	fmt.Printf("checked out %s\n", c.Ref)
	return nil
}

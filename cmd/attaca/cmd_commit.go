package main

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/attaca-vcs/attaca/modules/state"
)

type commitCmd struct {
	Message string `short:"m" help:"Commit message." required:""`
}

func (c *commitCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	parentCommit, err := headCommit(ctx, w.reg, w)
	if err != nil {
		return err
	}

	var subtree object.Reference
	if w.state.Candidate != nil {
		h, found, err := w.reg.Resolve(ctx, "", *w.state.Candidate)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("candidate tree %s is no longer present in the registry", w.state.Candidate)
		}
		subtree = object.Reference{Kind: object.KindTree, Handle: h}
	} else {
		subtree, err = ingestPath(ctx, w.reg, w.root)
		if err != nil {
			return err
		}
	}

	var parents []object.Reference
	if parentCommit != nil {
		parents = []object.Reference{{Kind: object.KindCommit, Handle: parentCommit.Handle}}
	}

	msg := c.Message
	ref, err := object.BuildCommit(ctx, w.reg, object.CommitRequest{
		Subtree:   subtree,
		Parents:   parents,
		Timestamp: time.Now(),
		Message:   &msg,
	})
	if err != nil {
		return err
	}

	switch w.state.Head.Kind {
	case state.HeadBranch:
		prev, err := w.reg.LoadBranches(ctx)
		if err != nil {
			return err
		}
		next := maps.Clone(prev)
		next[w.state.Head.Branch] = ref.Handle
		if err := w.reg.SwapBranches(ctx, prev, next); err != nil {
			return err
		}
	default:
		d, err := w.reg.Digest("", ref.Handle)
		if err != nil {
			return err
		}
		w.state.Head = state.Head{Kind: state.HeadDetached, Commit: d}
	}
	w.state.Candidate = nil
	if err := w.save(); err != nil {
		return err
	}

	d, err := w.reg.Digest("", ref.Handle)
	if err != nil {
		return err
	}
	fmt.Printf("committed %s\n", d)
	return nil
}

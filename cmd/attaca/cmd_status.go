package main

import (
	"context"
	"fmt"

	"github.com/attaca-vcs/attaca/modules/diff"
	"github.com/attaca-vcs/attaca/modules/object"
)

type statusCmd struct{}

func (c *statusCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	commit, err := headCommit(ctx, w.reg, w)
	if err != nil {
		return err
	}
	var headRef object.Reference
	if commit != nil {
		headRef = commit.Subtree
	} else {
		headRef, err = object.BuildTree(ctx, w.reg, nil, nil)
		if err != nil {
			return err
		}
	}

	var candidateRef object.Reference
	if w.state.Candidate != nil {
		h, found, err := w.reg.Resolve(ctx, "", *w.state.Candidate)
		if err != nil {
			return err
		}
		if found {
			candidateRef = object.Reference{Kind: object.KindTree, Handle: h}
		} else {
			candidateRef, err = object.BuildTree(ctx, w.reg, nil, nil)
			if err != nil {
				return err
			}
		}
	} else {
		candidateRef, err = ingestPath(ctx, w.reg, w.root)
		if err != nil {
			return err
		}
	}

	changes, err := diff.Diff(ctx, w.reg, headRef, candidateRef, diff.Options{})
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Println("nothing to commit, working tree clean")
		return nil
	}
	for _, ch := range changes {
		fmt.Printf("%-8s %s\n", ch.Kind, ch.Path)
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/attaca-vcs/attaca/modules/object"
)

type showCmd struct {
	Ref string `arg:"" optional:"" help:"Branch name or commit digest (defaults to HEAD)."`
}

func (c *showCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	h, err := resolveCommit(ctx, w.reg, w, c.Ref)
	if err != nil {
		return err
	}
	commit, err := object.FetchCommit(ctx, w.reg, h)
	if err != nil {
		return err
	}
	commitDigest, err := w.reg.Digest("", commit.Handle)
	if err != nil {
		return err
	}
	subtreeDigest, err := w.reg.Digest("", commit.Subtree.Handle)
	if err != nil {
		return err
	}

	fmt.Printf("commit %s\n", commitDigest)
	fmt.Printf("subtree %s\n", subtreeDigest)
	for _, p := range commit.Parents {
		pd, err := w.reg.Digest("", p.Handle)
		if err != nil {
			return err
		}
		fmt.Printf("parent  %s\n", pd)
	}
	if commit.Author.Name != nil {
		fmt.Printf("author  %s\n", *commit.Author.Name)
	}
	fmt.Printf("date    %s\n", commit.Timestamp.Format("Mon Jan 2 15:04:05 2006 -0700"))
	if commit.Message != nil {
		fmt.Printf("\n    %s\n", *commit.Message)
	}

	tree, err := object.FetchTree(ctx, w.reg, commit.Subtree.Handle)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d entries:\n", len(tree.Entries))
	for _, e := range tree.Entries {
		fmt.Printf("  %-6s %s\n", e.Ref.Kind, e.Name)
	}
	return nil
}

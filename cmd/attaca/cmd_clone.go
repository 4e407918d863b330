package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/attaca-vcs/attaca/modules/checkout"
	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/attaca-vcs/attaca/modules/state"
)

type cloneCmd struct {
	URL    string `arg:"" help:"Remote URL to clone."`
	Path   string `arg:"" optional:"" help:"Destination directory (defaults to the URL's base name)."`
	Branch string `short:"b" default:"main" help:"Branch to check out after cloning."`
}

func (c *cloneCmd) Run(ctx context.Context) error {
	dest := c.Path
	if dest == "" {
		dest = filepath.Base(filepath.Clean(c.URL))
	}
	dest, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if err := initWorkspace(dest, state.StoreConfig{Kind: "fsblob"}); err != nil {
		return err
	}
	w, err := loadWorkspace(ctx, dest)
	if err != nil {
		return err
	}
	defer w.close()

	remote, err := openRemote(ctx, c.URL)
	if err != nil {
		return err
	}
	defer remote.Close()

	w.state.Remotes["origin"] = c.URL
	state.SetUpstream(w.state, c.Branch, "origin", c.Branch)
	if err := state.Fetch(ctx, w.reg, remote, "origin", w.state); err != nil {
		return err
	}

	branches, err := w.reg.LoadBranches(ctx)
	if err != nil {
		return err
	}
	if h, ok := branches[c.Branch]; ok {
		commit, err := object.FetchCommit(ctx, w.reg, h)
		if err != nil {
			return err
		}
		if err := checkout.CheckoutPathFromTree(ctx, w.reg, commit.Subtree, nil, dest, checkout.Options{}); err != nil {
			return err
		}
		w.state.Head = state.Head{Kind: state.HeadBranch, Branch: c.Branch}
	}
	if err := w.save(); err != nil {
		return err
	}
	fmt.Printf("cloned %s into %s\n", c.URL, dest)
	return nil
}

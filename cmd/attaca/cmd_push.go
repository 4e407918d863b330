package main

import (
	"context"
	"fmt"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/state"
)

type pushCmd struct {
	Remote string `arg:"" optional:"" default:"origin" help:"Remote to push to."`
	Branch string `arg:"" optional:"" help:"Branch to push (defaults to HEAD's branch)."`
}

func (c *pushCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	branch := c.Branch
	if branch == "" {
		if w.state.Head.Kind != state.HeadBranch {
			return fmt.Errorf("HEAD is not on a branch; specify one explicitly")
		}
		branch = w.state.Head.Branch
	}

	url, ok := w.state.Remotes[c.Remote]
	if !ok {
		return atcerr.NewNotFound("remote", c.Remote)
	}
	remote, err := openRemote(ctx, url)
	if err != nil {
		return err
	}
	defer remote.Close()

	if err := state.Push(ctx, w.reg, remote, branch); err != nil {
		return err
	}
	fmt.Printf("pushed %s to %s\n", branch, c.Remote)
	return nil
}

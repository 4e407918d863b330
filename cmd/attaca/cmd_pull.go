package main

import (
	"context"
	"fmt"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/checkout"
	"github.com/attaca-vcs/attaca/modules/state"
)

type pullCmd struct {
	Remote string `arg:"" optional:"" default:"origin" help:"Remote to pull from."`
}

func (c *pullCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	url, ok := w.state.Remotes[c.Remote]
	if !ok {
		return atcerr.NewNotFound("remote", c.Remote)
	}
	remote, err := openRemote(ctx, url)
	if err != nil {
		return err
	}
	defer remote.Close()

	if err := state.Pull(ctx, w.reg, remote, c.Remote, w.state, w.root, checkout.Options{}); err != nil {
		return err
	}
	if err := w.save(); err != nil {
		return err
	}
	fmt.Printf("pulled %s\n", c.Remote)
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/state"
)

type fetchCmd struct {
	Remote string `arg:"" optional:"" default:"origin" help:"Remote to fetch from."`
}

func (c *fetchCmd) Run(ctx context.Context) error {
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

	if err := state.Fetch(ctx, w.reg, remote, c.Remote, w.state); err != nil {
		return err
	}
	if err := w.save(); err != nil {
		return err
	}
	fmt.Printf("fetched %s\n", c.Remote)
	return nil
}

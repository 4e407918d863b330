package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/attaca-vcs/attaca/internal/atcerr"
)

type remoteCmd struct {
	Remove bool   `xor:"mode" help:"Remove the named remote."`
	Name   string `arg:"" optional:"" help:"Remote name."`
	URL    string `arg:"" optional:"" help:"Remote URL (required when adding)."`
}

func (c *remoteCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	switch {
	case c.Remove:
		if _, ok := w.state.Remotes[c.Name]; !ok {
			return atcerr.NewNotFound("remote", c.Name)
		}
		delete(w.state.Remotes, c.Name)
		delete(w.state.RemoteRefs, c.Name)
		fmt.Printf("removed remote %s\n", c.Name)
	case c.Name != "" && c.URL != "":
		w.state.Remotes[c.Name] = c.URL
		fmt.Printf("added remote %s -> %s\n", c.Name, c.URL)
	case c.Name == "":
		names := make([]string, 0, len(w.state.Remotes))
		for name := range w.state.Remotes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s\t%s\n", name, w.state.Remotes[name])
		}
		return nil
	default:
		return fmt.Errorf("remote add requires both a name and a URL")
	}
	return w.save()
}

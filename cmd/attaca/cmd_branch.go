package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/attaca-vcs/attaca/modules/state"
)

type branchCmd struct {
	List   bool   `short:"l" xor:"mode" help:"List branches."`
	Delete string `short:"d" xor:"mode" help:"Delete the named branch."`
	Name   string `arg:"" optional:"" help:"Name of the branch to create, pointed at HEAD."`
}

func (c *branchCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	switch {
	case c.Delete != "":
		if err := state.DeleteBranch(ctx, w.reg, c.Delete); err != nil {
			return err
		}
		fmt.Printf("deleted branch %s\n", c.Delete)
		return nil
	case c.Name != "":
		h, err := headHandle(ctx, w.reg, w)
		if err != nil {
			return err
		}
		if err := state.CreateBranch(ctx, w.reg, c.Name, h); err != nil {
			return err
		}
		fmt.Printf("created branch %s\n", c.Name)
		return nil
	default:
		branches, err := w.reg.LoadBranches(ctx)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(branches))
		for name := range branches {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			marker := "  "
			if w.state.Head.Kind == state.HeadBranch && w.state.Head.Branch == name {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, name)
		}
		return nil
	}
}

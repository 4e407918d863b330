package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/attaca-vcs/attaca/modules/fsck"
)

type fsckCmd struct{}

func (c *fsckCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	branches, err := w.reg.LoadBranches(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		mismatches, err := fsck.Check(ctx, w.reg, branches[name])
		if err != nil {
			return err
		}
		for _, m := range mismatches {
			fmt.Printf("%s: %x: expected %s got %s\n", name, m.Id, m.Expected, m.Actual)
		}
		total += len(mismatches)
	}
	if total == 0 {
		fmt.Println("no mismatches found")
		return nil
	}
	return fmt.Errorf("%d mismatch(es) found", total)
}

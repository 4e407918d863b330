package main

import (
	"context"
	"fmt"

	"github.com/attaca-vcs/attaca/modules/object"
)

type logCmd struct {
	Limit int `short:"n" default:"20" help:"Maximum number of commits to show."`
}

func (c *logCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	commit, err := headCommit(ctx, w.reg, w)
	if err != nil {
		return err
	}
	if commit == nil {
		fmt.Println("no commits yet")
		return nil
	}

	for i := 0; i < c.Limit && commit != nil; i++ {
		d, err := w.reg.Digest("", commit.Handle)
		if err != nil {
			return err
		}
		msg := ""
		if commit.Message != nil {
			msg = *commit.Message
		}
		fmt.Printf("commit %s\n", d)
		fmt.Printf("Date:   %s\n\n", commit.Timestamp.Format("Mon Jan 2 15:04:05 2006 -0700"))
		fmt.Printf("    %s\n\n", msg)

		if len(commit.Parents) == 0 {
			break
		}
		commit, err = object.FetchCommit(ctx, w.reg, commit.Parents[0].Handle)
		if err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
)

type stageCmd struct{}

// Run ingests the full workspace tree and records it as the candidate: the
// engine stages the working tree as a whole rather than tracking an index
// of individually-staged paths.
func (c *stageCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	ref, err := ingestPath(ctx, w.reg, w.root)
	if err != nil {
		return err
	}
	d, err := w.reg.Digest("", ref.Handle)
	if err != nil {
		return err
	}
	w.state.Candidate = &d
	if err := w.save(); err != nil {
		return err
	}
	fmt.Printf("staged candidate tree %s\n", d)
	return nil
}

type unstageCmd struct{}

// Run clears the candidate; the next commit then falls back to a fresh
// ingest of the working tree.
func (c *unstageCmd) Run(ctx context.Context) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	w.state.Candidate = nil
	if err := w.save(); err != nil {
		return err
	}
	fmt.Println("cleared staged candidate")
	return nil
}

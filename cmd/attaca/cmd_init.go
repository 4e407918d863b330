package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/attaca-vcs/attaca/modules/state"
)

type initCmd struct {
	Directory string `arg:"" optional:"" help:"Directory to initialise (defaults to the current directory)." default:"."`
	Store     string `help:"Local backend kind: fsblob (default) or kvlocal." default:"fsblob" enum:"fsblob,kvlocal"`
	IDMapDSN  string `name:"idmap-dsn" help:"go-sql-driver/mysql DSN for a persistent id map (optional)."`
}

func (c *initCmd) Run(ctx context.Context) error {
	dir, err := filepath.Abs(c.Directory)
	if err != nil {
		return err
	}
	if info, err := os.Stat(filepath.Join(dir, attacaDir)); err == nil && info.IsDir() {
		return fmt.Errorf("%s is already an attaca workspace", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	cfg := state.StoreConfig{Kind: c.Store, IDMapDSN: c.IDMapDSN}
	if err := initWorkspace(dir, cfg); err != nil {
		return err
	}
	fmt.Printf("initialised empty workspace in %s\n", filepath.Join(dir, attacaDir))
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/fsblob"
	"github.com/attaca-vcs/attaca/modules/backend/idmap"
	"github.com/attaca-vcs/attaca/modules/backend/kvlocal"
	"github.com/attaca-vcs/attaca/modules/cache"
	"github.com/attaca-vcs/attaca/modules/state"
)

const attacaDir = ".attaca"

// workspace bundles the open handles a command needs: the local registry,
// the per-workspace State, the inode cache, and the workspace root.
type workspace struct {
	root  string
	reg   *backend.Registry
	state *state.State
	cache *cache.Store
}

func findRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", atcerr.NewIo("getwd", err)
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, attacaDir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", atcerr.NewNotFound("workspace", "no "+attacaDir+" directory found in any parent")
		}
		dir = parent
	}
}

func openWorkspace(ctx context.Context) (*workspace, error) {
	root, err := findRoot()
	if err != nil {
		return nil, err
	}
	return loadWorkspace(ctx, root)
}

// openStore opens the concrete backend.Store kind named by cfg.Kind,
// defaulting to fsblob when unset.
func openStore(root string, cfg state.StoreConfig) (backend.Store, error) {
	switch cfg.Kind {
	case "", "fsblob":
		return fsblob.New(filepath.Join(root, attacaDir))
	case "kvlocal":
		return kvlocal.Open(filepath.Join(root, attacaDir, "kvlocal.bolt"))
	default:
		return nil, fmt.Errorf("workspace: unknown store kind %q", cfg.Kind)
	}
}

func loadWorkspace(ctx context.Context, root string) (*workspace, error) {
	s, err := state.Load(filepath.Join(root, attacaDir, "state.toml"))
	if err != nil {
		return nil, err
	}
	store, err := openStore(root, s.Store)
	if err != nil {
		return nil, err
	}
	regOpts := []backend.RegistryOption{backend.WithEnableLRU(true)}
	if s.Store.IDMapDSN != "" {
		m, err := idmap.Open(ctx, s.Store.IDMapDSN)
		if err != nil {
			return nil, err
		}
		regOpts = append(regOpts, backend.WithPersistentIDMap(m))
	}
	reg, err := backend.NewRegistry(store, regOpts...)
	if err != nil {
		return nil, err
	}
	cacheStore, err := cache.Open(filepath.Join(root, attacaDir, "cache.bolt"))
	if err != nil {
		return nil, err
	}
	return &workspace{root: root, reg: reg, state: s, cache: cacheStore}, nil
}

func (w *workspace) save() error {
	return state.Save(filepath.Join(w.root, attacaDir, "state.toml"), w.state)
}

func (w *workspace) close() {
	w.reg.Close()
	w.cache.Close()
}

func initWorkspace(root string, cfg state.StoreConfig) error {
	if err := os.MkdirAll(filepath.Join(root, attacaDir), 0o755); err != nil {
		return atcerr.NewIo("mkdir "+attacaDir, err)
	}
	store, err := openStore(root, cfg)
	if err != nil {
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}
	s := state.Empty()
	s.Store = cfg
	return state.Save(filepath.Join(root, attacaDir, "state.toml"), s)
}

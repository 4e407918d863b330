package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/attaca-vcs/attaca/modules/share"
)

// ingestPath walks basePath and builds a Tree object.Reference mirroring
// its contents, sharing every regular file's bytes through the share
// pipeline. The attacaDir directory, if present at this level, is skipped.
func ingestPath(ctx context.Context, reg *backend.Registry, basePath string) (object.Reference, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return object.Reference{}, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var treeEntries []object.TreeEntry
	for _, de := range entries {
		name := de.Name()
		if name == attacaDir {
			continue
		}
		childPath := filepath.Join(basePath, name)
		if de.IsDir() {
			ref, err := ingestPath(ctx, reg, childPath)
			if err != nil {
				return object.Reference{}, err
			}
			treeEntries = append(treeEntries, object.TreeEntry{Name: name, Ref: ref})
			continue
		}
		ref, err := ingestFile(ctx, reg, childPath)
		if err != nil {
			return object.Reference{}, err
		}
		treeEntries = append(treeEntries, object.TreeEntry{Name: name, Ref: ref})
	}

	return object.BuildTree(ctx, reg, treeEntries, nil)
}

func ingestFile(ctx context.Context, reg *backend.Registry, path string) (object.Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return object.Reference{}, err
	}
	defer f.Close()
	return share.Share(ctx, reg, f, share.Options{})
}

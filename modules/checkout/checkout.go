// Package checkout materialises an object graph onto the filesystem and
// reconciles a workspace directory against a Tree (§4.7). Large children are
// fetched with bounded parallelism via golang.org/x/sync/errgroup, and file
// contents are written through an mmap the way the teacher's streamio
// package favours buffer reuse over naive io.Copy for large payloads.
package checkout

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/internal/logx"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/attaca-vcs/attaca/modules/object"
	"github.com/edsrzf/mmap-go"
	"golang.org/x/sync/errgroup"
)

var log = logx.For("checkout")

// attacaDir is the one path component the engine never touches while
// reconciling a directory against a Tree.
const attacaDir = ".attaca"

// DefaultLookahead matches §5's bounded fan-out default for Large child
// fetches and directory reconciliation.
const DefaultLookahead = 32

// Options tunes the checkout engine's concurrency.
type Options struct {
	Lookahead int
}

func (o Options) lookahead() int {
	if o.Lookahead <= 0 {
		return DefaultLookahead
	}
	return o.Lookahead
}

type tripleKey struct {
	start, end int64
	ref        digest.Digest
}

// CheckoutFileFromData materialises dataRef (Small or Large) as the
// contents of path. If previousRef is a Large of the same depth, only the
// set-difference of [start,end,ref] triples against dataRef is fetched; the
// rest of the file is assumed to already hold the matching bytes from a
// prior checkout of previousRef.
func CheckoutFileFromData(ctx context.Context, fetcher object.Fetcher, dataRef object.Reference, previousRef *object.Reference, path string, opts Options) (err error) {
	recheck, lockErr := lockFile(path)
	if lockErr != nil {
		return lockErr
	}

	if dataRef.Kind == object.KindSmall {
		contents, err := object.FetchSmall(ctx, fetcher, dataRef.Handle)
		if err != nil {
			return err
		}
		if err := recheck(); err != nil {
			return err
		}
		return os.WriteFile(path, contents, 0o644)
	}
	if dataRef.Kind != object.KindLarge {
		return atcerr.NewInvariantViolation("checkout: data_ref must be Small or Large, got %s", dataRef.Kind)
	}

	large, err := object.FetchLarge(ctx, fetcher, dataRef.Handle, dataRef.Depth)
	if err != nil {
		return err
	}

	skip := map[tripleKey]bool{}
	if previousRef != nil && previousRef.Kind == object.KindLarge && previousRef.Depth == dataRef.Depth {
		prevLarge, err := object.FetchLarge(ctx, fetcher, previousRef.Handle, previousRef.Depth)
		if err == nil {
			for _, c := range prevLarge.Children {
				d, derr := fetcher.Digest("", c.Ref.Handle)
				if derr == nil {
					skip[tripleKey{c.Start, c.End, d}] = true
				}
			}
		}
	}

	if err := recheck(); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return atcerr.NewIo("open "+path, err)
	}
	defer f.Close()
	if err := f.Truncate(dataRef.Size); err != nil {
		return atcerr.NewIo("truncate "+path, err)
	}
	if dataRef.Size == 0 {
		return nil
	}

	region, err := mmap.MapRegion(f, int(dataRef.Size), mmap.RDWR, 0, 0)
	if err != nil {
		return atcerr.NewIo("mmap "+path, err)
	}
	defer region.Unmap()

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(opts.lookahead())
	for _, c := range large.Children {
		c := c
		d, derr := fetcher.Digest("", c.Ref.Handle)
		if derr != nil {
			return derr
		}
		if skip[tripleKey{c.Start, c.End, d}] {
			continue
		}
		grp.Go(func() error {
			return collectLeaves(gctx, fetcher, c.Ref, c.Start, opts, func(start, end int64, data []byte) error {
				copy(region[start:end], data)
				return nil
			})
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	if err := region.Flush(); err != nil {
		return atcerr.NewIo("flush "+path, err)
	}
	return nil
}

// collectLeaves recursively flattens ref (Small or Large) into absolute
// byte ranges, invoking visit for every leaf, fetched with bounded
// parallelism at each Large level.
func collectLeaves(ctx context.Context, fetcher object.Fetcher, ref object.Reference, baseOffset int64, opts Options, visit func(start, end int64, data []byte) error) error {
	if ref.Kind == object.KindSmall {
		contents, err := object.FetchSmall(ctx, fetcher, ref.Handle)
		if err != nil {
			return err
		}
		return visit(baseOffset, baseOffset+int64(len(contents)), contents)
	}
	large, err := object.FetchLarge(ctx, fetcher, ref.Handle, ref.Depth)
	if err != nil {
		return err
	}
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(opts.lookahead())
	for _, c := range large.Children {
		c := c
		grp.Go(func() error {
			return collectLeaves(gctx, fetcher, c.Ref, baseOffset+c.Start, opts, visit)
		})
	}
	return grp.Wait()
}

// lockFile guards against a concurrent edit to path racing the checkout
// write, per §9's "treat an in-progress edit as an error" requirement. It
// is a best-effort mtime snapshot/recheck rather than a kernel-level lock,
// matching the core's description of the guard as advisory: the returned
// closure reports atcerr.FileChangedDuringHash if path's mtime or size moved
// since the snapshot. CheckoutFileFromData calls it after fetching and just
// before its first write, so the checkout's own write never trips it; an
// edit that lands while the write itself is in progress is not detected.
func lockFile(path string) (func() error, error) {
	before, staterr := os.Stat(path)
	return func() error {
		if staterr != nil {
			return nil
		}
		after, err := os.Stat(path)
		if err != nil {
			return nil
		}
		if after.ModTime() != before.ModTime() || after.Size() != before.Size() {
			log.Debugf("checkout", "path %s changed during checkout", path)
			return atcerr.NewFileChangedDuringHash(path)
		}
		return nil
	}, nil
}

// workspaceEntry describes one name seen while reconciling a directory.
type workspaceEntry struct {
	isDir bool
}

// CheckoutPathFromTree reconciles the directory at basePath with treeRef.
// previousTreeRef, if non-nil, is the Tree the workspace was last checked
// out from; matching entries are passed through to CheckoutFileFromData so
// unchanged Large ranges are not re-fetched.
func CheckoutPathFromTree(ctx context.Context, reg *backend.Registry, treeRef object.Reference, previousTreeRef *object.Reference, basePath string, opts Options) error {
	tree, err := object.FetchTree(ctx, reg, treeRef.Handle)
	if err != nil {
		return err
	}
	var previousTree *object.Tree
	if previousTreeRef != nil {
		previousTree, err = object.FetchTree(ctx, reg, previousTreeRef.Handle)
		if err != nil {
			return err
		}
	}

	workspace, err := readWorkspace(basePath)
	if err != nil {
		return err
	}

	names := map[string]bool{}
	for _, e := range tree.Entries {
		names[e.Name] = true
	}
	for name := range workspace {
		names[name] = true
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return atcerr.NewIo("mkdir "+basePath, err)
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(opts.lookahead())
	for _, name := range sorted {
		if name == attacaDir {
			continue
		}
		name := name
		entryPath := filepath.Join(basePath, name)
		treeEntry, inTree := tree.Entry(name)
		_, inWorkspace := workspace[name]

		var prevEntry *object.TreeEntry
		if previousTree != nil {
			if e, ok := previousTree.Entry(name); ok {
				prevEntry = &e
			}
		}

		switch {
		case inTree && !inWorkspace:
			grp.Go(func() error { return materialise(gctx, reg, treeEntry.Ref, prevEntry, entryPath, opts) })
		case !inTree && inWorkspace:
			grp.Go(func() error { return os.RemoveAll(entryPath) })
		case inTree && inWorkspace:
			grp.Go(func() error { return reconcileBoth(gctx, reg, treeEntry.Ref, prevEntry, entryPath, opts) })
		}
	}
	return grp.Wait()
}

func materialise(ctx context.Context, reg *backend.Registry, ref object.Reference, prevEntry *object.TreeEntry, path string, opts Options) error {
	if ref.Kind == object.KindTree {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return atcerr.NewIo("mkdir "+path, err)
		}
		var prevRef *object.Reference
		if prevEntry != nil && prevEntry.Ref.Kind == object.KindTree {
			prevRef = &prevEntry.Ref
		}
		return CheckoutPathFromTree(ctx, reg, ref, prevRef, path, opts)
	}
	var prevRef *object.Reference
	if prevEntry != nil && prevEntry.Ref.Kind != object.KindTree {
		prevRef = &prevEntry.Ref
	}
	return CheckoutFileFromData(ctx, reg, ref, prevRef, path, opts)
}

func reconcileBoth(ctx context.Context, reg *backend.Registry, ref object.Reference, prevEntry *object.TreeEntry, path string, opts Options) error {
	info, err := os.Lstat(path)
	if err != nil {
		return atcerr.NewIo("lstat "+path, err)
	}
	workspaceIsDir := info.IsDir()
	treeIsDir := ref.Kind == object.KindTree

	if workspaceIsDir != treeIsDir {
		if err := os.RemoveAll(path); err != nil {
			return atcerr.NewIo("remove "+path, err)
		}
		return materialise(ctx, reg, ref, prevEntry, path, opts)
	}
	return materialise(ctx, reg, ref, prevEntry, path, opts)
}

func readWorkspace(basePath string) (map[string]workspaceEntry, error) {
	entries, err := os.ReadDir(basePath)
	if os.IsNotExist(err) {
		return map[string]workspaceEntry{}, nil
	}
	if err != nil {
		return nil, atcerr.NewIo("readdir "+basePath, err)
	}
	out := make(map[string]workspaceEntry, len(entries))
	for _, e := range entries {
		out[e.Name()] = workspaceEntry{isDir: e.IsDir()}
	}
	return out, nil
}

// CheckoutPathsFromTree performs a selective checkout of paths (each a
// slash-separated path relative to basePath) from treeRef.
func CheckoutPathsFromTree(ctx context.Context, reg *backend.Registry, treeRef object.Reference, previousTreeRef *object.Reference, basePath string, paths []string, opts Options) error {
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(opts.lookahead())
	for _, p := range paths {
		p := p
		grp.Go(func() error {
			components := object.SplitPath(p)
			ref, ok, err := resolvePath(gctx, reg, treeRef, components)
			if err != nil {
				return err
			}
			if !ok {
				return atcerr.NewNotFound("path", p)
			}
			var prevRef *object.Reference
			if previousTreeRef != nil {
				if pr, ok, _ := resolvePath(gctx, reg, *previousTreeRef, components); ok {
					prevRef = &pr
				}
			}
			return materialiseAt(gctx, reg, ref, prevRef, filepath.Join(basePath, filepath.FromSlash(p)), opts)
		})
	}
	return grp.Wait()
}

func resolvePath(ctx context.Context, reg *backend.Registry, root object.Reference, components []string) (object.Reference, bool, error) {
	ref := root
	for _, c := range components {
		if ref.Kind != object.KindTree {
			return object.Reference{}, false, nil
		}
		tree, err := object.FetchTree(ctx, reg, ref.Handle)
		if err != nil {
			return object.Reference{}, false, err
		}
		entry, ok := tree.Entry(c)
		if !ok {
			return object.Reference{}, false, nil
		}
		ref = entry.Ref
	}
	return ref, true, nil
}

func materialiseAt(ctx context.Context, reg *backend.Registry, ref object.Reference, prevRef *object.Reference, path string, opts Options) error {
	if ref.Kind == object.KindTree {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return atcerr.NewIo("mkdir "+path, err)
		}
		return CheckoutPathFromTree(ctx, reg, ref, prevRef, path, opts)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return atcerr.NewIo("mkdir "+filepath.Dir(path), err)
	}
	return CheckoutFileFromData(ctx, reg, ref, prevRef, path, opts)
}

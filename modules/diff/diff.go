// Package diff computes the set of changes between a candidate Tree and a
// HEAD Tree: a parallel recursive descent merging their sorted child lists
// (§4.8). Reference equality is digest equality; handles within one backend
// already dedupe by digest, so comparing handles suffices there.
package diff

import (
	"context"
	"path"
	"sort"
	"sync"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/object"
	"golang.org/x/sync/errgroup"
)

// syncMutex guards concurrent appends to the shared changes slice from the
// bounded fan-out goroutines walk() and enumerate() spawn.
type syncMutex struct {
	mu sync.Mutex
}

func (m *syncMutex) append(changes *[]Change, c Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*changes = append(*changes, c)
}

// ChangeKind tags one entry of a Diff result.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "Added"
	case Removed:
		return "Removed"
	case Modified:
		return "Modified"
	default:
		return "Unknown"
	}
}

// Change is one reported difference, named by its slash-separated path
// relative to the diff root.
type Change struct {
	Kind ChangeKind
	Path string
}

// DefaultLookahead mirrors the checkout engine's bounded fan-out default.
const DefaultLookahead = 32

type Options struct {
	Lookahead int
}

func (o Options) lookahead() int {
	if o.Lookahead <= 0 {
		return DefaultLookahead
	}
	return o.Lookahead
}

// Diff compares candidateRef against headRef, both expected to be Tree
// references, and returns every Added/Removed/Modified leaf found.
func Diff(ctx context.Context, reg *backend.Registry, headRef, candidateRef object.Reference, opts Options) ([]Change, error) {
	var changes []Change
	var mu syncMutex
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(opts.lookahead())

	var walk func(ctx context.Context, head, candidate *object.Reference, prefix string) error
	walk = func(ctx context.Context, head, candidate *object.Reference, prefix string) error {
		switch {
		case head == nil && candidate == nil:
			return nil
		case head == nil:
			return enumerate(ctx, reg, *candidate, prefix, Added, &mu, &changes, opts)
		case candidate == nil:
			return enumerate(ctx, reg, *head, prefix, Removed, &mu, &changes, opts)
		}

		if head.Kind == object.KindTree && candidate.Kind == object.KindTree {
			if head.Handle == candidate.Handle {
				return nil
			}
			headTree, err := object.FetchTree(ctx, reg, head.Handle)
			if err != nil {
				return err
			}
			candidateTree, err := object.FetchTree(ctx, reg, candidate.Handle)
			if err != nil {
				return err
			}
			names := mergedNames(headTree, candidateTree)
			for _, name := range names {
				name := name
				childPrefix := path.Join(prefix, name)
				he, hok := headTree.Entry(name)
				ce, cok := candidateTree.Entry(name)
				var hr, cr *object.Reference
				if hok {
					hr = &he.Ref
				}
				if cok {
					cr = &ce.Ref
				}
				grp.Go(func() error { return walk(gctx, hr, cr, childPrefix) })
			}
			return nil
		}

		if head.Kind == object.KindTree {
			// Tree on HEAD only: the candidate side replaced a
			// directory with a data ref outright — report it as a
			// one-sided remove of the whole subtree plus an add of
			// the new leaf.
			if err := enumerate(ctx, reg, *head, prefix, Removed, &mu, &changes, opts); err != nil {
				return err
			}
			mu.append(&changes, Change{Kind: Added, Path: prefix})
			return nil
		}
		if candidate.Kind == object.KindTree {
			if err := enumerate(ctx, reg, *candidate, prefix, Added, &mu, &changes, opts); err != nil {
				return err
			}
			mu.append(&changes, Change{Kind: Removed, Path: prefix})
			return nil
		}

		if head.Handle != candidate.Handle {
			mu.append(&changes, Change{Kind: Modified, Path: prefix})
		}
		return nil
	}

	grp.Go(func() error { return walk(gctx, &headRef, &candidateRef, "") })
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return changes, nil
}

// enumerate recursively reports every leaf under ref as a single-sided
// change (used when a whole subtree only exists on one side).
func enumerate(ctx context.Context, reg *backend.Registry, ref object.Reference, prefix string, kind ChangeKind, mu *syncMutex, changes *[]Change, opts Options) error {
	if ref.Kind != object.KindTree {
		mu.append(changes, Change{Kind: kind, Path: prefix})
		return nil
	}
	tree, err := object.FetchTree(ctx, reg, ref.Handle)
	if err != nil {
		return err
	}
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(opts.lookahead())
	for _, e := range tree.Entries {
		e := e
		grp.Go(func() error {
			return enumerate(gctx, reg, e.Ref, path.Join(prefix, e.Name), kind, mu, changes, opts)
		})
	}
	return grp.Wait()
}

func mergedNames(a, b *object.Tree) []string {
	set := map[string]bool{}
	for _, n := range a.SortedNames() {
		set[n] = true
	}
	for _, n := range b.SortedNames() {
		set[n] = true
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Package hierarchy implements lazy, single-flight traversal of a Tree by
// slash-separated path (§4.6). A node starts Unpolled; the first caller to
// reach it drives the fetch and every concurrent caller observes the same
// in-flight result, via golang.org/x/sync/singleflight rather than a
// hand-rolled guard, mirroring the teacher's preference for the
// x/sync family over bespoke locking primitives.
package hierarchy

import (
	"context"
	"sync"

	"github.com/attaca-vcs/attaca/modules/object"
	"golang.org/x/sync/singleflight"
)

// node holds one Tree's children, fetched at most once regardless of how
// many callers race to expand it.
type node struct {
	ref   object.Reference
	group singleflight.Group

	mu       sync.RWMutex
	expanded bool
	children map[string]*node
	leaf     object.Reference
	isLeaf   bool
}

func newNode(ref object.Reference) *node {
	return &node{ref: ref}
}

// Hierarchy wraps a root Tree reference and memoises the path → node
// mapping as it is discovered.
type Hierarchy struct {
	fetcher object.Fetcher
	root    *node
}

// New wraps rootRef (expected to be of kind Tree) for lazy path resolution.
func New(fetcher object.Fetcher, rootRef object.Reference) *Hierarchy {
	return &Hierarchy{fetcher: fetcher, root: newNode(rootRef)}
}

// Get resolves path (a, possibly empty, list of path components) against
// the hierarchy. An empty path returns the root reference. A zero
// Reference with false means some component of path does not exist.
func (h *Hierarchy) Get(ctx context.Context, path []string) (object.Reference, bool, error) {
	if len(path) == 0 {
		return h.root.ref, true, nil
	}
	return h.get(ctx, h.root, path)
}

func (h *Hierarchy) get(ctx context.Context, n *node, path []string) (object.Reference, bool, error) {
	children, err := h.expand(ctx, n)
	if err != nil {
		return object.Reference{}, false, err
	}
	head, tail := path[0], path[1:]
	child, ok := children[head]
	if !ok {
		return object.Reference{}, false, nil
	}
	if len(tail) == 0 {
		return child.ref, true, nil
	}
	if child.ref.Kind != object.KindTree {
		return object.Reference{}, false, nil
	}
	return h.get(ctx, child, tail)
}

// expand transitions n from Unpolled to Ready, guaranteeing that concurrent
// callers share exactly one underlying Fetch (the single-flight guarantee
// §4.6 and §5 require). The fetch runs detached from the cancellation of
// the caller that starts it, so dropping any one caller's context does not
// cancel the fetch for the others.
func (h *Hierarchy) expand(ctx context.Context, n *node) (map[string]*node, error) {
	n.mu.RLock()
	if n.expanded {
		defer n.mu.RUnlock()
		return n.children, nil
	}
	n.mu.RUnlock()

	result, err, _ := n.group.Do("expand", func() (any, error) {
		n.mu.RLock()
		if n.expanded {
			children := n.children
			n.mu.RUnlock()
			return children, nil
		}
		n.mu.RUnlock()

		tree, err := object.FetchTree(context.WithoutCancel(ctx), h.fetcher, n.ref.Handle)
		if err != nil {
			return nil, err
		}
		children := make(map[string]*node, len(tree.Entries))
		for _, e := range tree.Entries {
			children[e.Name] = newNode(e.Ref)
		}

		n.mu.Lock()
		if !n.expanded {
			n.children = children
			n.expanded = true
		}
		out := n.children
		n.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]*node), nil
}

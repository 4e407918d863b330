// Package object is the typed view over canonical bytes: Small, Large,
// Tree and Commit, each backed by a backend.Handle and decoded on demand
// through modules/codec. The kind of a blob is recoverable only from
// context (§3), so every typed fetch here takes the kind the caller
// expects and returns atcerr.MalformedObject if the bytes don't parse that
// way — mirroring the teacher's resolveTree/resolveBlob pattern in
// object/tree.go and object/blob.go.
package object

import (
	"context"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/digest"
)

// Kind tags what a Reference is expected to resolve to.
type Kind int

const (
	KindSmall Kind = iota
	KindLarge
	KindTree
	KindCommit
)

func (k Kind) String() string {
	switch k {
	case KindSmall:
		return "Small"
	case KindLarge:
		return "Large"
	case KindTree:
		return "Tree"
	case KindCommit:
		return "Commit"
	default:
		return "Unknown"
	}
}

// Reference is a typed pointer at a blob: what kind it is expected to be,
// how large the represented byte stream is (meaningless for Tree/Commit),
// the Large nesting depth (0 for Small), and the backend handle that
// resolves it.
type Reference struct {
	Kind   Kind
	Size   int64
	Depth  int
	Handle backend.Handle
}

// Fetcher is the minimal surface object.* needs from a backend.Registry;
// kept as an interface so the share pipeline, hierarchy, and checkout
// engine can be tested against fakes without a real Store.
type Fetcher interface {
	Load(ctx context.Context, h backend.Handle) ([]byte, []backend.Handle, error)
	Digest(sig string, h backend.Handle) (digest.Digest, error)
}

// Package backend defines the backend interface (§4.3) and the handle
// layer (§4.4) that sits above every concrete backend. Store is the
// narrow, storage-specific contract a concrete backend (fsblob, kvlocal,
// remote) must satisfy; Registry is the shared, backend-agnostic
// implementation of the full eight-operation table callers actually use,
// grounded on the teacher's object/database Database type (root/registry
// split) and the original lockmap.rs single-writer discipline.
package backend

import (
	"context"

	"github.com/attaca-vcs/attaca/modules/digest"
)

// StoredBlob is the on-disk shape of a blob: its own bytes plus the
// digests of its references, exactly the §6.1 "Blob" record.
type StoredBlob struct {
	Bytes []byte
	Refs  []digest.Digest
}

// Store is the narrow contract a concrete backend must satisfy: blob
// put/get keyed by digest, and branch-set load/compare-and-swap. Id
// allocation and digest caching live one layer up, in Registry.
type Store interface {
	// PutBlob persists a blob under its digest key. Implementations may
	// assume the caller has already verified d == Frame(blob.Bytes,
	// blob.Refs); PutBlob is a no-op (not an error) if the key already
	// exists, matching finish's "existing digest" guarantee.
	PutBlob(ctx context.Context, d digest.Digest, blob StoredBlob) error

	// GetBlob loads a previously-put blob. Returns atcerr.NotFound if the
	// digest is absent.
	GetBlob(ctx context.Context, d digest.Digest) (StoredBlob, error)

	// HasBlob reports presence without loading content, used by Resolve.
	HasBlob(ctx context.Context, d digest.Digest) (bool, error)

	// LoadBranches returns the full branch-name -> commit-digest mapping.
	LoadBranches(ctx context.Context) (map[string]digest.Digest, error)

	// SwapBranches performs the linearisable compare-and-swap described by
	// §4.3: succeeds only if the stored mapping equals prev byte-for-byte,
	// otherwise returns atcerr.ErrCompareFailed.
	SwapBranches(ctx context.Context, prev, next map[string]digest.Digest) error

	Close() error
}

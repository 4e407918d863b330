// Package memory is an in-process Store, equivalent in spirit to the
// original Rust workspace's RepositoryCfg::Empty: no persistence, useful
// for tests and as the default backend of a scratch workspace.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/digest"
)

type Store struct {
	mu       sync.RWMutex
	blobs    map[digest.Digest]backend.StoredBlob
	branches map[string]digest.Digest
}

var _ backend.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		blobs:    make(map[digest.Digest]backend.StoredBlob),
		branches: make(map[string]digest.Digest),
	}
}

func (s *Store) PutBlob(_ context.Context, d digest.Digest, blob backend.StoredBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[d]; ok {
		return nil
	}
	s.blobs[d] = backend.StoredBlob{
		Bytes: append([]byte(nil), blob.Bytes...),
		Refs:  append([]digest.Digest(nil), blob.Refs...),
	}
	return nil
}

func (s *Store) GetBlob(_ context.Context, d digest.Digest) (backend.StoredBlob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[d]
	if !ok {
		return backend.StoredBlob{}, atcerr.NewNotFound("blob", d.String())
	}
	return blob, nil
}

func (s *Store) HasBlob(_ context.Context, d digest.Digest) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[d]
	return ok, nil
}

func (s *Store) LoadBranches(context.Context) (map[string]digest.Digest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.branches), nil
}

func (s *Store) SwapBranches(_ context.Context, prev, next map[string]digest.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !maps.Equal(s.branches, prev) {
		return atcerr.ErrCompareFailed
	}
	s.branches = maps.Clone(next)
	return nil
}

func (s *Store) Close() error { return nil }

// Overwrite replaces a stored blob's bytes/refs unconditionally, bypassing
// the usual write-once semantics. It exists for fsck tests that need to
// simulate bit-rot or tampering after the fact.
func (s *Store) Overwrite(_ context.Context, d digest.Digest, blob backend.StoredBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[d] = backend.StoredBlob{
		Bytes: append([]byte(nil), blob.Bytes...),
		Refs:  append([]digest.Digest(nil), blob.Refs...),
	}
	return nil
}

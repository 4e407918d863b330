// Package kvlocal is the LevelDB-style local backend from §6.1: a
// key/value store keyed by short ASCII prefixes ("Blob", "Branches").
// No leveldb dependency appears anywhere in the example pack, so rather
// than fabricate one, this backend is built on go.etcd.io/bbolt — a real,
// pack-available (cuemby-warren, AKJUS-bsc-erigon) embedded ordered
// key/value store offering exactly the single-writer/multi-reader
// transaction discipline §6.1's key layout needs. See DESIGN.md for the
// justification ledger entry.
package kvlocal

import (
	"context"
	"fmt"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/digest"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlobs    = []byte("Blob")
	keyBranches    = []byte("Branches")
	bucketMetadata = []byte("meta")
)

type Store struct {
	db *bolt.DB
}

var _ backend.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("kvlocal: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBlobs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMetadata)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kvlocal: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// blobKey builds the "Blob" || digest-bytes key from §6.1.
func blobKey(d digest.Digest) []byte {
	key := make([]byte, 0, 4+digest.Size)
	key = append(key, "Blob"...)
	key = append(key, d[:]...)
	return key
}

func (s *Store) PutBlob(_ context.Context, d digest.Digest, blob backend.StoredBlob) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		key := blobKey(d)
		if b.Get(key) != nil {
			return nil
		}
		return b.Put(key, backend.EncodeRecord(blob))
	})
}

func (s *Store) GetBlob(_ context.Context, d digest.Digest) (backend.StoredBlob, error) {
	var out backend.StoredBlob
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlobs).Get(blobKey(d))
		if raw == nil {
			return atcerr.NewNotFound("blob", d.String())
		}
		decoded, err := backend.DecodeRecord(raw)
		if err != nil {
			return err
		}
		out = decoded
		return nil
	})
	return out, err
}

func (s *Store) HasBlob(_ context.Context, d digest.Digest) (bool, error) {
	var present bool
	err := s.db.View(func(tx *bolt.Tx) error {
		present = tx.Bucket(bucketBlobs).Get(blobKey(d)) != nil
		return nil
	})
	return present, err
}

func (s *Store) LoadBranches(context.Context) (map[string]digest.Digest, error) {
	out := make(map[string]digest.Digest)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMetadata).Get(keyBranches)
		if raw == nil {
			return nil
		}
		return decodeBranches(raw, out)
	})
	return out, err
}

func (s *Store) SwapBranches(_ context.Context, prev, next map[string]digest.Digest) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMetadata)
		current := make(map[string]digest.Digest)
		if raw := b.Get(keyBranches); raw != nil {
			if err := decodeBranches(raw, current); err != nil {
				return err
			}
		}
		if !equalBranches(current, prev) {
			return atcerr.ErrCompareFailed
		}
		return b.Put(keyBranches, encodeBranchesRaw(next))
	})
}

func equalBranches(a, b map[string]digest.Digest) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func (s *Store) Close() error { return s.db.Close() }

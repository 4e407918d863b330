// Package cache implements the inode-indexed, time-bounded mapping from a
// local path to its last known digest (§4.9), so checkout/stage operations
// can skip re-hashing an unchanged file. Soundness rests on the well-known
// "Racy-Git" fix: a cached digest is trusted only if the file's identity is
// unchanged and its ctime/mtime are strictly older than the timestamp the
// cache entry was written at.
package cache

import (
	"time"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/digest"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sys/unix"
)

var bucketCache = []byte("Cache")

// Inode is the OS-reported identity+modification snapshot of a file at
// stat time (§3's Cache entry "inode metadata").
type Inode struct {
	Generation uint64
	Number     uint64
	HasVersion bool
	Version    uint64
	CtimeNs    int64
	MtimeNs    int64
}

// statInode leaves Generation at zero: st_dev isn't folded in, so identity
// rests on the inode number alone. Safe on a single filesystem; a file
// deleted and its inode number reused on a different device within the
// cache's window would alias. The ctime/mtime racy-git check still holds.
func statInode(path string) (Inode, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Inode{}, err
	}
	return Inode{
		Number:  uint64(st.Ino),
		CtimeNs: st.Ctim.Sec*1e9 + st.Ctim.Nsec,
		MtimeNs: st.Mtim.Sec*1e9 + st.Mtim.Nsec,
	}, nil
}

// Certainty tags how confident an Extant status is.
type Certainty int

const (
	Positive Certainty = iota
	Unknown
	Negative
)

// StatusKind tags which of the four cross-product cases status() observed.
type StatusKind int

const (
	Extant StatusKind = iota
	Removed
	New
	Extinct
)

// Status is the result of consulting the cache for one path.
type Status struct {
	Kind      StatusKind
	Certainty Certainty
	Digest    digest.Digest
	Snapshot  Inode
}

// entry is the persisted record: a digest (absent for a negative cache hit)
// plus the inode snapshot and wall-clock timestamp taken when it was
// written.
type entry struct {
	hasDigest   bool
	digest      digest.Digest
	inode       Inode
	timestampNs int64
}

// Store is the local key-value handle backing the cache, one bbolt file per
// workspace the way kvlocal backs blob storage.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, atcerr.NewIo("open cache store "+path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCache)
		return err
	})
	if err != nil {
		db.Close()
		return nil, atcerr.NewIo("initialise cache store", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) load(path string) (entry, bool, error) {
	var e entry
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketCache).Get([]byte(path))
		if raw == nil {
			return nil
		}
		found = true
		var derr error
		e, derr = decodeEntry(raw)
		return derr
	})
	if err != nil {
		return entry{}, false, atcerr.NewIo("read cache entry for "+path, err)
	}
	return e, found, nil
}

func (s *Store) store(path string, e entry) error {
	raw := encodeEntry(e)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Put([]byte(path), raw)
	})
	if err != nil {
		return atcerr.NewIo("write cache entry for "+path, err)
	}
	return nil
}

// StatusOf implements §4.9 step 2's cross-product over {stored, present}.
func (s *Store) StatusOf(path string) (Status, error) {
	stored, hasEntry, err := s.load(path)
	if err != nil {
		return Status{}, err
	}
	current, statErr := statInode(path)
	present := statErr == nil

	switch {
	case hasEntry && present:
		return Status{Kind: Extant, Certainty: certaintyOf(stored, current), Digest: stored.digest, Snapshot: current}, nil
	case hasEntry && !present:
		return Status{Kind: Removed}, nil
	case !hasEntry && present:
		return Status{Kind: New, Snapshot: current}, nil
	default:
		return Status{Kind: Extinct}, nil
	}
}

func certaintyOf(stored entry, current Inode) Certainty {
	if stored.inode.Number != current.Number || stored.inode.Generation != current.Generation {
		return Negative
	}
	if stored.inode.HasVersion && current.HasVersion && stored.inode.Version == current.Version {
		return Positive
	}
	if stored.inode.CtimeNs == current.CtimeNs && stored.inode.MtimeNs == current.MtimeNs &&
		current.CtimeNs < stored.timestampNs && current.MtimeNs < stored.timestampNs {
		return Positive
	}
	return Unknown
}

// Resolve rechecks the inode before trusting snapshot; only if it still
// matches the file's current state does it rewrite the cache entry with d
// and a fresh timestamp, otherwise it reports FileChangedDuringHash.
func (s *Store) Resolve(path string, snapshot Inode, d digest.Digest) error {
	current, err := statInode(path)
	if err != nil {
		return atcerr.NewIo("stat "+path, err)
	}
	if current != snapshot {
		return atcerr.NewFileChangedDuringHash(path)
	}
	return s.store(path, entry{hasDigest: true, digest: d, inode: current, timestampNs: time.Now().UnixNano()})
}

// Invalidate removes any cache entry for path (used when a write is known
// to have happened, e.g. after a checkout materialises new contents).
func (s *Store) Invalidate(path string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Delete([]byte(path))
	})
	if err != nil {
		return atcerr.NewIo("invalidate cache entry for "+path, err)
	}
	return nil
}

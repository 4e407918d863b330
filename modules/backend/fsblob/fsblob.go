// Package fsblob is the local filesystem blob backend: loose objects
// under objects/<2-hex>/<next 2-hex>/<full hex digest>, grounded on the teacher's file_storer.go
// (two-level hex fan-out, incoming/rename-into-place write path) and the
// original Rust repository/fs.rs loose-object layout. Blob bytes are
// zstd-compressed on disk, matching object/blob.go's CompressMethod idea.
package fsblob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/attaca-vcs/attaca/modules/streamio"
)

const branchesFile = "branches.toml"

type Store struct {
	root     string
	incoming string

	mu sync.Mutex // guards the branches file's read-check-write sequence
}

var _ backend.Store = (*Store)(nil)

// New opens (creating if necessary) a loose-object store rooted at dir.
func New(dir string) (*Store, error) {
	root := filepath.Join(dir, "objects")
	incoming := filepath.Join(dir, "incoming")
	for _, d := range []string{root, incoming} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("fsblob: mkdir %s: %w", d, err)
		}
	}
	return &Store{root: root, incoming: incoming}, nil
}

func (s *Store) objectPath(d digest.Digest) string {
	hex := d.String()
	return filepath.Join(s.root, hex[:2], hex[2:4], hex)
}

func (s *Store) PutBlob(_ context.Context, d digest.Digest, blob backend.StoredBlob) error {
	path := s.objectPath(d)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("fsblob: mkdir %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(s.incoming, "blob-*")
	if err != nil {
		return fmt.Errorf("fsblob: create incoming temp: %w", err)
	}
	tmpName := tmp.Name()
	zw := streamio.GetZstdWriter(tmp)
	record := backend.EncodeRecord(blob)
	if _, err := zw.Write(record); err != nil {
		streamio.PutZstdWriter(zw)
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("fsblob: compress write: %w", err)
	}
	// PutZstdWriter closes the encoder, flushing its frame into tmp.
	streamio.PutZstdWriter(zw)
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("fsblob: close incoming: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("fsblob: rename into place: %w", err)
	}
	return nil
}

func (s *Store) GetBlob(_ context.Context, d digest.Digest) (backend.StoredBlob, error) {
	path := s.objectPath(d)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return backend.StoredBlob{}, atcerr.NewNotFound("blob", d.String())
		}
		return backend.StoredBlob{}, fmt.Errorf("fsblob: open %s: %w", path, err)
	}
	defer f.Close()
	zr, err := streamio.GetZstdReader(f)
	if err != nil {
		return backend.StoredBlob{}, fmt.Errorf("fsblob: zstd reader: %w", err)
	}
	defer streamio.PutZstdReader(zr)
	raw, err := io.ReadAll(zr)
	if err != nil {
		return backend.StoredBlob{}, fmt.Errorf("fsblob: decompress: %w", err)
	}
	return backend.DecodeRecord(raw)
}

func (s *Store) HasBlob(_ context.Context, d digest.Digest) (bool, error) {
	_, err := os.Stat(s.objectPath(d))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

type branchRecord struct {
	Name string `toml:"name"`
	Hash string `toml:"hash"`
}

type branchFile struct {
	Entries []branchRecord `toml:"entries"`
}

func (s *Store) branchesPath() string { return filepath.Join(s.root, "..", branchesFile) }

func (s *Store) readBranches() (map[string]digest.Digest, error) {
	path := s.branchesPath()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]digest.Digest{}, nil
		}
		return nil, fmt.Errorf("fsblob: read branches: %w", err)
	}
	var bf branchFile
	if err := toml.Unmarshal(raw, &bf); err != nil {
		return nil, fmt.Errorf("fsblob: parse branches: %w", err)
	}
	out := make(map[string]digest.Digest, len(bf.Entries))
	for _, e := range bf.Entries {
		d, err := digest.Parse(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("fsblob: branch %q has malformed digest: %w", e.Name, err)
		}
		out[e.Name] = d
	}
	return out, nil
}

func (s *Store) writeBranches(m map[string]digest.Digest) error {
	bf := branchFile{Entries: make([]branchRecord, 0, len(m))}
	for name, d := range m {
		bf.Entries = append(bf.Entries, branchRecord{Name: name, Hash: d.String()})
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(bf); err != nil {
		return fmt.Errorf("fsblob: encode branches: %w", err)
	}
	path := s.branchesPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("fsblob: write branches temp: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *Store) LoadBranches(context.Context) (map[string]digest.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readBranches()
}

func mapsEqual(a, b map[string]digest.Digest) bool {
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

func (s *Store) SwapBranches(_ context.Context, prev, next map[string]digest.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.readBranches()
	if err != nil {
		return err
	}
	if !mapsEqual(current, prev) {
		return atcerr.ErrCompareFailed
	}
	return s.writeBranches(next)
}

func (s *Store) Close() error { return nil }

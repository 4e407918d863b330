package cache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/attaca-vcs/attaca/modules/cache"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.Open(filepath.Join(t.TempDir(), "cache.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStatusExtinctThenNewThenExtant(t *testing.T) {
	s := newStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	st, err := s.StatusOf(path)
	require.NoError(t, err)
	require.Equal(t, cache.Extinct, st.Kind)

	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	st, err = s.StatusOf(path)
	require.NoError(t, err)
	require.Equal(t, cache.New, st.Kind)

	d := digest.Of([]byte("hello"))
	// Back-date the snapshot's recorded timestamp window by waiting past
	// filesystem timestamp granularity before resolving, so ctime/mtime
	// are strictly earlier than the entry's write time.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Resolve(path, st.Snapshot, d))

	st, err = s.StatusOf(path)
	require.NoError(t, err)
	require.Equal(t, cache.Extant, st.Kind)
	require.Equal(t, d, st.Digest)
}

func TestStatusRemoved(t *testing.T) {
	s := newStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	st, err := s.StatusOf(path)
	require.NoError(t, err)
	d := digest.Of([]byte("hello"))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Resolve(path, st.Snapshot, d))

	require.NoError(t, os.Remove(path))
	st, err = s.StatusOf(path)
	require.NoError(t, err)
	require.Equal(t, cache.Removed, st.Kind)
}

func TestEditWithinSameWindowInvalidatesCertainty(t *testing.T) {
	s := newStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	st, err := s.StatusOf(path)
	require.NoError(t, err)
	d := digest.Of([]byte("hello"))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Resolve(path, st.Snapshot, d))

	// Edit immediately; mtime/ctime change, so certainty must not read
	// back as Positive even though the write landed in the same window.
	require.NoError(t, os.WriteFile(path, []byte("hello!"), 0o644))
	st, err = s.StatusOf(path)
	require.NoError(t, err)
	require.Equal(t, cache.Extant, st.Kind)
	require.NotEqual(t, cache.Positive, st.Certainty)
}

func TestResolveRejectsStaleSnapshot(t *testing.T) {
	s := newStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	st, err := s.StatusOf(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))

	err = s.Resolve(path, st.Snapshot, digest.Of([]byte("hello")))
	require.Error(t, err)
}

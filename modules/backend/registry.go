package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/internal/logx"
	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/dgraph-io/ristretto/v2"
)

var log = logx.For("backend")

// Handle is a process-local, reference-counted-by-value denotation of a
// blob in one specific Registry instance. Two Handles are equal iff they
// denote the same backend Id; a Handle must never be passed to a different
// Registry except through Copy (see copy.go in this package, which
// performs cross-backend graph copy).
type Handle struct {
	id    uint64
	owner *Registry
}

func (h Handle) IsZero() bool { return h.owner == nil }

// IdBytes returns the owned local id bytes for this handle (§4.3 `id`).
func (h Handle) IdBytes() []byte {
	b := make([]byte, 8)
	putUint64(b, h.id)
	return b
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * (7 - i)))
	}
}

// PersistentIDMap is the optional extension point described in §9's open
// question: a crash-durable digest<->id table consulted by Resolve before
// falling back to a full keyspace walk. backend/idmap implements this over
// MySQL.
type PersistentIDMap interface {
	Lookup(ctx context.Context, d digest.Digest) (uint64, bool, error)
	Store(ctx context.Context, d digest.Digest, id uint64) error
}

// Registry is the handle layer (§4.4): a shared Digest<->Id registry
// fronting a Store. It implements the full backend operation table.
type Registry struct {
	store Store
	idmap PersistentIDMap // may be nil

	mu        sync.RWMutex
	nextID    uint64
	byDigest  map[digest.Digest]uint64
	byID      map[uint64]digest.Digest
	lru       *ristretto.Cache[uint64, digest.Digest]
	enableLRU bool
}

// RegistryOption configures a Registry (ground: backend/odb.go's
// functional-option Database constructor).
type RegistryOption func(*Registry)

// WithEnableLRU fronts id->digest lookups with a ristretto cache, useful
// when the share pipeline repeatedly re-resolves the same handful of hot
// digests during dedup.
func WithEnableLRU(enable bool) RegistryOption {
	return func(r *Registry) { r.enableLRU = enable }
}

// WithPersistentIDMap installs a crash-durable digest<->id table.
func WithPersistentIDMap(m PersistentIDMap) RegistryOption {
	return func(r *Registry) { r.idmap = m }
}

func NewRegistry(store Store, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		store:    store,
		byDigest: make(map[digest.Digest]uint64),
		byID:     make(map[uint64]digest.Digest),
	}
	for _, o := range opts {
		o(r)
	}
	if r.enableLRU {
		lru, err := ristretto.NewCache(&ristretto.Config[uint64, digest.Digest]{
			NumCounters: 100_000,
			MaxCost:     100_000,
			BufferItems: 64,
		})
		if err != nil {
			return nil, log.Errorf("NewRegistry", "create LRU: %v", err)
		}
		r.lru = lru
	}
	return r, nil
}

func (r *Registry) Close() error {
	if r.lru != nil {
		r.lru.Close()
	}
	if closer, ok := r.idmap.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	return r.store.Close()
}

// reserve returns the Handle owned by this registry for d, reserving a
// fresh Digest<->Id pair if d is not yet known.
func (r *Registry) reserve(d digest.Digest) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byDigest[d]; ok {
		return Handle{id: id, owner: r}
	}
	r.nextID++
	id := r.nextID
	r.byDigest[d] = id
	r.byID[id] = d
	if r.lru != nil {
		r.lru.Set(id, d, 1)
	}
	return Handle{id: id, owner: r}
}

func (r *Registry) digestOf(h Handle) (digest.Digest, bool) {
	if h.owner != r {
		return digest.Zero, false
	}
	if r.lru != nil {
		if d, ok := r.lru.Get(h.id); ok {
			return d, true
		}
	}
	r.mu.RLock()
	d, ok := r.byID[h.id]
	r.mu.RUnlock()
	return d, ok
}

// Builder accumulates bytes and child references for one not-yet-finished
// blob (§4.3 `builder()`).
type Builder struct {
	registry *Registry
	bytes    []byte
	refs     []Handle
}

func (r *Registry) Builder() *Builder {
	return &Builder{registry: r}
}

func (b *Builder) Write(p []byte) (int, error) {
	b.bytes = append(b.bytes, p...)
	return len(p), nil
}

func (b *Builder) AddReference(h Handle) {
	b.refs = append(b.refs, h)
}

// Finish implements the handle-layer algorithm from §4.4: compute the
// digest from bytes + ref-digests, reserve an Id (allocating only if the
// digest is fresh), and persist (Id, bytes, ref-ids) on first sight.
func (r *Registry) Finish(ctx context.Context, b *Builder) (Handle, error) {
	refDigests := make([]digest.Digest, len(b.refs))
	for i, h := range b.refs {
		d, ok := r.digestOf(h)
		if !ok {
			return Handle{}, log.Errorf("Finish", "dangling reference handle at index %d", i)
		}
		refDigests[i] = d
	}
	d := digest.Frame(b.bytes, refDigests)

	r.mu.Lock()
	id, fresh := r.byDigest[d]
	if !fresh {
		r.nextID++
		id = r.nextID
		r.byDigest[d] = id
		r.byID[id] = d
		if r.idmap != nil {
			_ = r.idmap.Store(ctx, d, id)
		}
	}
	r.mu.Unlock()

	if !fresh {
		if err := r.store.PutBlob(ctx, d, StoredBlob{Bytes: b.bytes, Refs: refDigests}); err != nil {
			return Handle{}, log.Errorf("Finish", "put blob %s: %v", d, err)
		}
	}
	return Handle{id: id, owner: r}, nil
}

// Load implements §4.3 `load`.
func (r *Registry) Load(ctx context.Context, h Handle) ([]byte, []Handle, error) {
	d, ok := r.digestOf(h)
	if !ok {
		return nil, nil, atcerr.NewNotFound("blob", "<dangling handle>")
	}
	stored, err := r.store.GetBlob(ctx, d)
	if err != nil {
		return nil, nil, err
	}
	refs := make([]Handle, len(stored.Refs))
	for i, rd := range stored.Refs {
		refs[i] = r.reserve(rd)
	}
	return stored.Bytes, refs, nil
}

// Digest implements §4.3 `digest(sig, Handle)`. SHA3-256 is the only
// signature this registry serves.
func (r *Registry) Digest(sig string, h Handle) (digest.Digest, error) {
	if sig != "" && sig != "SHA3-256" {
		return digest.Zero, &atcerr.UnsupportedDigest{Name: sig}
	}
	d, ok := r.digestOf(h)
	if !ok {
		return digest.Zero, atcerr.NewNotFound("blob", "<dangling handle>")
	}
	return d, nil
}

// Id implements §4.3 `id(Handle)`.
func (r *Registry) Id(h Handle) []byte { return h.IdBytes() }

// Resolve implements §4.3 `resolve(sig, digest_bytes)`: consult the
// registry first; on miss, fall back to the persistent id map (if any),
// then the underlying store, reserving an Id on success.
func (r *Registry) Resolve(ctx context.Context, sig string, d digest.Digest) (Handle, bool, error) {
	if sig != "" && sig != "SHA3-256" {
		return Handle{}, false, &atcerr.UnsupportedDigest{Name: sig}
	}
	r.mu.RLock()
	id, ok := r.byDigest[d]
	r.mu.RUnlock()
	if ok {
		return Handle{id: id, owner: r}, true, nil
	}
	if r.idmap != nil {
		if id, ok, err := r.idmap.Lookup(ctx, d); err == nil && ok {
			r.mu.Lock()
			r.byDigest[d] = id
			r.byID[id] = d
			r.mu.Unlock()
			return Handle{id: id, owner: r}, true, nil
		}
	}
	present, err := r.store.HasBlob(ctx, d)
	if err != nil {
		return Handle{}, false, err
	}
	if !present {
		return Handle{}, false, nil
	}
	return r.reserve(d), true, nil
}

// LoadBranches implements §4.3 `load_branches()`.
func (r *Registry) LoadBranches(ctx context.Context) (map[string]Handle, error) {
	raw, err := r.store.LoadBranches(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Handle, len(raw))
	for name, d := range raw {
		out[name] = r.reserve(d)
	}
	return out, nil
}

// SwapBranches implements §4.3 `swap_branches(prev, new)`.
func (r *Registry) SwapBranches(ctx context.Context, prev, next map[string]Handle) error {
	toDigests := func(m map[string]Handle) (map[string]digest.Digest, error) {
		out := make(map[string]digest.Digest, len(m))
		for name, h := range m {
			d, ok := r.digestOf(h)
			if !ok {
				return nil, fmt.Errorf("backend: dangling handle for branch %q", name)
			}
			out[name] = d
		}
		return out, nil
	}
	prevD, err := toDigests(prev)
	if err != nil {
		return err
	}
	nextD, err := toDigests(next)
	if err != nil {
		return err
	}
	return r.store.SwapBranches(ctx, prevD, nextD)
}

// Underlying exposes the underlying Store for callers that need raw access
// without going through handle reservation, and for backends to compose
// (e.g. remote+local caching layers).
func (r *Registry) Underlying() Store { return r.store }

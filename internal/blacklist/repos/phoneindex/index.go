package phoneindex

import (
	"context"
	"sync"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/phone"
	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// minBloomCapacity leaves headroom for entries added between rebuilds.
const minBloomCapacity = 1024

// Index answers whether a phone currently has a BlacklistEntry. Reads go
// bloom -> cache -> store; the store's update notifications keep the bloom
// and the cache coherent with committed writes.
type Index struct {
	mu      sync.RWMutex
	store   EntryStore
	cache   DecisionCache
	bloom   BloomFilter
	factory BloomFactory
	fpRate  float64
	indexed int

	// gen increments on every invalidation so a store read that raced a
	// write does not repopulate the cache with a stale answer.
	gen uint64
	// pending collects phones inserted while Rebuild is loading the store.
	pending []string
}

// New constructs an Index and subscribes it to store updates. Until Rebuild
// runs, every miss is answered by the store.
func New(store EntryStore, cache DecisionCache, factory BloomFactory, fpRate float64) *Index {
	x := &Index{store: store, cache: cache, factory: factory, fpRate: fpRate}
	store.OnAfterUpdate(x.observe)
	return x
}

// IsBlacklisted reports whether at least one entry exists for the phone.
// Blank phones are never blacklisted. Errors are returned uncached.
func (x *Index) IsBlacklisted(ctx context.Context, p string) (bool, error) {
	cn := phone.Canonical(p)
	if cn == "" {
		return false, nil
	}
	if !x.checkBloom(cn) {
		return false, nil
	}
	if blocked, ok := x.checkCache(cn); ok {
		return blocked, nil
	}

	x.mu.RLock()
	gen := x.gen
	x.mu.RUnlock()

	entries, err := x.store.LoadAll(ctx, domain.Equals(domain.FieldPhone, cn))
	if err != nil {
		return false, err
	}
	blocked := len(entries) > 0

	x.mu.Lock()
	if gen == x.gen {
		x.cache.Put(cn, blocked)
	}
	x.mu.Unlock()
	return blocked, nil
}

// Rebuild reloads every entry into a fresh Bloom filter and purges the cache.
func (x *Index) Rebuild(ctx context.Context) error {
	x.mu.Lock()
	x.pending = []string{}
	x.mu.Unlock()

	entries, err := x.store.LoadAll(ctx, nil)
	if err != nil {
		x.mu.Lock()
		x.pending = nil
		x.mu.Unlock()
		return err
	}

	capacity := uint64(len(entries)) * 2
	if capacity < minBloomCapacity {
		capacity = minBloomCapacity
	}
	bf := x.factory.New(capacity, x.fpRate)
	for _, e := range entries {
		bf.Add([]byte(phone.Canonical(e.Phone)))
	}

	x.mu.Lock()
	for _, p := range x.pending {
		bf.Add([]byte(p))
	}
	x.pending = nil
	x.bloom = bf
	x.indexed = len(entries)
	x.cache.Purge()
	x.gen++
	x.mu.Unlock()
	return nil
}

// Stats returns a snapshot of cache and bloom state.
func (x *Index) Stats() Stats {
	hits, misses, evictions := x.cache.Stats()
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Stats{
		Hits:        hits,
		Misses:      misses,
		Evictions:   evictions,
		CacheSize:   x.cache.Len(),
		BloomLoaded: x.bloom != nil,
		Indexed:     x.indexed,
	}
}

func (x *Index) observe(ev domain.UpdateEvent[domain.BlacklistEntry]) {
	cn := phone.Canonical(ev.Entity.Phone)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.gen++
	switch ev.Kind {
	case domain.UpdateInsert:
		x.addLocked(cn)
		x.cache.Remove(cn)
	case domain.UpdateModify:
		// the previous phone of a modified entry is unknown here
		x.addLocked(cn)
		x.cache.Purge()
	case domain.UpdateDelete:
		x.cache.Remove(cn)
	}
}

func (x *Index) addLocked(cn string) {
	if cn == "" {
		return
	}
	if x.bloom != nil {
		x.bloom.Add([]byte(cn))
	}
	if x.pending != nil {
		x.pending = append(x.pending, cn)
	}
}

// checkBloom returns false only when the phone is definitely absent.
func (x *Index) checkBloom(cn string) bool {
	x.mu.RLock()
	bf := x.bloom
	x.mu.RUnlock()
	if bf == nil {
		return true
	}
	return bf.MightContain([]byte(cn))
}

func (x *Index) checkCache(cn string) (bool, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.cache.Get(cn)
}

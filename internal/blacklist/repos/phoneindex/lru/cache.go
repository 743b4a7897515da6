package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-blacklist/internal/blacklist/repos/phoneindex"
)

// decisionCache is an LRU-backed phoneindex.DecisionCache that counts hits,
// misses and evictions.
type decisionCache struct {
	lru       *lru.Cache[string, bool]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// disabledCache always misses. It is used when size <= 0.
type disabledCache struct{}

// New creates a DecisionCache holding up to size phones.
func New(size int) (phoneindex.DecisionCache, error) {
	if size <= 0 {
		return disabledCache{}, nil
	}
	dc := &decisionCache{}
	cache, err := lru.NewWithEvict(size, func(string, bool) {
		dc.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	dc.lru = cache
	return dc, nil
}

func (c *decisionCache) Get(phone string) (bool, bool) {
	if v, ok := c.lru.Get(phone); ok {
		c.hits.Add(1)
		return v, true
	}
	c.misses.Add(1)
	return false, false
}

func (c *decisionCache) Put(phone string, blocked bool) { c.lru.Add(phone, blocked) }

// Remove drops one phone. Like Purge, it is counted as an eviction.
func (c *decisionCache) Remove(phone string) { c.lru.Remove(phone) }

func (c *decisionCache) Len() int { return c.lru.Len() }

func (c *decisionCache) Purge() { c.lru.Purge() }

func (c *decisionCache) Stats() (hits, misses, evictions uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}

func (disabledCache) Get(string) (bool, bool)         { return false, false }
func (disabledCache) Put(string, bool)                {}
func (disabledCache) Remove(string)                   {}
func (disabledCache) Len() int                        { return 0 }
func (disabledCache) Purge()                          {}
func (disabledCache) Stats() (uint64, uint64, uint64) { return 0, 0, 0 }

var (
	_ phoneindex.DecisionCache = (*decisionCache)(nil)
	_ phoneindex.DecisionCache = disabledCache{}
)

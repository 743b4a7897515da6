package phoneindex

import (
	"context"

	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// BloomFilter is the minimal interface the index needs from Bloom filters.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds filters sized for a capacity and false-positive rate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches "is blacklisted" answers by canonical phone.
type DecisionCache interface {
	Get(phone string) (bool, bool)
	Put(phone string, blocked bool)
	Remove(phone string)
	Len() int
	Purge()
	Stats() (hits, misses, evictions uint64)
}

// EntryStore is the part of the BlacklistEntry gateway the index reads.
type EntryStore interface {
	LoadAll(ctx context.Context, filter domain.Predicate) ([]domain.BlacklistEntry, error)
	OnAfterUpdate(h domain.UpdateHandler[domain.BlacklistEntry])
}

// Stats exposes cache counters and the size of the last bloom rebuild.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	CacheSize   int
	BloomLoaded bool
	Indexed     int
}

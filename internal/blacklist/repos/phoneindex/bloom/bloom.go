package bloom

import (
	"math"
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-blacklist/internal/blacklist/repos/phoneindex"
)

// factory implements phoneindex.BloomFactory.
type factory struct{}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() phoneindex.BloomFactory { return factory{} }

func (factory) New(capacity uint64, fpRate float64) phoneindex.BloomFilter {
	m, k := Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}

// Size computes bit count m and hash count k:
//
//	m = -(n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// n is clamped to 1 and an invalid p defaults to 1%.
func Size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = 0.01
	}
	ln2 := math.Ln2
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k := uint8(math.Max(1, math.Round((float64(m)/float64(n))*ln2)))
	return m, k
}

// filter guards a bits-and-blooms filter; Add takes the write lock because
// phones are added from store notifications while lookups run.
type filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

func (f *filter) Add(key []byte) {
	f.mu.Lock()
	f.bf.Add(key)
	f.mu.Unlock()
}

func (f *filter) MightContain(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(key)
}

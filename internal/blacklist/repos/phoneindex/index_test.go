package phoneindex_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
	"github.com/haukened/rr-blacklist/internal/blacklist/repos/phoneindex"
	"github.com/haukened/rr-blacklist/internal/blacklist/repos/phoneindex/bloom"
	"github.com/haukened/rr-blacklist/internal/blacklist/repos/phoneindex/lru"
	"github.com/haukened/rr-blacklist/internal/blacklist/repos/records"
)

// countingStore wraps the bolt gateway and counts reads.
type countingStore struct {
	*records.BlacklistEntries
	loads   int
	failing error
}

func (s *countingStore) LoadAll(ctx context.Context, f domain.Predicate) ([]domain.BlacklistEntry, error) {
	s.loads++
	if s.failing != nil {
		return nil, s.failing
	}
	return s.BlacklistEntries.LoadAll(ctx, f)
}

func newIndex(t *testing.T) (*phoneindex.Index, *countingStore) {
	t.Helper()
	db, err := records.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	entries, err := records.NewCollection[domain.BlacklistEntry](db, records.BucketBlacklistEntries)
	require.NoError(t, err)
	cache, err := lru.New(16)
	require.NoError(t, err)
	store := &countingStore{BlacklistEntries: entries}
	return phoneindex.New(store, cache, bloom.NewFactory(), 0.01), store
}

func addEntry(t *testing.T, store *countingStore, phone string) domain.BlacklistEntry {
	t.Helper()
	e, err := store.AddNew(context.Background(), func(e *domain.BlacklistEntry) { e.Phone = phone })
	require.NoError(t, err)
	return e
}

func TestIndex_BlankPhone(t *testing.T) {
	x, store := newIndex(t)
	blocked, err := x.IsBlacklisted(context.Background(), "   ")
	assert.NoError(t, err)
	assert.False(t, blocked)
	assert.Equal(t, 0, store.loads)
}

func TestIndex_StoreThenCache(t *testing.T) {
	x, store := newIndex(t)
	ctx := context.Background()
	addEntry(t, store, "+100")

	for i := 0; i < 3; i++ {
		blocked, err := x.IsBlacklisted(ctx, " +100 ")
		require.NoError(t, err)
		assert.True(t, blocked)
	}
	assert.Equal(t, 1, store.loads, "answers after the first come from the cache")
}

func TestIndex_BloomShortCircuitsMisses(t *testing.T) {
	x, store := newIndex(t)
	ctx := context.Background()
	addEntry(t, store, "+100")
	require.NoError(t, x.Rebuild(ctx))
	loadsAfterRebuild := store.loads

	blocked, err := x.IsBlacklisted(ctx, "+999")
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Equal(t, loadsAfterRebuild, store.loads, "bloom negative skips the store")

	st := x.Stats()
	assert.True(t, st.BloomLoaded)
	assert.Equal(t, 1, st.Indexed)
}

func TestIndex_InsertAfterRebuildIsVisible(t *testing.T) {
	x, store := newIndex(t)
	ctx := context.Background()
	require.NoError(t, x.Rebuild(ctx))

	blocked, _ := x.IsBlacklisted(ctx, "+100")
	assert.False(t, blocked)

	addEntry(t, store, "+100")
	blocked, err := x.IsBlacklisted(ctx, "+100")
	require.NoError(t, err)
	assert.True(t, blocked, "insert notification adds to bloom and drops the cached negative")
}

func TestIndex_DeleteInvalidatesCache(t *testing.T) {
	x, store := newIndex(t)
	ctx := context.Background()
	e := addEntry(t, store, "+100")

	blocked, _ := x.IsBlacklisted(ctx, "+100")
	require.True(t, blocked)

	require.NoError(t, store.DeleteByID(ctx, e.ID))
	blocked, err := x.IsBlacklisted(ctx, "+100")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIndex_ModifyPurgesCache(t *testing.T) {
	x, store := newIndex(t)
	ctx := context.Background()
	e := addEntry(t, store, "+100")
	require.NoError(t, x.Rebuild(ctx))

	blocked, _ := x.IsBlacklisted(ctx, "+100")
	require.True(t, blocked)

	_, err := store.Update(ctx, e.ID, func(e *domain.BlacklistEntry) { e.Phone = "+200" })
	require.NoError(t, err)

	blocked, _ = x.IsBlacklisted(ctx, "+100")
	assert.False(t, blocked)
	blocked, _ = x.IsBlacklisted(ctx, "+200")
	assert.True(t, blocked)
}

func TestIndex_StoreErrorIsNotCached(t *testing.T) {
	x, store := newIndex(t)
	ctx := context.Background()
	addEntry(t, store, "+100")

	store.failing = errors.New("read failed")
	blocked, err := x.IsBlacklisted(ctx, "+100")
	assert.Error(t, err)
	assert.False(t, blocked)

	store.failing = nil
	blocked, err = x.IsBlacklisted(ctx, "+100")
	assert.NoError(t, err)
	assert.True(t, blocked)
}

func TestIndex_RebuildError(t *testing.T) {
	x, store := newIndex(t)
	store.failing = errors.New("read failed")
	assert.Error(t, x.Rebuild(context.Background()))
	assert.False(t, x.Stats().BloomLoaded)
}

package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

func (f *fixture) typesWithCode(code string) []domain.BlacklistType {
	f.t.Helper()
	types, err := f.gw.Types.LoadAll(f.ctx, domain.Equals(domain.FieldCode, code))
	require.NoError(f.t, err)
	return types
}

func TestAddToBlacklist_ConcurrentSamePhone(t *testing.T) {
	f := newFixture(t)
	f.putType("fraud", true, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := testPhone
			if i%2 == 0 {
				p = "  " + testPhone + " "
			}
			assert.True(t, f.engine.AddToBlacklist(f.ctx, AddToBlacklistRequest{
				Phone:    p,
				TypeCode: "fraud",
				UserID:   "u1",
			}))
		}(i)
	}
	wg.Wait()
	f.drain()

	entries := f.allEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, testPhone, entries[0].Phone)
}

func TestPromotion_RacesManualAdd(t *testing.T) {
	for round := 0; round < 5; round++ {
		f := newFixture(t)
		for _, u := range []string{"u1", "u2", "u3", "u4"} {
			f.recommend(u)
		}
		require.True(t, f.engine.Recommend(f.ctx, RecommendRequest{Phone: testPhone, UserID: "u5"}))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.drain()
		}()
		go func() {
			defer wg.Done()
			_, err := f.engine.EnsureBlacklistType(f.ctx, DefaultReasonCode, DefaultReasonName, false, DefaultBlockTime)
			assert.NoError(t, err)
			assert.True(t, f.engine.AddToBlacklist(f.ctx, AddToBlacklistRequest{
				Phone:    testPhone,
				TypeCode: DefaultReasonCode,
				UserID:   "u6",
			}))
		}()
		wg.Wait()
		f.drain()

		assert.Len(t, f.allEntries(), 1, "round %d", round)
		assert.Len(t, f.typesWithCode(DefaultReasonCode), 1, "round %d", round)
		assert.Equal(t, 0, f.engine.CountOpenRecommendations(f.ctx, testPhone), "round %d", round)
	}
}

func TestEnsureBlacklistType_ConcurrentCallers(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var (
				bt  domain.BlacklistType
				err error
			)
			if i%2 == 0 {
				bt, err = f.engine.ensureBlacklistType(f.ctx)
			} else {
				bt, err = f.engine.EnsureBlacklistType(f.ctx, DefaultReasonCode, "Imported phone list", true, 0)
			}
			assert.NoError(t, err)
			ids[i] = bt.ID
		}(i)
	}
	wg.Wait()

	require.Len(t, f.typesWithCode(DefaultReasonCode), 1)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestSweep_RacesPromotion(t *testing.T) {
	for round := 0; round < 5; round++ {
		f := newFixture(t, func(o *Options) {
			o.Policy = DefaultPolicy()
			o.Policy.Threshold = 1
		})
		bt, err := f.engine.ensureBlacklistType(f.ctx)
		require.NoError(t, err)
		stale := f.putEntry(testPhone, bt, 25*time.Hour)
		f.drain()

		require.True(t, f.engine.Recommend(f.ctx, RecommendRequest{Phone: testPhone, UserID: "u2"}))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			n, err := f.engine.Sweeper().Sweep(f.ctx)
			assert.NoError(t, err)
			assert.Equal(t, 1, n)
		}()
		go func() {
			defer wg.Done()
			f.drain()
		}()
		wg.Wait()
		f.drain()

		entries := f.allEntries()
		assert.LessOrEqual(t, len(entries), 1, "round %d", round)
		for _, be := range entries {
			assert.NotEqual(t, stale.ID, be.ID, "round %d", round)
			assert.Equal(t, testEpoch, be.InsertedAt.UTC(), "round %d", round)
		}
		assert.Len(t, f.typesWithCode(DefaultReasonCode), 1, "round %d", round)
		assert.Equal(t, 0, f.engine.CountOpenRecommendations(f.ctx, testPhone), "round %d", round)
	}
}

package records

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/actor"
	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newRecommendations(t *testing.T) *Recommendations {
	t.Helper()
	c, err := NewCollection[domain.RecommendationEntry](openTestDB(t), BucketRecommendations)
	require.NoError(t, err)
	return c
}

type recorder[T any] struct {
	events []domain.UpdateEvent[T]
}

func (r *recorder[T]) handle(ev domain.UpdateEvent[T]) { r.events = append(r.events, ev) }

func TestCollection_AddNewAndGet(t *testing.T) {
	c := newRecommendations(t)
	ctx := context.Background()

	rec, err := c.AddNew(ctx, func(r *domain.RecommendationEntry) {
		r.Phone = "+100"
		r.SeanceID = "s1"
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	got, err := c.GetByIDStrong(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "+100", got.Phone)
	assert.Equal(t, "s1", got.SeanceID)
	assert.Equal(t, 1, c.Count())
}

func TestCollection_GetByIDStrong_NotFound(t *testing.T) {
	c := newRecommendations(t)
	_, err := c.GetByIDStrong(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollection_LoadAll_FilterAndOrder(t *testing.T) {
	c := newRecommendations(t)
	ctx := context.Background()

	seq := 0
	orig := newID
	newID = func() string { seq++; return fmt.Sprintf("id-%03d", seq) }
	defer func() { newID = orig }()

	for i, p := range []string{"+100", "+200", "+100", "+100"} {
		closed := i == 3
		_, err := c.AddNew(ctx, func(r *domain.RecommendationEntry) {
			r.Phone = p
			r.IsClosed = closed
		})
		require.NoError(t, err)
	}

	open, err := c.LoadAll(ctx, domain.And(
		domain.Equals(domain.FieldPhone, "+100"),
		domain.Equals(domain.FieldIsClosed, false),
	))
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "id-001", open[0].ID)
	assert.Equal(t, "id-003", open[1].ID)

	all, err := c.LoadAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestCollection_Update(t *testing.T) {
	c := newRecommendations(t)
	ctx := context.Background()
	rec, err := c.AddNew(ctx, func(r *domain.RecommendationEntry) { r.Phone = "+100"; r.Comment = "spam" })
	require.NoError(t, err)

	updated, err := c.Update(ctx, rec.ID, func(r *domain.RecommendationEntry) {
		r.Close("already blacklisted")
		r.ID = "hijack"
	})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, updated.ID, "id is preserved")
	assert.True(t, updated.IsClosed)

	got, err := c.GetByIDStrong(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "spam -> already blacklisted", got.Comment)

	_, err = c.Update(ctx, "missing", func(*domain.RecommendationEntry) {})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollection_DeleteByID(t *testing.T) {
	c := newRecommendations(t)
	ctx := context.Background()
	rec, err := c.AddNew(ctx, func(r *domain.RecommendationEntry) { r.Phone = "+100" })
	require.NoError(t, err)

	require.NoError(t, c.DeleteByID(ctx, rec.ID))
	_, err = c.GetByIDStrong(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, c.DeleteByID(ctx, rec.ID), domain.ErrNotFound)
}

func TestCollection_NotificationsCarryModifier(t *testing.T) {
	c := newRecommendations(t)
	rec := &recorder[domain.RecommendationEntry]{}
	c.OnAfterUpdate(rec.handle)

	userCtx := actor.WithID(context.Background(), "user-1")
	engineCtx := actor.WithID(context.Background(), "integration")

	added, err := c.AddNew(userCtx, func(r *domain.RecommendationEntry) { r.Phone = "+100" })
	require.NoError(t, err)
	_, err = c.Update(engineCtx, added.ID, func(r *domain.RecommendationEntry) { r.Close("") })
	require.NoError(t, err)
	require.NoError(t, c.DeleteByID(userCtx, added.ID))

	require.Len(t, rec.events, 3)
	assert.Equal(t, domain.UpdateInsert, rec.events[0].Kind)
	assert.Equal(t, "user-1", rec.events[0].ModifierID)
	assert.Equal(t, added.ID, rec.events[0].EntityID)

	assert.Equal(t, domain.UpdateModify, rec.events[1].Kind)
	assert.Equal(t, "integration", rec.events[1].ModifierID)
	assert.True(t, rec.events[1].Entity.IsClosed)

	assert.Equal(t, domain.UpdateDelete, rec.events[2].Kind)
	assert.Equal(t, "+100", rec.events[2].Entity.Phone, "delete carries the removed record")
}

func TestCollection_FailedWriteDoesNotNotify(t *testing.T) {
	c := newRecommendations(t)
	rec := &recorder[domain.RecommendationEntry]{}
	c.OnAfterUpdate(rec.handle)

	_ = c.DeleteByID(context.Background(), "missing")
	_, _ = c.Update(context.Background(), "missing", func(*domain.RecommendationEntry) {})
	assert.Empty(t, rec.events)
}

func TestCollection_Put_InsertThenModify(t *testing.T) {
	db := openTestDB(t)
	users, err := NewCollection[domain.User](db, BucketUsers)
	require.NoError(t, err)
	rec := &recorder[domain.User]{}
	users.OnAfterUpdate(rec.handle)
	ctx := context.Background()

	_, err = users.Put(ctx, domain.User{ID: "u1", Name: "Ann"})
	require.NoError(t, err)
	_, err = users.Put(ctx, domain.User{ID: "u1", Name: "Ann B."})
	require.NoError(t, err)

	require.Len(t, rec.events, 2)
	assert.Equal(t, domain.UpdateInsert, rec.events[0].Kind)
	assert.Equal(t, domain.UpdateModify, rec.events[1].Kind)

	got, err := users.GetByIDStrong(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann B.", got.Name)

	generated, err := users.Put(ctx, domain.User{Name: "No id"})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
}

func TestCollection_CancelledContext(t *testing.T) {
	c := newRecommendations(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.AddNew(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = c.LoadAll(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, c.Count())
}

func TestCollection_LoadAll_CorruptRecord(t *testing.T) {
	db := openTestDB(t)
	c, err := NewCollection[domain.BlacklistEntry](db, BucketBlacklistEntries)
	require.NoError(t, err)
	require.NoError(t, db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketBlacklistEntries)).Put([]byte("bad"), []byte("{not json"))
	}))

	_, err = c.LoadAll(context.Background(), nil)
	assert.Error(t, err)
}

func TestOpenGateways(t *testing.T) {
	db := openTestDB(t)
	gw, err := OpenGateways(db)
	require.NoError(t, err)

	ctx := context.Background()
	entry, err := gw.Entries.AddNew(ctx, func(e *domain.BlacklistEntry) {
		e.Phone = "+100"
		e.TypeCode = "temp"
		e.InsertedAt = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	})
	require.NoError(t, err)

	got, err := gw.Entries.GetByIDStrong(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.InsertedAt.Equal(entry.InsertedAt))
	assert.Equal(t, 0, gw.Types.Count())
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing-dir", "records.db"))
	assert.Error(t, err)
}

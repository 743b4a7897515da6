package records

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/actor"
	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// Bucket names for the collections persisted by the service.
const (
	BucketBlacklistTypes   = "blacklist_types"
	BucketBlacklistEntries = "blacklist_entries"
	BucketRecommendations  = "recommendations"
	BucketUsers            = "users"
)

// DB is the bbolt database shared by all collections.
type DB struct {
	bolt *bbolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open record store %s: %w", path, err)
	}
	return &DB{bolt: db}, nil
}

func (d *DB) Close() error { return d.bolt.Close() }

// newID assigns record identifiers. UUIDv7 keys sort by creation time, so a
// bucket scan returns records in insertion order. Replaced in tests.
var newID = func() string { return uuid.Must(uuid.NewV7()).String() }

// Collection is a typed record gateway over one bucket. Every committed write
// is announced to the registered after-update handlers, attributed to the
// actor carried by the write's context.
type Collection[T domain.Record[T]] struct {
	db     *bbolt.DB
	bucket []byte

	mu       sync.RWMutex
	handlers []domain.UpdateHandler[T]
}

// NewCollection returns a gateway for the named bucket, creating it if needed.
func NewCollection[T domain.Record[T]](db *DB, name string) (*Collection[T], error) {
	bucket := []byte(name)
	if err := db.bolt.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", name, err)
	}
	return &Collection[T]{db: db.bolt, bucket: bucket}, nil
}

// OnAfterUpdate registers h for every insert, modify and delete. Handlers run
// synchronously on the writer's goroutine after commit and must not block.
func (c *Collection[T]) OnAfterUpdate(h domain.UpdateHandler[T]) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// LoadAll returns every record matching filter in insertion order. A nil
// filter matches everything.
func (c *Collection[T]) LoadAll(ctx context.Context, filter domain.Predicate) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []T
	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(c.bucket).ForEach(func(k, v []byte) error {
			rec, err := decode[T](v)
			if err != nil {
				return fmt.Errorf("decode %s/%s: %w", c.bucket, k, err)
			}
			if filter == nil || filter.Match(rec) {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddNew creates a record, applies init to it, assigns an id and persists it.
func (c *Collection[T]) AddNew(ctx context.Context, init func(*T)) (T, error) {
	var rec T
	if init != nil {
		init(&rec)
	}
	rec = rec.WithID(newID())
	return c.put(ctx, rec, true)
}

// Put stores rec under its own id, creating or replacing it. Records without
// an id get one assigned.
func (c *Collection[T]) Put(ctx context.Context, rec T) (T, error) {
	if rec.EntityID() == "" {
		rec = rec.WithID(newID())
	}
	return c.put(ctx, rec, false)
}

func (c *Collection[T]) put(ctx context.Context, rec T, mustBeNew bool) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", c.bucket, err)
	}
	key := []byte(rec.EntityID())
	kind := domain.UpdateInsert
	err = c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b.Get(key) != nil {
			if mustBeNew {
				return fmt.Errorf("record %s/%s already exists", c.bucket, key)
			}
			kind = domain.UpdateModify
		}
		return b.Put(key, data)
	})
	if err != nil {
		return zero, err
	}
	c.notify(ctx, kind, rec)
	return rec, nil
}

// GetByIDStrong loads a record by id and fails with domain.ErrNotFound when absent.
func (c *Collection[T]) GetByIDStrong(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	var rec T
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(c.bucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%s/%s: %w", c.bucket, id, domain.ErrNotFound)
		}
		var err error
		rec, err = decode[T](v)
		return err
	})
	if err != nil {
		return zero, err
	}
	return rec, nil
}

// Update loads the record, applies mutate and writes it back in a single
// transaction. The id cannot be changed by mutate.
func (c *Collection[T]) Update(ctx context.Context, id string, mutate func(*T)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	var rec T
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(c.bucket)
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%s/%s: %w", c.bucket, id, domain.ErrNotFound)
		}
		var err error
		if rec, err = decode[T](v); err != nil {
			return err
		}
		mutate(&rec)
		rec = rec.WithID(id)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return zero, err
	}
	c.notify(ctx, domain.UpdateModify, rec)
	return rec, nil
}

// DeleteByID removes a record. Deleting a missing id returns domain.ErrNotFound.
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rec T
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(c.bucket)
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%s/%s: %w", c.bucket, id, domain.ErrNotFound)
		}
		var err error
		if rec, err = decode[T](v); err != nil {
			return err
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return err
	}
	c.notify(ctx, domain.UpdateDelete, rec)
	return nil
}

// Count returns the number of stored records.
func (c *Collection[T]) Count() int {
	n := 0
	_ = c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(c.bucket).Stats().KeyN
		return nil
	})
	return n
}

func (c *Collection[T]) notify(ctx context.Context, kind domain.UpdateKind, rec T) {
	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()
	if len(handlers) == 0 {
		return
	}
	ev := domain.UpdateEvent[T]{
		Kind:       kind,
		ModifierID: actor.ID(ctx),
		EntityID:   rec.EntityID(),
		Entity:     rec,
	}
	for _, h := range handlers {
		h(ev)
	}
}

func decode[T any](data []byte) (T, error) {
	var rec T
	err := json.Unmarshal(data, &rec)
	return rec, err
}

// Package identity provides the session context the engine runs under: the
// integration actor id it writes as, and lookups of acting users.
package identity

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// UserStore is the subset of a record gateway the directory reads users from.
type UserStore interface {
	GetByIDStrong(ctx context.Context, id string) (domain.User, error)
	OnAfterUpdate(h domain.UpdateHandler[domain.User])
}

// Directory resolves users through an LRU cache in front of the user store.
// Cached profiles are dropped whenever the store reports a change to them.
type Directory struct {
	actorID string
	users   UserStore
	cache   *lru.Cache[string, domain.User]
}

// New returns a Directory for the given integration actor. cacheSize <= 0
// disables caching.
func New(actorID string, users UserStore, cacheSize int) (*Directory, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, domain.Missing("actorID")
	}
	d := &Directory{actorID: actorID, users: users}
	if cacheSize > 0 {
		cache, err := lru.New[string, domain.User](cacheSize)
		if err != nil {
			return nil, err
		}
		d.cache = cache
	}
	users.OnAfterUpdate(d.invalidate)
	return d, nil
}

// IntegrationActorID is the identity the engine's own writes are attributed to.
func (d *Directory) IntegrationActorID() string { return d.actorID }

// LookupUser returns the user with the given id. A blank or unknown id is
// reported as not found, not as an error.
func (d *Directory) LookupUser(ctx context.Context, id string) (domain.User, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, false, nil
	}
	if d.cache != nil {
		if u, ok := d.cache.Get(id); ok {
			return u, true, nil
		}
	}
	u, err := d.users.GetByIDStrong(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	if d.cache != nil {
		d.cache.Add(id, u)
	}
	return u, true, nil
}

func (d *Directory) invalidate(ev domain.UpdateEvent[domain.User]) {
	if d.cache != nil {
		d.cache.Remove(ev.EntityID)
	}
}

package engine

import (
	"context"

	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// Gateway is the record store contract the engine consumes, one per collection.
// The modifier actor of every write is taken from the context.
type Gateway[T any] interface {
	LoadAll(ctx context.Context, filter domain.Predicate) ([]T, error)
	AddNew(ctx context.Context, init func(*T)) (T, error)
	GetByIDStrong(ctx context.Context, id string) (T, error)
	Update(ctx context.Context, id string, mutate func(*T)) (T, error)
	DeleteByID(ctx context.Context, id string) error
	OnAfterUpdate(h domain.UpdateHandler[T])
}

// Session exposes the identity the engine writes as and the user directory.
type Session interface {
	IntegrationActorID() string
	LookupUser(ctx context.Context, id string) (domain.User, bool, error)
}

// PhoneIndex answers "is this phone blacklisted" faster than a store scan.
// It is optional; without one the engine queries the entry gateway.
type PhoneIndex interface {
	IsBlacklisted(ctx context.Context, phone string) (bool, error)
	Rebuild(ctx context.Context) error
}

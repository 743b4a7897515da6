package domain

import "fmt"

// UpdateKind classifies a committed store mutation.
type UpdateKind uint8

const (
	UpdateInsert UpdateKind = iota + 1
	UpdateModify
	UpdateDelete
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateInsert:
		return "insert"
	case UpdateModify:
		return "modify"
	case UpdateDelete:
		return "delete"
	default:
		return fmt.Sprintf("UpdateKind(%d)", k)
	}
}

// UpdateEvent is delivered to after-update handlers once a write is committed.
// For deletes, Entity holds the record as it was before removal.
type UpdateEvent[T any] struct {
	Kind       UpdateKind
	ModifierID string
	EntityID   string
	Entity     T
}

// UpdateHandler receives update notifications for one collection.
type UpdateHandler[T any] func(UpdateEvent[T])

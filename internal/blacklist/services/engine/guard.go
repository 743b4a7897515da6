package engine

import "github.com/haukened/rr-blacklist/internal/blacklist/domain"

// reactionKind is the guard's verdict on a notification.
type reactionKind uint8

const (
	react reactionKind = iota
	ignoreDelete
	suppressSelfWrite
)

// screen decides whether a notification should be reacted to. Deletes are
// never acted on. A notification whose modifier is the engine's own
// integration actor came from one of the engine's writes (attaching a user,
// closing a recommendation) and is suppressed so the engine does not react
// to itself indefinitely.
func (e *Engine) screen(kind domain.UpdateKind, modifierID string) reactionKind {
	if kind != domain.UpdateInsert && kind != domain.UpdateModify {
		return ignoreDelete
	}
	if e.isSelfWrite(modifierID) {
		return suppressSelfWrite
	}
	return react
}

func (e *Engine) isSelfWrite(modifierID string) bool {
	return modifierID == e.session.IntegrationActorID()
}

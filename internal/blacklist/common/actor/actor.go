// Package actor carries the identity of whoever performs a store write.
// Record stores read it to stamp the modifier id on update notifications.
package actor

import "context"

type ctxKey struct{}

// WithID returns a copy of ctx attributed to the given actor.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID returns the actor attributed to ctx, or "" when none is set.
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

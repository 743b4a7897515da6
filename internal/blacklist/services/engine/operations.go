package engine

import (
	"context"
	"fmt"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/actor"
	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// CheckPhone reports whether the phone is blacklisted. Invalid input and
// failures answer false.
func (e *Engine) CheckPhone(ctx context.Context, req CheckPhoneRequest) bool {
	const op = "checkPhone"
	req.normalize()
	if err := validateRequest(&req); err != nil {
		e.report("", op, failed(err, nil))
		return false
	}
	blocked, err := e.isBlacklisted(ctx, req.Phone)
	if err != nil {
		e.report("", op, failed(err, map[string]any{"phone": req.Phone}))
		return false
	}
	return blocked
}

// Recommend stores an open recommendation attributed to the requesting user.
// The dispatcher then decides whether the phone is promoted. It reports
// whether the recommendation was stored.
func (e *Engine) Recommend(ctx context.Context, req RecommendRequest) bool {
	const op = "recommend"
	req.normalize()
	fields := map[string]any{"phone": req.Phone, "user": req.UserID, "seance": req.SeanceID}
	if err := validateRequest(&req); err != nil {
		e.report("", op, failed(err, fields))
		return false
	}
	user, ok, err := e.session.LookupUser(ctx, req.UserID)
	if err != nil {
		e.report("", op, failed(err, fields))
		return false
	}
	if !ok {
		e.report("", op, failed(domain.Unresolved("userId"), fields))
		return false
	}

	rec := domain.RecommendationEntry{
		SeanceID:   req.SeanceID,
		Phone:      req.Phone,
		User:       user.Ref(),
		Comment:    req.Comment,
		InsertedAt: e.clock.Now(),
	}
	created, err := e.recs.AddNew(actor.WithID(ctx, user.ID), func(r *domain.RecommendationEntry) { *r = rec })
	if err != nil {
		e.report("", op, failed(fmt.Errorf("add recommendation: %w", err), fields))
		return false
	}
	fields["id"] = created.ID
	e.report("", op, handled(fields))
	return true
}

// AddToBlacklist blocks the phone under an existing type on behalf of the
// requesting user and closes the phone's open recommendations. A phone that
// is already blacklisted keeps its existing entry. It reports whether the
// request was carried out.
func (e *Engine) AddToBlacklist(ctx context.Context, req AddToBlacklistRequest) bool {
	const op = "addToBlacklist"
	req.normalize()
	fields := map[string]any{"phone": req.Phone, "type": req.TypeCode, "user": req.UserID}
	if err := validateRequest(&req); err != nil {
		e.report("", op, failed(err, fields))
		return false
	}

	unlock := e.phones.Lock(req.Phone)
	defer unlock()
	created, err := e.addToBlacklistLocked(ctx, req)
	fields["created"] = created
	if err != nil {
		e.report("", op, failed(err, fields))
		return false
	}
	e.report("", op, handled(fields))
	return true
}

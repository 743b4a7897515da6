package engine

import (
	"context"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/metrics"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/phone"
	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// Audit comments written by the dispatcher.
const (
	CommentAlreadyBlacklisted = "already blacklisted"
)

func (e *Engine) afterUpdateBlacklistEntries(ctx context.Context, ev domain.UpdateEvent[domain.BlacklistEntry]) {
	const op = "afterUpdateBlacklistEntries"
	e.report(collectionEntries, op, e.reactToEntry(ctx, ev))
}

func (e *Engine) afterUpdateRecommendations(ctx context.Context, ev domain.UpdateEvent[domain.RecommendationEntry]) {
	const op = "afterUpdateRecommendations"
	e.report(collectionRecommendations, op, e.reactToRecommendation(ctx, ev))
}

// reactToEntry attaches the acting user to a new or edited blacklist entry
// and closes the open recommendations it makes redundant.
func (e *Engine) reactToEntry(ctx context.Context, ev domain.UpdateEvent[domain.BlacklistEntry]) outcome {
	fields := map[string]any{"kind": ev.Kind.String(), "id": ev.EntityID, "modifier": ev.ModifierID}
	switch e.screen(ev.Kind, ev.ModifierID) {
	case ignoreDelete:
		return outcome{status: metrics.OutcomeIgnored, fields: fields}
	case suppressSelfWrite:
		return outcome{status: metrics.OutcomeSuppressed, fields: fields}
	}

	p := phone.Canonical(ev.Entity.Phone)
	fields["phone"] = p
	unlock := e.phones.Lock(p)
	defer unlock()

	if err := attachUser(ctx, e, e.entries, ev.EntityID, ev.ModifierID, entryUser); err != nil {
		return failed(err, fields)
	}

	closed, err := e.closeRecommendations(ctx, p, "")
	fields["closed"] = closed
	if err != nil {
		return failed(err, fields)
	}
	return handled(fields)
}

// reactToRecommendation attaches the acting user, then either closes the
// recommendation because the phone is already blacklisted or checks whether
// the open recommendations now reach the promotion threshold.
func (e *Engine) reactToRecommendation(ctx context.Context, ev domain.UpdateEvent[domain.RecommendationEntry]) outcome {
	fields := map[string]any{"kind": ev.Kind.String(), "id": ev.EntityID, "modifier": ev.ModifierID}
	switch e.screen(ev.Kind, ev.ModifierID) {
	case ignoreDelete:
		return outcome{status: metrics.OutcomeIgnored, fields: fields}
	case suppressSelfWrite:
		return outcome{status: metrics.OutcomeSuppressed, fields: fields}
	}

	p := phone.Canonical(ev.Entity.Phone)
	fields["phone"] = p
	unlock := e.phones.Lock(p)
	defer unlock()

	if err := attachUser(ctx, e, e.recs, ev.EntityID, ev.ModifierID, recommendationUser); err != nil {
		return failed(err, fields)
	}
	if !phone.Valid(p) {
		return handled(fields)
	}

	if e.IsPhoneBlacklisted(ctx, p) {
		closed, err := e.closeRecommendations(ctx, p, CommentAlreadyBlacklisted)
		fields["closed"] = closed
		fields["already_blacklisted"] = true
		if err != nil {
			return failed(err, fields)
		}
		return handled(fields)
	}

	count := e.CountOpenRecommendations(ctx, p)
	fields["open"] = count
	if count < e.policy.Threshold {
		return handled(fields)
	}
	if err := e.promote(ctx, p, ev.ModifierID); err != nil {
		return failed(err, fields)
	}
	fields["promoted"] = true
	return handled(fields)
}

// attachUser resolves the acting user and writes its reference onto the
// record as the integration actor. An unknown user is logged and skipped so
// the reaction carries on; a record already carrying the same reference is
// left untouched.
func attachUser[T any](ctx context.Context, e *Engine, g Gateway[T], id, userID string, field func(*T) **domain.UserRef) error {
	u, ok, err := e.session.LookupUser(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		e.logger.Warn(map[string]any{"user": userID, "id": id}, "Acting user not found, record left unattributed")
		return nil
	}
	ref := u.Ref()

	current, err := g.GetByIDStrong(ctx, id)
	if err != nil {
		return err
	}
	if cur := *field(&current); cur != nil && *cur == *ref {
		return nil
	}
	_, err = g.Update(e.asEngine(ctx), id, func(r *T) { *field(r) = ref })
	return err
}

func entryUser(r *domain.BlacklistEntry) **domain.UserRef { return &r.User }

func recommendationUser(r *domain.RecommendationEntry) **domain.UserRef { return &r.User }

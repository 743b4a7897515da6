package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/actor"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/log"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/phone"
	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// Promotion defaults.
const (
	DefaultThreshold  = 5
	DefaultReasonCode = "recommendation-threshold"
	DefaultReasonName = "By recommendation threshold"
	DefaultBlockTime  = 86400 // seconds

	CommentPromoted = "added by recommendation threshold"
)

// PromotionPolicy configures automatic blacklisting by recommendation count.
type PromotionPolicy struct {
	// Threshold is the number of open recommendations that triggers promotion.
	Threshold int
	// ReasonCode identifies the BlacklistType promoted entries are filed under.
	ReasonCode string
	// ReasonName is the display name used when the type has to be provisioned.
	ReasonName string
	// BlockTime is the provisioned type's block duration in seconds.
	BlockTime int64
	// Comment is stored on promoted entries.
	Comment string
}

func DefaultPolicy() PromotionPolicy {
	return PromotionPolicy{
		Threshold:  DefaultThreshold,
		ReasonCode: DefaultReasonCode,
		ReasonName: DefaultReasonName,
		BlockTime:  DefaultBlockTime,
		Comment:    CommentPromoted,
	}
}

func (p PromotionPolicy) Validate() error {
	if p.Threshold < 1 {
		return domain.Invalid("threshold")
	}
	if _, err := domain.NewBlacklistType(p.ReasonCode, p.ReasonName, false, p.BlockTime); err != nil {
		return err
	}
	return nil
}

// CountOpenRecommendations returns the number of open recommendations for
// the phone, or 0 for a blank phone or on failure.
func (e *Engine) CountOpenRecommendations(ctx context.Context, p string) int {
	n, err := e.countOpen(ctx, p)
	if err != nil {
		log.Exception(e.logger, "countOpenRecommendations", err, map[string]any{"phone": p})
		return 0
	}
	return n
}

func (e *Engine) countOpen(ctx context.Context, p string) (int, error) {
	if !phone.Valid(p) {
		return 0, nil
	}
	cn := phone.Canonical(p)
	open, err := e.recs.LoadAll(ctx, openRecommendations(cn))
	if err != nil {
		return 0, err
	}
	return len(open), nil
}

func openRecommendations(cn string) domain.Predicate {
	return domain.And(
		domain.Equals(domain.FieldPhone, cn),
		domain.Equals(domain.FieldIsClosed, false),
	)
}

// GetBlacklistType looks a type up by code. Absence, and failure, are
// reported as not found.
func (e *Engine) GetBlacklistType(ctx context.Context, code string) (domain.BlacklistType, bool) {
	t, ok, err := e.lookupBlacklistType(ctx, code)
	if err != nil {
		log.Exception(e.logger, "getBlacklistType", err, map[string]any{"code": code})
		return domain.BlacklistType{}, false
	}
	return t, ok
}

// BlacklistTypeExists reports whether a type with the code exists.
func (e *Engine) BlacklistTypeExists(ctx context.Context, code string) bool {
	_, ok := e.GetBlacklistType(ctx, code)
	return ok
}

func (e *Engine) lookupBlacklistType(ctx context.Context, code string) (domain.BlacklistType, bool, error) {
	types, err := e.types.LoadAll(ctx, domain.Equals(domain.FieldCode, code))
	if err != nil {
		return domain.BlacklistType{}, false, err
	}
	if len(types) == 0 {
		return domain.BlacklistType{}, false, nil
	}
	return types[0], true, nil
}

// IsPhoneBlacklisted reports whether at least one entry exists for the
// phone. Blank input and failures answer false, so a broken store never
// blocks traffic.
func (e *Engine) IsPhoneBlacklisted(ctx context.Context, p string) bool {
	blocked, err := e.isBlacklisted(ctx, p)
	if err != nil {
		log.Exception(e.logger, "isPhoneBlacklisted", err, map[string]any{"phone": p})
		return false
	}
	return blocked
}

func (e *Engine) isBlacklisted(ctx context.Context, p string) (bool, error) {
	if !phone.Valid(p) {
		return false, nil
	}
	cn := phone.Canonical(p)
	if e.index != nil {
		return e.index.IsBlacklisted(ctx, cn)
	}
	entries, err := e.entries.LoadAll(ctx, domain.Equals(domain.FieldPhone, cn))
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// ProvisionBlacklistType always creates a new type. Callers check for an
// existing one first; EnsureBlacklistType does both under the code's lock.
func (e *Engine) ProvisionBlacklistType(ctx context.Context, code, name string, isPermanent bool, blockTime int64) (domain.BlacklistType, error) {
	t, err := domain.NewBlacklistType(code, name, isPermanent, blockTime)
	if err != nil {
		return domain.BlacklistType{}, err
	}
	created, err := e.types.AddNew(e.asEngine(ctx), func(bt *domain.BlacklistType) { *bt = t })
	if err != nil {
		return domain.BlacklistType{}, fmt.Errorf("provision blacklist type %q: %w", code, err)
	}
	e.metrics.TypesProvisionedTotal.Inc()
	e.logger.Info(map[string]any{"code": created.Code, "id": created.ID, "block_time": created.BlockTime}, "Blacklist type provisioned")
	return created, nil
}

// EnsureBlacklistType returns the type with the code, provisioning it with
// the given attributes if absent. An existing type is returned as stored.
// The check and the create run under the code's lock so one process never
// provisions the same code twice.
func (e *Engine) EnsureBlacklistType(ctx context.Context, code, name string, isPermanent bool, blockTime int64) (domain.BlacklistType, error) {
	unlock := e.codes.Lock(code)
	defer unlock()

	t, ok, err := e.lookupBlacklistType(ctx, code)
	if err != nil {
		return domain.BlacklistType{}, err
	}
	if ok {
		return t, nil
	}
	return e.ProvisionBlacklistType(ctx, code, name, isPermanent, blockTime)
}

// ensureBlacklistType returns the policy's type, provisioning it if absent.
func (e *Engine) ensureBlacklistType(ctx context.Context) (domain.BlacklistType, error) {
	return e.EnsureBlacklistType(ctx, e.policy.ReasonCode, e.policy.ReasonName, false, e.policy.BlockTime)
}

// promote files the phone under the policy's type on behalf of the acting
// user. The caller holds the phone's lock.
func (e *Engine) promote(ctx context.Context, cn, actingUserID string) error {
	if _, err := e.ensureBlacklistType(ctx); err != nil {
		return err
	}
	created, err := e.addToBlacklistLocked(ctx, AddToBlacklistRequest{
		Phone:    cn,
		TypeCode: e.policy.ReasonCode,
		UserID:   actingUserID,
		Comment:  e.policy.Comment,
	})
	if err != nil {
		return err
	}
	if created {
		e.metrics.PromotionsTotal.Inc()
		e.logger.Info(map[string]any{"phone": cn, "code": e.policy.ReasonCode}, "Phone promoted to blacklist")
	}
	return nil
}

// addToBlacklistLocked resolves the type and the user concurrently, inserts
// an entry unless the phone is already blacklisted, and closes the phone's
// open recommendations. It reports whether an entry was created. The caller
// holds the phone's lock.
func (e *Engine) addToBlacklistLocked(ctx context.Context, req AddToBlacklistRequest) (bool, error) {
	var (
		typ    domain.BlacklistType
		typeOK bool
		user   domain.User
		userOK bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		typ, typeOK, err = e.lookupBlacklistType(gctx, req.TypeCode)
		return err
	})
	g.Go(func() error {
		var err error
		user, userOK, err = e.session.LookupUser(gctx, req.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, err
	}
	if !typeOK {
		return false, domain.Unresolved("typeCode")
	}
	if !userOK {
		return false, domain.Unresolved("userId")
	}

	created := false
	if !e.IsPhoneBlacklisted(ctx, req.Phone) {
		entry := domain.BlacklistEntry{
			Phone:      req.Phone,
			TypeID:     typ.ID,
			TypeCode:   typ.Code,
			User:       user.Ref(),
			InsertedAt: e.clock.Now(),
			Comment:    req.Comment,
		}
		if err := entry.Validate(); err != nil {
			return false, err
		}
		if _, err := e.entries.AddNew(actor.WithID(ctx, user.ID), func(be *domain.BlacklistEntry) { *be = entry }); err != nil {
			return false, fmt.Errorf("add blacklist entry: %w", err)
		}
		created = true
	}
	if _, err := e.closeRecommendations(ctx, req.Phone, ""); err != nil {
		return created, err
	}
	return created, nil
}

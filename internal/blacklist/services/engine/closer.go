package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/log"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/phone"
	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// CloseRecommendations marks every open recommendation for the phone as
// closed, appending comment to each one's existing comment, and returns how
// many were closed. Failures are logged and end the operation silently.
func (e *Engine) CloseRecommendations(ctx context.Context, p, comment string) int {
	n, err := e.closeRecommendations(ctx, p, comment)
	if err != nil {
		e.metrics.ObserveFailure("closeRecommendations")
		log.Exception(e.logger, "closeRecommendations", err, map[string]any{"phone": p, "closed": n})
	}
	return n
}

// closeRecommendations writes as the integration actor so the resulting
// notifications are suppressed. A recommendation closed concurrently, or
// deleted, between the query and its write is skipped.
func (e *Engine) closeRecommendations(ctx context.Context, p, comment string) (int, error) {
	if !phone.Valid(p) {
		return 0, nil
	}
	cn := phone.Canonical(p)
	open, err := e.recs.LoadAll(ctx, openRecommendations(cn))
	if err != nil {
		return 0, fmt.Errorf("load open recommendations: %w", err)
	}

	wctx := e.asEngine(ctx)
	closed := 0
	var errs error
	for _, r := range open {
		changed := false
		_, err := e.recs.Update(wctx, r.ID, func(cur *domain.RecommendationEntry) {
			if cur.IsClosed {
				return
			}
			cur.Close(comment)
			changed = true
		})
		switch {
		case errors.Is(err, domain.ErrNotFound):
			continue
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("close recommendation %s: %w", r.ID, err))
			continue
		}
		if changed {
			closed++
		}
	}
	e.metrics.RecommendationsClosed.Add(float64(closed))
	return closed, errs
}

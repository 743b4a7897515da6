package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/clock"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/log"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/phone"
	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// Sweeper removes temporary blacklist entries whose block time has elapsed.
type Sweeper struct {
	e        *Engine
	interval time.Duration

	mu        sync.Mutex
	lastSweep time.Time
}

func newSweeper(e *Engine, interval time.Duration) *Sweeper {
	return &Sweeper{e: e, interval: interval, lastSweep: e.clock.Now()}
}

// LastSweep returns the time of the last successful sweep, or the engine's
// construction time if none has succeeded yet.
func (s *Sweeper) LastSweep() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSweep
}

// Tick sweeps if at least one interval has passed since the last successful
// sweep. It reports whether a sweep was attempted.
func (s *Sweeper) Tick(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clock.Since(s.e.clock, s.lastSweep) < s.interval {
		return false, nil
	}
	now := s.e.clock.Now()
	n, err := s.sweep(ctx, now)
	if err != nil {
		log.Exception(s.e.logger, "sweep", err, map[string]any{"expired": n})
		return true, err
	}
	s.lastSweep = now
	if n > 0 {
		s.e.logger.Info(map[string]any{"expired": n}, "Expired blacklist entries removed")
	}
	return true, nil
}

// Sweep runs one expiry pass immediately, regardless of the interval. The
// last sweep time only moves forward on success.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.e.clock.Now()
	n, err := s.sweep(ctx, now)
	if err == nil {
		s.lastSweep = now
	}
	return n, err
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) (n int, err error) {
	e := s.e
	started := time.Now()
	defer func() { e.metrics.ObserveSweep(started, n, err) }()

	types, err := e.types.LoadAll(ctx, domain.Equals(domain.FieldIsPermanent, false))
	if err != nil {
		return 0, fmt.Errorf("load temporary blacklist types: %w", err)
	}
	if len(types) == 0 {
		return 0, nil
	}
	blockTimes := make(map[string]time.Duration, len(types))
	codes := make([]string, 0, len(types))
	for _, t := range types {
		if _, seen := blockTimes[t.Code]; seen {
			continue
		}
		blockTimes[t.Code] = t.BlockDuration()
		codes = append(codes, t.Code)
	}

	entries, err := e.entries.LoadAll(ctx, domain.In(domain.FieldTypeCode, codes))
	if err != nil {
		return 0, fmt.Errorf("load temporary blacklist entries: %w", err)
	}

	var errs error
	for _, be := range entries {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if be.Elapsed(now) < blockTimes[be.TypeCode] {
			continue
		}
		derr := s.expire(ctx, be)
		if errors.Is(derr, domain.ErrNotFound) {
			continue
		}
		if derr != nil {
			errs = multierr.Append(errs, derr)
			continue
		}
		n++
	}

	if n > 0 && e.index != nil {
		if rerr := e.index.Rebuild(ctx); rerr != nil {
			e.logger.Warn(map[string]any{"error": rerr.Error()}, "Phone index rebuild after sweep failed")
		}
	}
	return n, errs
}

func (s *Sweeper) expire(ctx context.Context, be domain.BlacklistEntry) error {
	unlock := s.e.phones.Lock(phone.Canonical(be.Phone))
	defer unlock()
	if err := s.e.entries.DeleteByID(s.e.asEngine(ctx), be.ID); err != nil {
		return fmt.Errorf("delete blacklist entry %s: %w", be.ID, err)
	}
	return nil
}

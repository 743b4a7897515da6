package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/actor"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/clock"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/log"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/metrics"
	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

const (
	DefaultSweepInterval = time.Hour
	DefaultTickInterval  = time.Minute

	collectionEntries         = "blacklist_entries"
	collectionRecommendations = "recommendations"
)

// Engine reacts to BlacklistEntry and RecommendationEntry mutations, promotes
// recommended phones once the threshold is reached and expires temporary
// entries. Notifications are handled one at a time, in delivery order, by the
// goroutine running Run.
type Engine struct {
	types   Gateway[domain.BlacklistType]
	entries Gateway[domain.BlacklistEntry]
	recs    Gateway[domain.RecommendationEntry]
	session Session
	index   PhoneIndex
	clock   clock.Clock
	logger  log.Logger
	metrics *metrics.Metrics
	policy  PromotionPolicy

	queue   *eventQueue
	drainMu sync.Mutex
	phones  *keyLock
	codes   *keyLock
	sweeper *Sweeper
	tick    time.Duration
}

// Options wires an Engine. Types, Entries, Recommendations and Session are
// required; everything else has a default.
type Options struct {
	Types           Gateway[domain.BlacklistType]
	Entries         Gateway[domain.BlacklistEntry]
	Recommendations Gateway[domain.RecommendationEntry]
	Session         Session
	Index           PhoneIndex
	Clock           clock.Clock
	Logger          log.Logger
	Metrics         *metrics.Metrics
	Policy          PromotionPolicy
	SweepInterval   time.Duration
	TickInterval    time.Duration
}

// New validates opts, builds the Engine and subscribes it to both watched
// collections.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.Types == nil:
		return nil, errors.New("engine: blacklist type gateway is required")
	case opts.Entries == nil:
		return nil, errors.New("engine: blacklist entry gateway is required")
	case opts.Recommendations == nil:
		return nil, errors.New("engine: recommendation gateway is required")
	case opts.Session == nil:
		return nil, errors.New("engine: session is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Policy == (PromotionPolicy{}) {
		opts.Policy = DefaultPolicy()
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}

	e := &Engine{
		types:   opts.Types,
		entries: opts.Entries,
		recs:    opts.Recommendations,
		session: opts.Session,
		index:   opts.Index,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		policy:  opts.Policy,
		queue:   newEventQueue(),
		phones:  newKeyLock(),
		codes:   newKeyLock(),
		tick:    opts.TickInterval,
	}
	e.sweeper = newSweeper(e, opts.SweepInterval)

	e.entries.OnAfterUpdate(func(ev domain.UpdateEvent[domain.BlacklistEntry]) {
		e.queue.push(func(ctx context.Context) { e.afterUpdateBlacklistEntries(ctx, ev) })
	})
	e.recs.OnAfterUpdate(func(ev domain.UpdateEvent[domain.RecommendationEntry]) {
		e.queue.push(func(ctx context.Context) { e.afterUpdateRecommendations(ctx, ev) })
	})
	return e, nil
}

// Sweeper returns the expiry sweeper owned by the engine.
func (e *Engine) Sweeper() *Sweeper { return e.sweeper }

// Run handles queued notifications and timer ticks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.index != nil {
		if err := e.index.Rebuild(ctx); err != nil {
			e.logger.Warn(map[string]any{"error": err.Error()}, "Phone index rebuild failed, falling back to store reads")
		}
	}
	e.logger.Info(map[string]any{
		"threshold":      e.policy.Threshold,
		"reason_code":    e.policy.ReasonCode,
		"sweep_interval": e.sweeper.interval.String(),
		"tick_interval":  e.tick.String(),
	}, "Blacklist engine started")

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		e.ProcessPending(ctx)
		select {
		case <-ctx.Done():
			e.logger.Info(map[string]any{"pending": e.queue.len()}, "Blacklist engine stopped")
			return nil
		case <-e.queue.ready():
		case <-ticker.C:
			e.sweeper.Tick(ctx)
		}
	}
}

// ProcessPending handles every queued notification, including the ones
// produced while handling, and returns how many ran.
func (e *Engine) ProcessPending(ctx context.Context) int {
	e.drainMu.Lock()
	defer e.drainMu.Unlock()
	n := 0
	for ctx.Err() == nil {
		j, ok := e.queue.pop()
		if !ok {
			break
		}
		e.runJob(ctx, j)
		n++
	}
	return n
}

// Pending returns the number of queued notifications.
func (e *Engine) Pending() int { return e.queue.len() }

func (e *Engine) runJob(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.ObserveFailure("reaction")
			e.logger.Error(map[string]any{"panic": fmt.Sprint(r)}, "Reaction panicked")
		}
	}()
	j(ctx)
}

// asEngine attributes writes in ctx to the integration actor, so the guard
// recognises their notifications.
func (e *Engine) asEngine(ctx context.Context) context.Context {
	return actor.WithID(ctx, e.session.IntegrationActorID())
}

// outcome is the explicit result of a reaction or operation. It is reported
// once at the boundary and then discarded.
type outcome struct {
	status string
	err    error
	fields map[string]any
}

func handled(fields map[string]any) outcome {
	return outcome{status: metrics.OutcomeHandled, fields: fields}
}

func failed(err error, fields map[string]any) outcome {
	return outcome{status: metrics.OutcomeFailed, err: err, fields: fields}
}

func (e *Engine) report(collection, op string, o outcome) {
	if collection != "" {
		e.metrics.ObserveReaction(collection, o.status)
	}
	if o.err != nil {
		e.metrics.ObserveFailure(op)
		if errors.Is(o.err, domain.ErrValidation) {
			e.logger.Warn(withOp(o.fields, op, o.err), op+" rejected")
			return
		}
		log.Exception(e.logger, op, o.err, o.fields)
		return
	}
	e.logger.Debug(withOp(o.fields, op, nil), op+" "+o.status)
}

func withOp(fields map[string]any, op string, err error) map[string]any {
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	out["op"] = op
	if err != nil {
		out["error"] = err.Error()
	}
	return out
}

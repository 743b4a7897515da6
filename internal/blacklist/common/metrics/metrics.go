package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reaction outcomes recorded on ReactionsTotal.
const (
	OutcomeHandled    = "handled"
	OutcomeSuppressed = "suppressed"
	OutcomeIgnored    = "ignored"
	OutcomeFailed     = "failed"
)

// Metrics holds the Prometheus instruments for the promotion-and-expiry engine.
type Metrics struct {
	ReactionsTotal         *prometheus.CounterVec
	PromotionsTotal        prometheus.Counter
	TypesProvisionedTotal  prometheus.Counter
	RecommendationsClosed  prometheus.Counter
	EntriesExpiredTotal    prometheus.Counter
	SweepFailuresTotal     prometheus.Counter
	SweepDuration          prometheus.Histogram
	OperationFailuresTotal *prometheus.CounterVec
}

// New creates the instruments and registers them on reg. A nil reg falls back
// to a private registry so tests can build as many instances as they like.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		ReactionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blacklist_reactions_total",
			Help: "Update notifications processed, by collection and outcome",
		}, []string{"collection", "outcome"}),
		PromotionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "blacklist_promotions_total",
			Help: "Blacklist entries created because the recommendation threshold was reached",
		}),
		TypesProvisionedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "blacklist_types_provisioned_total",
			Help: "Blacklist types created automatically by the promotion policy",
		}),
		RecommendationsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "blacklist_recommendations_closed_total",
			Help: "Recommendation entries marked as closed",
		}),
		EntriesExpiredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "blacklist_entries_expired_total",
			Help: "Temporary blacklist entries removed by the expiry sweep",
		}),
		SweepFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "blacklist_sweep_failures_total",
			Help: "Expiry sweeps that did not complete",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "blacklist_sweep_duration_seconds",
			Help:    "Wall time of expiry sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		OperationFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blacklist_operation_failures_total",
			Help: "Failed operations reported at their boundary, by operation",
		}, []string{"op"}),
	}
}

func (m *Metrics) ObserveReaction(collection, outcome string) {
	m.ReactionsTotal.WithLabelValues(collection, outcome).Inc()
}

func (m *Metrics) ObserveFailure(op string) {
	m.OperationFailuresTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveSweep(started time.Time, expired int, err error) {
	m.SweepDuration.Observe(time.Since(started).Seconds())
	m.EntriesExpiredTotal.Add(float64(expired))
	if err != nil {
		m.SweepFailuresTotal.Inc()
	}
}

// IndexStats is a snapshot of the phone index read path.
type IndexStats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	CacheSize   int
	Indexed     int
	BloomLoaded bool
}

// IndexMetrics reads the phone index counters at scrape time.
type IndexMetrics struct {
	CacheHits      prometheus.CounterFunc
	CacheMisses    prometheus.CounterFunc
	CacheEvictions prometheus.CounterFunc
	CacheSize      prometheus.GaugeFunc
	BloomEntries   prometheus.GaugeFunc
	BloomLoaded    prometheus.GaugeFunc
}

// RegisterIndexStats exposes the phone index counters on reg. stats is read
// on every scrape, once per instrument.
func RegisterIndexStats(reg prometheus.Registerer, stats func() IndexStats) *IndexMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &IndexMetrics{
		CacheHits: f.NewCounterFunc(prometheus.CounterOpts{
			Name: "blacklist_index_cache_hits_total",
			Help: "Phone lookups answered by the decision cache",
		}, func() float64 { return float64(stats().Hits) }),
		CacheMisses: f.NewCounterFunc(prometheus.CounterOpts{
			Name: "blacklist_index_cache_misses_total",
			Help: "Phone lookups that missed the decision cache",
		}, func() float64 { return float64(stats().Misses) }),
		CacheEvictions: f.NewCounterFunc(prometheus.CounterOpts{
			Name: "blacklist_index_cache_evictions_total",
			Help: "Decision cache evictions, including invalidations",
		}, func() float64 { return float64(stats().Evictions) }),
		CacheSize: f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "blacklist_index_cache_size",
			Help: "Phones currently held in the decision cache",
		}, func() float64 { return float64(stats().CacheSize) }),
		BloomEntries: f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "blacklist_index_bloom_entries",
			Help: "Entries loaded into the bloom filter by the last rebuild",
		}, func() float64 { return float64(stats().Indexed) }),
		BloomLoaded: f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "blacklist_index_bloom_loaded",
			Help: "1 once the bloom filter has been built",
		}, func() float64 {
			if stats().BloomLoaded {
				return 1
			}
			return 0
		}),
	}
}

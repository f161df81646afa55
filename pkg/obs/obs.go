// Package obs instruments the evaluation loop with Prometheus counters
// and histograms: package-level metric vars, registered once via
// Register, exposed on /metrics by promhttp.Handler.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SignalsEvaluated counts every evaluator pass, labeled by outcome
	// ("triggered", "not_triggered", "inconclusive").
	SignalsEvaluated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_signals_evaluated_total",
		Help: "Total signal evaluations, by outcome.",
	}, []string{"outcome"})

	// SchedulerTicks counts completed scheduler ticks.
	SchedulerTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_scheduler_ticks_total",
		Help: "Total scheduler ticks completed.",
	})

	// SignalsEnqueued counts evaluation jobs enqueued per tick.
	SignalsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_signals_enqueued_total",
		Help: "Total evaluation jobs enqueued across all scheduler ticks.",
	})

	// DispatchDuration observes webhook dispatch latency in seconds.
	DispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_webhook_dispatch_duration_seconds",
		Help:    "Webhook dispatch latency.",
		Buckets: prometheus.DefBuckets,
	})

	// DispatchResults counts dispatch attempts, labeled by outcome
	// ("success", "failure").
	DispatchResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_webhook_dispatch_total",
		Help: "Total webhook dispatch attempts, by outcome.",
	}, []string{"outcome"})

	// QueueDepth gauges pending-job depth per named queue.
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sentinel_queue_depth",
		Help: "Pending job count per queue.",
	}, []string{"queue"})

	// BlockResolverCacheHits/Misses count the block resolver LRU's hit rate.
	BlockResolverCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_block_resolver_cache_hits_total",
		Help: "Block resolver LRU cache hits.",
	})
	BlockResolverCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_block_resolver_cache_misses_total",
		Help: "Block resolver LRU cache misses.",
	})
)

// Register adds every package metric to the default registry. Call
// once at process startup (cmd/sentinel, cmd/sentinel-api); registering
// twice in the same process (e.g. in tests) is tolerated via
// AlreadyRegisteredError.
func Register() {
	collectors := []prometheus.Collector{
		SignalsEvaluated, SchedulerTicks, SignalsEnqueued, DispatchDuration,
		DispatchResults, QueueDepth, BlockResolverCacheHits, BlockResolverCacheMisses,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}

// Handler exposes the default registry's /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

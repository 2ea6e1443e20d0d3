package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchRunsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool_matching", Name: "match_runs_total", Help: "Total matching runs started"})
	MatchesTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool_matching", Name: "matches_total", Help: "Total accepted match candidates"})
	PartialRuns    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool_matching", Name: "partial_runs_total", Help: "Runs that hit the global deadline"})
	MatchLatency   = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "carpool_matching", Name: "match_latency_seconds", Help: "Matching run latency seconds"})

	RoutingProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool_matching", Name: "routing_provider_errors_total", Help: "Routing provider call failures"},
		[]string{"provider"},
	)
	RoutingFallbacks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool_matching", Name: "routing_fallbacks_total", Help: "Legs degraded to great-circle estimates"})

	StatisticUpsertRetries = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool_matching", Name: "statistic_upsert_retries_total", Help: "Statistic upserts that needed a retry"})
	StatisticUpsertErrors  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool_matching", Name: "statistic_upsert_errors_total", Help: "Statistic upserts dropped after retry"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool_matching", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool_matching",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels analyses that produced a result.
	OutcomeSuccess = "success"
	// OutcomeRejected labels analyses stopped by recoverable input errors.
	OutcomeRejected = "rejected"
	// OutcomeError labels failed analyses (internal or dependency issues).
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "benford_lab",
			Name:      "analyses_total",
			Help:      "Total number of Benford analyses handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "benford_lab",
			Name:      "analysis_seconds",
			Help:      "Analysis latency in seconds, including plot and report rendering.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
	)

	rateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "benford_lab",
			Name:      "ratelimit_decisions_total",
			Help:      "Sliding-window admission decisions, partitioned by backend and decision.",
		},
		[]string{"backend", "decision"},
	)

	catalogCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "benford_lab",
			Name:      "catalog_calls_total",
			Help:      "Calls to the external dataset catalog, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	catalogCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "benford_lab",
			Name:      "catalog_search_cache_total",
			Help:      "Catalog search cache lookups, partitioned by result.",
		},
		[]string{"result"},
	)

	sweptFilesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "benford_lab",
			Name:      "retention_removed_files_total",
			Help:      "Files removed by the retention sweeper.",
		},
	)
)

// Register attaches benford-lab collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		rateLimitDecisionsTotal,
		catalogCallsTotal,
		catalogCacheTotal,
		sweptFilesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records an analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeRejected, OutcomeError:
	default:
		outcome = OutcomeError
	}
	analysesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveRateLimit records a limiter decision for backend.
func ObserveRateLimit(backend string, admitted bool) {
	decision := "denied"
	if admitted {
		decision = "admitted"
	}
	rateLimitDecisionsTotal.WithLabelValues(backend, decision).Inc()
}

// ObserveCatalogCall records one upstream catalog call.
func ObserveCatalogCall(operation string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	catalogCallsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveCatalogCache records a search cache hit or miss.
func ObserveCatalogCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	catalogCacheTotal.WithLabelValues(result).Inc()
}

// ObserveSweep adds removed files to the retention counter.
func ObserveSweep(removed int) {
	if removed > 0 {
		sweptFilesTotal.Add(float64(removed))
	}
}

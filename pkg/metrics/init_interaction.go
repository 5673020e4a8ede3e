package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func (r *Registry) initInteractionMetrics() {
	r.ExplainRequestsTotal = factory(r).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explain_requests_total",
			Help:      "Explanation lookups by outcome (success, error, stale)",
		},
		[]string{"outcome"},
	)

	r.ExplainDuration = factory(r).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "explain_duration_seconds",
			Help:      "Explanation lookup latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
}

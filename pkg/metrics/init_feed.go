package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func (r *Registry) initFeedMetrics() {
	r.FeedFetchesTotal = factory(r).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Snapshot fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	r.FeedFetchDuration = factory(r).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Snapshot fetch latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	r.FeedDanglingLinksTotal = factory(r).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_dangling_links_total",
			Help:      "Links dropped because an endpoint did not resolve to a node",
		},
	)

	r.FeedSnapshotNodes = factory(r).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_snapshot_nodes",
			Help:      "Nodes in the last accepted snapshot",
		},
	)

	r.FeedSnapshotLinks = factory(r).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_snapshot_links",
			Help:      "Valid links in the last accepted snapshot",
		},
	)

	r.FeedLastSuccessUnixTime = factory(r).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_last_success_timestamp_seconds",
			Help:      "Unix time of the last accepted snapshot",
		},
	)

	r.FeedFallbackActive = factory(r).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_fallback_active",
			Help:      "1 while the view shows stale or placeholder data",
		},
	)
}

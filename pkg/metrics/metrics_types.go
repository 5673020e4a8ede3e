package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application. Every Record/Set method
// is safe to call on a nil *Registry, so components can run unmetered.
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Feed Metrics
	FeedFetchesTotal        *prometheus.CounterVec
	FeedFetchDuration       prometheus.Histogram
	FeedDanglingLinksTotal  prometheus.Counter
	FeedSnapshotNodes       prometheus.Gauge
	FeedSnapshotLinks       prometheus.Gauge
	FeedLastSuccessUnixTime prometheus.Gauge
	FeedFallbackActive      prometheus.Gauge

	// Layout Metrics
	LayoutStageDuration *prometheus.HistogramVec

	// Animation Metrics
	AnimationsStartedTotal prometheus.Counter
	AnimationsQueuedTotal  prometheus.Counter
	AnimationFramesTotal   prometheus.Counter
	AnimatorAnimating      prometheus.Gauge

	// Interaction Metrics
	ExplainRequestsTotal *prometheus.CounterVec
	ExplainDuration      prometheus.Histogram

	// System Metrics
	UptimeSeconds prometheus.Gauge

	registry  *prometheus.Registry
	startTime time.Time
}

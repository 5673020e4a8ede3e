package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fraudgraph"

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry:  reg,
		startTime: time.Now(),
	}

	r.initHTTPMetrics()
	r.initFeedMetrics()
	r.initLayoutMetrics()
	r.initInteractionMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncHTTPRequestsInFlight marks a request as started.
func (r *Registry) IncHTTPRequestsInFlight() {
	if r == nil {
		return
	}
	r.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight marks a request as finished.
func (r *Registry) DecHTTPRequestsInFlight() {
	if r == nil {
		return
	}
	r.HTTPRequestsInFlight.Dec()
}

// RecordFeedFetch records one fetch attempt. outcome is success,
// network_error, parse_error or skipped.
func (r *Registry) RecordFeedFetch(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.FeedFetchesTotal.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		r.FeedFetchDuration.Observe(duration.Seconds())
	}
}

// RecordSnapshot records the shape of an accepted snapshot.
func (r *Registry) RecordSnapshot(nodes, links, dropped int, at time.Time) {
	if r == nil {
		return
	}
	r.FeedSnapshotNodes.Set(float64(nodes))
	r.FeedSnapshotLinks.Set(float64(links))
	r.FeedDanglingLinksTotal.Add(float64(dropped))
	r.FeedLastSuccessUnixTime.Set(float64(at.Unix()))
}

// SetFallbackActive flags whether the view shows stale or placeholder data.
func (r *Registry) SetFallbackActive(active bool) {
	if r == nil {
		return
	}
	r.FeedFallbackActive.Set(boolToFloat(active))
}

// RecordLayoutStage records the duration of a layout stage (seed, relax).
func (r *Registry) RecordLayoutStage(stage string, duration time.Duration) {
	if r == nil {
		return
	}
	r.LayoutStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAnimationStarted counts an interpolation that began immediately.
func (r *Registry) RecordAnimationStarted() {
	if r == nil {
		return
	}
	r.AnimationsStartedTotal.Inc()
}

// RecordAnimationQueued counts a target that arrived mid-animation.
func (r *Registry) RecordAnimationQueued() {
	if r == nil {
		return
	}
	r.AnimationsQueuedTotal.Inc()
}

// RecordAnimationFrame counts one emitted frame.
func (r *Registry) RecordAnimationFrame() {
	if r == nil {
		return
	}
	r.AnimationFramesTotal.Inc()
}

// SetAnimating mirrors the animator state.
func (r *Registry) SetAnimating(animating bool) {
	if r == nil {
		return
	}
	r.AnimatorAnimating.Set(boolToFloat(animating))
}

// RecordExplain records an explanation lookup. outcome is success, error or stale.
func (r *Registry) RecordExplain(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.ExplainRequestsTotal.WithLabelValues(outcome).Inc()
	r.ExplainDuration.Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (r *Registry) UpdateUptime() {
	if r == nil {
		return
	}
	r.UptimeSeconds.Set(time.Since(r.startTime).Seconds())
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (r *Registry) initSystemMetrics() {
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.UptimeSeconds = factory(r).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Time since the process started in seconds",
	})
}

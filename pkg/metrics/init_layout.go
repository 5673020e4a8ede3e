package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func (r *Registry) initLayoutMetrics() {
	r.LayoutStageDuration = factory(r).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_stage_duration_seconds",
			Help:      "Duration of layout stages in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"stage"},
	)

	r.AnimationsStartedTotal = factory(r).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "animations_started_total",
			Help:      "Interpolations started",
		},
	)

	r.AnimationsQueuedTotal = factory(r).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "animations_queued_total",
			Help:      "Layout targets that arrived while an interpolation was running",
		},
	)

	r.AnimationFramesTotal = factory(r).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "animation_frames_total",
			Help:      "Frames emitted by the frame loop",
		},
	)

	r.AnimatorAnimating = factory(r).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "animator_animating",
			Help:      "1 while an interpolation is running",
		},
	)
}

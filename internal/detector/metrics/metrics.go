package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for detector runs.
type Metrics struct {
	RunsStarted     prometheus.Counter
	RunDuration     prometheus.Histogram
	EntitiesScanned prometheus.Counter
	EntityErrors    prometheus.Counter
	LeaseContention prometheus.Counter
}

// New creates and registers the detector metrics.
func New() *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_detector_runs_total",
			Help: "Total number of detector invocations",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_detector_run_duration_seconds",
			Help:    "Duration of whole detector runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		EntitiesScanned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_detector_entities_scanned_total",
			Help: "Total number of watched entities examined for transitions",
		}),
		EntityErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_detector_entity_errors_total",
			Help: "Total number of per-entity processing failures (skipped, not fatal)",
		}),
		LeaseContention: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_detector_lease_contention_total",
			Help: "Total number of scans skipped because another runner held the watermark lease",
		}),
	}
}

// ObserveRun records one whole invocation.
func (m *Metrics) ObserveRun(start time.Time) {
	m.RunDuration.Observe(time.Since(start).Seconds())
}

package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks relay progress and failures.
type Metrics struct {
	EntriesPublished prometheus.Counter
	PublishFailures  prometheus.Counter
	RelayLag         prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		EntriesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_audit_stream_entries_published_total",
			Help: "Ledger entries acknowledged by the stream brokers.",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_audit_stream_publish_failures_total",
			Help: "Relay batches that failed to publish.",
		}),
		RelayLag: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_audit_stream_relay_lag",
			Help: "Entries written to the ledger but not yet relayed.",
		}),
	}
}

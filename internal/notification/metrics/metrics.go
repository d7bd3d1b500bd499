package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the notification feed.
type Metrics struct {
	Created      prometheus.Counter
	Deduplicated prometheus.Counter
	Read         prometheus.Counter
}

// New creates and registers the notification metrics.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_notifications_created_total",
			Help: "Total number of notifications created",
		}),
		Deduplicated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_notifications_deduplicated_total",
			Help: "Total number of notification creates absorbed by the epoch uniqueness constraint",
		}),
		Read: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_notifications_read_total",
			Help: "Total number of notifications marked read",
		}),
	}
}

// IncrementCreated records a newly inserted notification.
func (m *Metrics) IncrementCreated() { m.Created.Inc() }

// IncrementDeduplicated records a create that collided with an existing epoch.
func (m *Metrics) IncrementDeduplicated() { m.Deduplicated.Inc() }

// IncrementRead records a successful mark-read transition.
func (m *Metrics) IncrementRead() { m.Read.Inc() }

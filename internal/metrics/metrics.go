// Package metrics wraps the Prometheus collectors herald exposes for its
// publisher side. Grounded on the teacher's internal/metrics package
// (go-server-3), with names and events remapped from WebSocket
// connections/broadcasts to herald subscribers/fan-out writes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus collectors used by a herald publisher.
type Registry struct {
	ActiveSubscribers prometheus.Gauge
	MessagesPublished prometheus.Counter
	MessagesDelivered prometheus.Counter
	AcceptErrors      prometheus.Counter
	RegionWriteErrors prometheus.Counter
}

// NewRegistry creates Prometheus metrics collectors for a publisher.
func NewRegistry() *Registry {
	return &Registry{
		ActiveSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "herald_subscribers_active",
			Help: "Number of subscribers currently registered with the publisher.",
		}),
		MessagesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "herald_messages_published_total",
			Help: "Total number of messages enqueued via Publish.",
		}),
		MessagesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "herald_messages_delivered_total",
			Help: "Total number of successful per-region writes during fan-out.",
		}),
		AcceptErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "herald_accept_errors_total",
			Help: "Total number of subscriber connections dropped due to region creation failure.",
		}),
		RegionWriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "herald_region_write_errors_total",
			Help: "Total number of per-region write failures during fan-out (fatal slot-selection invariant).",
		}),
	}
}

// Handler returns an HTTP handler exposing Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

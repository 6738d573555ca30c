// Package metrics holds the invoicing context's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts invoice lifecycle activity.
type Metrics struct {
	InvoicesCreated prometheus.Counter
	InvoicesVoided  prometheus.Counter
	EventsPublished *prometheus.CounterVec
}

// New creates and registers all invoice metrics.
func New() *Metrics {
	return &Metrics{
		InvoicesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tally_invoices_created_total",
			Help: "Total number of invoices created.",
		}),
		InvoicesVoided: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tally_invoices_voided_total",
			Help: "Total number of invoices voided.",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_domain_events_published_total",
			Help: "Domain events published on the in-process bus, by event name.",
		}, []string{"event"}),
	}
}

// Package metrics holds the Prometheus collectors for the portal.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups the portal's counters. Each instance owns its registry so
// tests can create independent sets.
type Collectors struct {
	Registry *prometheus.Registry

	StatusTransitions *prometheus.CounterVec
	Resubmissions     *prometheus.CounterVec
	PaymentsInitiated *prometheus.CounterVec
	PaymentCallbacks  *prometheus.CounterVec
	ReceiptsServed    prometheus.Counter
}

// New creates and registers a fresh set of collectors.
func New() *Collectors {
	c := &Collectors{
		Registry: prometheus.NewRegistry(),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_status_transitions_total",
			Help: "Admin status transitions by target status and outcome.",
		}, []string{"status", "outcome"}),
		Resubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_resubmissions_total",
			Help: "Revision uploads by outcome.",
		}, []string{"outcome"}),
		PaymentsInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_payments_initiated_total",
			Help: "Payment sessions created by purpose.",
		}, []string{"purpose"}),
		PaymentCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_payment_callbacks_total",
			Help: "Gateway callbacks by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ReceiptsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_receipts_served_total",
			Help: "Receipts rendered for paid records.",
		}),
	}
	c.Registry.MustRegister(
		c.StatusTransitions,
		c.Resubmissions,
		c.PaymentsInitiated,
		c.PaymentCallbacks,
		c.ReceiptsServed,
	)
	return c
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

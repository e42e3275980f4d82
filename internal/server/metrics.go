package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the billing-enforcement decisions worth alerting on.
type Metrics struct {
	AICapDenials    prometheus.Counter
	VisitCapDenials prometheus.Counter
	WebhookEvents   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AICapDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "znapsite_ai_cap_denials_total",
			Help: "AI cap checks that reported the tenant as capped.",
		}),
		VisitCapDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "znapsite_visit_cap_denials_total",
			Help: "Visits denied because the free-tier cap was reached.",
		}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "znapsite_webhook_events_total",
			Help: "Processor webhook events received, by type.",
		}, []string{"type"}),
	}
}

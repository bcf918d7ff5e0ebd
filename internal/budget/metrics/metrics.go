// Package metrics exposes Prometheus metrics for the budget governor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CallsAuthorized prometheus.Counter
	CallsRejected   *prometheus.CounterVec
	SpendTotal      prometheus.Counter
	Paused          prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		CallsAuthorized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doctrine_budget_calls_authorized_total",
			Help: "Paid external calls authorized by the governor",
		}),
		CallsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doctrine_budget_calls_rejected_total",
			Help: "Paid external calls rejected by the governor",
		}, []string{"reason"}),
		SpendTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doctrine_budget_spend_total",
			Help: "Actual reconciled spend in ledger currency units",
		}),
		Paused: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "doctrine_budget_paused",
			Help: "1 while the governor is paused, 0 while active",
		}),
	}
}

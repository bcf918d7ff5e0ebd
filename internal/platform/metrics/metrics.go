// Package metrics exposes pipeline-level Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestDuration  *prometheus.HistogramVec
	RecordsValidated *prometheus.CounterVec
	RecordsPromoted  prometheus.Counter
	SignalsRecorded  *prometheus.CounterVec
	FailuresFixed    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doctrine_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RecordsValidated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doctrine_records_validated_total",
			Help: "Intake records by validation outcome",
		}, []string{"outcome"}),
		RecordsPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doctrine_records_promoted_total",
			Help: "Intake records promoted into the master store",
		}),
		SignalsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doctrine_signals_recorded_total",
			Help: "Intelligence events by change type",
		}, []string{"change_type"}),
		FailuresFixed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doctrine_failures_remediated_total",
			Help: "Validation failures by remediation outcome",
		}, []string{"outcome"}),
	}
}

// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion pipeline metrics
	ReadingsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_readings_accepted_total",
		Help: "Total number of readings that passed validation and were persisted",
	})
	ReadingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_readings_rejected_total",
		Help: "Total number of readings rejected by the sanitizer, by reason",
	}, []string{"reason"})
	ForwardFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_forward_failures_total",
		Help: "Total number of validated readings that failed to persist",
	})

	// Broadcast metrics
	SubscribersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_subscribers_active",
		Help: "Current number of live broadcast subscribers",
	})
	SubscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_subscribers_dropped_total",
		Help: "Total number of subscribers dropped for being slow or gone",
	})
)

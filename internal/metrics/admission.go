// Package metrics provides Prometheus metrics for the clipfetch pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No job_id, request_id or URL labels: cardinality stays bounded by outcome/stage/reason.

var (
	// AdmissionWaitDuration tracks how long a request waited for a pipeline slot.
	AdmissionWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clipfetch_admission_wait_seconds",
		Help:    "Time spent waiting for a pipeline slot",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
	})

	// AdmissionAbandonedTotal counts requests whose context ended before a slot was free.
	AdmissionAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipfetch_admission_abandoned_total",
		Help: "Total requests that gave up waiting for a pipeline slot",
	})

	// ActiveJobs tracks jobs currently holding a pipeline slot.
	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipfetch_active_jobs",
		Help: "Current number of jobs holding a pipeline slot",
	})
)

// ObserveAdmissionWait records the wait for a pipeline slot.
func ObserveAdmissionWait(d time.Duration) {
	AdmissionWaitDuration.Observe(d.Seconds())
}

// IncAdmissionAbandoned records a request that left the admission queue.
func IncAdmissionAbandoned() {
	AdmissionAbandonedTotal.Inc()
}

// JobStarted increments the active job gauge.
func JobStarted() { ActiveJobs.Inc() }

// JobFinished decrements the active job gauge.
func JobFinished() { ActiveJobs.Dec() }

// SPDX-License-Identifier: MIT
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_jobs_total",
		Help: "Completed jobs by outcome and failure category",
	}, []string{"outcome", "category"}) // outcome=served|failed|aborted

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipfetch_job_duration_seconds",
		Help:    "End-to-end job duration from admission to cleanup",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"outcome"})

	trimmedJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipfetch_jobs_trimmed_total",
		Help: "Jobs that requested a time range",
	})

	shortLinkResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_shortlink_resolve_total",
		Help: "Short link resolution attempts by outcome",
	}, []string{"outcome"}) // outcome=resolved|fallback

	cookieFileUsable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipfetch_cookie_file_usable",
		Help: "Whether the configured cookie file is present and well-formed (1) or not (0)",
	})
)

// RecordJob records a finished job.
func RecordJob(outcome, category string, d time.Duration) {
	jobsTotal.WithLabelValues(outcome, category).Inc()
	jobDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// IncTrimmedJob counts a job that carries a time range.
func IncTrimmedJob() {
	trimmedJobsTotal.Inc()
}

// IncShortLinkResolve records the outcome of a short link resolution.
func IncShortLinkResolve(outcome string) {
	shortLinkResolveTotal.WithLabelValues(outcome).Inc()
}

// SetCookieFileUsable publishes the current cookie file health.
func SetCookieFileUsable(ok bool) {
	if ok {
		cookieFileUsable.Set(1)
		return
	}
	cookieFileUsable.Set(0)
}

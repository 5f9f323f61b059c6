package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration tracks duration of acquire and transcode stages
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipfetch_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage", "result"})

	// StageErrors tracks stage failures by reason
	StageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_stage_errors_total",
		Help: "Total stage failures",
	}, []string{"stage", "reason"})

	// ArtifactBytes tracks artifact sizes produced per stage
	ArtifactBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipfetch_artifact_bytes",
		Help:    "Size of artifacts produced by each stage",
		Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10), // 64KiB to ~16GiB
	}, []string{"stage"})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_proc_terminate_total",
		Help: "Signals sent to external process groups",
	}, []string{"signal", "result"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_proc_wait_total",
		Help: "Outcome of waiting on terminated process groups",
	}, []string{"outcome"})
)

// ObserveStage records the duration of a finished stage.
func ObserveStage(stage string, success bool, d time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	StageDuration.WithLabelValues(stage, result).Observe(d.Seconds())
}

// IncStageError records a stage failure.
func IncStageError(stage, reason string) {
	StageErrors.WithLabelValues(stage, reason).Inc()
}

// ObserveArtifact records an artifact size.
func ObserveArtifact(stage string, size int64) {
	ArtifactBytes.WithLabelValues(stage).Observe(float64(size))
}

// IncProcTerminate records a termination signal attempt.
func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait records how a terminated process group exited.
func IncProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}

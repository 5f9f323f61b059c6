package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StreamBytesServed counts bytes written to clients.
	StreamBytesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipfetch_stream_bytes_served_total",
		Help: "Total artifact bytes written to clients",
	})

	// StreamTotal tracks the outcome of artifact deliveries.
	StreamTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_stream_total",
		Help: "Artifact deliveries by result",
	}, []string{"result"}) // result=complete|aborted|open_failed

	// WorkspaceSweptTotal counts stale workspaces removed by the sweeper.
	WorkspaceSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipfetch_workspace_swept_total",
		Help: "Stale job workspaces removed by the sweeper",
	})

	// WorkspaceCleanupErrors counts failed workspace removals.
	WorkspaceCleanupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipfetch_workspace_cleanup_errors_total",
		Help: "Workspace removals that failed",
	})
)

// RecordStream records the outcome of one delivery.
func RecordStream(result string, bytes int64) {
	StreamTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		StreamBytesServed.Add(float64(bytes))
	}
}

// AddWorkspaceSwept adds n to the swept counter.
func AddWorkspaceSwept(n int) {
	if n > 0 {
		WorkspaceSweptTotal.Add(float64(n))
	}
}

// IncWorkspaceCleanupError records a failed removal.
func IncWorkspaceCleanupError() {
	WorkspaceCleanupErrors.Inc()
}

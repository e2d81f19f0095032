package k8s

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "podrun"

var (
	podsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "pods",
		Name:      "submitted_total",
		Help:      "Count of pods accepted by the control plane",
	})
	submissionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "pods",
		Name:      "submission_errors_total",
		Help:      "Count of pods rejected by the control plane",
	})
	pollTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "pods",
		Name:      "poll_timeouts_total",
		Help:      "Count of pods that never left Pending before the poll deadline",
	})
	pendingDurations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "pods",
		Name:      "pending_duration_seconds",
		Help:      "Time spent polling a pod until it left Pending",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	logLines = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "logs",
		Name:      "lines_total",
		Help:      "Count of log lines read from pods",
	})
	logStreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "logs",
		Name:      "stream_errors_total",
		Help:      "Count of log streams that failed to open or broke mid-read",
	})

	deletions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "pods",
		Name:      "deleted_total",
		Help:      "Count of pods deleted after a run",
	})
	deletionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "pods",
		Name:      "deletion_errors_total",
		Help:      "Count of pods that could not be deleted",
	})
)

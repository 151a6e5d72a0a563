package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	latencyHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	capturedEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracelens_captured_entries_total",
		Help: "Log entries stored in session buffers",
	})
	evictedEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracelens_evicted_entries_total",
		Help: "Oldest entries evicted from full session buffers",
	})
	droppedEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracelens_dropped_entries_total",
		Help: "Log events seen without an active session",
	})
	captureFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracelens_capture_failures_total",
		Help: "Internal failures swallowed by the capture hook",
	})
	removedBuffers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracelens_removed_buffers_total",
			Help: "Session buffers removed, by reason",
		},
		[]string{"reason"},
	)
	activeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracelens_active_streams",
		Help: "Live log stream subscriptions",
	})
	streamTerminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracelens_stream_terminations_total",
			Help: "Log streams ended, by terminal state",
		},
		[]string{"state"},
	)
)

// Init registers custom collectors.
func Init() {
	prometheus.MustRegister(
		requestCounter, latencyHistogram,
		capturedEntries, evictedEntries, droppedEntries, captureFailures,
		removedBuffers, activeStreams, streamTerminations,
	)
}

// RegisterActiveBuffers exposes the live session buffer count.
func RegisterActiveBuffers(count func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "tracelens_active_buffers",
			Help: "Live session log buffers",
		},
		func() float64 { return float64(count()) },
	))
}

// ObserveRequest records metrics.
func ObserveRequest(path, method, status string, seconds float64) {
	requestCounter.WithLabelValues(path, method, status).Inc()
	latencyHistogram.WithLabelValues(path, method).Observe(seconds)
}

// ObserveCapture counts one stored entry.
func ObserveCapture(evicted bool) {
	capturedEntries.Inc()
	if evicted {
		evictedEntries.Inc()
	}
}

// ObserveDropped counts an event logged outside any session.
func ObserveDropped() {
	droppedEntries.Inc()
}

// ObserveBufferRemoved counts a removed session buffer.
func ObserveBufferRemoved(reason string) {
	removedBuffers.WithLabelValues(reason).Inc()
}

// StreamOpened tracks a new subscription.
func StreamOpened() {
	activeStreams.Inc()
}

// StreamClosed releases a subscription.
func StreamClosed() {
	activeStreams.Dec()
}

// StreamTerminated counts a terminal transition.
func StreamTerminated(state string) {
	streamTerminations.WithLabelValues(state).Inc()
}

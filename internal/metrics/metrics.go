package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// RelayAttempts counts relay attempts by direction, event type, and outcome
	RelayAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_attempts_total", Help: "Relay attempts by direction, event type, and outcome."},
		[]string{"direction", "event_type", "status"},
	)
	// OutboundLatency tracks latencies of calls to the logistics backend in milliseconds
	OutboundLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "outbound_call_latency_ms", Help: "Logistics backend call latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"status"},
	)
	// AuditPurged counts audit entries removed by retention sweeps
	AuditPurged = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "audit_logs_purged_total", Help: "Audit log entries deleted by retention sweeps."},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(RelayAttempts)
		Registry.MustRegister(OutboundLatency)
		Registry.MustRegister(AuditPurged)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

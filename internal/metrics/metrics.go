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

	// SamplesIngested counts accepted GPS samples by ingestion path
	SamplesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gps_samples_ingested_total", Help: "GPS samples persisted, by single/batch path."},
		[]string{"path"},
	)
	// SamplesRejected counts samples that failed validation
	SamplesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gps_samples_rejected_total", Help: "GPS samples rejected at validation."},
		[]string{"reason"},
	)
	// SessionTransitions counts session state machine transitions
	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "working_session_transitions_total", Help: "Session transitions by action and outcome."},
		[]string{"action", "outcome"},
	)
	// ScopeCacheLookups counts visibility scope cache hits and misses
	ScopeCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scope_cache_lookups_total", Help: "Visibility scope cache lookups."},
		[]string{"result"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SamplesIngested)
		Registry.MustRegister(SamplesRejected)
		Registry.MustRegister(SessionTransitions)
		Registry.MustRegister(ScopeCacheLookups)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

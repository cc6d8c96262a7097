// Package monitoring provides Prometheus metrics for the RECOVERY-CORE API.
//
// Usage:
//
//  1. Setup metrics in your main function:
//     router := gin.New()
//     monitoring.SetupPrometheusMetrics(router)
//
//  2. Record custom metrics in your handlers:
//
//	// Cache operations
//	monitoring.RecordCacheOperation("get", "hit")
//
//	// API operations
//	start := time.Now()
//	// ... your handler code ...
//	monitoring.RecordAPIOperation("trigger_recovery", "recovery", time.Since(start), true)
//
// Available Metrics:
//
// HTTP Metrics (from the metrics middleware):
//   - recovery_core_http_requests_total{method, endpoint, status_code}
//   - recovery_core_http_request_duration_seconds{method, endpoint}
//   - recovery_core_active_connections (from this package)
//
// Cache Metrics:
//   - recovery_core_cache_operations_total{operation, result}
//
// API Operation Metrics:
//   - recovery_core_api_operations_total{operation, resource, status}
//   - recovery_core_api_operation_duration_seconds{operation, resource}
//
// Error Metrics:
//   - recovery_core_errors_total{type, component}
//
// Build Info:
//   - recovery_core_build_info{version, component, go_version}
package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache metrics
	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, error
	)

	// API operation metrics
	apiOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_api_operations_total",
			Help: "Total number of API operations",
		},
		[]string{"operation", "resource", "status"},
	)

	apiOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recovery_core_api_operation_duration_seconds",
			Help:    "API operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "resource"},
	)

	// Active connections gauge
	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recovery_core_active_connections",
			Help: "Number of active connections",
		},
	)

	// Error rate metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"}, // type: api, cache, notification, etc.
	)
)

// SetupPrometheusMetrics configures the Prometheus metrics endpoint for RECOVERY-CORE
func SetupPrometheusMetrics(router gin.IRoutes) {
	// Use the default Prometheus registry to combine with existing metrics

	// Register build info (ignore if already registered)
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "recovery_core_build_info",
		Help: "Build information for RECOVERY-CORE",
		ConstLabels: prometheus.Labels{
			"version":    "v1.4.0",
			"component":  "recovery-core",
			"go_version": "1.24",
		},
	}, func() float64 { return 1 }))

	// Register additional metrics (ignore if already registered)
	_ = prometheus.Register(cacheOperationsTotal)
	_ = prometheus.Register(apiOperationsTotal)
	_ = prometheus.Register(apiOperationDuration)
	_ = prometheus.Register(activeConnections)
	_ = prometheus.Register(errorsTotal)

	// Expose metrics endpoint using default registry
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RecordCacheOperation records cache operation metrics
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("cache", operation).Inc()
	}
}

// RecordAPIOperation records API operation metrics
func RecordAPIOperation(operation, resource string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("api", resource).Inc()
	}

	apiOperationsTotal.WithLabelValues(operation, resource, status).Inc()
	apiOperationDuration.WithLabelValues(operation, resource).Observe(duration.Seconds())
}

// RecordError records a component error
func RecordError(errType, component string) {
	errorsTotal.WithLabelValues(errType, component).Inc()
}

// TrackConnection increments the active connection gauge for the lifetime of fn
func TrackConnection(fn func()) {
	activeConnections.Inc()
	defer activeConnections.Dec()
	fn()
}

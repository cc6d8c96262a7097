// ================================
// internal/metrics/metrics.go - Self-monitoring for RECOVERY-CORE
// ================================

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recovery_core_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Automated recovery metrics
	RecoveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_recovery_attempts_total",
			Help: "Total number of automated recovery attempts",
		},
		[]string{"action", "phase", "success"}, // immediate/fallback/escalation, true/false
	)

	RecoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recovery_core_recovery_duration_seconds",
			Help:    "Recovery attempt duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"action"},
	)

	ActiveRecoveries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recovery_core_active_recoveries",
			Help: "Number of recovery attempts currently in flight",
		},
	)

	// Self-healing metrics
	HealingActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_healing_actions_total",
			Help: "Total number of self-healing actions executed",
		},
		[]string{"action", "status"}, // success/failed/aborted/rolled_back
	)

	ActiveHealingOperations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recovery_core_healing_operations_active",
			Help: "Number of healing operations currently in flight",
		},
	)

	// Graceful degradation metrics
	ActiveDegradations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recovery_core_degradations_active",
			Help: "Number of active degradations by level",
		},
		[]string{"level"}, // minimal/moderate/severe/emergency
	)

	DegradationTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_degradation_transitions_total",
			Help: "Total number of degradation activations and reversions",
		},
		[]string{"rule", "transition"}, // activated/reverted
	)

	// Circuit breaker metrics
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recovery_core_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"circuit"},
	)

	CircuitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_circuit_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"circuit", "from", "to"},
	)

	// Incident escalation metrics
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_escalations_total",
			Help: "Total number of escalation level transitions",
		},
		[]string{"level", "trigger"},
	)

	ActiveEscalations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recovery_core_escalations_active",
			Help: "Number of unresolved escalations",
		},
	)

	// Deployment monitoring metrics
	DeploymentsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recovery_core_deployments_tracked",
			Help: "Number of deployments currently being monitored",
		},
	)

	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_rollbacks_total",
			Help: "Total number of deployment rollbacks",
		},
		[]string{"trigger", "success"}, // auto/manual, true/false
	)

	// External integration metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_core_notifications_sent_total",
			Help: "Total number of notifications sent",
		},
		[]string{"integration", "type", "success"}, // slack/teams/email, escalation/degradation, true/false
	)
)

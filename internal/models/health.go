package models

type HealthLevel string

const (
	HealthHealthy   HealthLevel = "healthy"
	HealthDegraded  HealthLevel = "degraded"
	HealthUnhealthy HealthLevel = "unhealthy"
)

// ComponentStatus is the uniform getStatus() shape every subsystem reports.
type ComponentStatus struct {
	Status  HealthLevel            `json:"status"`
	Enabled bool                   `json:"enabled"`
	Issues  []string               `json:"issues"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// OverallHealth aggregates the subsystem statuses for the overview endpoint.
type OverallHealth struct {
	Status      HealthLevel `json:"status"`
	Description string      `json:"description"`
}

// SystemOverview is returned by GET /api/v1/overview.
type SystemOverview struct {
	AutoRecovery   ComponentStatus `json:"auto_recovery"`
	CircuitBreaker ComponentStatus `json:"circuit_breaker"`
	Degradation    ComponentStatus `json:"degradation"`
	SelfHealing    ComponentStatus `json:"self_healing"`
	Escalation     ComponentStatus `json:"escalation"`
	Deployment     ComponentStatus `json:"deployment"`
	OverallHealth  OverallHealth   `json:"overall_health"`
}

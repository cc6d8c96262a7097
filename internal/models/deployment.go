package models

import "time"

type DeploymentStatus string

const (
	DeploymentPending        DeploymentStatus = "pending"
	DeploymentInProgress     DeploymentStatus = "in_progress"
	DeploymentSuccess        DeploymentStatus = "success"
	DeploymentFailed         DeploymentStatus = "failed"
	DeploymentRolledBack     DeploymentStatus = "rolled_back"
	DeploymentRollbackFailed DeploymentStatus = "rollback_failed"
)

// DeploymentHealthCheck is one post-deploy verification probe.
type DeploymentHealthCheck struct {
	Name     string     `json:"name"`
	Endpoint string     `json:"endpoint,omitempty"`
	Passed   bool       `json:"passed"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// DeploymentMetrics holds the baseline and current measurements compared by
// the validation rules.
type DeploymentMetrics struct {
	ErrorRate      float64 `json:"error_rate"`
	ResponseTimeMs float64 `json:"response_time_ms"`
	MemoryUsageMB  float64 `json:"memory_usage_mb"`
	FailureCount   int     `json:"failure_count"`
}

// Deployment is one tracked release.
type Deployment struct {
	ID              string                  `json:"id"`
	Version         string                  `json:"version"`
	Environment     string                  `json:"environment"`
	Branch          string                  `json:"branch"`
	DeployedBy      string                  `json:"deployed_by,omitempty"`
	StartTime       time.Time               `json:"start_time"`
	EndTime         *time.Time              `json:"end_time,omitempty"`
	Status          DeploymentStatus        `json:"status"`
	HealthChecks    []DeploymentHealthCheck `json:"health_checks"`
	BaselineMetrics DeploymentMetrics       `json:"baseline_metrics"`
	CurrentMetrics  DeploymentMetrics       `json:"current_metrics"`
	Rollback        *RollbackInfo           `json:"rollback,omitempty"`
}

// RollbackStep is one ordered step of a rollback procedure.
type RollbackStep struct {
	Name      string     `json:"name"`
	Completed bool       `json:"completed"`
	Error     string     `json:"error,omitempty"`
	RunAt     *time.Time `json:"run_at,omitempty"`
}

// RollbackInfo records a rollback execution for a deployment.
type RollbackInfo struct {
	ID           string         `json:"id"`
	DeploymentID string         `json:"deployment_id"`
	Reason       string         `json:"reason"`
	Trigger      string         `json:"trigger"` // auto, manual
	PreserveData bool           `json:"preserve_data"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	Steps        []RollbackStep `json:"steps"`
	Success      bool           `json:"success"`
}

package models

import "time"

// RecoveryStepType enumerates the remediation primitives a recovery action
// may execute. Dispatch over these tags is centralized in the step executor;
// an unknown tag is an execution error, never a silent no-op.
type RecoveryStepType string

const (
	StepRestartService     RecoveryStepType = "restart_service"
	StepClearCache         RecoveryStepType = "clear_cache"
	StepResetConnections   RecoveryStepType = "reset_connections"
	StepScaleResources     RecoveryStepType = "scale_resources"
	StepRollbackDeployment RecoveryStepType = "rollback_deployment"
	StepIsolateComponent   RecoveryStepType = "isolate_component"
	StepExecuteScript      RecoveryStepType = "execute_script"
	StepNotifyTeam         RecoveryStepType = "notify_team"
)

// RecoveryPhase orders the three step groups of a recovery action.
type RecoveryPhase string

const (
	PhaseImmediate  RecoveryPhase = "immediate"
	PhaseFallback   RecoveryPhase = "fallback"
	PhaseEscalation RecoveryPhase = "escalation"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSuccess    AttemptStatus = "success"
	AttemptFailed     AttemptStatus = "failed"
	AttemptTimeout    AttemptStatus = "timeout"
)

// MetricThreshold is one metric precondition of a recovery action. The rule
// applies only when the alert's current value has reached the threshold.
type MetricThreshold struct {
	Metric    string  `json:"metric"`
	Threshold float64 `json:"threshold"`
}

// RecoveryConditions gate whether a RecoveryAction applies to an alert.
type RecoveryConditions struct {
	MetricThresholds    []MetricThreshold `json:"metric_thresholds,omitempty"`
	AlertTypes          []string          `json:"alert_types,omitempty"`
	DurationMinutes     int               `json:"duration_minutes,omitempty"`
	ConsecutiveFailures int               `json:"consecutive_failures,omitempty"`
}

// RecoveryStep is one remediation primitive inside a phase. SuccessCondition,
// when set, decides pass/fail after the step runs instead of assuming success.
// Supported forms: "metric_threshold:<metric>:<lt|gt|eq>:<value>",
// "service_status:<service>", "http_response:<url>".
type RecoveryStep struct {
	Type             RecoveryStepType  `json:"type"`
	Target           string            `json:"target"`
	Parameters       map[string]string `json:"parameters,omitempty"`
	TimeoutSeconds   int               `json:"timeout_seconds"`
	RetryCount       int               `json:"retry_count,omitempty"`
	SuccessCondition string            `json:"success_condition,omitempty"`
}

// RecoveryActions holds the ordered steps per phase.
type RecoveryActions struct {
	Immediate  []RecoveryStep `json:"immediate"`
	Fallback   []RecoveryStep `json:"fallback,omitempty"`
	Escalation []RecoveryStep `json:"escalation,omitempty"`
}

// RecoveryAction is a declarative rule mapping alert conditions to ordered
// remediation steps. Actions are evaluated in declaration order; the first
// applicable action wins.
type RecoveryAction struct {
	ID                    string             `json:"id"`
	Name                  string             `json:"name"`
	Severity              AlertSeverity      `json:"severity"`
	Conditions            RecoveryConditions `json:"conditions"`
	Actions               RecoveryActions    `json:"actions"`
	MaxRetries            int                `json:"max_retries"`
	CooldownPeriodMinutes int                `json:"cooldown_period_minutes"`
	AutoExecute           bool               `json:"auto_execute"`
}

// StepExecution records the outcome of one executed step.
type StepExecution struct {
	Step      RecoveryStep  `json:"step"`
	Phase     RecoveryPhase `json:"phase"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Success   bool          `json:"success"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// RecoveryAttempt is the runtime record of one recovery execution.
type RecoveryAttempt struct {
	ID            string          `json:"id"`
	AlertID       string          `json:"alert_id"`
	AlertType     string          `json:"alert_type,omitempty"`
	ActionID      string          `json:"action_id"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       *time.Time      `json:"end_time,omitempty"`
	Status        AttemptStatus   `json:"status"`
	StepsExecuted []StepExecution `json:"steps_executed"`
	Result        string          `json:"result,omitempty"`
}

// RecoveryIssueStats aggregates attempt outcomes per alert type.
type RecoveryIssueStats struct {
	AlertType   string  `json:"alert_type"`
	Count       int     `json:"count"`
	SuccessRate float64 `json:"success_rate"`
	AverageTime float64 `json:"average_time_seconds"`
}

// RecoveryStats is the aggregate view returned by the stats endpoint.
type RecoveryStats struct {
	TotalAttempts      int                  `json:"total_attempts"`
	SuccessfulAttempts int                  `json:"successful_attempts"`
	FailedAttempts     int                  `json:"failed_attempts"`
	SuccessRate        float64              `json:"success_rate"`
	AverageTime        float64              `json:"average_time_seconds"`
	TopIssues          []RecoveryIssueStats `json:"top_issues"`
}

package models

import "time"

// ServiceStatus is the reported run state of a tracked service.
type ServiceStatus string

const (
	ServiceRunning  ServiceStatus = "running"
	ServiceStopped  ServiceStatus = "stopped"
	ServiceDegraded ServiceStatus = "degraded"
	ServiceUnknown  ServiceStatus = "unknown"
)

// SystemHealth is one health-check snapshot.
type SystemHealth struct {
	MemoryUsagePercent float64                  `json:"memory_usage_percent"`
	CPULoadPercent     float64                  `json:"cpu_load_percent"`
	DiskUsagePercent   float64                  `json:"disk_usage_percent"`
	Services           map[string]ServiceStatus `json:"services"`
	DBConnections      float64                  `json:"db_connections"`
	Timestamp          time.Time                `json:"timestamp"`
}

type IssueType string

const (
	IssueMemoryLeak     IssueType = "memory_leak"
	IssueHighCPU        IssueType = "high_cpu"
	IssueDiskFull       IssueType = "disk_full"
	IssueServiceDown    IssueType = "service_down"
	IssueConnectionLeak IssueType = "connection_leak"
)

type HealingActionType string

const (
	HealClearCache       HealingActionType = "clear_cache"
	HealRestartService   HealingActionType = "restart_service"
	HealResetConnections HealingActionType = "reset_connections"
	HealScaleResources   HealingActionType = "scale_resources"
	HealCleanupLogs      HealingActionType = "cleanup_logs"
	HealCleanupTemp      HealingActionType = "cleanup_temp"
	HealGarbageCollect   HealingActionType = "garbage_collect"
)

// HealthIssue is one detected resource or service problem. SuggestedActions
// are ordered by preference; the first is tried on each healing cycle.
type HealthIssue struct {
	Type             IssueType           `json:"type"`
	Severity         AlertSeverity       `json:"severity"`
	Component        string              `json:"component"`
	Description      string              `json:"description"`
	SuggestedActions []HealingActionType `json:"suggested_actions"`
	AutoHealable     bool                `json:"auto_healable"`
	DetectedAt       time.Time           `json:"detected_at"`
}

// SafetyCheckFailureAction selects what happens when a safety check fails.
type SafetyCheckFailureAction string

const (
	SafetyAbort    SafetyCheckFailureAction = "abort"
	SafetyRollback SafetyCheckFailureAction = "rollback"
)

// SafetyCheck guards a healing action. Phase is pre_execution or
// post_execution; FailureAction decides abort vs rollback on failure.
type SafetyCheck struct {
	Name          string                   `json:"name"`
	Phase         string                   `json:"phase"` // pre_execution, post_execution
	FailureAction SafetyCheckFailureAction `json:"failure_action"`
}

type HealingStatus string

const (
	HealingInProgress HealingStatus = "in_progress"
	HealingSuccess    HealingStatus = "success"
	HealingFailed     HealingStatus = "failed"
	HealingAborted    HealingStatus = "aborted"
	HealingRolledBack HealingStatus = "rolled_back"
)

// HealingPhase tracks an attempt through its execution state machine.
type HealingPhase string

const (
	HealingPhasePending     HealingPhase = "pending"
	HealingPhaseChecking    HealingPhase = "checking"
	HealingPhaseExecuting   HealingPhase = "executing"
	HealingPhaseValidating  HealingPhase = "validating"
	HealingPhaseRollingBack HealingPhase = "rolling_back"
	HealingPhaseDone        HealingPhase = "done"
)

// HealingAttempt is the runtime record of one healing execution, including
// the full execution log and whether rollback ran.
type HealingAttempt struct {
	ID                string            `json:"id"`
	IssueType         IssueType         `json:"issue_type"`
	Component         string            `json:"component"`
	Action            HealingActionType `json:"action"`
	StartTime         time.Time         `json:"start_time"`
	EndTime           *time.Time        `json:"end_time,omitempty"`
	Status            HealingStatus     `json:"status"`
	ExecutionLog      []string          `json:"execution_log"`
	RollbackPerformed bool              `json:"rollback_performed"`
	Output            string            `json:"output,omitempty"`
}

// ServiceRestartState tracks restart counters for observability. There is no
// backoff; restarts are bounded only by the healing concurrency cap.
type ServiceRestartState struct {
	RestartCount int       `json:"restart_count"`
	LastRestart  time.Time `json:"last_restart"`
}

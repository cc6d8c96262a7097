package models

import "time"

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is a monitoring event raised by an external producer. Recovery and
// escalation both key off the type/severity pair; Metric and CurrentValue
// carry the measurement that tripped the alert, when there is one.
type Alert struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Severity     AlertSeverity `json:"severity"`
	Component    string        `json:"component"`
	Message      string        `json:"message"`
	Status       AlertStatus   `json:"status"`
	Metric       string        `json:"metric,omitempty"`
	CurrentValue float64       `json:"current_value,omitempty"`
	Threshold    float64       `json:"threshold,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy   string        `json:"resolved_by,omitempty"`
}

// SeverityRank orders severities for comparisons (critical highest).
func SeverityRank(s AlertSeverity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

package models

import "time"

type EscalationLevel string

const (
	LevelL1Monitoring  EscalationLevel = "l1_monitoring"
	LevelL2Support     EscalationLevel = "l2_support"
	LevelL3Engineering EscalationLevel = "l3_engineering"
	LevelL4Management  EscalationLevel = "l4_management"
	LevelL5Executive   EscalationLevel = "l5_executive"
)

// EscalationLevelPriority orders the ladder. Escalation never moves to a
// level with lower priority than the current one.
func EscalationLevelPriority(l EscalationLevel) int {
	switch l {
	case LevelL1Monitoring:
		return 1
	case LevelL2Support:
		return 2
	case LevelL3Engineering:
		return 3
	case LevelL4Management:
		return 4
	case LevelL5Executive:
		return 5
	default:
		return 0
	}
}

// NextEscalationLevel returns the level above l, or l itself at the top.
func NextEscalationLevel(l EscalationLevel) EscalationLevel {
	switch l {
	case LevelL1Monitoring:
		return LevelL2Support
	case LevelL2Support:
		return LevelL3Engineering
	case LevelL3Engineering:
		return LevelL4Management
	case LevelL4Management:
		return LevelL5Executive
	default:
		return l
	}
}

type EscalationTrigger string

const (
	TriggerTimeThreshold       EscalationTrigger = "time_threshold"
	TriggerSeverityIncrease    EscalationTrigger = "severity_increase"
	TriggerManualRequest       EscalationTrigger = "manual_request"
	TriggerAutoRecoveryFailure EscalationTrigger = "auto_recovery_failure"
	TriggerBusinessImpact      EscalationTrigger = "business_impact"
	TriggerCustomerComplaints  EscalationTrigger = "customer_complaints"
)

type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelSlack NotificationChannel = "slack"
	ChannelPhone NotificationChannel = "phone"
)

// TeamMember is one entry in an on-call schedule.
type TeamMember struct {
	Name             string              `json:"name"`
	Email            string              `json:"email"`
	Phone            string              `json:"phone,omitempty"`
	PreferredChannel NotificationChannel `json:"preferred_channel"`
}

// OnCallSchedule maps an escalation level to its responders.
type OnCallSchedule struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Level     EscalationLevel `json:"level"`
	Primary   []TeamMember    `json:"primary"`
	Secondary []TeamMember    `json:"secondary,omitempty"`
}

// EscalationRule advances an escalation when its trigger fires, but only
// upward on the ladder.
type EscalationRule struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Trigger        EscalationTrigger `json:"trigger"`
	FromLevel      EscalationLevel   `json:"from_level,omitempty"`
	ToLevel        EscalationLevel   `json:"to_level"`
	AfterMinutes   int               `json:"after_minutes,omitempty"`
	MinSeverity    AlertSeverity     `json:"min_severity,omitempty"`
	BusinessHours  bool              `json:"business_hours_only,omitempty"`
}

type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

// BusinessImpact is the assessed blast radius of an incident.
type BusinessImpact struct {
	Level            ImpactLevel `json:"level"`
	EstimatedRevenue float64     `json:"estimated_revenue_loss"`
	AffectedUsers    int         `json:"affected_users"`
	CustomerFacing   bool        `json:"customer_facing"`
}

// EscalationStep records one rung of the ladder an incident has climbed.
type EscalationStep struct {
	Level             EscalationLevel   `json:"level"`
	Timestamp         time.Time         `json:"timestamp"`
	TriggeredBy       EscalationTrigger `json:"triggered_by"`
	AssignedTo        []string          `json:"assigned_to"`
	NotificationsSent int               `json:"notifications_sent"`
	Acknowledged      bool              `json:"acknowledged"`
	AcknowledgedBy    string            `json:"acknowledged_by,omitempty"`
	AcknowledgedAt    *time.Time        `json:"acknowledged_at,omitempty"`
}

type CommunicationStatus string

const (
	CommunicationSent      CommunicationStatus = "sent"
	CommunicationDelivered CommunicationStatus = "delivered"
	CommunicationFailed    CommunicationStatus = "failed"
)

// CommunicationEntry logs one notification dispatch.
type CommunicationEntry struct {
	Timestamp time.Time           `json:"timestamp"`
	Channel   NotificationChannel `json:"channel"`
	Recipient string              `json:"recipient"`
	Message   string              `json:"message"`
	Status    CommunicationStatus `json:"status"`
}

type EscalationStatus string

const (
	EscalationActive    EscalationStatus = "active"
	EscalationResolved  EscalationStatus = "resolved"
	EscalationCancelled EscalationStatus = "cancelled"
)

// IncidentEscalation tracks one alert climbing the ladder. There is at most
// one active escalation per alert id.
type IncidentEscalation struct {
	ID               string               `json:"id"`
	AlertID          string               `json:"alert_id"`
	CurrentLevel     EscalationLevel      `json:"current_level"`
	EscalationPath   []EscalationStep     `json:"escalation_path"`
	Status           EscalationStatus     `json:"status"`
	BusinessImpact   BusinessImpact       `json:"business_impact"`
	CommunicationLog []CommunicationEntry `json:"communication_log"`
	StartTime        time.Time            `json:"start_time"`
	EndTime          *time.Time           `json:"end_time,omitempty"`
	ResolvedBy       string               `json:"resolved_by,omitempty"`
	ResolutionNotes  string               `json:"resolution_notes,omitempty"`
}

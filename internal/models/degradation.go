package models

import "time"

type DegradationLevel string

const (
	DegradationNone      DegradationLevel = "none"
	DegradationMinimal   DegradationLevel = "minimal"
	DegradationModerate  DegradationLevel = "moderate"
	DegradationSevere    DegradationLevel = "severe"
	DegradationEmergency DegradationLevel = "emergency"
)

// DegradationLevelRank orders levels for worst-level aggregation.
func DegradationLevelRank(l DegradationLevel) int {
	switch l {
	case DegradationEmergency:
		return 4
	case DegradationSevere:
		return 3
	case DegradationModerate:
		return 2
	case DegradationMinimal:
		return 1
	default:
		return 0
	}
}

type TriggerType string

const (
	TriggerMetricThreshold    TriggerType = "metric_threshold"
	TriggerServiceUnavailable TriggerType = "service_unavailable"
	TriggerErrorRate          TriggerType = "error_rate"
	TriggerResponseTime       TriggerType = "response_time"
	TriggerManual             TriggerType = "manual"
)

type CompareOperator string

const (
	OpGreater      CompareOperator = ">"
	OpLess         CompareOperator = "<"
	OpGreaterEqual CompareOperator = ">="
	OpLessEqual    CompareOperator = "<="
	OpEqual        CompareOperator = "="
	OpNotEqual     CompareOperator = "!="
)

// InvertOperator returns the comparison used for revert evaluation: the
// complement of the activation comparison.
func InvertOperator(op CompareOperator) CompareOperator {
	switch op {
	case OpGreater:
		return OpLessEqual
	case OpLess:
		return OpGreaterEqual
	case OpGreaterEqual:
		return OpLess
	case OpLessEqual:
		return OpGreater
	case OpEqual:
		return OpNotEqual
	case OpNotEqual:
		return OpEqual
	default:
		return op
	}
}

// DegradationTrigger is one activation condition. Type selects which fields
// are meaningful: metric triggers use Metric/Operator/Threshold, service
// triggers use Service, rate/latency triggers use Metric/Threshold, and
// manual triggers use Activated.
type DegradationTrigger struct {
	Type      TriggerType     `json:"type"`
	Metric    string          `json:"metric,omitempty"`
	Operator  CompareOperator `json:"operator,omitempty"`
	Threshold float64         `json:"threshold,omitempty"`
	Service   string          `json:"service,omitempty"`
	Activated bool            `json:"activated,omitempty"`
}

type TriggerAggregation string

const (
	AggregationAll TriggerAggregation = "all"
	AggregationAny TriggerAggregation = "any"
)

type DegradationActionType string

const (
	ActionDisableFeature      DegradationActionType = "disable_feature"
	ActionReduceFunctionality DegradationActionType = "reduce_functionality"
	ActionCacheFallback       DegradationActionType = "cache_fallback"
	ActionStaticContent       DegradationActionType = "static_content"
	ActionSimplifiedUI        DegradationActionType = "simplified_ui"
	ActionRateLimit           DegradationActionType = "rate_limit"
	ActionQueueRequests       DegradationActionType = "queue_requests"
	ActionRedirectTraffic     DegradationActionType = "redirect_traffic"
)

// DegradationAction describes one mitigation applied on activation.
type DegradationAction struct {
	Type       DegradationActionType `json:"type"`
	Target     string                `json:"target"`
	Parameters map[string]string     `json:"parameters,omitempty"`
}

// RevertConditions require the inverse triggers to hold continuously for
// DurationMinutes before a degradation reverts.
type RevertConditions struct {
	DurationMinutes int `json:"duration_minutes"`
}

type DegradationConditions struct {
	Triggers    []DegradationTrigger `json:"triggers"`
	Aggregation TriggerAggregation   `json:"aggregation"`
}

type DegradationRule struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Conditions       DegradationConditions `json:"conditions"`
	Actions          []DegradationAction   `json:"actions"`
	Level            DegradationLevel      `json:"level"`
	Priority         int                   `json:"priority"`
	AutoRevert       bool                  `json:"auto_revert"`
	RevertConditions RevertConditions      `json:"revert_conditions"`
}

// ActiveDegradation tracks one in-flight degradation. At most one instance
// exists per rule id.
type ActiveDegradation struct {
	ID               string                  `json:"id"`
	RuleID           string                  `json:"rule_id"`
	Level            DegradationLevel        `json:"level"`
	StartTime        time.Time               `json:"start_time"`
	EndTime          *time.Time              `json:"end_time,omitempty"`
	ActionsApplied   []DegradationActionType `json:"actions_applied"`
	AffectedFeatures []string                `json:"affected_features"`
	UserImpact       string                  `json:"user_impact"` // low, medium, high
	RevertSince      *time.Time              `json:"-"`
}

// FeatureState tracks a feature's normal and degraded operating modes.
type FeatureState struct {
	FeatureID        string           `json:"feature_id"`
	NormalState      string           `json:"normal_state"`
	DegradedState    string           `json:"degraded_state"`
	CurrentState     string           `json:"current_state"`
	IsDegraded       bool             `json:"is_degraded"`
	DegradationLevel DegradationLevel `json:"degradation_level"`
}

// DegradationEvent records an activation or reversion for the audit trail.
type DegradationEvent struct {
	RuleID    string           `json:"rule_id"`
	Level     DegradationLevel `json:"level"`
	Event     string           `json:"event"` // activated, reverted
	Timestamp time.Time        `json:"timestamp"`
	Reason    string           `json:"reason,omitempty"`
}

package models

import "time"

type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// Circuit is the externally visible snapshot of one breaker.
type Circuit struct {
	ID              string       `json:"id"`
	State           CircuitState `json:"state"`
	FailureCount    int          `json:"failure_count"`
	SuccessCount    int          `json:"success_count"`
	LastFailureTime *time.Time   `json:"last_failure_time,omitempty"`
}

// CircuitStats extends the snapshot with request counters for the stats endpoint.
type CircuitStats struct {
	Circuit
	TotalRequests        int `json:"total_requests"`
	ConsecutiveSuccesses int `json:"consecutive_successes"`
	ConsecutiveFailures  int `json:"consecutive_failures"`
}

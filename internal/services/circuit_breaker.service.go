package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/platformbuilds/recovery-core/internal/metrics"
	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

// failureThreshold opens a circuit after this many consecutive failures.
const circuitFailureThreshold = 5

// circuitCooldown is how long an open circuit waits before allowing a trial call.
const circuitCooldown = 30 * time.Second

var errCircuitForcedOpen = fmt.Errorf("circuit forced open by operator")

// CircuitBreakerService tracks one breaker per downstream target. Breakers
// are created lazily on first call. Reset swaps in a fresh breaker; force-open
// short-circuits calls until the next reset.
type CircuitBreakerService struct {
	mu       sync.RWMutex
	circuits map[string]*circuitEntry
	logger   logger.Logger
}

type circuitEntry struct {
	breaker      *gobreaker.CircuitBreaker
	forcedOpen   bool
	successCount int
	lastFailure  *time.Time
}

func NewCircuitBreakerService(log logger.Logger) *CircuitBreakerService {
	return &CircuitBreakerService{
		circuits: make(map[string]*circuitEntry),
		logger:   log,
	}
}

func (s *CircuitBreakerService) newBreaker(id string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        id,
		MaxRequests: 1,
		Timeout:     circuitCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= circuitFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Info("Circuit state changed", "circuit", name, "from", from.String(), "to", to.String())
			metrics.CircuitTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitState.WithLabelValues(name).Set(stateGaugeValue(to))
		},
	})
}

func stateGaugeValue(st gobreaker.State) float64 {
	switch st {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

func mapState(st gobreaker.State) models.CircuitState {
	switch st {
	case gobreaker.StateOpen:
		return models.CircuitOpen
	case gobreaker.StateHalfOpen:
		return models.CircuitHalfOpen
	default:
		return models.CircuitClosed
	}
}

func (s *CircuitBreakerService) entry(id string) *circuitEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.circuits[id]
	if !ok {
		e = &circuitEntry{breaker: s.newBreaker(id)}
		s.circuits[id] = e
	}
	return e
}

// Call executes fn behind the target's breaker. While the circuit is open or
// forced open the call fails fast without invoking fn.
func (s *CircuitBreakerService) Call(targetID string, fn func() (interface{}, error)) (interface{}, error) {
	e := s.entry(targetID)

	s.mu.RLock()
	forced := e.forcedOpen
	s.mu.RUnlock()
	if forced {
		return nil, errCircuitForcedOpen
	}

	result, err := e.breaker.Execute(fn)

	s.mu.Lock()
	if err != nil {
		now := time.Now()
		e.lastFailure = &now
	} else {
		e.successCount++
	}
	s.mu.Unlock()

	return result, err
}

func (s *CircuitBreakerService) snapshot(id string, e *circuitEntry) models.Circuit {
	state := mapState(e.breaker.State())
	if e.forcedOpen {
		state = models.CircuitOpen
	}
	counts := e.breaker.Counts()
	return models.Circuit{
		ID:              id,
		State:           state,
		FailureCount:    int(counts.ConsecutiveFailures),
		SuccessCount:    e.successCount,
		LastFailureTime: e.lastFailure,
	}
}

// GetAllCircuits returns a snapshot of every known circuit.
func (s *CircuitBreakerService) GetAllCircuits() []models.Circuit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Circuit, 0, len(s.circuits))
	for id, e := range s.circuits {
		out = append(out, s.snapshot(id, e))
	}
	return out
}

// GetCircuitStats returns detailed counters for one circuit.
func (s *CircuitBreakerService) GetCircuitStats(id string) (*models.CircuitStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.circuits[id]
	if !ok {
		return nil, fmt.Errorf("circuit not found: %s", id)
	}
	counts := e.breaker.Counts()
	return &models.CircuitStats{
		Circuit:              s.snapshot(id, e),
		TotalRequests:        int(counts.Requests),
		ConsecutiveSuccesses: int(counts.ConsecutiveSuccesses),
		ConsecutiveFailures:  int(counts.ConsecutiveFailures),
	}, nil
}

// ResetCircuit closes the circuit and zeroes its counters. Manual override,
// always succeeds if the circuit exists.
func (s *CircuitBreakerService) ResetCircuit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.circuits[id]
	if !ok {
		return fmt.Errorf("circuit not found: %s", id)
	}
	e.breaker = s.newBreaker(id)
	e.forcedOpen = false
	e.successCount = 0
	e.lastFailure = nil
	metrics.CircuitState.WithLabelValues(id).Set(0)
	s.logger.Info("Circuit reset", "circuit", id)
	return nil
}

// ResetAllCircuits resets every circuit and returns how many were reset.
func (s *CircuitBreakerService) ResetAllCircuits() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.circuits {
		e.breaker = s.newBreaker(id)
		e.forcedOpen = false
		e.successCount = 0
		e.lastFailure = nil
		metrics.CircuitState.WithLabelValues(id).Set(0)
	}
	s.logger.Info("All circuits reset", "count", len(s.circuits))
	return len(s.circuits)
}

// ForceOpenCircuit trips the circuit until the next reset.
func (s *CircuitBreakerService) ForceOpenCircuit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.circuits[id]
	if !ok {
		return fmt.Errorf("circuit not found: %s", id)
	}
	e.forcedOpen = true
	metrics.CircuitState.WithLabelValues(id).Set(2)
	s.logger.Warn("Circuit forced open", "circuit", id)
	return nil
}

// GetStatus reports subsystem health: unhealthy if any circuit is open,
// degraded if any is half-open.
func (s *CircuitBreakerService) GetStatus() models.ComponentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := models.ComponentStatus{
		Status:  models.HealthHealthy,
		Enabled: true,
		Issues:  []string{},
	}

	openCount := 0
	halfOpenCount := 0
	for id, e := range s.circuits {
		snap := s.snapshot(id, e)
		switch snap.State {
		case models.CircuitOpen:
			openCount++
			status.Issues = append(status.Issues, fmt.Sprintf("circuit %s is open", id))
		case models.CircuitHalfOpen:
			halfOpenCount++
			status.Issues = append(status.Issues, fmt.Sprintf("circuit %s is half-open", id))
		}
	}

	if openCount > 0 {
		status.Status = models.HealthUnhealthy
	} else if halfOpenCount > 0 {
		status.Status = models.HealthDegraded
	}

	status.Details = map[string]interface{}{
		"total_circuits": len(s.circuits),
		"open":           openCount,
		"half_open":      halfOpenCount,
	}
	return status
}

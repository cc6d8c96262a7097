package services

import (
	"fmt"
	"testing"

	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	svc := NewCircuitBreakerService(logger.NewNop())

	failing := func() (interface{}, error) { return nil, fmt.Errorf("payment gateway timeout") }

	for i := 0; i < circuitFailureThreshold; i++ {
		if _, err := svc.Call("payments", failing); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}

	stats, err := svc.GetCircuitStats("payments")
	if err != nil {
		t.Fatalf("GetCircuitStats failed: %v", err)
	}
	if stats.State != models.CircuitOpen {
		t.Errorf("expected open circuit after %d failures, got %s", circuitFailureThreshold, stats.State)
	}

	// Open circuit fails fast without invoking the function.
	invoked := false
	if _, err := svc.Call("payments", func() (interface{}, error) {
		invoked = true
		return "ok", nil
	}); err == nil {
		t.Fatal("expected fast failure while circuit is open")
	}
	if invoked {
		t.Error("function must not run while circuit is open")
	}
}

func TestCircuitStaysClosedOnSuccess(t *testing.T) {
	svc := NewCircuitBreakerService(logger.NewNop())

	for i := 0; i < 10; i++ {
		result, err := svc.Call("inventory", func() (interface{}, error) { return "stock", nil })
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "stock" {
			t.Fatalf("unexpected result: %v", result)
		}
	}

	stats, err := svc.GetCircuitStats("inventory")
	if err != nil {
		t.Fatalf("GetCircuitStats failed: %v", err)
	}
	if stats.State != models.CircuitClosed {
		t.Errorf("expected closed circuit, got %s", stats.State)
	}
	if stats.SuccessCount != 10 {
		t.Errorf("expected 10 successes, got %d", stats.SuccessCount)
	}
}

func TestMixedFailuresDoNotOpenCircuit(t *testing.T) {
	svc := NewCircuitBreakerService(logger.NewNop())

	// Failures interleaved with successes never reach the consecutive
	// threshold.
	for i := 0; i < 12; i++ {
		if i%3 == 0 {
			svc.Call("search", func() (interface{}, error) { return nil, fmt.Errorf("transient") })
		} else {
			svc.Call("search", func() (interface{}, error) { return "hit", nil })
		}
	}

	stats, err := svc.GetCircuitStats("search")
	if err != nil {
		t.Fatalf("GetCircuitStats failed: %v", err)
	}
	if stats.State != models.CircuitClosed {
		t.Errorf("expected closed circuit, got %s", stats.State)
	}
}

func TestResetCircuitClosesAndZeroes(t *testing.T) {
	svc := NewCircuitBreakerService(logger.NewNop())

	for i := 0; i < circuitFailureThreshold; i++ {
		svc.Call("payments", func() (interface{}, error) { return nil, fmt.Errorf("down") })
	}

	if err := svc.ResetCircuit("payments"); err != nil {
		t.Fatalf("ResetCircuit failed: %v", err)
	}
	stats, err := svc.GetCircuitStats("payments")
	if err != nil {
		t.Fatalf("GetCircuitStats failed: %v", err)
	}
	if stats.State != models.CircuitClosed {
		t.Errorf("expected closed circuit after reset, got %s", stats.State)
	}
	if stats.ConsecutiveFailures != 0 {
		t.Errorf("expected zeroed counters after reset, got %d failures", stats.ConsecutiveFailures)
	}

	if _, err := svc.Call("payments", func() (interface{}, error) { return "ok", nil }); err != nil {
		t.Fatalf("call after reset should pass through: %v", err)
	}
}

func TestResetCircuitUnknownID(t *testing.T) {
	svc := NewCircuitBreakerService(logger.NewNop())
	if err := svc.ResetCircuit("nope"); err == nil {
		t.Fatal("expected error for unknown circuit")
	}
}

func TestResetAllCircuitsReturnsCount(t *testing.T) {
	svc := NewCircuitBreakerService(logger.NewNop())
	svc.Call("a", func() (interface{}, error) { return nil, nil })
	svc.Call("b", func() (interface{}, error) { return nil, nil })
	svc.Call("c", func() (interface{}, error) { return nil, nil })

	if n := svc.ResetAllCircuits(); n != 3 {
		t.Errorf("expected 3 circuits reset, got %d", n)
	}
}

func TestForceOpenCircuit(t *testing.T) {
	svc := NewCircuitBreakerService(logger.NewNop())
	svc.Call("payments", func() (interface{}, error) { return "ok", nil })

	if err := svc.ForceOpenCircuit("payments"); err != nil {
		t.Fatalf("ForceOpenCircuit failed: %v", err)
	}
	if _, err := svc.Call("payments", func() (interface{}, error) { return "ok", nil }); err == nil {
		t.Fatal("expected failure while forced open")
	}

	stats, err := svc.GetCircuitStats("payments")
	if err != nil {
		t.Fatalf("GetCircuitStats failed: %v", err)
	}
	if stats.State != models.CircuitOpen {
		t.Errorf("forced circuit should report open, got %s", stats.State)
	}

	// Reset clears the forced-open override.
	if err := svc.ResetCircuit("payments"); err != nil {
		t.Fatalf("ResetCircuit failed: %v", err)
	}
	if _, err := svc.Call("payments", func() (interface{}, error) { return "ok", nil }); err != nil {
		t.Fatalf("call after reset failed: %v", err)
	}
}

func TestCircuitStatusReflectsOpenCircuits(t *testing.T) {
	svc := NewCircuitBreakerService(logger.NewNop())

	svc.Call("healthy", func() (interface{}, error) { return "ok", nil })
	if got := svc.GetStatus(); got.Status != models.HealthHealthy {
		t.Fatalf("expected healthy, got %s", got.Status)
	}

	for i := 0; i < circuitFailureThreshold; i++ {
		svc.Call("payments", func() (interface{}, error) { return nil, fmt.Errorf("down") })
	}
	got := svc.GetStatus()
	if got.Status != models.HealthUnhealthy {
		t.Fatalf("expected unhealthy with open circuit, got %s", got.Status)
	}
	if len(got.Issues) == 0 {
		t.Error("expected issues to name the open circuit")
	}
}

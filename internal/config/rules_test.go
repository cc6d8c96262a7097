package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/platformbuilds/recovery-core/internal/models"
)

const sampleRules = `
actions:
  - id: cache-node-saturation
    name: Cache Node Saturation
    severity: high
    conditions:
      metric_thresholds:
        - metric: cache_memory_usage
          threshold: 90
      alert_types:
        - cache_saturation
    actions:
      immediate:
        - type: clear_cache
          target: session-cache
          timeout_seconds: 30
          retry_count: 1
          success_condition: "metric_threshold:cache_memory_usage:lt:80"
      fallback:
        - type: restart_service
          target: cache-node
          timeout_seconds: 120
          success_condition: "service_status:cache-node"
    max_retries: 2
    cooldown_period_minutes: 10
    auto_execute: true
`

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func TestLoadRecoveryRules(t *testing.T) {
	actions, err := LoadRecoveryRules(writeRules(t, sampleRules))
	if err != nil {
		t.Fatalf("LoadRecoveryRules failed: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}

	a := actions[0]
	if a.ID != "cache-node-saturation" {
		t.Errorf("unexpected id %q", a.ID)
	}
	if a.Severity != models.SeverityHigh {
		t.Errorf("unexpected severity %q", a.Severity)
	}
	if len(a.Conditions.MetricThresholds) != 1 || a.Conditions.MetricThresholds[0].Threshold != 90 {
		t.Errorf("unexpected thresholds %+v", a.Conditions.MetricThresholds)
	}
	if len(a.Actions.Immediate) != 1 || a.Actions.Immediate[0].Type != models.StepClearCache {
		t.Errorf("unexpected immediate steps %+v", a.Actions.Immediate)
	}
	if len(a.Actions.Fallback) != 1 || a.Actions.Fallback[0].SuccessCondition != "service_status:cache-node" {
		t.Errorf("unexpected fallback steps %+v", a.Actions.Fallback)
	}
	if !a.AutoExecute || a.CooldownPeriodMinutes != 10 {
		t.Errorf("unexpected execution settings %+v", a)
	}
}

func TestLoadRecoveryRulesRejectsMissingID(t *testing.T) {
	_, err := LoadRecoveryRules(writeRules(t, "actions:\n  - name: no id\n"))
	if err == nil {
		t.Fatal("expected error for action without id")
	}
}

func TestLoadRecoveryRulesRejectsEmptyImmediate(t *testing.T) {
	_, err := LoadRecoveryRules(writeRules(t, "actions:\n  - id: r1\n"))
	if err == nil {
		t.Fatal("expected error for action without immediate steps")
	}
}

func TestLoadRecoveryRulesMissingFile(t *testing.T) {
	if _, err := LoadRecoveryRules("/nonexistent/rules.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

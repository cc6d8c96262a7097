package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/recovery-core/internal/models"
)

// Recovery actions are seeded in code; a rules file replaces or extends that
// pack without a rebuild. The YAML shape mirrors models.RecoveryAction.

type recoveryRulesFile struct {
	Actions []recoveryActionRule `yaml:"actions"`
}

type recoveryActionRule struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Severity   string `yaml:"severity"`
	Conditions struct {
		MetricThresholds []struct {
			Metric    string  `yaml:"metric"`
			Threshold float64 `yaml:"threshold"`
		} `yaml:"metric_thresholds"`
		AlertTypes          []string `yaml:"alert_types"`
		DurationMinutes     int      `yaml:"duration_minutes"`
		ConsecutiveFailures int      `yaml:"consecutive_failures"`
	} `yaml:"conditions"`
	Actions struct {
		Immediate  []recoveryStepRule `yaml:"immediate"`
		Fallback   []recoveryStepRule `yaml:"fallback"`
		Escalation []recoveryStepRule `yaml:"escalation"`
	} `yaml:"actions"`
	MaxRetries            int  `yaml:"max_retries"`
	CooldownPeriodMinutes int  `yaml:"cooldown_period_minutes"`
	AutoExecute           bool `yaml:"auto_execute"`
}

type recoveryStepRule struct {
	Type             string            `yaml:"type"`
	Target           string            `yaml:"target"`
	Parameters       map[string]string `yaml:"parameters"`
	TimeoutSeconds   int               `yaml:"timeout_seconds"`
	RetryCount       int               `yaml:"retry_count"`
	SuccessCondition string            `yaml:"success_condition"`
}

// LoadRecoveryRules parses a YAML rules file into recovery actions, in file
// order. Each action must carry an id and at least one immediate step.
func LoadRecoveryRules(path string) ([]models.RecoveryAction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file recoveryRulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	actions := make([]models.RecoveryAction, 0, len(file.Actions))
	for i, rule := range file.Actions {
		if rule.ID == "" {
			return nil, fmt.Errorf("rules file action %d has no id", i)
		}
		if len(rule.Actions.Immediate) == 0 {
			return nil, fmt.Errorf("recovery action %s has no immediate steps", rule.ID)
		}
		actions = append(actions, models.RecoveryAction{
			ID:       rule.ID,
			Name:     rule.Name,
			Severity: models.AlertSeverity(rule.Severity),
			Conditions: models.RecoveryConditions{
				MetricThresholds:    convertThresholds(rule),
				AlertTypes:          rule.Conditions.AlertTypes,
				DurationMinutes:     rule.Conditions.DurationMinutes,
				ConsecutiveFailures: rule.Conditions.ConsecutiveFailures,
			},
			Actions: models.RecoveryActions{
				Immediate:  convertSteps(rule.Actions.Immediate),
				Fallback:   convertSteps(rule.Actions.Fallback),
				Escalation: convertSteps(rule.Actions.Escalation),
			},
			MaxRetries:            rule.MaxRetries,
			CooldownPeriodMinutes: rule.CooldownPeriodMinutes,
			AutoExecute:           rule.AutoExecute,
		})
	}
	return actions, nil
}

func convertThresholds(rule recoveryActionRule) []models.MetricThreshold {
	if len(rule.Conditions.MetricThresholds) == 0 {
		return nil
	}
	thresholds := make([]models.MetricThreshold, 0, len(rule.Conditions.MetricThresholds))
	for _, t := range rule.Conditions.MetricThresholds {
		thresholds = append(thresholds, models.MetricThreshold{Metric: t.Metric, Threshold: t.Threshold})
	}
	return thresholds
}

func convertSteps(rules []recoveryStepRule) []models.RecoveryStep {
	if len(rules) == 0 {
		return nil
	}
	steps := make([]models.RecoveryStep, 0, len(rules))
	for _, r := range rules {
		steps = append(steps, models.RecoveryStep{
			Type:             models.RecoveryStepType(r.Type),
			Target:           r.Target,
			Parameters:       r.Parameters,
			TimeoutSeconds:   r.TimeoutSeconds,
			RetryCount:       r.RetryCount,
			SuccessCondition: r.SuccessCondition,
		})
	}
	return steps
}

package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.Recovery.MaxConcurrentRecoveries != 5 {
		t.Errorf("expected default recovery concurrency 5, got %d", cfg.Recovery.MaxConcurrentRecoveries)
	}
	if cfg.Healing.MaxConcurrentHealing != 3 {
		t.Errorf("expected default healing concurrency 3, got %d", cfg.Healing.MaxConcurrentHealing)
	}
	if cfg.Recovery.GlobalCooldownSeconds != 300 {
		t.Errorf("expected default global cooldown 300s, got %d", cfg.Recovery.GlobalCooldownSeconds)
	}
	if cfg.Degradation.EvaluationIntervalSeconds != 30 {
		t.Errorf("expected default degradation interval 30s, got %d", cfg.Degradation.EvaluationIntervalSeconds)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("expected port override 9090, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level override debug, got %s", cfg.LogLevel)
	}
	if !cfg.Integrations.Slack.Enabled {
		t.Error("expected slack integration enabled by env var")
	}
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad environment", func(c *Config) { c.Environment = "qa" }},
		{"zero recovery concurrency", func(c *Config) { c.Recovery.MaxConcurrentRecoveries = 0 }},
		{"zero healing concurrency", func(c *Config) { c.Healing.MaxConcurrentHealing = 0 }},
		{"inverted business hours", func(c *Config) {
			c.Escalation.BusinessHoursStart = 17
			c.Escalation.BusinessHoursEnd = 9
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tc.mutate(cfg)
			if err := validateConfig(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

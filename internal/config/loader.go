package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from various sources with priority order:
// 1. Environment variables
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	// Initialize Viper
	v := viper.New()

	// Set configuration file details
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/recovery/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	// Enable environment variable support
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("RECOVERY")

	// Set default values
	setDefaults(v)

	// Read configuration file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults
	}

	// Override with environment variables
	overrideWithEnvVars(v)

	// Unmarshal to config struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets reasonable default values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// Cache defaults (Valkey)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.nodes", []string{"localhost:6379"})
	v.SetDefault("cache.ttl", 300) // 5 minutes
	v.SetDefault("cache.db", 0)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.exposed_headers", []string{"X-Cache", "X-Rate-Limit-Remaining"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 3600)

	// Integrations defaults
	v.SetDefault("integrations.slack.enabled", false)
	v.SetDefault("integrations.ms_teams.enabled", false)
	v.SetDefault("integrations.email.enabled", false)
	v.SetDefault("integrations.email.smtp_port", 587)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.prometheus_enabled", true)

	// Recovery engine defaults
	v.SetDefault("recovery.enabled", true)
	v.SetDefault("recovery.max_concurrent_recoveries", 5)
	v.SetDefault("recovery.global_cooldown_seconds", 300)
	v.SetDefault("recovery.history_limit", 1000)
	v.SetDefault("recovery.history_retention_days", 7)
	v.SetDefault("recovery.queue_size", 100)
	v.SetDefault("recovery.monitor_interval_seconds", 30)
	v.SetDefault("recovery.validation_delay_seconds", 10)
	v.SetDefault("recovery.maintenance_interval_seconds", 60)

	// Self-healing defaults
	v.SetDefault("healing.enabled", true)
	v.SetDefault("healing.max_concurrent_healing", 3)
	v.SetDefault("healing.history_limit", 100)
	v.SetDefault("healing.interval_seconds", 60)

	// Degradation defaults
	v.SetDefault("degradation.enabled", true)
	v.SetDefault("degradation.evaluation_interval_seconds", 30)
	v.SetDefault("degradation.default_error_rate_threshold", 10)
	v.SetDefault("degradation.default_response_time_ms", 5000)
	v.SetDefault("degradation.long_running_warn_minutes", 30)

	// Escalation defaults
	v.SetDefault("escalation.enabled", true)
	v.SetDefault("escalation.check_interval_seconds", 60)
	v.SetDefault("escalation.business_hours_start", 9)
	v.SetDefault("escalation.business_hours_end", 17)

	// Deployment monitoring defaults
	v.SetDefault("deployment.enabled", true)
	v.SetDefault("deployment.monitor_interval_seconds", 120)
	v.SetDefault("deployment.auto_rollback_enabled", true)
	v.SetDefault("deployment.stabilization_minutes", 15)
	v.SetDefault("deployment.monitoring_minutes", 60)

	// Probe defaults
	v.SetDefault("probes.timeout_seconds", 5)
}

// overrideWithEnvVars explicitly handles environment variable overrides
func overrideWithEnvVars(v *viper.Viper) {
	// Server configuration
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("port", p)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", logLevel)
	}

	// Valkey cache nodes
	if cacheNodes := os.Getenv("VALKEY_CACHE_NODES"); cacheNodes != "" {
		nodes := strings.Split(cacheNodes, ",")
		for i, node := range nodes {
			nodes[i] = strings.TrimSpace(node)
		}
		v.Set("cache.nodes", nodes)
	}

	if cacheTTL := os.Getenv("CACHE_TTL"); cacheTTL != "" {
		if ttl, err := strconv.Atoi(cacheTTL); err == nil {
			v.Set("cache.ttl", ttl)
		}
	}

	// Engine toggles
	if enabled := os.Getenv("RECOVERY_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			v.Set("recovery.enabled", b)
		}
	}

	if enabled := os.Getenv("AUTO_ROLLBACK_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			v.Set("deployment.auto_rollback_enabled", b)
		}
	}

	// External integrations
	if slackWebhook := os.Getenv("SLACK_WEBHOOK_URL"); slackWebhook != "" {
		v.Set("integrations.slack.webhook_url", slackWebhook)
		v.Set("integrations.slack.enabled", true)
	}

	if teamsWebhook := os.Getenv("TEAMS_WEBHOOK_URL"); teamsWebhook != "" {
		v.Set("integrations.ms_teams.webhook_url", teamsWebhook)
		v.Set("integrations.ms_teams.enabled", true)
	}

	if smtpHost := os.Getenv("SMTP_HOST"); smtpHost != "" {
		v.Set("integrations.email.smtp_host", smtpHost)
		v.Set("integrations.email.enabled", true)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	// Validate port range
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	// Validate environment
	validEnvironments := []string{"development", "staging", "production", "test"}
	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	// Validate cache settings
	if config.Cache.Enabled && len(config.Cache.Nodes) == 0 {
		return fmt.Errorf("at least one Valkey cache node is required when cache is enabled")
	}

	if config.Cache.TTL < 1 {
		return fmt.Errorf("cache TTL must be at least 1 second")
	}

	// Validate engine limits
	if config.Recovery.MaxConcurrentRecoveries < 1 {
		return fmt.Errorf("recovery max_concurrent_recoveries must be at least 1")
	}

	if config.Healing.MaxConcurrentHealing < 1 {
		return fmt.Errorf("healing max_concurrent_healing must be at least 1")
	}

	if config.Recovery.QueueSize < 1 {
		return fmt.Errorf("recovery queue_size must be at least 1")
	}

	// Validate business hours
	if config.Escalation.BusinessHoursStart < 0 || config.Escalation.BusinessHoursStart > 23 {
		return fmt.Errorf("invalid business_hours_start: %d", config.Escalation.BusinessHoursStart)
	}

	if config.Escalation.BusinessHoursEnd < 0 || config.Escalation.BusinessHoursEnd > 23 {
		return fmt.Errorf("invalid business_hours_end: %d", config.Escalation.BusinessHoursEnd)
	}

	if config.Escalation.BusinessHoursEnd <= config.Escalation.BusinessHoursStart {
		return fmt.Errorf("business_hours_end must be after business_hours_start")
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

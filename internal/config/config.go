package config

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	CORS         CORSConfig         `mapstructure:"cors" yaml:"cors"`
	Integrations IntegrationsConfig `mapstructure:"integrations" yaml:"integrations"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring" yaml:"monitoring"`
	Recovery     RecoveryConfig     `mapstructure:"recovery" yaml:"recovery"`
	Healing      HealingConfig      `mapstructure:"healing" yaml:"healing"`
	Degradation  DegradationConfig  `mapstructure:"degradation" yaml:"degradation"`
	Escalation   EscalationConfig   `mapstructure:"escalation" yaml:"escalation"`
	Deployment   DeploymentConfig   `mapstructure:"deployment" yaml:"deployment"`
	Probes       ProbesConfig       `mapstructure:"probes" yaml:"probes"`
}

// CacheConfig handles Valkey caching configuration
type CacheConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	Nodes    []string `mapstructure:"nodes" yaml:"nodes"`
	TTL      int      `mapstructure:"ttl" yaml:"ttl"` // seconds
	Password string   `mapstructure:"password" yaml:"password"`
	DB       int      `mapstructure:"db" yaml:"db"`
}

// CORSConfig handles Cross-Origin Resource Sharing
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// IntegrationsConfig handles external service integrations
type IntegrationsConfig struct {
	Slack   SlackConfig   `mapstructure:"slack" yaml:"slack"`
	MSTeams MSTeamsConfig `mapstructure:"ms_teams" yaml:"ms_teams"`
	Email   EmailConfig   `mapstructure:"email" yaml:"email"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

type MSTeamsConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

type EmailConfig struct {
	SMTPHost    string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort    int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	FromAddress string `mapstructure:"from_address" yaml:"from_address"`
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
}

// MonitoringConfig handles self-monitoring configuration
type MonitoringConfig struct {
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath       string `mapstructure:"metrics_path" yaml:"metrics_path"`
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled" yaml:"prometheus_enabled"`
}

// RecoveryConfig controls the automated alert-driven recovery engine
type RecoveryConfig struct {
	RulesFile               string `mapstructure:"rules_file" yaml:"rules_file"`
	Enabled                 bool   `mapstructure:"enabled" yaml:"enabled"`
	MaxConcurrentRecoveries int    `mapstructure:"max_concurrent_recoveries" yaml:"max_concurrent_recoveries"`
	GlobalCooldownSeconds   int    `mapstructure:"global_cooldown_seconds" yaml:"global_cooldown_seconds"`
	HistoryLimit            int    `mapstructure:"history_limit" yaml:"history_limit"`
	HistoryRetentionDays    int    `mapstructure:"history_retention_days" yaml:"history_retention_days"`
	QueueSize               int    `mapstructure:"queue_size" yaml:"queue_size"`
	MonitorIntervalSeconds  int    `mapstructure:"monitor_interval_seconds" yaml:"monitor_interval_seconds"`
	ValidationDelaySeconds  int    `mapstructure:"validation_delay_seconds" yaml:"validation_delay_seconds"`
	MaintenanceIntervalSecs int    `mapstructure:"maintenance_interval_seconds" yaml:"maintenance_interval_seconds"`
}

// HealingConfig controls the metric-driven self-healing engine
type HealingConfig struct {
	Enabled              bool `mapstructure:"enabled" yaml:"enabled"`
	MaxConcurrentHealing int  `mapstructure:"max_concurrent_healing" yaml:"max_concurrent_healing"`
	HistoryLimit         int  `mapstructure:"history_limit" yaml:"history_limit"`
	IntervalSeconds      int  `mapstructure:"interval_seconds" yaml:"interval_seconds"`
}

// DegradationConfig controls graceful degradation evaluation
type DegradationConfig struct {
	Enabled                   bool    `mapstructure:"enabled" yaml:"enabled"`
	EvaluationIntervalSeconds int     `mapstructure:"evaluation_interval_seconds" yaml:"evaluation_interval_seconds"`
	DefaultErrorRateThreshold float64 `mapstructure:"default_error_rate_threshold" yaml:"default_error_rate_threshold"`
	DefaultResponseTimeMs     float64 `mapstructure:"default_response_time_ms" yaml:"default_response_time_ms"`
	LongRunningWarnMinutes    int     `mapstructure:"long_running_warn_minutes" yaml:"long_running_warn_minutes"`
}

// EscalationConfig controls incident escalation
type EscalationConfig struct {
	Enabled              bool `mapstructure:"enabled" yaml:"enabled"`
	CheckIntervalSeconds int  `mapstructure:"check_interval_seconds" yaml:"check_interval_seconds"`
	BusinessHoursStart   int  `mapstructure:"business_hours_start" yaml:"business_hours_start"` // hour of day, local time
	BusinessHoursEnd     int  `mapstructure:"business_hours_end" yaml:"business_hours_end"`
}

// DeploymentConfig controls deployment monitoring and rollback
type DeploymentConfig struct {
	Enabled                bool `mapstructure:"enabled" yaml:"enabled"`
	MonitorIntervalSeconds int  `mapstructure:"monitor_interval_seconds" yaml:"monitor_interval_seconds"`
	AutoRollbackEnabled    bool `mapstructure:"auto_rollback_enabled" yaml:"auto_rollback_enabled"`
	StabilizationMinutes   int  `mapstructure:"stabilization_minutes" yaml:"stabilization_minutes"`
	MonitoringMinutes      int  `mapstructure:"monitoring_minutes" yaml:"monitoring_minutes"`
}

// ProbesConfig maps tracked service names to the HTTP endpoints used to
// determine whether the service is reachable.
type ProbesConfig struct {
	Services       map[string]string `mapstructure:"services" yaml:"services"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/recovery-core/internal/config"
	"github.com/platformbuilds/recovery-core/internal/metrics"
	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/internal/scheduler"
	"github.com/platformbuilds/recovery-core/internal/storage"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

// Degradation ratios beyond the baseline that fail a deployment.
const (
	responseTimeDegradationRatio = 0.5 // 50% slower than baseline
	errorRateIncreaseRatio       = 2.0 // 200% of baseline
	memoryIncreaseRatio          = 0.3 // 30% above baseline
	maxHealthCheckFailures       = 3
)

// DeploymentMonitoringService tracks releases, validates their metrics
// against the pre-deploy baseline, and rolls back failing deployments.
type DeploymentMonitoringService struct {
	cfg     config.DeploymentConfig
	metrics storage.MetricsReader
	prober  ServiceProber
	clock   scheduler.Clock
	logger  logger.Logger

	mu           sync.RWMutex
	enabled      bool
	autoRollback bool
	deployments  map[string]*models.Deployment
	order        []string // tracking order, newest last
	history      []models.Deployment
}

func NewDeploymentMonitoringService(
	cfg config.DeploymentConfig,
	metricsReader storage.MetricsReader,
	prober ServiceProber,
	clock scheduler.Clock,
	log logger.Logger,
) *DeploymentMonitoringService {
	return &DeploymentMonitoringService{
		cfg:          cfg,
		metrics:      metricsReader,
		prober:       prober,
		clock:        clock,
		logger:       log,
		enabled:      cfg.Enabled,
		autoRollback: cfg.AutoRollbackEnabled,
		deployments:  make(map[string]*models.Deployment),
	}
}

/* ------------------------------- tracking ------------------------------- */

// TrackDeployment registers a release for monitoring, filling defaults and
// capturing the metric baseline.
func (s *DeploymentMonitoringService) TrackDeployment(ctx context.Context, d *models.Deployment) (*models.Deployment, error) {
	if d == nil {
		d = &models.Deployment{}
	}
	if d.ID == "" {
		d.ID = fmt.Sprintf("deploy_%s", uuid.New().String()[:8])
	}
	if d.Environment == "" {
		d.Environment = "production"
	}
	if d.Branch == "" {
		d.Branch = "main"
	}
	if d.StartTime.IsZero() {
		d.StartTime = s.clock.Now()
	}
	if d.Status == "" {
		d.Status = models.DeploymentInProgress
	}
	if len(d.HealthChecks) == 0 {
		d.HealthChecks = defaultHealthChecks()
	}
	d.BaselineMetrics = s.captureMetrics(ctx)
	d.CurrentMetrics = d.BaselineMetrics

	s.mu.Lock()
	if _, exists := s.deployments[d.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("deployment already tracked: %s", d.ID)
	}
	s.deployments[d.ID] = d
	s.order = append(s.order, d.ID)
	s.mu.Unlock()

	metrics.DeploymentsTracked.Inc()
	s.logger.Info("Tracking deployment", "deployment", d.ID, "version", d.Version, "environment", d.Environment)
	return d, nil
}

func defaultHealthChecks() []models.DeploymentHealthCheck {
	return []models.DeploymentHealthCheck{
		{Name: "api_health", Endpoint: "/health"},
		{Name: "database_connectivity"},
		{Name: "application_startup"},
		{Name: "critical_endpoints"},
	}
}

func (s *DeploymentMonitoringService) captureMetrics(ctx context.Context) models.DeploymentMetrics {
	m := models.DeploymentMetrics{}
	if v, err := s.metrics.LatestValue(ctx, "error_rate"); err == nil {
		m.ErrorRate = v
	}
	if v, err := s.metrics.LatestValue(ctx, "response_time"); err == nil {
		m.ResponseTimeMs = v
	}
	if v, err := s.metrics.LatestValue(ctx, "memory_usage_mb"); err == nil {
		m.MemoryUsageMB = v
	}
	return m
}

/* ------------------------------ monitoring ------------------------------ */

// MonitorDeployments is the periodic tick: refresh metrics, run health
// checks, and validate each in-progress deployment.
func (s *DeploymentMonitoringService) MonitorDeployments(ctx context.Context) {
	s.mu.RLock()
	enabled := s.enabled
	candidates := make([]*models.Deployment, 0, len(s.deployments))
	for _, d := range s.deployments {
		candidates = append(candidates, d)
	}
	s.mu.RUnlock()

	if !enabled {
		return
	}

	for _, d := range candidates {
		if d.Status != models.DeploymentInProgress && d.Status != models.DeploymentPending {
			continue
		}
		s.checkDeployment(ctx, d)
	}
}

func (s *DeploymentMonitoringService) checkDeployment(ctx context.Context, d *models.Deployment) {
	current := s.captureMetrics(ctx)
	s.runHealthChecks(ctx, d)

	s.mu.Lock()
	d.CurrentMetrics.ErrorRate = current.ErrorRate
	d.CurrentMetrics.ResponseTimeMs = current.ResponseTimeMs
	d.CurrentMetrics.MemoryUsageMB = current.MemoryUsageMB
	failures := d.CurrentMetrics.FailureCount
	s.mu.Unlock()

	if reason := s.validate(d, failures); reason != "" {
		s.logger.Error("Deployment validation failed", "deployment", d.ID, "reason", reason)
		s.mu.Lock()
		d.Status = models.DeploymentFailed
		s.mu.Unlock()

		if s.AutoRollbackEnabled() {
			if _, err := s.executeRollback(ctx, d, reason, "auto", true); err != nil {
				s.logger.Error("Automatic rollback failed", "deployment", d.ID, "error", err)
			}
		}
		return
	}

	// A deployment graduates after its stabilization window with no failures.
	elapsed := s.clock.Now().Sub(d.StartTime)
	if elapsed >= time.Duration(s.cfg.StabilizationMinutes)*time.Minute {
		now := s.clock.Now()
		s.mu.Lock()
		d.Status = models.DeploymentSuccess
		d.EndTime = &now
		s.mu.Unlock()
		s.retireDeployment(d.ID)
		s.logger.Info("Deployment stabilized", "deployment", d.ID, "version", d.Version)
	}
}

func (s *DeploymentMonitoringService) runHealthChecks(ctx context.Context, d *models.Deployment) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range d.HealthChecks {
		check := &d.HealthChecks[i]
		check.LastRun = &now

		if check.Endpoint != "" {
			if err := s.prober.ProbeURL(ctx, check.Endpoint); err != nil {
				check.Passed = false
				check.Message = err.Error()
				d.CurrentMetrics.FailureCount++
				continue
			}
		}
		check.Passed = true
		check.Message = ""
	}
}

// validate returns a failure reason, or empty when the deployment is healthy.
func (s *DeploymentMonitoringService) validate(d *models.Deployment, failures int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if failures >= maxHealthCheckFailures {
		return fmt.Sprintf("health checks failed %d times", failures)
	}
	base := d.BaselineMetrics
	cur := d.CurrentMetrics

	if base.ResponseTimeMs > 0 && cur.ResponseTimeMs > base.ResponseTimeMs*(1+responseTimeDegradationRatio) {
		return fmt.Sprintf("response time degraded beyond %.0f%% of baseline", responseTimeDegradationRatio*100)
	}
	if base.ErrorRate > 0 && cur.ErrorRate > base.ErrorRate*errorRateIncreaseRatio {
		return fmt.Sprintf("error rate exceeded %.0f%% of baseline", errorRateIncreaseRatio*100)
	}
	if base.MemoryUsageMB > 0 && cur.MemoryUsageMB > base.MemoryUsageMB*(1+memoryIncreaseRatio) {
		return fmt.Sprintf("memory usage exceeded baseline by %.0f%%", memoryIncreaseRatio*100)
	}
	return ""
}

/* ------------------------------- rollback ------------------------------- */

// RollbackDeployment rolls back by id, or the most recent tracked deployment
// when target is "latest".
func (s *DeploymentMonitoringService) RollbackDeployment(ctx context.Context, target, reason string, preserveData bool) (string, error) {
	d := s.resolveTarget(target)
	if d == nil {
		return "", fmt.Errorf("deployment not found: %s", target)
	}

	info, err := s.executeRollback(ctx, d, reason, "manual", preserveData)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Rollback initiated for deployment %s (Rollback ID: %s)", d.ID, info.ID), nil
}

func (s *DeploymentMonitoringService) resolveTarget(target string) *models.Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if target == "latest" {
		if len(s.order) == 0 {
			return nil
		}
		return s.deployments[s.order[len(s.order)-1]]
	}
	return s.deployments[target]
}

// executeRollback runs the ordered rollback steps and marks the deployment
// rolled_back or rollback_failed.
func (s *DeploymentMonitoringService) executeRollback(ctx context.Context, d *models.Deployment, reason, trigger string, preserveData bool) (*models.RollbackInfo, error) {
	info := &models.RollbackInfo{
		ID:           fmt.Sprintf("rollback_%s", uuid.New().String()[:8]),
		DeploymentID: d.ID,
		Reason:       reason,
		Trigger:      trigger,
		PreserveData: preserveData,
		StartTime:    s.clock.Now(),
		Steps: []models.RollbackStep{
			{Name: "git_revert"},
			{Name: "dependency_restore"},
			{Name: "service_restart"},
			{Name: "cache_invalidation"},
			{Name: "verification"},
		},
	}

	s.logger.Warn("Executing rollback", "deployment", d.ID, "rollback", info.ID, "reason", reason, "trigger", trigger)

	success := true
	for i := range info.Steps {
		step := &info.Steps[i]
		now := s.clock.Now()
		step.RunAt = &now

		if err := s.runRollbackStep(ctx, d, step.Name); err != nil {
			step.Error = err.Error()
			success = false
			s.logger.Error("Rollback step failed", "deployment", d.ID, "step", step.Name, "error", err)
			break
		}
		step.Completed = true
	}

	now := s.clock.Now()
	info.EndTime = &now
	info.Success = success

	s.mu.Lock()
	d.Rollback = info
	if success {
		d.Status = models.DeploymentRolledBack
	} else {
		d.Status = models.DeploymentRollbackFailed
	}
	d.EndTime = &now
	s.mu.Unlock()

	s.retireDeployment(d.ID)
	metrics.RollbacksTotal.WithLabelValues(trigger, fmt.Sprintf("%t", success)).Inc()

	if !success {
		return info, fmt.Errorf("rollback %s failed for deployment %s", info.ID, d.ID)
	}
	return info, nil
}

func (s *DeploymentMonitoringService) runRollbackStep(ctx context.Context, d *models.Deployment, name string) error {
	switch name {
	case "verification":
		for _, check := range d.HealthChecks {
			if check.Endpoint == "" {
				continue
			}
			if err := s.prober.ProbeURL(ctx, check.Endpoint); err != nil {
				return fmt.Errorf("post-rollback verification failed: %w", err)
			}
		}
		return nil
	default:
		// The platform's deployment runner performs the actual revert; the
		// monitor records the request and its ordering.
		s.logger.Info("Rollback step executed", "deployment", d.ID, "step", name)
		return nil
	}
}

// retireDeployment moves a finished deployment out of the active set.
func (s *DeploymentMonitoringService) retireDeployment(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deployments[id]
	if !ok {
		return
	}
	delete(s.deployments, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.history = append(s.history, *d)
	if len(s.history) > 100 {
		s.history = s.history[len(s.history)-100:]
	}
	metrics.DeploymentsTracked.Dec()
}

/* --------------------------- manual operations --------------------------- */

func (s *DeploymentMonitoringService) EnableAutoRollback() {
	s.mu.Lock()
	s.autoRollback = true
	s.mu.Unlock()
	s.logger.Info("Auto-rollback enabled")
}

func (s *DeploymentMonitoringService) DisableAutoRollback() {
	s.mu.Lock()
	s.autoRollback = false
	s.mu.Unlock()
	s.logger.Warn("Auto-rollback disabled")
}

func (s *DeploymentMonitoringService) AutoRollbackEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoRollback
}

/* ------------------------------ observation ------------------------------ */

// GetDeployment returns one deployment, active or historical.
func (s *DeploymentMonitoringService) GetDeployment(id string) (*models.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := s.deployments[id]; ok {
		copied := *d
		return &copied, nil
	}
	for i := range s.history {
		if s.history[i].ID == id {
			copied := s.history[i]
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("deployment not found: %s", id)
}

// GetActiveDeployments returns deployments still under monitoring.
func (s *DeploymentMonitoringService) GetActiveDeployments() []models.Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Deployment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.deployments[id])
	}
	return out
}

// GetHistory returns finished deployments, oldest first.
func (s *DeploymentMonitoringService) GetHistory() []models.Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Deployment, len(s.history))
	copy(out, s.history)
	return out
}

// GetStatus reports subsystem health: unhealthy when a recent deployment
// failed, degraded when one has been in progress beyond an hour.
func (s *DeploymentMonitoringService) GetStatus() models.ComponentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := models.ComponentStatus{
		Status:  models.HealthHealthy,
		Enabled: s.enabled,
		Issues:  []string{},
	}

	currentVersion := ""
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Status == models.DeploymentSuccess {
			currentVersion = s.history[i].Version
			break
		}
	}

	for _, d := range s.deployments {
		if s.clock.Now().Sub(d.StartTime) > time.Hour {
			status.Status = models.HealthDegraded
			status.Issues = append(status.Issues, fmt.Sprintf("deployment %s running over an hour", d.ID))
		}
	}
	for i := range s.history {
		d := &s.history[i]
		if d.Status == models.DeploymentFailed || d.Status == models.DeploymentRollbackFailed {
			status.Status = models.HealthUnhealthy
			status.Issues = append(status.Issues, fmt.Sprintf("deployment %s %s", d.ID, d.Status))
		}
	}

	status.Details = map[string]interface{}{
		"active_deployments":    len(s.deployments),
		"auto_rollback_enabled": s.autoRollback,
		"current_version":       currentVersion,
	}
	return status
}

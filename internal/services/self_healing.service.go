package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/platformbuilds/recovery-core/internal/config"
	"github.com/platformbuilds/recovery-core/internal/metrics"
	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/internal/scheduler"
	"github.com/platformbuilds/recovery-core/internal/storage"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

// trackedServices are probed on every health snapshot.
var trackedServices = []string{"postgresql", "api-server", "redis"}

// SelfHealingService detects resource and service issues from periodic health
// snapshots and executes bounded, safety-checked remediation. Each attempt
// moves through pending -> checking -> executing -> validating, with abort and
// rollback as first-class transitions.
type SelfHealingService struct {
	cfg      config.HealingConfig
	metrics  storage.MetricsReader
	executor ActionExecutor
	prober   ServiceProber
	clock    scheduler.Clock
	logger   logger.Logger

	mu             sync.RWMutex
	enabled        bool
	activeHealing  map[string]*models.HealingAttempt // keyed by issue type + component
	history        []models.HealingAttempt
	serviceStates  map[string]*models.ServiceRestartState
	lastHealth     *models.SystemHealth
}

func NewSelfHealingService(
	cfg config.HealingConfig,
	metricsReader storage.MetricsReader,
	executor ActionExecutor,
	prober ServiceProber,
	clock scheduler.Clock,
	log logger.Logger,
) *SelfHealingService {
	return &SelfHealingService{
		cfg:           cfg,
		metrics:       metricsReader,
		executor:      executor,
		prober:        prober,
		clock:         clock,
		logger:        log,
		enabled:       cfg.Enabled,
		activeHealing: make(map[string]*models.HealingAttempt),
		serviceStates: make(map[string]*models.ServiceRestartState),
	}
}

/* ----------------------------- health checks ----------------------------- */

// CollectSystemHealth builds a snapshot from the metrics store and probes.
func (s *SelfHealingService) CollectSystemHealth(ctx context.Context) *models.SystemHealth {
	health := &models.SystemHealth{
		Services:  make(map[string]models.ServiceStatus),
		Timestamp: s.clock.Now(),
	}

	if v, err := s.metrics.LatestValue(ctx, "memory_usage"); err == nil {
		health.MemoryUsagePercent = v
	}
	if v, err := s.metrics.LatestValue(ctx, "cpu_load"); err == nil {
		health.CPULoadPercent = v
	}
	if v, err := s.metrics.LatestValue(ctx, "disk_usage"); err == nil {
		health.DiskUsagePercent = v
	}
	if v, err := s.metrics.LatestValue(ctx, "db_connections"); err == nil {
		health.DBConnections = v
	}

	for _, svc := range trackedServices {
		if s.prober.IsAvailable(ctx, svc) {
			health.Services[svc] = models.ServiceRunning
		} else {
			health.Services[svc] = models.ServiceStopped
		}
	}

	s.mu.Lock()
	s.lastHealth = health
	s.mu.Unlock()
	return health
}

// DetectSystemIssues derives typed issues from a health snapshot.
func (s *SelfHealingService) DetectSystemIssues(health *models.SystemHealth) []models.HealthIssue {
	var issues []models.HealthIssue
	now := s.clock.Now()

	if health.MemoryUsagePercent > 90 {
		issues = append(issues, models.HealthIssue{
			Type:             models.IssueMemoryLeak,
			Severity:         models.SeverityCritical,
			Component:        "system",
			Description:      fmt.Sprintf("Memory usage at %.1f%%", health.MemoryUsagePercent),
			SuggestedActions: []models.HealingActionType{models.HealClearCache, models.HealGarbageCollect, models.HealRestartService},
			AutoHealable:     true,
			DetectedAt:       now,
		})
	} else if health.MemoryUsagePercent > 80 {
		issues = append(issues, models.HealthIssue{
			Type:             models.IssueMemoryLeak,
			Severity:         models.SeverityHigh,
			Component:        "system",
			Description:      fmt.Sprintf("Memory usage at %.1f%%", health.MemoryUsagePercent),
			SuggestedActions: []models.HealingActionType{models.HealClearCache, models.HealGarbageCollect},
			AutoHealable:     true,
			DetectedAt:       now,
		})
	}

	if health.CPULoadPercent > 90 {
		issues = append(issues, models.HealthIssue{
			Type:             models.IssueHighCPU,
			Severity:         models.SeverityCritical,
			Component:        "system",
			Description:      fmt.Sprintf("CPU load at %.1f%%", health.CPULoadPercent),
			SuggestedActions: []models.HealingActionType{models.HealScaleResources, models.HealRestartService},
			AutoHealable:     true,
			DetectedAt:       now,
		})
	}

	if health.DiskUsagePercent > 95 {
		issues = append(issues, models.HealthIssue{
			Type:             models.IssueDiskFull,
			Severity:         models.SeverityCritical,
			Component:        "system",
			Description:      fmt.Sprintf("Disk usage at %.1f%%", health.DiskUsagePercent),
			SuggestedActions: []models.HealingActionType{models.HealCleanupLogs, models.HealCleanupTemp},
			AutoHealable:     true,
			DetectedAt:       now,
		})
	}

	for svc, status := range health.Services {
		if status != models.ServiceRunning {
			issues = append(issues, models.HealthIssue{
				Type:             models.IssueServiceDown,
				Severity:         models.SeverityHigh,
				Component:        svc,
				Description:      fmt.Sprintf("Service %s is %s", svc, status),
				SuggestedActions: []models.HealingActionType{models.HealRestartService},
				AutoHealable:     true,
				DetectedAt:       now,
			})
		}
	}

	if health.DBConnections > 80 {
		issues = append(issues, models.HealthIssue{
			Type:             models.IssueConnectionLeak,
			Severity:         models.SeverityMedium,
			Component:        "postgresql",
			Description:      fmt.Sprintf("Database connections at %.0f", health.DBConnections),
			SuggestedActions: []models.HealingActionType{models.HealResetConnections},
			AutoHealable:     true,
			DetectedAt:       now,
		})
	}

	return issues
}

// DetectAndHealIssues is the periodic tick: snapshot, detect, heal bounded
// by the concurrency cap. Issues beyond the cap are skipped this cycle and
// picked up on the next tick if they persist.
func (s *SelfHealingService) DetectAndHealIssues(ctx context.Context) {
	s.mu.RLock()
	enabled := s.enabled
	s.mu.RUnlock()
	if !enabled {
		return
	}

	health := s.CollectSystemHealth(ctx)
	issues := s.DetectSystemIssues(health)

	for _, issue := range issues {
		if !issue.AutoHealable {
			continue
		}

		key := healingKey(issue.Type, issue.Component)
		s.mu.RLock()
		_, inFlight := s.activeHealing[key]
		atCap := len(s.activeHealing) >= s.cfg.MaxConcurrentHealing
		s.mu.RUnlock()

		if inFlight {
			continue
		}
		if atCap {
			s.logger.Debug("Healing deferred, concurrency cap reached",
				"issue", issue.Type, "component", issue.Component)
			continue
		}

		s.HealIssue(ctx, issue)
	}
}

func healingKey(issueType models.IssueType, component string) string {
	return fmt.Sprintf("%s:%s", issueType, component)
}

/* ------------------------------- execution ------------------------------- */

// HealIssue executes the issue's first suggested action through the full
// safety-check protocol and records the attempt.
func (s *SelfHealingService) HealIssue(ctx context.Context, issue models.HealthIssue) *models.HealingAttempt {
	if len(issue.SuggestedActions) == 0 {
		return nil
	}
	action := issue.SuggestedActions[0]

	attempt := &models.HealingAttempt{
		ID:        uuid.New().String(),
		IssueType: issue.Type,
		Component: issue.Component,
		Action:    action,
		StartTime: s.clock.Now(),
		Status:    models.HealingInProgress,
	}

	key := healingKey(issue.Type, issue.Component)
	s.mu.Lock()
	if _, exists := s.activeHealing[key]; exists {
		s.mu.Unlock()
		return nil
	}
	s.activeHealing[key] = attempt
	s.mu.Unlock()
	metrics.ActiveHealingOperations.Inc()

	s.logger.Info("Healing issue", "issue", issue.Type, "component", issue.Component, "action", action)
	s.executeHealingAction(ctx, attempt)

	now := s.clock.Now()
	attempt.EndTime = &now

	s.mu.Lock()
	delete(s.activeHealing, key)
	s.history = append(s.history, *attempt)
	if limit := s.cfg.HistoryLimit; limit > 0 && len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
	s.mu.Unlock()
	metrics.ActiveHealingOperations.Dec()
	metrics.HealingActionsTotal.WithLabelValues(string(action), string(attempt.Status)).Inc()

	return attempt
}

// executeHealingAction drives the attempt through its state machine:
// checking -> executing -> validating, landing on success, failed, aborted,
// or rolled_back.
func (s *SelfHealingService) executeHealingAction(ctx context.Context, attempt *models.HealingAttempt) {
	log := func(format string, args ...interface{}) {
		attempt.ExecutionLog = append(attempt.ExecutionLog,
			fmt.Sprintf("[%s] %s", s.clock.Now().Format("15:04:05"), fmt.Sprintf(format, args...)))
	}

	checks := s.safetyChecksFor(attempt.Action)

	// CHECKING: pre-execution safety checks can abort before side effects.
	log("phase=%s", models.HealingPhaseChecking)
	for _, check := range checks {
		if check.Phase != "pre_execution" {
			continue
		}
		if err := s.runSafetyCheck(ctx, check, attempt); err != nil {
			log("pre-execution check %q failed: %v", check.Name, err)
			if check.FailureAction == models.SafetyAbort {
				attempt.Status = models.HealingAborted
				log("attempt aborted before execution")
				return
			}
		} else {
			log("pre-execution check %q passed", check.Name)
		}
	}

	// EXECUTING
	log("phase=%s", models.HealingPhaseExecuting)
	output, err := s.runAction(ctx, attempt)
	if err != nil {
		attempt.Status = models.HealingFailed
		log("action failed: %v", err)
		return
	}
	attempt.Output = output
	log("action completed: %s", output)

	// VALIDATING: failed post-execution checks trigger rollback.
	log("phase=%s", models.HealingPhaseValidating)
	for _, check := range checks {
		if check.Phase != "post_execution" {
			continue
		}
		if err := s.runSafetyCheck(ctx, check, attempt); err != nil {
			log("post-execution check %q failed: %v", check.Name, err)
			if check.FailureAction == models.SafetyRollback {
				log("phase=%s", models.HealingPhaseRollingBack)
				s.performRollback(ctx, attempt, log)
				attempt.RollbackPerformed = true
				attempt.Status = models.HealingRolledBack
				return
			}
			attempt.Status = models.HealingFailed
			return
		}
		log("post-execution check %q passed", check.Name)
	}

	attempt.Status = models.HealingSuccess
}

func (s *SelfHealingService) runAction(ctx context.Context, attempt *models.HealingAttempt) (string, error) {
	switch attempt.Action {
	case models.HealClearCache:
		return s.executor.ClearCache(ctx, attempt.Component)
	case models.HealRestartService:
		out, err := s.executor.RestartService(ctx, attempt.Component)
		if err == nil {
			s.recordRestart(attempt.Component)
		}
		return out, err
	case models.HealResetConnections:
		return s.executor.ResetConnections(ctx, attempt.Component)
	case models.HealScaleResources:
		return s.executor.ScaleResources(ctx, attempt.Component, nil)
	case models.HealCleanupLogs:
		return s.executor.CleanupLogs(ctx, attempt.Component)
	case models.HealCleanupTemp:
		return s.executor.CleanupTemp(ctx, attempt.Component)
	case models.HealGarbageCollect:
		return s.executor.GarbageCollect(ctx)
	default:
		return "", fmt.Errorf("unknown healing action: %s", attempt.Action)
	}
}

// safetyChecksFor returns the guard rails for each action kind.
func (s *SelfHealingService) safetyChecksFor(action models.HealingActionType) []models.SafetyCheck {
	switch action {
	case models.HealRestartService:
		return []models.SafetyCheck{
			{Name: "no_concurrent_restart", Phase: "pre_execution", FailureAction: models.SafetyAbort},
			{Name: "service_responding", Phase: "post_execution", FailureAction: models.SafetyRollback},
		}
	case models.HealResetConnections:
		return []models.SafetyCheck{
			{Name: "service_responding", Phase: "post_execution", FailureAction: models.SafetyRollback},
		}
	case models.HealScaleResources:
		return []models.SafetyCheck{
			{Name: "no_concurrent_restart", Phase: "pre_execution", FailureAction: models.SafetyAbort},
		}
	default:
		return nil
	}
}

func (s *SelfHealingService) runSafetyCheck(ctx context.Context, check models.SafetyCheck, attempt *models.HealingAttempt) error {
	switch check.Name {
	case "no_concurrent_restart":
		s.mu.RLock()
		defer s.mu.RUnlock()
		for key, other := range s.activeHealing {
			if other.ID != attempt.ID && other.Action == models.HealRestartService && other.Component == attempt.Component {
				return fmt.Errorf("restart already in flight: %s", key)
			}
		}
		return nil
	case "service_responding":
		if !s.prober.IsAvailable(ctx, attempt.Component) {
			return fmt.Errorf("service %s not responding", attempt.Component)
		}
		return nil
	default:
		return fmt.Errorf("unknown safety check: %s", check.Name)
	}
}

// performRollback replays the action's rollback steps best-effort; failures
// are logged into the attempt, never raised.
func (s *SelfHealingService) performRollback(ctx context.Context, attempt *models.HealingAttempt, log func(string, ...interface{})) {
	rollbackActions := map[models.HealingActionType][]models.HealingActionType{
		models.HealRestartService:   {models.HealResetConnections},
		models.HealResetConnections: {models.HealClearCache},
		models.HealScaleResources:   {models.HealGarbageCollect},
	}

	for _, action := range rollbackActions[attempt.Action] {
		rollback := &models.HealingAttempt{ID: attempt.ID, Component: attempt.Component, Action: action}
		if out, err := s.runAction(ctx, rollback); err != nil {
			s.logger.Warn("Rollback action failed", "action", action, "component", attempt.Component, "error", err)
			log("rollback action %s failed: %v", action, err)
		} else {
			log("rollback action %s completed: %s", action, out)
		}
	}
}

// recordRestart tracks restart counters. There is no backoff; restarts are
// bounded only by the healing concurrency cap.
func (s *SelfHealingService) recordRestart(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.serviceStates[service]
	if !ok {
		state = &models.ServiceRestartState{}
		s.serviceStates[service] = state
	}
	state.RestartCount++
	state.LastRestart = s.clock.Now()
}

/* --------------------------- manual operations --------------------------- */

// ForceHealing starts a healing attempt for the given issue regardless of
// current health state.
func (s *SelfHealingService) ForceHealing(ctx context.Context, issueType models.IssueType, component string) (string, error) {
	actions, ok := defaultActionsFor(issueType)
	if !ok {
		return "", fmt.Errorf("unknown issue type: %s", issueType)
	}

	issue := models.HealthIssue{
		Type:             issueType,
		Severity:         models.SeverityHigh,
		Component:        component,
		Description:      fmt.Sprintf("Manually forced healing for %s", component),
		SuggestedActions: actions,
		AutoHealable:     true,
		DetectedAt:       s.clock.Now(),
	}

	go s.HealIssue(context.WithoutCancel(ctx), issue)
	return fmt.Sprintf("Manual healing initiated for %s", component), nil
}

func defaultActionsFor(issueType models.IssueType) ([]models.HealingActionType, bool) {
	switch issueType {
	case models.IssueMemoryLeak:
		return []models.HealingActionType{models.HealClearCache, models.HealGarbageCollect}, true
	case models.IssueHighCPU:
		return []models.HealingActionType{models.HealScaleResources, models.HealRestartService}, true
	case models.IssueDiskFull:
		return []models.HealingActionType{models.HealCleanupLogs, models.HealCleanupTemp}, true
	case models.IssueServiceDown:
		return []models.HealingActionType{models.HealRestartService}, true
	case models.IssueConnectionLeak:
		return []models.HealingActionType{models.HealResetConnections}, true
	default:
		return nil, false
	}
}

// Enable turns healing back on.
func (s *SelfHealingService) Enable() {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
	s.logger.Info("Self-healing enabled")
}

// Disable stops new healing; in-flight attempts run to completion.
func (s *SelfHealingService) Disable() {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
	s.logger.Warn("Self-healing disabled")
}

/* ------------------------------ observation ------------------------------ */

// GetSystemHealth returns the most recent snapshot.
func (s *SelfHealingService) GetSystemHealth() *models.SystemHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastHealth == nil {
		return nil
	}
	copied := *s.lastHealth
	return &copied
}

// GetHistory returns completed attempts, most recent last.
func (s *SelfHealingService) GetHistory() []models.HealingAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.HealingAttempt, len(s.history))
	copy(out, s.history)
	return out
}

// GetActiveHealing returns in-flight attempts.
func (s *SelfHealingService) GetActiveHealing() []models.HealingAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.HealingAttempt, 0, len(s.activeHealing))
	for _, a := range s.activeHealing {
		out = append(out, *a)
	}
	return out
}

// GetStatus reports subsystem health.
func (s *SelfHealingService) GetStatus() models.ComponentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := models.ComponentStatus{
		Status:  models.HealthHealthy,
		Enabled: s.enabled,
		Issues:  []string{},
	}

	if !s.enabled {
		status.Status = models.HealthUnhealthy
		status.Issues = append(status.Issues, "self-healing is disabled")
	} else if len(s.activeHealing) >= s.cfg.MaxConcurrentHealing {
		status.Status = models.HealthDegraded
		status.Issues = append(status.Issues, "healing concurrency cap reached")
	}

	status.Details = map[string]interface{}{
		"active_healing":   len(s.activeHealing),
		"history_size":     len(s.history),
		"tracked_services": len(s.serviceStates),
	}
	return status
}

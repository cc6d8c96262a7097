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
	"github.com/platformbuilds/recovery-core/pkg/cache"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

// GracefulDegradationService degrades named features when trigger conditions
// hold and restores them once the inverse conditions have been sustained for
// the rule's revert duration. Rules and feature states are owned exclusively
// by this service; other components read snapshots via getters.
type GracefulDegradationService struct {
	cfg     config.DegradationConfig
	metrics storage.MetricsReader
	alerts  storage.AlertStore
	cache   cache.ValkeyCluster
	prober  ServiceProber
	clock   scheduler.Clock
	logger  logger.Logger

	mu                 sync.RWMutex
	enabled            bool
	rules              []*models.DegradationRule // evaluation follows declaration order
	activeDegradations map[string]*models.ActiveDegradation
	featureStates      map[string]*models.FeatureState
	manualTriggers     map[string]bool
	events             []models.DegradationEvent
}

func NewGracefulDegradationService(
	cfg config.DegradationConfig,
	metricsReader storage.MetricsReader,
	alerts storage.AlertStore,
	c cache.ValkeyCluster,
	prober ServiceProber,
	clock scheduler.Clock,
	log logger.Logger,
) *GracefulDegradationService {
	s := &GracefulDegradationService{
		cfg:                cfg,
		metrics:            metricsReader,
		alerts:             alerts,
		cache:              c,
		prober:             prober,
		clock:              clock,
		logger:             log,
		enabled:            cfg.Enabled,
		activeDegradations: make(map[string]*models.ActiveDegradation),
		featureStates:      make(map[string]*models.FeatureState),
		manualTriggers:     make(map[string]bool),
	}
	s.initializeDefaultRules()
	s.initializeFeatureStates()
	return s
}

func (s *GracefulDegradationService) initializeDefaultRules() {
	s.rules = []*models.DegradationRule{
		{
			ID:   "high-memory-degradation",
			Name: "High Memory Usage Degradation",
			Conditions: models.DegradationConditions{
				Triggers: []models.DegradationTrigger{
					{Type: models.TriggerMetricThreshold, Metric: "memory_usage", Operator: models.OpGreater, Threshold: 85},
				},
				Aggregation: models.AggregationAll,
			},
			Actions: []models.DegradationAction{
				{Type: models.ActionDisableFeature, Target: "signage-analytics"},
				{Type: models.ActionReduceFunctionality, Target: "web-interface"},
			},
			Level:            models.DegradationMinimal,
			Priority:         1,
			AutoRevert:       true,
			RevertConditions: models.RevertConditions{DurationMinutes: 5},
		},
		{
			ID:   "database-unavailable",
			Name: "Database Unavailable Degradation",
			Conditions: models.DegradationConditions{
				Triggers: []models.DegradationTrigger{
					{Type: models.TriggerServiceUnavailable, Service: "postgresql"},
				},
				Aggregation: models.AggregationAny,
			},
			Actions: []models.DegradationAction{
				{Type: models.ActionCacheFallback, Target: "api-responses"},
				{Type: models.ActionStaticContent, Target: "web-interface"},
			},
			Level:            models.DegradationSevere,
			Priority:         10,
			AutoRevert:       true,
			RevertConditions: models.RevertConditions{DurationMinutes: 2},
		},
		{
			ID:   "high-error-rate",
			Name: "High Error Rate Degradation",
			Conditions: models.DegradationConditions{
				Triggers: []models.DegradationTrigger{
					{Type: models.TriggerErrorRate, Metric: "error_rate", Threshold: 10},
				},
				Aggregation: models.AggregationAll,
			},
			Actions: []models.DegradationAction{
				{Type: models.ActionRateLimit, Target: "api-responses", Parameters: map[string]string{"limit": "100"}},
				{Type: models.ActionSimplifiedUI, Target: "web-interface"},
			},
			Level:            models.DegradationModerate,
			Priority:         5,
			AutoRevert:       true,
			RevertConditions: models.RevertConditions{DurationMinutes: 10},
		},
	}
}

func (s *GracefulDegradationService) initializeFeatureStates() {
	for _, f := range []struct{ id, normal, degraded string }{
		{"signage-analytics", "full", "disabled"},
		{"api-responses", "live", "cached"},
		{"web-interface", "full", "simplified"},
	} {
		s.featureStates[f.id] = &models.FeatureState{
			FeatureID:        f.id,
			NormalState:      f.normal,
			DegradedState:    f.degraded,
			CurrentState:     f.normal,
			DegradationLevel: models.DegradationNone,
		}
	}
}

/* ------------------------------ evaluation ------------------------------ */

// EvaluateDegradationNeeds is the periodic tick: activate rules whose
// triggers hold, then check active degradations for revert.
func (s *GracefulDegradationService) EvaluateDegradationNeeds(ctx context.Context) {
	s.mu.RLock()
	enabled := s.enabled
	rules := make([]*models.DegradationRule, len(s.rules))
	copy(rules, s.rules)
	s.mu.RUnlock()

	if !enabled {
		return
	}

	for _, rule := range rules {
		s.mu.RLock()
		_, active := s.activeDegradations[rule.ID]
		s.mu.RUnlock()

		if !active {
			if s.conditionsMet(ctx, rule, false) {
				s.activateDegradation(ctx, rule, "trigger conditions met")
			}
			continue
		}

		if rule.AutoRevert {
			s.evaluateRevert(ctx, rule)
		}
	}

	s.recordDegradationMetrics()
	s.checkDegradationHealth()
}

// conditionsMet evaluates the rule's triggers. When inverted is true the
// comparisons are complemented, which is the revert check.
func (s *GracefulDegradationService) conditionsMet(ctx context.Context, rule *models.DegradationRule, inverted bool) bool {
	anyTrue := false
	allTrue := true

	for _, trigger := range rule.Conditions.Triggers {
		ok := s.evaluateTrigger(ctx, rule.ID, trigger, inverted)
		anyTrue = anyTrue || ok
		allTrue = allTrue && ok
	}

	if len(rule.Conditions.Triggers) == 0 {
		return false
	}
	if inverted {
		// Reverting requires every inverse condition to hold.
		return allTrue
	}
	if rule.Conditions.Aggregation == models.AggregationAny {
		return anyTrue
	}
	return allTrue
}

func (s *GracefulDegradationService) evaluateTrigger(ctx context.Context, ruleID string, trigger models.DegradationTrigger, inverted bool) bool {
	switch trigger.Type {
	case models.TriggerMetricThreshold:
		value, err := s.metrics.LatestValue(ctx, trigger.Metric)
		if err != nil {
			return false
		}
		op := trigger.Operator
		if inverted {
			op = models.InvertOperator(op)
		}
		return compare(value, op, trigger.Threshold)

	case models.TriggerServiceUnavailable:
		unavailable := !s.prober.IsAvailable(ctx, trigger.Service)
		if inverted {
			return !unavailable
		}
		return unavailable

	case models.TriggerErrorRate:
		threshold := trigger.Threshold
		if threshold == 0 {
			threshold = s.cfg.DefaultErrorRateThreshold
		}
		avg, ok := s.windowAverage(ctx, trigger.Metric, "error_rate")
		if !ok {
			return false
		}
		if inverted {
			return avg <= threshold
		}
		return avg > threshold

	case models.TriggerResponseTime:
		threshold := trigger.Threshold
		if threshold == 0 {
			threshold = s.cfg.DefaultResponseTimeMs
		}
		avg, ok := s.windowAverage(ctx, trigger.Metric, "response_time")
		if !ok {
			return false
		}
		if inverted {
			return avg <= threshold
		}
		return avg > threshold

	case models.TriggerManual:
		s.mu.RLock()
		activated := s.manualTriggers[ruleID]
		s.mu.RUnlock()
		if inverted {
			return !activated
		}
		return activated

	default:
		s.logger.Warn("Unknown degradation trigger type", "type", trigger.Type, "rule", ruleID)
		return false
	}
}

func (s *GracefulDegradationService) windowAverage(ctx context.Context, metric, fallback string) (float64, bool) {
	name := metric
	if name == "" {
		name = fallback
	}
	points, err := s.metrics.RecentValues(ctx, name, 5*time.Minute)
	if err != nil || len(points) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points)), true
}

func compare(value float64, op models.CompareOperator, threshold float64) bool {
	switch op {
	case models.OpGreater:
		return value > threshold
	case models.OpLess:
		return value < threshold
	case models.OpGreaterEqual:
		return value >= threshold
	case models.OpLessEqual:
		return value <= threshold
	case models.OpEqual:
		return value == threshold
	case models.OpNotEqual:
		return value != threshold
	default:
		return false
	}
}

/* ------------------------------ activation ------------------------------ */

// activateDegradation applies the rule's actions in order. A single action's
// failure is logged and skipped; the remaining actions still apply. Presence
// in activeDegradations makes repeated activation a no-op.
func (s *GracefulDegradationService) activateDegradation(ctx context.Context, rule *models.DegradationRule, reason string) bool {
	s.mu.Lock()
	if _, exists := s.activeDegradations[rule.ID]; exists {
		s.mu.Unlock()
		return false
	}
	active := &models.ActiveDegradation{
		ID:         uuid.New().String(),
		RuleID:     rule.ID,
		Level:      rule.Level,
		StartTime:  s.clock.Now(),
		UserImpact: userImpactFor(rule.Level),
	}
	s.activeDegradations[rule.ID] = active
	s.mu.Unlock()

	s.logger.Warn("Activating degradation", "rule", rule.ID, "level", rule.Level, "reason", reason)

	var applied []models.DegradationActionType
	var affected []string
	for _, action := range rule.Actions {
		if err := s.applyAction(ctx, rule, action); err != nil {
			s.logger.Error("Degradation action failed, continuing",
				"rule", rule.ID, "action", action.Type, "target", action.Target, "error", err)
			continue
		}
		applied = append(applied, action.Type)
		affected = append(affected, action.Target)
	}

	s.mu.Lock()
	active.ActionsApplied = applied
	active.AffectedFeatures = affected
	s.events = append(s.events, models.DegradationEvent{
		RuleID: rule.ID, Level: rule.Level, Event: "activated", Timestamp: s.clock.Now(), Reason: reason,
	})
	s.mu.Unlock()

	metrics.DegradationTransitionsTotal.WithLabelValues(rule.ID, "activated").Inc()

	if rule.Level == models.DegradationSevere || rule.Level == models.DegradationEmergency {
		s.raiseDegradationAlert(ctx, rule)
	}
	return true
}

func (s *GracefulDegradationService) applyAction(ctx context.Context, rule *models.DegradationRule, action models.DegradationAction) error {
	switch action.Type {
	case models.ActionDisableFeature:
		return s.setFeatureState(action.Target, "disabled", rule.Level)

	case models.ActionReduceFunctionality:
		return s.degradeFeature(action.Target, rule.Level)

	case models.ActionSimplifiedUI:
		return s.degradeFeature(action.Target, rule.Level)

	case models.ActionCacheFallback:
		payload := map[string]interface{}{
			"mode":       "cache_fallback",
			"target":     action.Target,
			"rule_id":    rule.ID,
			"activated":  s.clock.Now().Format(time.RFC3339),
			"parameters": action.Parameters,
		}
		if err := s.cache.Set(ctx, fmt.Sprintf("degradation_fallback_%s", action.Target), payload, time.Hour); err != nil {
			return err
		}
		return s.degradeFeature(action.Target, rule.Level)

	case models.ActionStaticContent:
		payload := map[string]interface{}{
			"mode":      "static_content",
			"target":    action.Target,
			"rule_id":   rule.ID,
			"activated": s.clock.Now().Format(time.RFC3339),
		}
		if err := s.cache.Set(ctx, fmt.Sprintf("static_content_%s", action.Target), payload, time.Hour); err != nil {
			return err
		}
		return s.degradeFeature(action.Target, rule.Level)

	case models.ActionRateLimit:
		limit := action.Parameters["limit"]
		if limit == "" {
			limit = "100"
		}
		return s.cache.Set(ctx, fmt.Sprintf("rate_limit_%s", action.Target), limit, 30*time.Minute)

	case models.ActionQueueRequests:
		return s.cache.Set(ctx, fmt.Sprintf("queue_requests_%s", action.Target), "enabled", 30*time.Minute)

	case models.ActionRedirectTraffic:
		dest := action.Parameters["destination"]
		if dest == "" {
			return fmt.Errorf("redirect_traffic requires a destination parameter")
		}
		return s.cache.Set(ctx, fmt.Sprintf("redirect_traffic_%s", action.Target), dest, 30*time.Minute)

	default:
		return fmt.Errorf("unknown degradation action type: %s", action.Type)
	}
}

func (s *GracefulDegradationService) degradeFeature(featureID string, level models.DegradationLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.featureStates[featureID]
	if !ok {
		return fmt.Errorf("unknown feature: %s", featureID)
	}
	f.CurrentState = f.DegradedState
	f.IsDegraded = true
	f.DegradationLevel = level
	return nil
}

func (s *GracefulDegradationService) setFeatureState(featureID, state string, level models.DegradationLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.featureStates[featureID]
	if !ok {
		return fmt.Errorf("unknown feature: %s", featureID)
	}
	f.CurrentState = state
	f.IsDegraded = true
	f.DegradationLevel = level
	return nil
}

func (s *GracefulDegradationService) raiseDegradationAlert(ctx context.Context, rule *models.DegradationRule) {
	alert := &models.Alert{
		ID:        uuid.New().String(),
		Type:      "degradation_activated",
		Severity:  models.SeverityHigh,
		Component: rule.ID,
		Message:   fmt.Sprintf("%s degradation activated: %s", rule.Level, rule.Name),
		Status:    models.AlertActive,
		CreatedAt: s.clock.Now(),
	}
	if rule.Level == models.DegradationEmergency {
		alert.Severity = models.SeverityCritical
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		s.logger.Error("Failed to raise degradation alert", "rule", rule.ID, "error", err)
	}
}

/* -------------------------------- revert -------------------------------- */

// evaluateRevert tracks how long the inverse conditions have held and
// reverts once they have been sustained for the configured duration.
func (s *GracefulDegradationService) evaluateRevert(ctx context.Context, rule *models.DegradationRule) {
	s.mu.RLock()
	active, ok := s.activeDegradations[rule.ID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	if !s.conditionsMet(ctx, rule, true) {
		s.mu.Lock()
		active.RevertSince = nil
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	s.mu.Lock()
	if active.RevertSince == nil {
		active.RevertSince = &now
		s.mu.Unlock()
		return
	}
	sustained := now.Sub(*active.RevertSince)
	s.mu.Unlock()

	required := time.Duration(rule.RevertConditions.DurationMinutes) * time.Minute
	if sustained >= required {
		s.revertDegradation(ctx, rule.ID, "revert conditions sustained")
	}
}

// revertDegradation restores affected features and removes the active record.
func (s *GracefulDegradationService) revertDegradation(ctx context.Context, ruleID, reason string) bool {
	s.mu.Lock()
	active, ok := s.activeDegradations[ruleID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.activeDegradations, ruleID)
	now := s.clock.Now()
	active.EndTime = &now

	for _, featureID := range active.AffectedFeatures {
		if f, ok := s.featureStates[featureID]; ok {
			f.CurrentState = f.NormalState
			f.IsDegraded = false
			f.DegradationLevel = models.DegradationNone
		}
	}
	delete(s.manualTriggers, ruleID)
	s.events = append(s.events, models.DegradationEvent{
		RuleID: ruleID, Level: active.Level, Event: "reverted", Timestamp: now, Reason: reason,
	})
	s.mu.Unlock()

	// Drop any fallback blobs the activation left behind.
	for _, featureID := range active.AffectedFeatures {
		_ = s.cache.Delete(ctx, fmt.Sprintf("degradation_fallback_%s", featureID))
		_ = s.cache.Delete(ctx, fmt.Sprintf("static_content_%s", featureID))
		_ = s.cache.Delete(ctx, fmt.Sprintf("rate_limit_%s", featureID))
		_ = s.cache.Delete(ctx, fmt.Sprintf("queue_requests_%s", featureID))
		_ = s.cache.Delete(ctx, fmt.Sprintf("redirect_traffic_%s", featureID))
	}

	metrics.DegradationTransitionsTotal.WithLabelValues(ruleID, "reverted").Inc()
	s.logger.Info("Degradation reverted", "rule", ruleID, "reason", reason)
	return true
}

/* --------------------------- manual operations --------------------------- */

// ManualActivation activates a rule bypassing trigger evaluation. Returns
// false if the rule is unknown or already active.
func (s *GracefulDegradationService) ManualActivation(ctx context.Context, ruleID string) bool {
	rule := s.findRule(ruleID)
	if rule == nil {
		return false
	}

	s.mu.Lock()
	if _, exists := s.activeDegradations[ruleID]; exists {
		s.mu.Unlock()
		return false
	}
	s.manualTriggers[ruleID] = true
	s.mu.Unlock()

	return s.activateDegradation(ctx, rule, "manual activation")
}

// ManualReversion reverts a rule bypassing the sustained-duration check.
// Returns false if the rule is not active.
func (s *GracefulDegradationService) ManualReversion(ctx context.Context, ruleID string) bool {
	return s.revertDegradation(ctx, ruleID, "manual reversion")
}

// Enable turns the evaluator back on.
func (s *GracefulDegradationService) Enable() {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
	s.logger.Info("Graceful degradation enabled")
}

// Disable stops evaluation and force-reverts every active degradation.
func (s *GracefulDegradationService) Disable(ctx context.Context) {
	s.mu.Lock()
	s.enabled = false
	ruleIDs := make([]string, 0, len(s.activeDegradations))
	for id := range s.activeDegradations {
		ruleIDs = append(ruleIDs, id)
	}
	s.mu.Unlock()

	for _, id := range ruleIDs {
		s.revertDegradation(ctx, id, "degradation disabled")
	}
	s.logger.Warn("Graceful degradation disabled", "reverted", len(ruleIDs))
}

func (s *GracefulDegradationService) findRule(ruleID string) *models.DegradationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.ID == ruleID {
			return r
		}
	}
	return nil
}

/* ------------------------------ observation ------------------------------ */

func (s *GracefulDegradationService) recordDegradationMetrics() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[models.DegradationLevel]int{}
	for _, a := range s.activeDegradations {
		counts[a.Level]++
	}
	for _, level := range []models.DegradationLevel{
		models.DegradationMinimal, models.DegradationModerate, models.DegradationSevere, models.DegradationEmergency,
	} {
		metrics.ActiveDegradations.WithLabelValues(string(level)).Set(float64(counts[level]))
	}
}

// checkDegradationHealth flags degradations active beyond the warn window.
func (s *GracefulDegradationService) checkDegradationHealth() {
	warnAfter := time.Duration(s.cfg.LongRunningWarnMinutes) * time.Minute
	if warnAfter <= 0 {
		warnAfter = 30 * time.Minute
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for ruleID, a := range s.activeDegradations {
		if s.clock.Now().Sub(a.StartTime) > warnAfter {
			s.logger.Warn("Degradation active beyond expected window",
				"rule", ruleID, "since", a.StartTime.Format(time.RFC3339), "level", a.Level)
		}
	}
}

// GetActiveDegradations returns snapshots of all active degradations.
func (s *GracefulDegradationService) GetActiveDegradations() []models.ActiveDegradation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ActiveDegradation, 0, len(s.activeDegradations))
	for _, a := range s.activeDegradations {
		out = append(out, *a)
	}
	return out
}

// GetFeatureStates returns snapshots of every known feature state.
func (s *GracefulDegradationService) GetFeatureStates() []models.FeatureState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FeatureState, 0, len(s.featureStates))
	for _, f := range s.featureStates {
		out = append(out, *f)
	}
	return out
}

// GetStatus reports the evaluator's health: degraded while any degradation
// is active, with user impact derived from the worst active level.
func (s *GracefulDegradationService) GetStatus() models.ComponentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := models.ComponentStatus{
		Status:  models.HealthHealthy,
		Enabled: s.enabled,
		Issues:  []string{},
	}

	worst := models.DegradationNone
	for ruleID, a := range s.activeDegradations {
		status.Issues = append(status.Issues, fmt.Sprintf("degradation active: %s (%s)", ruleID, a.Level))
		if models.DegradationLevelRank(a.Level) > models.DegradationLevelRank(worst) {
			worst = a.Level
		}
	}

	if !s.enabled {
		status.Status = models.HealthUnhealthy
		status.Issues = append(status.Issues, "degradation evaluator is disabled")
	} else if len(s.activeDegradations) > 0 {
		status.Status = models.HealthDegraded
	}

	status.Details = map[string]interface{}{
		"active_degradations": len(s.activeDegradations),
		"current_level":       worst,
		"user_impact":         userImpactFor(worst),
		"rules":               len(s.rules),
	}
	return status
}

func userImpactFor(level models.DegradationLevel) string {
	switch level {
	case models.DegradationSevere, models.DegradationEmergency:
		return "high"
	case models.DegradationModerate:
		return "medium"
	case models.DegradationMinimal:
		return "low"
	default:
		return "none"
	}
}

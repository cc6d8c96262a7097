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

// levelTimeouts is how long a level may stay unacknowledged before the
// incident climbs to the next one.
var levelTimeouts = map[models.EscalationLevel]time.Duration{
	models.LevelL1Monitoring:  15 * time.Minute,
	models.LevelL2Support:     30 * time.Minute,
	models.LevelL3Engineering: 45 * time.Minute,
	models.LevelL4Management:  60 * time.Minute,
	models.LevelL5Executive:   90 * time.Minute,
}

// customerFacingComponents widen the business-impact assessment.
var customerFacingComponents = map[string]bool{
	"api-server":    true,
	"web-interface": true,
	"checkout":      true,
	"payments":      true,
}

// IncidentEscalationService climbs unresolved alerts up the L1..L5 ladder,
// routing notifications through on-call schedules and recording every
// dispatch in the incident's communication log. At most one active
// escalation exists per alert id.
type IncidentEscalationService struct {
	cfg      config.EscalationConfig
	alerts   storage.AlertStore
	notifier Notifier
	clock    scheduler.Clock
	logger   logger.Logger

	mu                sync.RWMutex
	enabled           bool
	activeEscalations map[string]*models.IncidentEscalation // keyed by alertId
	rules             []*models.EscalationRule
	schedules         []*models.OnCallSchedule
	resolvedHistory   []models.IncidentEscalation
}

func NewIncidentEscalationService(
	cfg config.EscalationConfig,
	alerts storage.AlertStore,
	notifier Notifier,
	clock scheduler.Clock,
	log logger.Logger,
) *IncidentEscalationService {
	s := &IncidentEscalationService{
		cfg:               cfg,
		alerts:            alerts,
		notifier:          notifier,
		clock:             clock,
		logger:            log,
		enabled:           cfg.Enabled,
		activeEscalations: make(map[string]*models.IncidentEscalation),
	}
	s.initializeDefaultRules()
	s.initializeOnCallSchedules()
	return s
}

func (s *IncidentEscalationService) initializeDefaultRules() {
	s.rules = []*models.EscalationRule{
		{
			ID:           "time-based-l1-to-l2",
			Name:         "Unacknowledged L1 to L2",
			Trigger:      models.TriggerTimeThreshold,
			FromLevel:    models.LevelL1Monitoring,
			ToLevel:      models.LevelL2Support,
			AfterMinutes: 15,
		},
		{
			ID:          "critical-direct-l3",
			Name:        "Critical Alerts Direct to Engineering",
			Trigger:     models.TriggerSeverityIncrease,
			ToLevel:     models.LevelL3Engineering,
			MinSeverity: models.SeverityCritical,
		},
	}
}

func (s *IncidentEscalationService) initializeOnCallSchedules() {
	s.schedules = []*models.OnCallSchedule{
		{
			ID:    "l1-monitoring",
			Name:  "Monitoring Team",
			Level: models.LevelL1Monitoring,
			Primary: []models.TeamMember{
				{Name: "monitoring-bot", Email: "monitoring@example.com", PreferredChannel: models.ChannelSlack},
			},
		},
		{
			ID:    "l2-support",
			Name:  "Support Team",
			Level: models.LevelL2Support,
			Primary: []models.TeamMember{
				{Name: "support-oncall", Email: "support-oncall@example.com", PreferredChannel: models.ChannelEmail},
			},
			Secondary: []models.TeamMember{
				{Name: "support-backup", Email: "support-backup@example.com", PreferredChannel: models.ChannelEmail},
			},
		},
		{
			ID:    "engineering",
			Name:  "Engineering On-Call",
			Level: models.LevelL3Engineering,
			Primary: []models.TeamMember{
				{Name: "eng-oncall", Email: "eng-oncall@example.com", Phone: "+15550100", PreferredChannel: models.ChannelSlack},
			},
			Secondary: []models.TeamMember{
				{Name: "eng-backup", Email: "eng-backup@example.com", Phone: "+15550101", PreferredChannel: models.ChannelSMS},
			},
		},
		{
			ID:    "management",
			Name:  "Engineering Management",
			Level: models.LevelL4Management,
			Primary: []models.TeamMember{
				{Name: "eng-manager", Email: "eng-manager@example.com", Phone: "+15550102", PreferredChannel: models.ChannelPhone},
			},
		},
		{
			ID:    "executive",
			Name:  "Executive Escalation",
			Level: models.LevelL5Executive,
			Primary: []models.TeamMember{
				{Name: "cto", Email: "cto@example.com", Phone: "+15550103", PreferredChannel: models.ChannelPhone},
			},
		},
	}
}

/* ------------------------------ escalation ------------------------------ */

// EscalateAlert opens an escalation for the alert, choosing the initial
// level from severity and business impact. Returns the existing escalation
// if one is already active for the alert.
func (s *IncidentEscalationService) EscalateAlert(ctx context.Context, alert *models.Alert, trigger models.EscalationTrigger) *models.IncidentEscalation {
	s.mu.Lock()
	if existing, ok := s.activeEscalations[alert.ID]; ok {
		s.mu.Unlock()
		return existing
	}

	impact := assessBusinessImpact(alert)
	level := initialLevelFor(alert, impact)

	esc := &models.IncidentEscalation{
		ID:             uuid.New().String(),
		AlertID:        alert.ID,
		CurrentLevel:   level,
		Status:         models.EscalationActive,
		BusinessImpact: impact,
		StartTime:      s.clock.Now(),
	}
	s.activeEscalations[alert.ID] = esc
	s.mu.Unlock()

	s.logger.Warn("Escalating alert",
		"alert", alert.ID, "level", level, "impact", impact.Level, "trigger", trigger)

	s.escalateToLevel(ctx, esc, level, trigger, alert)
	metrics.ActiveEscalations.Inc()
	return esc
}

// assessBusinessImpact derives blast radius from severity and whether the
// component is customer-facing.
func assessBusinessImpact(alert *models.Alert) models.BusinessImpact {
	customerFacing := customerFacingComponents[alert.Component]

	switch alert.Severity {
	case models.SeverityCritical:
		impact := models.BusinessImpact{Level: models.ImpactCritical, CustomerFacing: customerFacing}
		if customerFacing {
			impact.EstimatedRevenue = 10000
			impact.AffectedUsers = 1000
		}
		return impact
	case models.SeverityHigh:
		impact := models.BusinessImpact{Level: models.ImpactMedium, CustomerFacing: customerFacing}
		if customerFacing {
			impact.Level = models.ImpactHigh
			impact.EstimatedRevenue = 2000
			impact.AffectedUsers = 200
		}
		return impact
	default:
		return models.BusinessImpact{Level: models.ImpactLow, CustomerFacing: customerFacing}
	}
}

func initialLevelFor(alert *models.Alert, impact models.BusinessImpact) models.EscalationLevel {
	if impact.Level == models.ImpactCritical {
		return models.LevelL3Engineering
	}
	if impact.Level == models.ImpactHigh || alert.Severity == models.SeverityCritical {
		return models.LevelL2Support
	}
	return models.LevelL1Monitoring
}

// escalateToLevel appends a step for the level and notifies its on-call
// team. Secondary responders are paged only for critical impact.
func (s *IncidentEscalationService) escalateToLevel(ctx context.Context, esc *models.IncidentEscalation, level models.EscalationLevel, trigger models.EscalationTrigger, alert *models.Alert) {
	schedule := s.scheduleForLevel(level)

	step := models.EscalationStep{
		Level:       level,
		Timestamp:   s.clock.Now(),
		TriggeredBy: trigger,
	}

	var recipients []models.TeamMember
	if schedule != nil {
		recipients = append(recipients, schedule.Primary...)
		if esc.BusinessImpact.Level == models.ImpactCritical {
			recipients = append(recipients, schedule.Secondary...)
		}
	}

	notification := &Notification{
		Type:      "escalation",
		Title:     fmt.Sprintf("Incident escalated to %s", level),
		Message:   alertSummary(alert),
		Component: alert.Component,
		Severity:  alert.Severity,
		Timestamp: s.clock.Now(),
	}

	for _, member := range recipients {
		status := s.notifier.Notify(ctx, member, notification)
		step.AssignedTo = append(step.AssignedTo, member.Name)
		step.NotificationsSent++

		s.mu.Lock()
		esc.CommunicationLog = append(esc.CommunicationLog, models.CommunicationEntry{
			Timestamp: s.clock.Now(),
			Channel:   member.PreferredChannel,
			Recipient: member.Name,
			Message:   notification.Title,
			Status:    status,
		})
		s.mu.Unlock()
	}

	s.mu.Lock()
	esc.CurrentLevel = level
	esc.EscalationPath = append(esc.EscalationPath, step)
	s.mu.Unlock()

	metrics.EscalationsTotal.WithLabelValues(string(level), string(trigger)).Inc()
}

func alertSummary(alert *models.Alert) string {
	if alert == nil {
		return "alert details unavailable"
	}
	return fmt.Sprintf("[%s] %s: %s", alert.Severity, alert.Type, alert.Message)
}

func (s *IncidentEscalationService) scheduleForLevel(level models.EscalationLevel) *models.OnCallSchedule {
	for _, sched := range s.schedules {
		if sched.Level == level {
			return sched
		}
	}
	return nil
}

/* ----------------------------- periodic tick ----------------------------- */

// RunEscalationChecks is the periodic tick.
func (s *IncidentEscalationService) RunEscalationChecks(ctx context.Context) {
	s.mu.RLock()
	enabled := s.enabled
	s.mu.RUnlock()
	if !enabled {
		return
	}

	s.checkEscalationTimeouts(ctx)
	s.checkUnacknowledgedAlerts(ctx)
	s.evaluateEscalationRules(ctx)
	s.updateEscalationMetrics()
}

// checkEscalationTimeouts advances escalations whose current level has been
// unacknowledged beyond that level's timeout.
func (s *IncidentEscalationService) checkEscalationTimeouts(ctx context.Context) {
	s.mu.RLock()
	candidates := make([]*models.IncidentEscalation, 0, len(s.activeEscalations))
	for _, esc := range s.activeEscalations {
		candidates = append(candidates, esc)
	}
	s.mu.RUnlock()

	for _, esc := range candidates {
		s.mu.RLock()
		if len(esc.EscalationPath) == 0 {
			s.mu.RUnlock()
			continue
		}
		last := esc.EscalationPath[len(esc.EscalationPath)-1]
		s.mu.RUnlock()

		if last.Acknowledged {
			continue
		}
		timeout, ok := levelTimeouts[last.Level]
		if !ok {
			continue
		}
		if s.clock.Now().Sub(last.Timestamp) < timeout {
			continue
		}

		next := models.NextEscalationLevel(last.Level)
		if next == last.Level {
			continue // already at the top
		}

		alert, err := s.alerts.Get(ctx, esc.AlertID)
		if err != nil {
			alert = nil
		}
		s.logger.Warn("Escalation level timed out, advancing",
			"escalation", esc.ID, "from", last.Level, "to", next)
		s.escalateToLevel(ctx, esc, next, models.TriggerTimeThreshold, alert)
	}
}

// checkUnacknowledgedAlerts opens escalations for unresolved alerts that sat
// unacknowledged too long: critical after 5 minutes, high after 15.
func (s *IncidentEscalationService) checkUnacknowledgedAlerts(ctx context.Context) {
	alerts, err := s.alerts.ListUnresolved(ctx)
	if err != nil {
		s.logger.Error("Failed to list unresolved alerts", "error", err)
		return
	}

	for _, alert := range alerts {
		if alert.Status != models.AlertActive {
			continue
		}

		s.mu.RLock()
		_, escalating := s.activeEscalations[alert.ID]
		s.mu.RUnlock()
		if escalating {
			continue
		}

		age := s.clock.Now().Sub(alert.CreatedAt)
		if (alert.Severity == models.SeverityCritical && age >= 5*time.Minute) ||
			(alert.Severity == models.SeverityHigh && age >= 15*time.Minute) {
			s.EscalateAlert(ctx, alert, models.TriggerTimeThreshold)
		}
	}
}

// evaluateEscalationRules applies configured rules; a rule only ever moves
// an escalation up the ladder.
func (s *IncidentEscalationService) evaluateEscalationRules(ctx context.Context) {
	s.mu.RLock()
	candidates := make([]*models.IncidentEscalation, 0, len(s.activeEscalations))
	for _, esc := range s.activeEscalations {
		candidates = append(candidates, esc)
	}
	rules := make([]*models.EscalationRule, len(s.rules))
	copy(rules, s.rules)
	s.mu.RUnlock()

	for _, esc := range candidates {
		alert, err := s.alerts.Get(ctx, esc.AlertID)
		if err != nil {
			continue
		}

		for _, rule := range rules {
			if models.EscalationLevelPriority(rule.ToLevel) <= models.EscalationLevelPriority(esc.CurrentLevel) {
				continue
			}
			if rule.BusinessHours && !s.IsBusinessHours() {
				continue
			}
			if !s.ruleFires(rule, esc, alert) {
				continue
			}
			s.logger.Info("Escalation rule fired", "rule", rule.ID, "escalation", esc.ID, "to", rule.ToLevel)
			s.escalateToLevel(ctx, esc, rule.ToLevel, rule.Trigger, alert)
		}
	}
}

func (s *IncidentEscalationService) ruleFires(rule *models.EscalationRule, esc *models.IncidentEscalation, alert *models.Alert) bool {
	switch rule.Trigger {
	case models.TriggerTimeThreshold:
		if rule.FromLevel != "" && esc.CurrentLevel != rule.FromLevel {
			return false
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
		if len(esc.EscalationPath) == 0 {
			return false
		}
		last := esc.EscalationPath[len(esc.EscalationPath)-1]
		if last.Acknowledged {
			return false
		}
		return s.clock.Now().Sub(last.Timestamp) >= time.Duration(rule.AfterMinutes)*time.Minute

	case models.TriggerSeverityIncrease:
		return models.SeverityRank(alert.Severity) >= models.SeverityRank(rule.MinSeverity)

	case models.TriggerBusinessImpact:
		return esc.BusinessImpact.Level == models.ImpactCritical

	default:
		return false
	}
}

func (s *IncidentEscalationService) updateEscalationMetrics() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	metrics.ActiveEscalations.Set(float64(len(s.activeEscalations)))
}

// IsBusinessHours reports whether now is within configured weekday hours.
func (s *IncidentEscalationService) IsBusinessHours() bool {
	now := s.clock.Now()
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := now.Hour()
	return hour >= s.cfg.BusinessHoursStart && hour < s.cfg.BusinessHoursEnd
}

/* --------------------------- manual operations --------------------------- */

// AcknowledgeEscalation marks the current step acknowledged. Returns false
// if the escalation is unknown or the step is already acknowledged.
func (s *IncidentEscalationService) AcknowledgeEscalation(escalationID, acknowledgedBy string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, esc := range s.activeEscalations {
		if esc.ID != escalationID {
			continue
		}
		if len(esc.EscalationPath) == 0 {
			return false
		}
		last := &esc.EscalationPath[len(esc.EscalationPath)-1]
		if last.Acknowledged {
			return false
		}
		now := s.clock.Now()
		last.Acknowledged = true
		last.AcknowledgedBy = acknowledgedBy
		last.AcknowledgedAt = &now
		s.logger.Info("Escalation acknowledged", "escalation", escalationID, "by", acknowledgedBy)
		return true
	}
	return false
}

// ResolveEscalation closes the escalation and removes it from the active
// map. Returns false if not found.
func (s *IncidentEscalationService) ResolveEscalation(escalationID, resolvedBy, notes string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for alertID, esc := range s.activeEscalations {
		if esc.ID != escalationID {
			continue
		}
		now := s.clock.Now()
		esc.Status = models.EscalationResolved
		esc.EndTime = &now
		esc.ResolvedBy = resolvedBy
		esc.ResolutionNotes = notes
		delete(s.activeEscalations, alertID)
		s.resolvedHistory = append(s.resolvedHistory, *esc)
		metrics.ActiveEscalations.Dec()
		s.logger.Info("Escalation resolved", "escalation", escalationID, "by", resolvedBy)
		return true
	}
	return false
}

// NotifyTeam pages a named on-call schedule directly. Used by recovery
// notify_team steps.
func (s *IncidentEscalationService) NotifyTeam(ctx context.Context, target string, params map[string]string) (string, error) {
	s.mu.RLock()
	var schedule *models.OnCallSchedule
	for _, sched := range s.schedules {
		if sched.ID == target {
			schedule = sched
			break
		}
	}
	s.mu.RUnlock()

	if schedule == nil {
		return "", fmt.Errorf("unknown team: %s", target)
	}

	message := params["message"]
	if message == "" {
		message = "Automated recovery requested team attention"
	}

	notification := &Notification{
		Type:      "recovery",
		Title:     fmt.Sprintf("Recovery notification for %s", schedule.Name),
		Message:   message,
		Component: params["component"],
		Severity:  models.SeverityHigh,
		Timestamp: s.clock.Now(),
	}

	count := 0
	for _, member := range schedule.Primary {
		s.notifier.Notify(ctx, member, notification)
		count++
	}
	return fmt.Sprintf("Notified %d team members", count), nil
}

/* ------------------------------ observation ------------------------------ */

// GetActiveEscalations returns snapshots of all active escalations.
func (s *IncidentEscalationService) GetActiveEscalations() []models.IncidentEscalation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.IncidentEscalation, 0, len(s.activeEscalations))
	for _, esc := range s.activeEscalations {
		out = append(out, *esc)
	}
	return out
}

// GetStatus reports subsystem health.
func (s *IncidentEscalationService) GetStatus() models.ComponentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := models.ComponentStatus{
		Status:  models.HealthHealthy,
		Enabled: s.enabled,
		Issues:  []string{},
	}

	highLevel := 0
	for _, esc := range s.activeEscalations {
		if models.EscalationLevelPriority(esc.CurrentLevel) >= models.EscalationLevelPriority(models.LevelL4Management) {
			highLevel++
			status.Issues = append(status.Issues, fmt.Sprintf("escalation %s at %s", esc.ID, esc.CurrentLevel))
		}
	}

	if !s.enabled {
		status.Status = models.HealthUnhealthy
		status.Issues = append(status.Issues, "incident escalation is disabled")
	} else if highLevel > 0 {
		status.Status = models.HealthDegraded
	}

	status.Details = map[string]interface{}{
		"active_escalations": len(s.activeEscalations),
		"resolved_total":     len(s.resolvedHistory),
		"business_hours":     s.IsBusinessHours(),
	}
	return status
}

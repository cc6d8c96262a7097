package services

import (
	"context"
	"testing"
	"time"

	"github.com/platformbuilds/recovery-core/internal/config"
	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/internal/scheduler"
	"github.com/platformbuilds/recovery-core/internal/storage"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

type escalationFixture struct {
	svc      *IncidentEscalationService
	alerts   *storage.MemoryAlertStore
	notifier *fakeNotifier
	clock    *scheduler.FakeClock
}

func newEscalationFixture(t *testing.T) *escalationFixture {
	t.Helper()

	// Tuesday 10:00 UTC, inside business hours.
	clock := scheduler.NewFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	alerts := storage.NewMemoryAlertStore()
	notifier := &fakeNotifier{}

	cfg := config.EscalationConfig{Enabled: true, CheckIntervalSeconds: 60, BusinessHoursStart: 9, BusinessHoursEnd: 17}
	svc := NewIncidentEscalationService(cfg, alerts, notifier, clock, logger.NewNop())
	return &escalationFixture{svc: svc, alerts: alerts, notifier: notifier, clock: clock}
}

func (f *escalationFixture) newAlert(t *testing.T, severity models.AlertSeverity, component string) *models.Alert {
	t.Helper()
	alert := &models.Alert{
		ID:        "alert-" + string(severity) + "-" + component,
		Type:      "test_condition",
		Severity:  severity,
		Component: component,
		Message:   "something is wrong",
		Status:    models.AlertActive,
		CreatedAt: f.clock.Now(),
	}
	if err := f.alerts.Create(context.Background(), alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}
	return alert
}

func TestInitialEscalationLevels(t *testing.T) {
	cases := []struct {
		severity  models.AlertSeverity
		component string
		want      models.EscalationLevel
	}{
		{models.SeverityCritical, "api-server", models.LevelL3Engineering},
		{models.SeverityCritical, "batch-jobs", models.LevelL3Engineering},
		{models.SeverityHigh, "checkout", models.LevelL2Support},
		{models.SeverityHigh, "batch-jobs", models.LevelL1Monitoring},
		{models.SeverityMedium, "api-server", models.LevelL1Monitoring},
	}

	for _, tc := range cases {
		f := newEscalationFixture(t)
		alert := f.newAlert(t, tc.severity, tc.component)
		esc := f.svc.EscalateAlert(context.Background(), alert, models.TriggerManualRequest)
		if esc.CurrentLevel != tc.want {
			t.Errorf("%s/%s: expected %s, got %s", tc.severity, tc.component, tc.want, esc.CurrentLevel)
		}
	}
}

func TestEscalateAlertIsIdempotentPerAlert(t *testing.T) {
	f := newEscalationFixture(t)
	alert := f.newAlert(t, models.SeverityHigh, "checkout")

	first := f.svc.EscalateAlert(context.Background(), alert, models.TriggerManualRequest)
	second := f.svc.EscalateAlert(context.Background(), alert, models.TriggerManualRequest)
	if first.ID != second.ID {
		t.Error("second escalation of the same alert must return the existing one")
	}
	if len(f.svc.GetActiveEscalations()) != 1 {
		t.Error("expected a single active escalation")
	}
}

func TestTimeoutAdvancesLevelMonotonically(t *testing.T) {
	f := newEscalationFixture(t)
	ctx := context.Background()
	alert := f.newAlert(t, models.SeverityMedium, "batch-jobs")

	esc := f.svc.EscalateAlert(ctx, alert, models.TriggerManualRequest)
	if esc.CurrentLevel != models.LevelL1Monitoring {
		t.Fatalf("expected L1 start, got %s", esc.CurrentLevel)
	}

	// L1 times out after 15 minutes unacknowledged.
	f.clock.Advance(16 * time.Minute)
	f.svc.RunEscalationChecks(ctx)

	active := f.svc.GetActiveEscalations()
	if len(active) != 1 {
		t.Fatalf("expected 1 active escalation, got %d", len(active))
	}
	if active[0].CurrentLevel != models.LevelL2Support {
		t.Fatalf("expected L2 after timeout, got %s", active[0].CurrentLevel)
	}

	// L2 times out after 30 minutes.
	f.clock.Advance(31 * time.Minute)
	f.svc.RunEscalationChecks(ctx)

	active = f.svc.GetActiveEscalations()
	if active[0].CurrentLevel != models.LevelL3Engineering {
		t.Fatalf("expected L3, got %s", active[0].CurrentLevel)
	}

	// Levels never go back down.
	prev := models.EscalationLevelPriority(models.LevelL1Monitoring)
	for _, step := range active[0].EscalationPath {
		cur := models.EscalationLevelPriority(step.Level)
		if cur < prev {
			t.Fatalf("escalation path went down the ladder: %v", active[0].EscalationPath)
		}
		prev = cur
	}
}

func TestAcknowledgeStopsTimeoutClimb(t *testing.T) {
	f := newEscalationFixture(t)
	ctx := context.Background()
	alert := f.newAlert(t, models.SeverityMedium, "batch-jobs")

	esc := f.svc.EscalateAlert(ctx, alert, models.TriggerManualRequest)
	if !f.svc.AcknowledgeEscalation(esc.ID, "oncall") {
		t.Fatal("acknowledge should succeed")
	}
	if f.svc.AcknowledgeEscalation(esc.ID, "oncall") {
		t.Fatal("second acknowledge of the same step should report false")
	}
	if f.svc.AcknowledgeEscalation("missing", "oncall") {
		t.Fatal("unknown escalation should report false")
	}

	f.clock.Advance(2 * time.Hour)
	f.svc.RunEscalationChecks(ctx)
	if got := f.svc.GetActiveEscalations()[0].CurrentLevel; got != models.LevelL1Monitoring {
		t.Errorf("acknowledged escalation must not climb, got %s", got)
	}
}

func TestResolveEscalation(t *testing.T) {
	f := newEscalationFixture(t)
	alert := f.newAlert(t, models.SeverityHigh, "checkout")
	esc := f.svc.EscalateAlert(context.Background(), alert, models.TriggerManualRequest)

	if !f.svc.ResolveEscalation(esc.ID, "engineer", "reset the pool") {
		t.Fatal("resolve should succeed")
	}
	if f.svc.ResolveEscalation(esc.ID, "engineer", "") {
		t.Fatal("resolving twice should report false")
	}
	if len(f.svc.GetActiveEscalations()) != 0 {
		t.Error("resolved escalation must leave the active set")
	}
}

func TestUnacknowledgedCriticalAlertEscalatesAfterFiveMinutes(t *testing.T) {
	f := newEscalationFixture(t)
	ctx := context.Background()
	f.newAlert(t, models.SeverityCritical, "payments")

	f.svc.RunEscalationChecks(ctx)
	if len(f.svc.GetActiveEscalations()) != 0 {
		t.Fatal("fresh alert should not escalate yet")
	}

	f.clock.Advance(6 * time.Minute)
	f.svc.RunEscalationChecks(ctx)

	active := f.svc.GetActiveEscalations()
	if len(active) != 1 {
		t.Fatalf("expected escalation for stale critical alert, got %d", len(active))
	}
	if active[0].CurrentLevel != models.LevelL3Engineering {
		t.Errorf("critical customer-facing alert starts at L3, got %s", active[0].CurrentLevel)
	}
}

func TestCriticalImpactPagesSecondaryResponders(t *testing.T) {
	f := newEscalationFixture(t)
	alert := f.newAlert(t, models.SeverityCritical, "payments")

	esc := f.svc.EscalateAlert(context.Background(), alert, models.TriggerManualRequest)
	// The engineering schedule has one primary and one secondary responder.
	if f.notifier.notifiedCount() != 2 {
		t.Errorf("critical impact pages primary and secondary, notified %d", f.notifier.notifiedCount())
	}
	if len(esc.CommunicationLog) != 2 {
		t.Errorf("expected 2 communication log entries, got %d", len(esc.CommunicationLog))
	}
}

func TestNotifyTeam(t *testing.T) {
	f := newEscalationFixture(t)

	msg, err := f.svc.NotifyTeam(context.Background(), "engineering", map[string]string{"message": "restart failed"})
	if err != nil {
		t.Fatalf("NotifyTeam failed: %v", err)
	}
	if msg != "Notified 1 team members" {
		t.Errorf("unexpected message: %q", msg)
	}

	if _, err := f.svc.NotifyTeam(context.Background(), "astronauts", nil); err == nil {
		t.Fatal("unknown team should error")
	}
}

func TestIsBusinessHours(t *testing.T) {
	f := newEscalationFixture(t)
	if !f.svc.IsBusinessHours() {
		t.Error("Tuesday 10:00 should be business hours")
	}

	f.clock.Advance(9 * time.Hour) // 19:00
	if f.svc.IsBusinessHours() {
		t.Error("19:00 is outside business hours")
	}

	f.clock.Advance(4 * 24 * time.Hour) // Saturday
	if f.svc.IsBusinessHours() {
		t.Error("weekend is never business hours")
	}
}

func TestEscalationStatusDegradedAtHighLevels(t *testing.T) {
	f := newEscalationFixture(t)
	ctx := context.Background()

	if got := f.svc.GetStatus(); got.Status != models.HealthHealthy {
		t.Fatalf("expected healthy, got %s", got.Status)
	}

	alert := f.newAlert(t, models.SeverityCritical, "payments")
	f.svc.EscalateAlert(ctx, alert, models.TriggerManualRequest)

	// Climb L3 -> L4 via timeout.
	f.clock.Advance(46 * time.Minute)
	f.svc.RunEscalationChecks(ctx)

	got := f.svc.GetStatus()
	if got.Status != models.HealthDegraded {
		t.Fatalf("L4 escalation should degrade status, got %s", got.Status)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/recovery-core/internal/api"
	"github.com/platformbuilds/recovery-core/internal/config"
	"github.com/platformbuilds/recovery-core/internal/scheduler"
	"github.com/platformbuilds/recovery-core/internal/services"
	"github.com/platformbuilds/recovery-core/internal/storage"
	"github.com/platformbuilds/recovery-core/pkg/cache"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting RECOVERY-CORE", "version", "v1.4.0", "environment", cfg.Environment)

	// Valkey backs degradation fallback payloads; fall back to the in-memory
	// cache when no node is configured or reachable.
	valkeyCache := buildCache(cfg, logger)

	// Shared stores feeding every recovery engine.
	metricsStore := storage.NewMemoryMetricsStore()
	alertStore := storage.NewMemoryAlertStore()

	clock := scheduler.RealClock()
	prober := services.NewHTTPProber(cfg.Probes, logger)
	executor := services.NewSystemExecutor(valkeyCache, prober, logger)
	notifier := services.NewIntegrationsService(cfg.Integrations, logger)

	escalation := services.NewIncidentEscalationService(cfg.Escalation, alertStore, notifier, clock, logger)
	deployments := services.NewDeploymentMonitoringService(cfg.Deployment, metricsStore, prober, clock, logger)
	recovery := services.NewAutoRecoveryService(cfg.Recovery, alertStore, metricsStore, executor, prober, escalation, deployments, clock, logger)
	if cfg.Recovery.RulesFile != "" {
		actions, err := config.LoadRecoveryRules(cfg.Recovery.RulesFile)
		if err != nil {
			logger.Fatal("Failed to load recovery rules", "file", cfg.Recovery.RulesFile, "error", err)
		}
		for _, action := range actions {
			if err := recovery.RegisterAction(action); err != nil {
				logger.Error("Skipping recovery rule", "action", action.ID, "error", err)
			}
		}
		logger.Info("Recovery rules loaded", "file", cfg.Recovery.RulesFile, "actions", len(actions))
	}

	circuits := services.NewCircuitBreakerService(logger)
	degradation := services.NewGracefulDegradationService(cfg.Degradation, metricsStore, alertStore, valkeyCache, prober, clock, logger)
	healing := services.NewSelfHealingService(cfg.Healing, metricsStore, executor, prober, clock, logger)

	// Background pollers
	sched := scheduler.New(clock, logger)
	registerTasks(sched, cfg, recovery, degradation, healing, escalation, deployments)

	apiServer := api.NewServer(cfg, logger, valkeyCache, api.Services{
		Recovery:    recovery,
		Circuits:    circuits,
		Degradation: degradation,
		Healing:     healing,
		Escalation:  escalation,
		Deployments: deployments,
	}, alertStore, metricsStore)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	sched.Start(ctx)
	defer sched.Stop()

	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("Server failed to start", "error", err)
	}

	logger.Info("RECOVERY-CORE shutdown complete")
}

func buildCache(cfg *config.Config, log logger.Logger) cache.ValkeyCluster {
	if cfg.Cache.Enabled && len(cfg.Cache.Nodes) > 0 {
		c, err := cache.NewValkeySingle(cfg.Cache.Nodes[0], cfg.Cache.DB, cfg.Cache.Password, time.Duration(cfg.Cache.TTL)*time.Second)
		if err == nil {
			log.Info("Valkey cache initialized", "node", cfg.Cache.Nodes[0])
			return c
		}
		log.Error("Failed to connect to Valkey, using in-memory fallback", "error", err)
	}
	return cache.NewNoopValkeyCache(log)
}

func registerTasks(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	recovery *services.AutoRecoveryService,
	degradation *services.GracefulDegradationService,
	healing *services.SelfHealingService,
	escalation *services.IncidentEscalationService,
	deployments *services.DeploymentMonitoringService,
) {
	monitorEvery := secondsOrDefault(cfg.Recovery.MonitorIntervalSeconds, 30)
	maintenanceEvery := secondsOrDefault(cfg.Recovery.MaintenanceIntervalSecs, 300)

	sched.Register(scheduler.Task{Name: "recovery.monitor_alerts", Interval: monitorEvery, Run: recovery.MonitorActiveAlerts})
	sched.Register(scheduler.Task{Name: "recovery.process_queue", Interval: monitorEvery, Run: recovery.ProcessRecoveryQueue})
	sched.Register(scheduler.Task{Name: "recovery.self_check", Interval: monitorEvery, Run: recovery.PerformHealthSelfCheck})
	sched.Register(scheduler.Task{Name: "recovery.system_health", Interval: maintenanceEvery, Run: recovery.PerformSystemHealthCheck})
	sched.Register(scheduler.Task{Name: "recovery.update_metrics", Interval: maintenanceEvery, Run: recovery.UpdateRecoveryMetrics})
	sched.Register(scheduler.Task{Name: "recovery.cleanup", Interval: maintenanceEvery, Run: recovery.CleanupOldAttempts})

	sched.Register(scheduler.Task{
		Name:     "degradation.evaluate",
		Interval: secondsOrDefault(cfg.Degradation.EvaluationIntervalSeconds, 30),
		Run:      degradation.EvaluateDegradationNeeds,
	})
	sched.Register(scheduler.Task{
		Name:     "healing.detect",
		Interval: secondsOrDefault(cfg.Healing.IntervalSeconds, 60),
		Run:      healing.DetectAndHealIssues,
	})
	sched.Register(scheduler.Task{
		Name:     "escalation.check_timeouts",
		Interval: secondsOrDefault(cfg.Escalation.CheckIntervalSeconds, 60),
		Run:      escalation.RunEscalationChecks,
	})
	sched.Register(scheduler.Task{
		Name:     "deployment.monitor",
		Interval: secondsOrDefault(cfg.Deployment.MonitorIntervalSeconds, 60),
		Run:      deployments.MonitorDeployments,
	})
}

func secondsOrDefault(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

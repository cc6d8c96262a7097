package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/recovery-core/internal/api/handlers"
	"github.com/platformbuilds/recovery-core/internal/api/middleware"
	"github.com/platformbuilds/recovery-core/internal/config"
	"github.com/platformbuilds/recovery-core/internal/monitoring"
	"github.com/platformbuilds/recovery-core/internal/services"
	"github.com/platformbuilds/recovery-core/internal/storage"
	"github.com/platformbuilds/recovery-core/pkg/cache"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

// Services bundles the six recovery subsystems exposed over the admin API.
type Services struct {
	Recovery    *services.AutoRecoveryService
	Circuits    *services.CircuitBreakerService
	Degradation *services.GracefulDegradationService
	Healing     *services.SelfHealingService
	Escalation  *services.IncidentEscalationService
	Deployments *services.DeploymentMonitoringService
}

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.ValkeyCluster
	services   Services
	alerts     storage.AlertStore
	metrics    storage.MetricsStore
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	valkeyCache cache.ValkeyCluster,
	svcs Services,
	alerts storage.AlertStore,
	metrics storage.MetricsStore,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	server := &Server{
		config:   cfg,
		logger:   log,
		cache:    valkeyCache,
		services: svcs,
		alerts:   alerts,
		metrics:  metrics,
		router:   router,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// CORS for the admin UI
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))

	// Request logging
	s.router.Use(middleware.RequestLogger(s.logger))

	// Prometheus request metrics
	s.router.Use(middleware.MetricsMiddleware())

	// Prometheus metrics endpoint
	monitoring.SetupPrometheusMetrics(s.router)
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.cache, s.logger)

	// Public health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1/recovery")

	recoveryHandler := handlers.NewRecoveryHandler(s.services.Recovery, s.alerts, s.metrics, s.logger)
	v1.GET("/auto-recovery/status", recoveryHandler.GetStatus)
	v1.GET("/auto-recovery/stats", recoveryHandler.GetStats)
	v1.GET("/auto-recovery/active", recoveryHandler.GetActive)
	v1.GET("/auto-recovery/history", recoveryHandler.GetHistory)
	v1.GET("/auto-recovery/actions", recoveryHandler.GetActions)
	v1.POST("/auto-recovery/actions", recoveryHandler.RegisterAction)
	v1.POST("/auto-recovery/enable", recoveryHandler.Enable)
	v1.POST("/auto-recovery/disable", recoveryHandler.Disable)
	v1.POST("/auto-recovery/test/:actionId", recoveryHandler.TestAction)

	// Alert ingestion and metric samples feed the recovery engine.
	v1.POST("/alerts", recoveryHandler.IngestAlert)
	v1.GET("/alerts", recoveryHandler.ListAlerts)
	v1.POST("/metrics", recoveryHandler.RecordMetric)

	circuitHandler := handlers.NewCircuitBreakerHandler(s.services.Circuits, s.logger)
	v1.GET("/circuit-breaker/status", circuitHandler.GetStatus)
	v1.GET("/circuit-breaker/circuits", circuitHandler.GetCircuits)
	v1.GET("/circuit-breaker/circuits/:id/stats", circuitHandler.GetCircuitStats)
	v1.POST("/circuit-breaker/circuits/:id/reset", circuitHandler.ResetCircuit)
	v1.POST("/circuit-breaker/circuits/:id/force-open", circuitHandler.ForceOpenCircuit)
	v1.POST("/circuit-breaker/reset-all", circuitHandler.ResetAllCircuits)

	degradationHandler := handlers.NewDegradationHandler(s.services.Degradation, s.logger)
	v1.GET("/degradation/status", degradationHandler.GetStatus)
	v1.GET("/degradation/active", degradationHandler.GetActive)
	v1.GET("/degradation/features", degradationHandler.GetFeatures)
	v1.POST("/degradation/enable", degradationHandler.Enable)
	v1.POST("/degradation/disable", degradationHandler.Disable)
	v1.POST("/degradation/:ruleId/activate", degradationHandler.Activate)
	v1.POST("/degradation/:ruleId/revert", degradationHandler.Revert)

	escalationHandler := handlers.NewEscalationHandler(s.services.Escalation, s.logger)
	v1.GET("/escalation/status", escalationHandler.GetStatus)
	v1.GET("/escalation/active", escalationHandler.GetActive)
	v1.POST("/escalation/:id/acknowledge", escalationHandler.Acknowledge)
	v1.POST("/escalation/:id/resolve", escalationHandler.Resolve)

	healingHandler := handlers.NewHealingHandler(s.services.Healing, s.logger)
	v1.GET("/self-healing/status", healingHandler.GetStatus)
	v1.GET("/self-healing/health", healingHandler.GetSystemHealth)
	v1.GET("/self-healing/history", healingHandler.GetHistory)
	v1.GET("/self-healing/active", healingHandler.GetActive)
	v1.POST("/self-healing/enable", healingHandler.Enable)
	v1.POST("/self-healing/disable", healingHandler.Disable)
	v1.POST("/self-healing/force", healingHandler.ForceHealing)

	deploymentHandler := handlers.NewDeploymentHandler(s.services.Deployments, s.logger)
	v1.GET("/deployment/status", deploymentHandler.GetStatus)
	v1.GET("/deployment/active", deploymentHandler.GetActive)
	v1.GET("/deployment/history", deploymentHandler.GetHistory)
	v1.POST("/deployment/track", deploymentHandler.TrackDeployment)
	v1.POST("/deployment/auto-rollback/enable", deploymentHandler.EnableAutoRollback)
	v1.POST("/deployment/auto-rollback/disable", deploymentHandler.DisableAutoRollback)
	v1.GET("/deployment/:id", deploymentHandler.GetDeployment)
	v1.POST("/deployment/:id/rollback", deploymentHandler.Rollback)

	overviewHandler := handlers.NewOverviewHandler(
		s.services.Recovery,
		s.services.Circuits,
		s.services.Degradation,
		s.services.Healing,
		s.services.Escalation,
		s.services.Deployments,
		s.logger,
	)
	v1.GET("/overview", overviewHandler.GetOverview)
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("RECOVERY-CORE REST API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down RECOVERY-CORE gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}

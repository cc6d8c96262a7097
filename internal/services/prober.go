package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/platformbuilds/recovery-core/internal/config"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

// ServiceProber answers whether a named tracked service is reachable. Used
// by self-healing health snapshots, degradation service_unavailable triggers,
// and recovery step success conditions.
type ServiceProber interface {
	IsAvailable(ctx context.Context, service string) bool
	ProbeURL(ctx context.Context, url string) error
}

// HTTPProber probes configured health endpoints. A probe retries twice on
// transient failure before declaring the service unavailable.
type HTTPProber struct {
	endpoints map[string]string
	client    *http.Client
	logger    logger.Logger
}

func NewHTTPProber(cfg config.ProbesConfig, log logger.Logger) *HTTPProber {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		endpoints: cfg.Services,
		client:    &http.Client{Timeout: timeout},
		logger:    log,
	}
}

func (p *HTTPProber) IsAvailable(ctx context.Context, service string) bool {
	url, ok := p.endpoints[service]
	if !ok {
		p.logger.Debug("No probe endpoint configured for service", "service", service)
		return false
	}
	if err := p.ProbeURL(ctx, url); err != nil {
		p.logger.Debug("Service probe failed", "service", service, "error", err)
		return false
	}
	return true
}

func (p *HTTPProber) ProbeURL(ctx context.Context, url string) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := p.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 500 {
				return fmt.Errorf("probe returned status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

// Package storage defines the persistence surfaces consumed by the recovery
// engines. The engines treat metrics and alerts as opaque external stores;
// the in-memory implementation here backs single-node deployments and tests.
package storage

import (
	"context"
	"time"

	"github.com/platformbuilds/recovery-core/internal/models"
)

// MetricPoint is one sample of a named metric.
type MetricPoint struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// MetricsReader is the read surface used by trigger evaluation.
type MetricsReader interface {
	// LatestValue returns the most recent sample of the metric.
	LatestValue(ctx context.Context, name string) (float64, error)
	// RecentValues returns samples of the metric within the trailing window.
	RecentValues(ctx context.Context, name string, window time.Duration) ([]MetricPoint, error)
}

// MetricsWriter ingests samples. Used by monitoring producers and tests.
type MetricsWriter interface {
	Record(ctx context.Context, point MetricPoint) error
}

// MetricsStore combines both metric surfaces.
type MetricsStore interface {
	MetricsReader
	MetricsWriter
}

// AlertStore persists alert records shared by recovery and escalation.
type AlertStore interface {
	Create(ctx context.Context, alert *models.Alert) error
	Get(ctx context.Context, id string) (*models.Alert, error)
	Update(ctx context.Context, alert *models.Alert) error
	// ListUnresolved returns alerts that are not yet resolved, oldest first.
	ListUnresolved(ctx context.Context) ([]*models.Alert, error)
}

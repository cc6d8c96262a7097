package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platformbuilds/recovery-core/internal/models"
)

// metricRetention bounds how long samples are kept in memory.
const metricRetention = 30 * time.Minute

// MemoryMetricsStore is a process-local MetricsStore. Samples older than the
// retention window are dropped on write.
type MemoryMetricsStore struct {
	mu     sync.RWMutex
	series map[string][]MetricPoint
	now    func() time.Time
}

func NewMemoryMetricsStore() *MemoryMetricsStore {
	return &MemoryMetricsStore{
		series: make(map[string][]MetricPoint),
		now:    time.Now,
	}
}

// NewMemoryMetricsStoreWithClock injects a clock for deterministic tests.
func NewMemoryMetricsStoreWithClock(now func() time.Time) *MemoryMetricsStore {
	s := NewMemoryMetricsStore()
	s.now = now
	return s
}

func (s *MemoryMetricsStore) Record(ctx context.Context, point MetricPoint) error {
	if point.Name == "" {
		return fmt.Errorf("metric name is required")
	}
	if point.Timestamp.IsZero() {
		point.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	points := append(s.series[point.Name], point)
	cutoff := s.now().Add(-metricRetention)
	trimmed := points[:0]
	for _, p := range points {
		if p.Timestamp.After(cutoff) {
			trimmed = append(trimmed, p)
		}
	}
	s.series[point.Name] = trimmed
	return nil
}

func (s *MemoryMetricsStore) LatestValue(ctx context.Context, name string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.series[name]
	if len(points) == 0 {
		return 0, fmt.Errorf("no samples for metric: %s", name)
	}
	latest := points[0]
	for _, p := range points[1:] {
		if p.Timestamp.After(latest.Timestamp) {
			latest = p
		}
	}
	return latest.Value, nil
}

func (s *MemoryMetricsStore) RecentValues(ctx context.Context, name string, window time.Duration) ([]MetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-window)
	var out []MetricPoint
	for _, p := range s.series[name] {
		if p.Timestamp.After(cutoff) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// MemoryAlertStore is a process-local AlertStore.
type MemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*models.Alert
	order  []string
}

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{alerts: make(map[string]*models.Alert)}
}

func (s *MemoryAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		return fmt.Errorf("alert id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alert.ID]; exists {
		return fmt.Errorf("alert already exists: %s", alert.ID)
	}
	copied := *alert
	s.alerts[alert.ID] = &copied
	s.order = append(s.order, alert.ID)
	return nil
}

func (s *MemoryAlertStore) Get(ctx context.Context, id string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert not found: %s", id)
	}
	copied := *alert
	return &copied, nil
}

func (s *MemoryAlertStore) Update(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[alert.ID]; !ok {
		return fmt.Errorf("alert not found: %s", alert.ID)
	}
	copied := *alert
	s.alerts[alert.ID] = &copied
	return nil
}

func (s *MemoryAlertStore) ListUnresolved(ctx context.Context) ([]*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Alert
	for _, id := range s.order {
		alert := s.alerts[id]
		if alert.Status != models.AlertResolved {
			copied := *alert
			out = append(out, &copied)
		}
	}
	return out, nil
}

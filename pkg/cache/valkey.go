package cache

import (
	"context"
	"time"
)

// ValkeyCluster is the cache surface used across RECOVERY-CORE. Degradation
// fallbacks, static content snapshots, and rate-limit markers all live behind
// this interface so the services never touch a Redis client directly.
type ValkeyCluster interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	HealthCheck(ctx context.Context) error
}

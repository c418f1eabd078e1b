package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. Its main client
// is the bureau client, which caches per-identifier credit reports so
// repeated traversals do not re-query the bureau network.
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetReport retrieves a cached bureau report.
	// Returns nil, nil on a miss.
	GetReport(ctx context.Context, tenantID string, docKind, id string) (*CreditReport, error)

	// SetReport caches a bureau report.
	SetReport(ctx context.Context, tenantID string, docKind, id string, report *CreditReport, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}

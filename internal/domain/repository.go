// Package domain defines the core types and interfaces for Condor.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Application operations
	SaveApplication(ctx context.Context, tenantID string, app *Application) error
	GetApplication(ctx context.Context, tenantID string, appID string) (*Application, error)

	// Rule operations. ListRules returns active rules in display order.
	SaveRule(ctx context.Context, tenantID string, rule *ComparisonRule) error
	GetRule(ctx context.Context, tenantID string, ruleID string) (*ComparisonRule, error)
	ListRules(ctx context.Context, tenantID string) ([]*ComparisonRule, error)
	DeleteRule(ctx context.Context, tenantID string, ruleID string) error

	// Evaluation results
	SaveEvaluation(ctx context.Context, tenantID string, result *EvaluationResult) error
	GetEvaluation(ctx context.Context, tenantID string, evalID string) (*EvaluationResult, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

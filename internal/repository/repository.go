// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andes-fintech/condor/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveApplication stores an application with tenant isolation.
func (r *SQLRepository) SaveApplication(ctx context.Context, tenantID string, app *domain.Application) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	createdAt := app.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO applications (
			id, tenant_id, applicant_id, applicant_name,
			company_tax_id, company_name, requested_amount, currency,
			monthly_revenue, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		app.ID, tenantID, app.ApplicantID, app.ApplicantName,
		app.CompanyTaxID, app.CompanyName, app.RequestedAmount, app.Currency,
		app.MonthlyRevenue, createdAt,
	)
	return err
}

// GetApplication retrieves an application by ID with tenant isolation.
func (r *SQLRepository) GetApplication(ctx context.Context, tenantID string, appID string) (*domain.Application, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, applicant_id, applicant_name,
			   company_tax_id, company_name, requested_amount, currency,
			   monthly_revenue, created_at
		FROM applications
		WHERE tenant_id = ? AND id = ?
	`

	var app domain.Application
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appID).Scan(
		&app.ID, &app.TenantID, &app.ApplicantID, &app.ApplicantName,
		&app.CompanyTaxID, &app.CompanyName, &app.RequestedAmount, &app.Currency,
		&app.MonthlyRevenue, &app.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &app, nil
}

// SaveRule stores a comparison rule with tenant isolation, replacing
// any prior version of the same id.
func (r *SQLRepository) SaveRule(ctx context.Context, tenantID string, rule *domain.ComparisonRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rules (
			id, tenant_id, name, description, kind, field, operator,
			threshold, expression, weight, outcome, enabled, display_order,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			kind = excluded.kind,
			field = excluded.field,
			operator = excluded.operator,
			threshold = excluded.threshold,
			expression = excluded.expression,
			weight = excluded.weight,
			outcome = excluded.outcome,
			enabled = excluded.enabled,
			display_order = excluded.display_order,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		string(rule.EffectiveKind()), string(rule.Field), string(rule.Operator),
		rule.Threshold, rule.Expression, rule.Weight, string(rule.Outcome),
		enabled, rule.DisplayOrder, now, now,
	)
	return err
}

// GetRule retrieves a rule with tenant isolation.
func (r *SQLRepository) GetRule(ctx context.Context, tenantID string, ruleID string) (*domain.ComparisonRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, kind, field, operator,
			   threshold, expression, weight, outcome, enabled, display_order
		FROM rules
		WHERE tenant_id = ? AND id = ?
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules retrieves all active rules for a tenant in display order.
func (r *SQLRepository) ListRules(ctx context.Context, tenantID string) ([]*domain.ComparisonRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, kind, field, operator,
			   threshold, expression, weight, outcome, enabled, display_order
		FROM rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY display_order, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ComparisonRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}

	return out, rows.Err()
}

// DeleteRule soft-deletes a rule by setting enabled = 0.
func (r *SQLRepository) DeleteRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		UPDATE rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// SaveEvaluation stores an evaluation result with tenant isolation.
func (r *SQLRepository) SaveEvaluation(ctx context.Context, tenantID string, result *domain.EvaluationResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	verdicts, _ := json.Marshal(result.Verdicts)
	findings, _ := json.Marshal(result.Findings)
	breakdown, _ := json.Marshal(result.Breakdown)
	alerts, _ := json.Marshal(result.Alerts)
	stats, _ := json.Marshal(result.NetworkStats)
	creditLine, _ := json.Marshal(result.CreditLine)
	metadata, _ := json.Marshal(result.Metadata)

	query := `
		INSERT INTO evaluations (
			id, tenant_id, application_id, recommendation, score, risk_tier,
			network_penalty, summary, timestamp,
			verdicts, findings, breakdown, alerts, network_stats, credit_line, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		result.ID, tenantID, result.ApplicationID,
		string(result.Recommendation), result.Score, string(result.RiskTier),
		result.NetworkPenalty, result.Summary, result.Timestamp,
		string(verdicts), string(findings), string(breakdown),
		string(alerts), string(stats), string(creditLine), string(metadata),
	)
	return err
}

// GetEvaluation retrieves an evaluation by ID with tenant isolation.
func (r *SQLRepository) GetEvaluation(ctx context.Context, tenantID string, evalID string) (*domain.EvaluationResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, application_id, recommendation, score, risk_tier,
			   network_penalty, summary, timestamp,
			   verdicts, findings, breakdown, alerts, network_stats, credit_line, metadata
		FROM evaluations
		WHERE tenant_id = ? AND id = ?
	`

	var result domain.EvaluationResult
	var verdicts, findings, breakdown, alerts, stats, creditLine, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, evalID).Scan(
		&result.ID, &result.TenantID, &result.ApplicationID,
		&result.Recommendation, &result.Score, &result.RiskTier,
		&result.NetworkPenalty, &result.Summary, &result.Timestamp,
		&verdicts, &findings, &breakdown, &alerts, &stats, &creditLine, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(verdicts), &result.Verdicts)
	json.Unmarshal([]byte(findings), &result.Findings)
	json.Unmarshal([]byte(breakdown), &result.Breakdown)
	json.Unmarshal([]byte(alerts), &result.Alerts)
	json.Unmarshal([]byte(stats), &result.NetworkStats)
	json.Unmarshal([]byte(creditLine), &result.CreditLine)
	json.Unmarshal([]byte(metadata), &result.Metadata)

	return &result, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanRule.
type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*domain.ComparisonRule, error) {
	var rule domain.ComparisonRule
	var kind, field, operator, outcome string
	var enabled int

	err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&kind, &field, &operator, &rule.Threshold, &rule.Expression,
		&rule.Weight, &outcome, &enabled, &rule.DisplayOrder,
	)
	if err != nil {
		return nil, err
	}

	rule.Kind = domain.RuleKind(kind)
	rule.Field = field
	rule.Operator = domain.Operator(operator)
	rule.Outcome = domain.Outcome(outcome)
	rule.Enabled = enabled == 1
	return &rule, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

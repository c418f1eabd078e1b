package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/andes-fintech/condor/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "condor-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetApplication", func(t *testing.T) {
		app := &domain.Application{
			ID:              "app-001",
			ApplicantID:     "12345678",
			ApplicantName:   "JUAN PEREZ",
			CompanyTaxID:    "20100012345",
			CompanyName:     "ACME S.A.C.",
			RequestedAmount: 50000,
			Currency:        "PEN",
			MonthlyRevenue:  40000,
			CreatedAt:       time.Now().UTC(),
		}

		if err := repo.SaveApplication(ctx, tenantID, app); err != nil {
			t.Fatalf("SaveApplication failed: %v", err)
		}

		retrieved, err := repo.GetApplication(ctx, tenantID, app.ID)
		if err != nil {
			t.Fatalf("GetApplication failed: %v", err)
		}

		if retrieved.ApplicantID != app.ApplicantID {
			t.Errorf("expected ApplicantID %s, got %s", app.ApplicantID, retrieved.ApplicantID)
		}
		if retrieved.RequestedAmount != app.RequestedAmount {
			t.Errorf("expected RequestedAmount %.2f, got %.2f", app.RequestedAmount, retrieved.RequestedAmount)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
	})

	t.Run("SaveAndGetRule", func(t *testing.T) {
		rule := &domain.ComparisonRule{
			ID:           "min-equity",
			Name:         "minimum equity",
			Field:        "equity",
			Operator:     domain.OpGreaterOrEqual,
			Threshold:    10000,
			Weight:       0.8,
			Outcome:      domain.OutcomeApprove,
			Enabled:      true,
			DisplayOrder: 1,
		}

		if err := repo.SaveRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveRule failed: %v", err)
		}

		retrieved, err := repo.GetRule(ctx, tenantID, rule.ID)
		if err != nil {
			t.Fatalf("GetRule failed: %v", err)
		}
		if retrieved.Operator != domain.OpGreaterOrEqual {
			t.Errorf("expected operator gte, got %s", retrieved.Operator)
		}
		if retrieved.Kind != domain.RuleKindComparison {
			t.Errorf("expected comparison kind, got %s", retrieved.Kind)
		}
		if !retrieved.Enabled {
			t.Error("expected rule enabled")
		}
	})

	t.Run("SaveRuleUpsert", func(t *testing.T) {
		rule := &domain.ComparisonRule{
			ID: "min-equity", Name: "minimum equity v2",
			Field: "equity", Operator: domain.OpGreaterOrEqual, Threshold: 20000,
			Weight: 1, Outcome: domain.OutcomeApprove, Enabled: true,
		}

		if err := repo.SaveRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		retrieved, err := repo.GetRule(ctx, tenantID, rule.ID)
		if err != nil {
			t.Fatalf("GetRule failed: %v", err)
		}
		if retrieved.Threshold != 20000 {
			t.Errorf("expected updated threshold, got %v", retrieved.Threshold)
		}
	})

	t.Run("ListRulesDisplayOrder", func(t *testing.T) {
		second := &domain.ComparisonRule{
			ID: "aaa-later", Name: "sorted by display order, not id",
			Kind: domain.RuleKindExpression, Expression: "fields.revenue > 0.0",
			Weight: 0.5, Outcome: domain.OutcomeReview, Enabled: true, DisplayOrder: 9,
		}
		if err := repo.SaveRule(ctx, tenantID, second); err != nil {
			t.Fatalf("SaveRule failed: %v", err)
		}

		rules, err := repo.ListRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("expected 2 rules, got %d", len(rules))
		}
		if rules[0].ID != "min-equity" || rules[1].ID != "aaa-later" {
			t.Errorf("rules out of display order: %s, %s", rules[0].ID, rules[1].ID)
		}
		if rules[1].Kind != domain.RuleKindExpression {
			t.Errorf("expression kind lost in round trip: %s", rules[1].Kind)
		}
	})

	t.Run("DeleteRule", func(t *testing.T) {
		if err := repo.DeleteRule(ctx, tenantID, "aaa-later"); err != nil {
			t.Fatalf("DeleteRule failed: %v", err)
		}

		rules, err := repo.ListRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("expected disabled rule excluded from list, got %d rules", len(rules))
		}

		if err := repo.DeleteRule(ctx, tenantID, "never-existed"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("SaveAndGetEvaluation", func(t *testing.T) {
		actual := 60000.0
		result := &domain.EvaluationResult{
			ID:             "eval-001",
			ApplicationID:  "app-001",
			Recommendation: domain.RecommendApprove,
			Score:          87.5,
			RiskTier:       domain.TierLow,
			NetworkPenalty: 4.5,
			Verdicts: []domain.RuleVerdict{
				{RuleID: "min-equity", Satisfied: true, Actual: &actual, Weight: 0.8},
			},
			Findings: []domain.Finding{
				{Check: "tax_id_consistency", Passed: true, Severity: domain.OutcomeApprove},
			},
			Breakdown:  &domain.ScoreBreakdown{Relationships: domain.CategoryScore{Penalty: 4.5}},
			CreditLine: &domain.CreditLine{Amount: 43750, Currency: "PEN"},
			Summary:    "approved",
			Timestamp:  time.Now().UTC(),
			Metadata:   domain.EvaluationMetadata{RulesEvaluated: 1, EngineVersion: "test"},
		}

		if err := repo.SaveEvaluation(ctx, tenantID, result); err != nil {
			t.Fatalf("SaveEvaluation failed: %v", err)
		}

		retrieved, err := repo.GetEvaluation(ctx, tenantID, result.ID)
		if err != nil {
			t.Fatalf("GetEvaluation failed: %v", err)
		}
		if retrieved.Recommendation != domain.RecommendApprove {
			t.Errorf("expected APPROVE, got %s", retrieved.Recommendation)
		}
		if retrieved.Score != 87.5 {
			t.Errorf("expected score 87.5, got %v", retrieved.Score)
		}
		if len(retrieved.Verdicts) != 1 || retrieved.Verdicts[0].Actual == nil {
			t.Errorf("verdicts lost in round trip: %+v", retrieved.Verdicts)
		}
		if retrieved.Breakdown == nil || retrieved.Breakdown.Relationships.Penalty != 4.5 {
			t.Errorf("breakdown lost in round trip: %+v", retrieved.Breakdown)
		}
		if retrieved.CreditLine == nil || retrieved.CreditLine.Amount != 43750 {
			t.Errorf("credit line lost in round trip: %+v", retrieved.CreditLine)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		otherTenant := "tenant-002"

		if _, err := repo.GetApplication(ctx, otherTenant, "app-001"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
		if _, err := repo.GetRule(ctx, otherTenant, "min-equity"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
		if _, err := repo.GetEvaluation(ctx, otherTenant, "eval-001"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := repo.SaveApplication(ctx, "", &domain.Application{ID: "x"}); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := repo.GetEvaluation(ctx, "", "eval-001"); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := New(domain.RepositoryConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: "postgres"}
	got := pg.rebind("SELECT * FROM rules WHERE tenant_id = ? AND id = ?")
	want := "SELECT * FROM rules WHERE tenant_id = $1 AND id = $2"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	lite := &SQLRepository{driver: "sqlite"}
	query := "SELECT 1 WHERE a = ?"
	if lite.rebind(query) != query {
		t.Error("sqlite queries must pass through unchanged")
	}
}

func TestPostgresDSNDefaults(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{PostgresUser: "condor"})

	for _, want := range []string{"host=localhost", "port=5432", "dbname=condor", "sslmode=disable"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}

	dsn = postgresDSN(domain.RepositoryConfig{PostgresSSLMode: "require"})
	if !strings.Contains(dsn, "sslmode=require") {
		t.Errorf("explicit sslmode not honored: %q", dsn)
	}
}

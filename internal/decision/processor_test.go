package decision

import (
	"context"
	"strings"
	"testing"

	"github.com/andes-fintech/condor/internal/docval"
	"github.com/andes-fintech/condor/internal/domain"
	"github.com/andes-fintech/condor/internal/graph"
	"github.com/andes-fintech/condor/internal/rules"
	"github.com/andes-fintech/condor/internal/scoring"
)

func newTestProcessor(t *testing.T, bureau domain.BureauQuerier, ruleSet ...*domain.ComparisonRule) *Processor {
	t.Helper()
	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	if err := engine.LoadRules(ruleSet); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	return NewProcessor(
		docval.NewValidator(nil),
		graph.NewExplorer(bureau, nil),
		engine,
		scoring.NewModel(nil),
		2,
		nil,
	)
}

func healthyBureau() domain.BureauQuerier {
	return domain.QuerierFunc(func(_ context.Context, docKind, id string) (*domain.CreditReport, error) {
		if docKind == domain.DocKindPerson {
			return &domain.CreditReport{
				RiskLabel: "RISK LOW",
				Person:    &domain.PersonRecord{FullName: "JUAN PEREZ"},
			}, nil
		}
		return &domain.CreditReport{
			RiskLabel: "RISK LOW",
			Company:   &domain.CompanyRecord{LegalName: "ACME S.A.C.", TaxStatus: "active"},
		}, nil
	})
}

func emptyBureau() domain.BureauQuerier {
	return domain.QuerierFunc(func(context.Context, string, string) (*domain.CreditReport, error) {
		return nil, nil
	})
}

func testApplication() *domain.Application {
	return &domain.Application{
		ID:              "app-1",
		ApplicantID:     "12345678",
		CompanyTaxID:    "20100012345",
		CompanyName:     "ACME S.A.C.",
		RequestedAmount: 50000,
		Currency:        "PEN",
		MonthlyRevenue:  40000,
	}
}

func testDocuments() []domain.Document {
	return []domain.Document{
		&domain.IdentityDocument{NationalID: "12345678", FullName: "JUAN PEREZ"},
		&domain.PowerOfAttorney{
			TaxID:       "20100012345",
			CompanyName: "ACME SAC",
			Representatives: []domain.Representative{
				{DocumentID: "12345678", Name: "JUAN PEREZ", Powers: "general power for financing and contracting"},
			},
		},
		&domain.BalanceSheet{
			TaxID: "20100012345", CompanyName: "ACME S.A.C.",
			TotalAssets: 100000, TotalLiabilities: 40000, Equity: 60000,
			Signers: []domain.Signer{{NationalID: "12345678"}},
		},
		&domain.IncomeStatement{TaxID: "20100012345", CompanyName: "Acme", Revenue: 480000, NetIncome: 48000},
		&domain.TaxRegistry{TaxID: "20100012345", CompanyName: "ACME S.A.C.", Status: "active"},
	}
}

func equityRule() *domain.ComparisonRule {
	return &domain.ComparisonRule{
		ID: "min-equity", Name: "minimum equity",
		Field: "equity", Operator: domain.OpGreaterOrEqual, Threshold: 10000,
		Weight: 1, Outcome: domain.OutcomeApprove, Enabled: true,
	}
}

func TestEvaluateHappyPath(t *testing.T) {
	p := newTestProcessor(t, healthyBureau(), equityRule())

	result, err := p.Evaluate(context.Background(), "tenant-a", testApplication(), testDocuments())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if result.Recommendation != domain.RecommendApprove {
		t.Errorf("expected APPROVE, got %s: %s", result.Recommendation, result.Summary)
	}
	if result.Score != 100 {
		t.Errorf("expected score 100, got %v", result.Score)
	}
	if len(result.Findings) != 6 {
		t.Errorf("expected 5 checks plus the accounting finding, got %d", len(result.Findings))
	}
	if result.Graph == nil || result.Graph.TotalNodes != 2 {
		t.Errorf("expected a two-node graph, got %+v", result.Graph)
	}
	if result.CreditLine == nil {
		t.Fatal("expected a credit line suggestion")
	}
	if result.CreditLine.Amount > 50000 {
		t.Errorf("credit line exceeds requested amount: %v", result.CreditLine.Amount)
	}
	if result.ID == "" || result.TenantID != "tenant-a" || result.ApplicationID != "app-1" {
		t.Errorf("result identifiers not populated: %+v", result)
	}
}

func TestEvaluateShortCircuitsOnHardFailure(t *testing.T) {
	p := newTestProcessor(t, healthyBureau(), equityRule())

	// No power of attorney: check 1 hard-fails.
	docs := []domain.Document{
		&domain.IdentityDocument{NationalID: "12345678"},
	}

	result, err := p.Evaluate(context.Background(), "tenant-a", testApplication(), docs)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if result.Recommendation != domain.RecommendReject {
		t.Errorf("expected REJECT, got %s", result.Recommendation)
	}
	if result.Score != 0 || result.RiskTier != domain.TierVeryHigh {
		t.Errorf("expected zero score and VERY_HIGH tier, got %v / %s", result.Score, result.RiskTier)
	}
	if result.Graph != nil {
		t.Error("graph must not be explored after a validation rejection")
	}
	if len(result.Verdicts) != 0 {
		t.Error("rules must not run after a validation rejection")
	}
	if !strings.Contains(result.Summary, "document validation") {
		t.Errorf("summary should explain the short circuit: %s", result.Summary)
	}
}

func TestEvaluateFoldsNetworkPenalty(t *testing.T) {
	// Company root is delinquent at depth 0: penalty 25, and the
	// critical alert near the roots forces a rejection downstream.
	bureau := domain.QuerierFunc(func(_ context.Context, docKind, id string) (*domain.CreditReport, error) {
		if docKind == domain.DocKindPerson {
			return &domain.CreditReport{RiskLabel: "RISK LOW", Person: &domain.PersonRecord{FullName: "JUAN PEREZ"}}, nil
		}
		return &domain.CreditReport{
			RiskLabel: "RISK HIGH",
			Company:   &domain.CompanyRecord{LegalName: "ACME S.A.C.", TaxStatus: "active"},
		}, nil
	})
	p := newTestProcessor(t, bureau, equityRule())

	result, err := p.Evaluate(context.Background(), "tenant-a", testApplication(), testDocuments())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if result.NetworkPenalty == 0 {
		t.Fatal("expected a network penalty")
	}
	if result.Score >= 100 {
		t.Errorf("penalty must reduce the rule score, got %v", result.Score)
	}
	if result.Breakdown == nil || result.NetworkStats == nil {
		t.Error("network outputs must be attached to the result")
	}
}

func TestEvaluateWithoutGraphData(t *testing.T) {
	p := newTestProcessor(t, emptyBureau(), equityRule())

	result, err := p.Evaluate(context.Background(), "tenant-a", testApplication(), testDocuments())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if result.NetworkPenalty != 0 {
		t.Errorf("empty graph must not penalize, got %v", result.NetworkPenalty)
	}
	if result.Recommendation != domain.RecommendApprove {
		t.Errorf("expected APPROVE, got %s", result.Recommendation)
	}
}

func TestPenaltyNeverImprovesRecommendation(t *testing.T) {
	rejectRule := &domain.ComparisonRule{
		ID: "excessive-request", Name: "request above assets",
		Field: "requested_amount", Operator: domain.OpGreaterThan, Threshold: 1000,
		Weight: 1, Outcome: domain.OutcomeReject, Enabled: true,
	}
	p := newTestProcessor(t, healthyBureau(), equityRule(), rejectRule)

	result, err := p.Evaluate(context.Background(), "tenant-a", testApplication(), testDocuments())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if result.Recommendation != domain.RecommendReject {
		t.Errorf("a rule rejection must survive penalty folding, got %s", result.Recommendation)
	}
	if result.CreditLine != nil {
		t.Error("rejected applications get no credit line")
	}
}

func TestAccountingFindingTolerance(t *testing.T) {
	balanced := accountingFinding([]domain.Document{
		&domain.BalanceSheet{TotalAssets: 100000.00, TotalLiabilities: 40000, Equity: 60000.01},
	})
	if !balanced.Passed {
		t.Errorf("0.01 drift is within tolerance: %s", balanced.Message)
	}

	// The float sum 60000.00 + 40000.01 lands a hair above 100000.01;
	// the check must still treat the cent of drift as balanced.
	repr := accountingFinding([]domain.Document{
		&domain.BalanceSheet{TotalAssets: 100000.00, TotalLiabilities: 60000.00, Equity: 40000.01},
	})
	if !repr.Passed {
		t.Errorf("0.01 drift with representation noise is within tolerance: %s", repr.Message)
	}

	unbalanced := accountingFinding([]domain.Document{
		&domain.BalanceSheet{TotalAssets: 100000, TotalLiabilities: 40000, Equity: 59000},
	})
	if unbalanced.Passed || unbalanced.Severity != domain.OutcomeReview {
		t.Errorf("a 1000 gap must soft-fail: %+v", unbalanced)
	}

	missing := accountingFinding(nil)
	if !missing.Passed {
		t.Errorf("missing balance sheet degrades to pass: %+v", missing)
	}
}

func TestFlattenFields(t *testing.T) {
	fields := flattenFields(testApplication(), testDocuments())

	for _, key := range []string{
		"requested_amount", "monthly_revenue",
		"total_assets", "total_liabilities", "equity", "debt_to_equity",
		"revenue", "net_income", "profit_margin",
	} {
		if _, ok := fields[key]; !ok {
			t.Errorf("field %q missing from flattened map", key)
		}
	}
	if fields["debt_to_equity"] != 0.67 {
		t.Errorf("expected debt_to_equity 0.67, got %v", fields["debt_to_equity"])
	}
	if fields["profit_margin"] != 10.0 {
		t.Errorf("expected profit_margin 10, got %v", fields["profit_margin"])
	}
}

func TestNetworkCheck(t *testing.T) {
	p := newTestProcessor(t, healthyBureau())

	result, err := p.NetworkCheck(context.Background(), "tenant-a", "12345678", "20100012345", 1)
	if err != nil {
		t.Fatalf("network check failed: %v", err)
	}

	if result.Recommendation != domain.RecommendApprove {
		t.Errorf("healthy network must approve, got %s", result.Recommendation)
	}
	if result.NetworkStats == nil || result.NetworkStats.TotalNodes != 2 {
		t.Errorf("expected two explored nodes, got %+v", result.NetworkStats)
	}
	if result.ID == "" || result.TenantID != "tenant-a" {
		t.Error("result identifiers not populated")
	}
}

func TestNetworkCheckRequiresIdentifiers(t *testing.T) {
	p := newTestProcessor(t, healthyBureau())

	if _, err := p.NetworkCheck(context.Background(), "tenant-a", "", "", 1); err == nil {
		t.Error("expected error without identifiers")
	}
}

// Package decision orchestrates a full credit evaluation: document
// validation, graph exploration, rule evaluation and network-penalty
// folding.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/andes-fintech/condor/internal/docval"
	"github.com/andes-fintech/condor/internal/domain"
	"github.com/andes-fintech/condor/internal/graph"
	"github.com/andes-fintech/condor/internal/rules"
	"github.com/andes-fintech/condor/internal/scoring"
)

// EngineVersion is stamped into evaluation metadata.
const EngineVersion = "0.3.0"

// Recommendation thresholds over the penalty-adjusted score; same
// scale the rule engine uses.
const (
	approveThreshold = 80.0
	reviewThreshold  = 50.0
)

// accountingTolerance is the allowed drift between total assets and
// liabilities plus equity.
const accountingTolerance = 0.01

// CheckAccountingEquation is the sixth finding appended on top of the
// validator's fixed five.
const CheckAccountingEquation = "balance_sheet_equation"

// creditLineMonths caps the suggested line at this many months of
// declared revenue before score scaling.
const creditLineMonths = 3.0

// Processor runs full evaluations and standalone network checks.
type Processor struct {
	validator *docval.Validator
	explorer  *graph.Explorer
	engine    *rules.Engine
	model     *scoring.Model
	maxDepth  int
	logger    *slog.Logger
}

// NewProcessor wires the four core components. maxDepth bounds graph
// exploration for the full-evaluation path.
func NewProcessor(validator *docval.Validator, explorer *graph.Explorer, engine *rules.Engine, model *scoring.Model, maxDepth int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		validator: validator,
		explorer:  explorer,
		engine:    engine,
		model:     model,
		maxDepth:  maxDepth,
		logger:    logger.With("component", "decision-processor"),
	}
}

// Evaluate runs the full pipeline for one application. It never
// returns an error for data problems; every degraded input shows up
// in the result's findings, verdicts or summary instead.
func (p *Processor) Evaluate(ctx context.Context, tenantID string, app *domain.Application, docs []domain.Document) (*domain.EvaluationResult, error) {
	if app == nil {
		return nil, fmt.Errorf("evaluate: %w: application record required", domain.ErrInvalidInput)
	}
	started := time.Now()

	validateStart := time.Now()
	findings := p.validator.Validate(app, docs)
	findings = append(findings, accountingFinding(docs))
	validateMs := time.Since(validateStart).Milliseconds()

	if docval.HasHardFailure(findings) {
		result := p.rejectedResult(tenantID, app, findings)
		result.Metadata.ValidateMs = validateMs
		result.Metadata.TotalMs = time.Since(started).Milliseconds()
		p.logger.Info("evaluation short-circuited on document validation",
			"application_id", app.ID, "tenant_id", tenantID)
		return result, nil
	}

	exploreStart := time.Now()
	var explored *domain.ExploredGraph
	if app.ApplicantID != "" || app.CompanyTaxID != "" {
		g, err := p.explorer.Explore(ctx, app.ApplicantID, app.CompanyTaxID, p.maxDepth)
		if err != nil {
			p.logger.Warn("graph exploration unavailable, scoring without network data",
				"application_id", app.ID, "error", err)
		} else {
			explored = g
		}
	}
	exploreMs := time.Since(exploreStart).Milliseconds()

	rulesStart := time.Now()
	result := p.engine.Evaluate(flattenFields(app, docs), nil)
	rulesMs := time.Since(rulesStart).Milliseconds()

	result.ID = uuid.New().String()
	result.TenantID = tenantID
	result.ApplicationID = app.ID
	result.Findings = findings
	result.Graph = explored

	if explored != nil {
		network := p.model.ScoreGraph(explored)
		p.foldNetworkPenalty(result, network)
		result.Metadata.NodesExplored = explored.TotalNodes
	}

	result.CreditLine = suggestCreditLine(app, result)
	result.Summary = summarize(result)

	result.Metadata.ValidateMs = validateMs
	result.Metadata.ExploreMs = exploreMs
	result.Metadata.RulesMs = rulesMs
	result.Metadata.TotalMs = time.Since(started).Milliseconds()
	result.Metadata.EngineVersion = EngineVersion

	p.logger.Info("evaluation complete",
		"evaluation_id", result.ID,
		"application_id", app.ID,
		"tenant_id", tenantID,
		"recommendation", result.Recommendation,
		"score", result.Score,
		"network_penalty", result.NetworkPenalty)

	return result, nil
}

// NetworkCheck runs the explorer and scoring model against an
// applicant/company pair without documents or rules.
func (p *Processor) NetworkCheck(ctx context.Context, tenantID, applicantID, companyID string, maxDepth int) (*domain.EvaluationResult, error) {
	if maxDepth <= 0 {
		maxDepth = p.maxDepth
	}

	started := time.Now()
	explored, err := p.explorer.Explore(ctx, applicantID, companyID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("network check: %w", err)
	}
	exploreMs := time.Since(started).Milliseconds()

	result := p.model.ScoreGraph(explored)
	result.ID = uuid.New().String()
	result.TenantID = tenantID
	result.Metadata.ExploreMs = exploreMs
	result.Metadata.TotalMs = time.Since(started).Milliseconds()
	result.Metadata.NodesExplored = explored.TotalNodes
	result.Metadata.EngineVersion = EngineVersion

	p.logger.Info("network check complete",
		"evaluation_id", result.ID,
		"tenant_id", tenantID,
		"nodes", explored.TotalNodes,
		"recommendation", result.Recommendation)

	return result, nil
}

// foldNetworkPenalty deducts the network penalty from the rule score
// and re-derives the recommendation, never improving it.
func (p *Processor) foldNetworkPenalty(result *domain.EvaluationResult, network *domain.EvaluationResult) {
	result.Breakdown = network.Breakdown
	result.Alerts = network.Alerts
	result.NetworkStats = network.NetworkStats
	result.NetworkPenalty = network.NetworkPenalty

	if network.NetworkPenalty <= 0 {
		return
	}

	adjusted := result.Score - network.NetworkPenalty
	if adjusted < 0 {
		adjusted = 0
	}
	result.Score = round2(adjusted)
	result.RiskTier = domain.RiskTierFromScore(result.Score)

	derived := recommendationForScore(result.Score)
	if worse(derived, result.Recommendation) {
		result.Recommendation = derived
	}
}

func recommendationForScore(score float64) domain.Recommendation {
	switch {
	case score >= approveThreshold:
		return domain.RecommendApprove
	case score >= reviewThreshold:
		return domain.RecommendReview
	default:
		return domain.RecommendReject
	}
}

func recommendationRank(r domain.Recommendation) int {
	switch r {
	case domain.RecommendReject:
		return 2
	case domain.RecommendReview:
		return 1
	default:
		return 0
	}
}

func worse(a, b domain.Recommendation) bool {
	return recommendationRank(a) > recommendationRank(b)
}

func (p *Processor) rejectedResult(tenantID string, app *domain.Application, findings []domain.Finding) *domain.EvaluationResult {
	var reason string
	for _, f := range findings {
		if !f.Passed && f.Severity == domain.OutcomeReject {
			reason = f.Message
			break
		}
	}

	return &domain.EvaluationResult{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		ApplicationID:  app.ID,
		Recommendation: domain.RecommendReject,
		Score:          0,
		RiskTier:       domain.TierVeryHigh,
		Findings:       findings,
		Summary:        "rejected during document validation: " + reason,
		Timestamp:      time.Now().UTC(),
		Metadata:       domain.EvaluationMetadata{EngineVersion: EngineVersion},
	}
}

// accountingFinding verifies the balance sheet equation within a cent.
func accountingFinding(docs []domain.Document) domain.Finding {
	finding := domain.Finding{
		Check:     CheckAccountingEquation,
		Documents: []domain.DocumentKind{domain.DocBalanceSheet},
	}

	var sheet *domain.BalanceSheet
	for _, doc := range docs {
		switch d := doc.(type) {
		case *domain.BalanceSheet:
			sheet = d
		case domain.BalanceSheet:
			sheet = &d
		}
		if sheet != nil {
			break
		}
	}

	if sheet == nil {
		finding.Passed = true
		finding.Severity = domain.OutcomeApprove
		finding.Message = "no balance sheet to verify"
		return finding
	}

	// Compare at cent precision so binary representation noise on the
	// sum cannot push an exactly-tolerable drift over the threshold.
	diff := round2(math.Abs(sheet.TotalAssets - (sheet.TotalLiabilities + sheet.Equity)))
	if diff <= accountingTolerance {
		finding.Passed = true
		finding.Severity = domain.OutcomeApprove
		finding.Message = fmt.Sprintf("assets %.2f balance liabilities plus equity %.2f",
			sheet.TotalAssets, sheet.TotalLiabilities+sheet.Equity)
		return finding
	}

	finding.Severity = domain.OutcomeReview
	finding.Message = fmt.Sprintf("balance sheet does not balance: assets %.2f vs liabilities+equity %.2f (diff %.2f)",
		sheet.TotalAssets, sheet.TotalLiabilities+sheet.Equity, diff)
	return finding
}

// flattenFields projects the application and its financial documents
// into the flat field map the rule engine consumes. Derived ratios are
// included only when their denominators are non-zero.
func flattenFields(app *domain.Application, docs []domain.Document) map[string]any {
	fields := map[string]any{
		"requested_amount": app.RequestedAmount,
		"monthly_revenue":  app.MonthlyRevenue,
	}

	for _, doc := range docs {
		switch d := doc.(type) {
		case *domain.BalanceSheet:
			addBalanceFields(fields, d)
		case domain.BalanceSheet:
			addBalanceFields(fields, &d)
		case *domain.IncomeStatement:
			addIncomeFields(fields, d)
		case domain.IncomeStatement:
			addIncomeFields(fields, &d)
		}
	}

	return fields
}

func addBalanceFields(fields map[string]any, sheet *domain.BalanceSheet) {
	fields["total_assets"] = sheet.TotalAssets
	fields["total_liabilities"] = sheet.TotalLiabilities
	fields["equity"] = sheet.Equity
	if sheet.Equity != 0 {
		fields["debt_to_equity"] = round2(sheet.TotalLiabilities / sheet.Equity)
	}
}

func addIncomeFields(fields map[string]any, statement *domain.IncomeStatement) {
	fields["revenue"] = statement.Revenue
	fields["net_income"] = statement.NetIncome
	if statement.Revenue != 0 {
		fields["profit_margin"] = round2(statement.NetIncome / statement.Revenue * 100)
	}
}

// suggestCreditLine proposes a line for non-rejected applications: up
// to a few months of declared revenue, scaled by the final score and
// capped at the requested amount.
func suggestCreditLine(app *domain.Application, result *domain.EvaluationResult) *domain.CreditLine {
	if result.Recommendation == domain.RecommendReject || app.RequestedAmount <= 0 {
		return nil
	}

	base := app.MonthlyRevenue * creditLineMonths
	if base <= 0 {
		base = app.RequestedAmount
	}

	amount := base * result.Score / 100
	if amount > app.RequestedAmount {
		amount = app.RequestedAmount
	}
	if amount <= 0 {
		return nil
	}

	currency := app.Currency
	if currency == "" {
		currency = "PEN"
	}
	return &domain.CreditLine{Amount: round2(amount), Currency: currency}
}

func summarize(result *domain.EvaluationResult) string {
	satisfied := 0
	for _, v := range result.Verdicts {
		if v.Satisfied {
			satisfied++
		}
	}
	failedFindings := 0
	for _, f := range result.Findings {
		if !f.Passed {
			failedFindings++
		}
	}

	s := fmt.Sprintf("%s with score %.2f (%s); %d/%d rule condition(s) met; %d consistency issue(s)",
		result.Recommendation, result.Score, result.RiskTier,
		satisfied, len(result.Verdicts), failedFindings)
	if result.NetworkPenalty > 0 {
		s += fmt.Sprintf("; network penalty %.2f applied", result.NetworkPenalty)
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package domain

import (
	"time"
)

// Recommendation is the engine's final disposition for an application.
type Recommendation string

const (
	RecommendApprove Recommendation = "APPROVE"
	RecommendReview  Recommendation = "REVIEW"
	RecommendReject  Recommendation = "REJECT"
)

// RiskTier is the internal normalized risk level, used both for bureau
// risk labels and for the weighted score.
type RiskTier string

const (
	TierVeryLow  RiskTier = "VERY_LOW"
	TierLow      RiskTier = "LOW"
	TierModerate RiskTier = "MODERATE"
	TierHigh     RiskTier = "HIGH"
	TierVeryHigh RiskTier = "VERY_HIGH"
)

// RiskTierFromScore maps a 0-100 weighted score to a tier.
func RiskTierFromScore(score float64) RiskTier {
	switch {
	case score >= 80:
		return TierLow
	case score >= 60:
		return TierModerate
	case score >= 40:
		return TierHigh
	default:
		return TierVeryHigh
	}
}

// CreditLine is a suggested credit line for an approved application.
type CreditLine struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// EvaluationResult is the unit returned to callers and persisted by
// them. The rule engine fills the rule-derived fields; the decision
// layer populates findings, graph, penalty and credit line.
type EvaluationResult struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	ApplicationID string `json:"applicationId,omitempty"`

	Recommendation Recommendation `json:"recommendation"`
	Score          float64        `json:"score"`
	RiskTier       RiskTier       `json:"riskTier"`

	Verdicts []RuleVerdict `json:"verdicts,omitempty"`
	Findings []Finding     `json:"findings,omitempty"`

	CreditLine *CreditLine    `json:"creditLine,omitempty"`
	Graph      *ExploredGraph `json:"graph,omitempty"`

	// Network scoring output (standalone check path).
	Breakdown    *ScoreBreakdown `json:"breakdown,omitempty"`
	Alerts       []Alert         `json:"alerts,omitempty"`
	NetworkStats *NetworkStats   `json:"networkStats,omitempty"`

	// NetworkPenalty is the deduction applied on top of the rule score
	// during a full evaluation; 0 when no graph was explored.
	NetworkPenalty float64 `json:"networkPenalty"`

	Summary   string             `json:"summary,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Metadata  EvaluationMetadata `json:"metadata"`
}

// EvaluationMetadata carries processing information.
type EvaluationMetadata struct {
	TraceID        string `json:"traceId,omitempty"`
	ValidateMs     int64  `json:"validateMs"`
	ExploreMs      int64  `json:"exploreMs"`
	RulesMs        int64  `json:"rulesMs"`
	TotalMs        int64  `json:"totalMs"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	NodesExplored  int    `json:"nodesExplored"`
	EngineVersion  string `json:"engineVersion,omitempty"`
}

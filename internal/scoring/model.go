// Package scoring turns an explored relationship graph into a
// decomposed network score, a ranked alert list and a recommendation.
package scoring

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/andes-fintech/condor/internal/domain"
)

// Penalty bases and thresholds. Every penalty is attenuated by
// 1/(depth+1) so closer relationships weigh more.
const (
	lowScoreThreshold      = 500.0
	criticalScoreThreshold = 300.0

	penaltyLowScore   = 20.0
	penaltyDelinquent = 25.0
	penaltyWrittenOff = 35.0
	penaltyDebtBase   = 10.0
)

// Recommendation thresholds over the final network score.
const (
	rejectScoreThreshold = 40.0
	reviewScoreThreshold = 60.0
)

// Model scores explored graphs. Stateless; safe for concurrent use.
type Model struct {
	logger *slog.Logger
}

// NewModel creates a scoring model.
func NewModel(logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{logger: logger.With("component", "scoring-model")}
}

// nodeAssessment is the pure per-node scoring output, folded into the
// right category accumulator by the caller.
type nodeAssessment struct {
	penalty float64
	motives []string
	alerts  []domain.Alert
}

func (a nodeAssessment) problematic() bool { return a.penalty > 0 }

// ScoreGraph produces the full network decision for one explored
// graph: breakdown, ranked alerts, stats and a recommendation derived
// from the decomposed score alone.
func (m *Model) ScoreGraph(graph *domain.ExploredGraph) *domain.EvaluationResult {
	breakdown := &domain.ScoreBreakdown{}
	stats := &domain.NetworkStats{}
	var alerts []domain.Alert

	if graph != nil {
		for _, node := range orderedNodes(graph) {
			assessment := assessNode(node)

			category := categoryFor(breakdown, graph, node.ID)
			category.Penalty += assessment.penalty
			for _, motive := range assessment.motives {
				appendMotive(category, motive)
			}
			alerts = mergeAlerts(alerts, assessment.alerts)

			if !graph.IsRoot(node.ID) {
				breakdown.TotalRelationships++
				if assessment.problematic() {
					breakdown.ProblemRelationships++
				}
			}
			accumulateStats(stats, node, assessment.problematic())
		}
		if stats.TotalNodes > 0 {
			stats.AverageScore = round2(stats.AverageScore / float64(stats.TotalNodes))
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		}
		return alerts[i].Depth < alerts[j].Depth
	})

	score := breakdown.FinalScore()
	recommendation := recommend(score, alerts)

	result := &domain.EvaluationResult{
		Recommendation: recommendation,
		Score:          round2(score),
		RiskTier:       domain.RiskTierFromScore(score),
		Graph:          graph,
		Breakdown:      breakdown,
		Alerts:         alerts,
		NetworkStats:   stats,
		NetworkPenalty: round2(breakdown.TotalPenalty()),
		Summary:        summarize(recommendation, score, breakdown, stats),
		Timestamp:      time.Now().UTC(),
	}

	m.logger.Info("graph scored",
		"nodes", stats.TotalNodes,
		"problem_nodes", stats.ProblemNodes,
		"score", result.Score,
		"recommendation", result.Recommendation)

	return result
}

// orderedNodes returns graph nodes by depth, then identifier, so the
// alert list and motive order are deterministic.
func orderedNodes(graph *domain.ExploredGraph) []*domain.GraphNode {
	nodes := make([]*domain.GraphNode, 0, len(graph.Nodes))
	for _, node := range graph.Nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

func categoryFor(b *domain.ScoreBreakdown, graph *domain.ExploredGraph, id string) *domain.CategoryScore {
	switch id {
	case graph.ApplicantID:
		return &b.Applicant
	case graph.CompanyID:
		return &b.Company
	default:
		return &b.Relationships
	}
}

// assessNode computes the attenuated penalties, motives and alerts one
// node contributes. Pure function over the node alone.
func assessNode(node *domain.GraphNode) nodeAssessment {
	var a nodeAssessment
	attenuation := 1.0 / float64(node.Depth+1)
	name := nodeLabel(node)

	if node.Score < lowScoreThreshold {
		a.penalty += penaltyLowScore * attenuation
		a.motives = append(a.motives, fmt.Sprintf("%s has a low bureau score (%.0f)", name, node.Score))

		severity := domain.SeverityHigh
		if node.Score < criticalScoreThreshold {
			severity = domain.SeverityCritical
		}
		a.alerts = append(a.alerts, domain.Alert{
			Severity: severity,
			Message:  fmt.Sprintf("%s bureau score %.0f is below %.0f", name, node.Score, lowScoreThreshold),
			NodeID:   node.ID,
			Depth:    node.Depth,
		})
	}

	switch node.Status {
	case domain.StatusDelinquent:
		a.penalty += penaltyDelinquent * attenuation
		a.motives = append(a.motives, fmt.Sprintf("%s is delinquent", name))

		severity := domain.SeverityHigh
		if node.Depth == 0 {
			severity = domain.SeverityCritical
		}
		a.alerts = append(a.alerts, domain.Alert{
			Severity: severity,
			Message:  fmt.Sprintf("%s is reported delinquent", name),
			NodeID:   node.ID,
			Depth:    node.Depth,
		})
	case domain.StatusWrittenOff:
		a.penalty += penaltyWrittenOff * attenuation
		a.motives = append(a.motives, fmt.Sprintf("%s has written off debt", name))
		a.alerts = append(a.alerts, domain.Alert{
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("%s has written off debt on record", name),
			NodeID:   node.ID,
			Depth:    node.Depth,
		})
	}

	for _, debt := range node.Debts {
		if !debt.Overdue {
			continue
		}
		a.penalty += debtPenalty(debt) * attenuation
		a.motives = append(a.motives, fmt.Sprintf("%s owes %.2f to %s, %d days overdue",
			name, debt.Balance, debt.Creditor, debt.DaysOverdue))

		if node.Depth <= 1 {
			severity := domain.SeverityHigh
			if debt.DaysOverdue > 90 {
				severity = domain.SeverityCritical
			}
			a.alerts = append(a.alerts, domain.Alert{
				Severity: severity,
				Message: fmt.Sprintf("%s has an overdue debt of %.2f with %s (%d days)",
					name, debt.Balance, debt.Creditor, debt.DaysOverdue),
				NodeID: node.ID,
				Depth:  node.Depth,
			})
		}
	}

	for _, text := range node.Alerts {
		a.alerts = append(a.alerts, domain.Alert{
			Severity: severityFromText(text),
			Message:  text,
			NodeID:   node.ID,
			Depth:    node.Depth,
		})
	}

	return a
}

// debtPenalty scales the base debt penalty by how long and how much.
func debtPenalty(debt domain.Debt) float64 {
	penalty := penaltyDebtBase

	switch {
	case debt.DaysOverdue > 90:
		penalty *= 2.0
	case debt.DaysOverdue > 60:
		penalty *= 1.5
	case debt.DaysOverdue > 30:
		penalty *= 1.2
	}

	switch {
	case debt.Balance > 50000:
		penalty *= 1.5
	case debt.Balance > 10000:
		penalty *= 1.2
	}

	return penalty
}

// severityFromText classifies a node's own free-text alerts.
func severityFromText(text string) domain.AlertSeverity {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "written off") || strings.Contains(lower, "critical"):
		return domain.SeverityCritical
	case strings.Contains(lower, "delinquen") || strings.Contains(lower, "overdue"):
		return domain.SeverityHigh
	case strings.Contains(lower, "low") || strings.Contains(lower, "inactive"):
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func appendMotive(category *domain.CategoryScore, motive string) {
	for _, existing := range category.Motives {
		if existing == motive {
			return
		}
	}
	category.Motives = append(category.Motives, motive)
}

// mergeAlerts appends incoming alerts, dropping any whose message is
// subsumed by (or subsumes) one already collected.
func mergeAlerts(existing, incoming []domain.Alert) []domain.Alert {
	for _, alert := range incoming {
		duplicate := false
		for _, have := range existing {
			if strings.Contains(have.Message, alert.Message) || strings.Contains(alert.Message, have.Message) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			existing = append(existing, alert)
		}
	}
	return existing
}

func accumulateStats(stats *domain.NetworkStats, node *domain.GraphNode, problematic bool) {
	stats.TotalNodes++
	switch node.Kind {
	case domain.NodePerson:
		stats.Persons++
	case domain.NodeCompany:
		stats.Companies++
	}
	if problematic {
		stats.ProblemNodes++
	}
	for _, debt := range node.Debts {
		stats.TotalDebt += debt.Balance
		if debt.Overdue {
			stats.OverdueDebt += debt.Balance
		}
	}
	// AverageScore carries the running sum until the caller divides.
	stats.AverageScore += node.Score
}

// recommend derives the network-only recommendation from the final
// score and the ranked alerts.
func recommend(score float64, alerts []domain.Alert) domain.Recommendation {
	criticalNearby := 0
	highAtRoot := 0
	for _, alert := range alerts {
		if alert.Severity == domain.SeverityCritical && alert.Depth <= 1 {
			criticalNearby++
		}
		if alert.Severity == domain.SeverityHigh && alert.Depth == 0 {
			highAtRoot++
		}
	}

	switch {
	case criticalNearby >= 1 || score < rejectScoreThreshold:
		return domain.RecommendReject
	case highAtRoot >= 2 || score < reviewScoreThreshold:
		return domain.RecommendReview
	default:
		return domain.RecommendApprove
	}
}

func summarize(rec domain.Recommendation, score float64, b *domain.ScoreBreakdown, stats *domain.NetworkStats) string {
	return fmt.Sprintf("network check: %s (score %.2f); %d node(s), %d with problems; applicant %.2f, company %.2f, relationships %.2f",
		rec, score, stats.TotalNodes, stats.ProblemNodes,
		b.Applicant.Score(), b.Company.Score(), b.Relationships.Score())
}

func nodeLabel(node *domain.GraphNode) string {
	if node.Name != "" {
		return node.Name
	}
	return node.ID
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

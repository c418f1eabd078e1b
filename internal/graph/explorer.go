// Package graph explores the applicant/company relationship graph
// through a bureau querier, breadth first up to a bounded depth.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/andes-fintech/condor/internal/domain"
	"github.com/andes-fintech/condor/internal/risk"
)

const (
	// MaxExplorableDepth bounds how far from the roots the traversal
	// may reach regardless of configuration.
	MaxExplorableDepth = 3

	relationRepresentative = "Legal Representative"
	relationRelatedCompany = "Related Company"
)

// Explorer walks the relationship graph one bureau query per newly
// discovered identifier. It holds no per-traversal state; a single
// Explorer is safe for concurrent use.
type Explorer struct {
	querier domain.BureauQuerier
	logger  *slog.Logger
}

// NewExplorer creates an explorer backed by the given querier.
func NewExplorer(querier domain.BureauQuerier, logger *slog.Logger) *Explorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Explorer{
		querier: querier,
		logger:  logger.With("component", "graph-explorer"),
	}
}

// workItem is one pending traversal step.
type workItem struct {
	id    string
	kind  domain.NodeKind
	depth int
}

// Explore traverses the graph from the applicant and company roots.
// A bureau failure for one identifier drops that node and continues.
// Context cancellation stops the traversal and returns the nodes
// collected so far; a partial graph is a valid result.
func (e *Explorer) Explore(ctx context.Context, applicantID, companyID string, maxDepth int) (*domain.ExploredGraph, error) {
	if applicantID == "" && companyID == "" {
		return nil, fmt.Errorf("explore graph: %w: no root identifiers", domain.ErrInvalidInput)
	}
	if maxDepth < 0 {
		maxDepth = 0
	}
	if maxDepth > MaxExplorableDepth {
		maxDepth = MaxExplorableDepth
	}

	result := &domain.ExploredGraph{
		ApplicantID: applicantID,
		CompanyID:   companyID,
		Nodes:       make(map[string]*domain.GraphNode),
	}

	var queue []workItem
	if applicantID != "" {
		queue = append(queue, workItem{id: applicantID, kind: domain.NodePerson, depth: 0})
	}
	if companyID != "" {
		queue = append(queue, workItem{id: companyID, kind: domain.NodeCompany, depth: 0})
	}

	visited := make(map[string]bool)

	for len(queue) > 0 {
		if ctx.Err() != nil {
			e.logger.Warn("exploration cancelled, returning partial graph",
				"nodes", len(result.Nodes), "pending", len(queue))
			break
		}

		item := queue[0]
		queue = queue[1:]

		if item.depth > maxDepth || visited[item.id] {
			continue
		}
		visited[item.id] = true

		report, err := e.querier.Query(ctx, docKindFor(item.kind), item.id)
		if err != nil {
			e.logger.Warn("bureau query failed, skipping node",
				"id", item.id, "depth", item.depth, "error", err)
			continue
		}
		if report == nil {
			continue
		}

		node := buildNode(item, report)
		result.Nodes[item.id] = node

		if item.depth < maxDepth {
			for _, edge := range node.Edges {
				if !visited[edge.TargetID] {
					queue = append(queue, workItem{
						id:    edge.TargetID,
						kind:  edge.TargetKind,
						depth: item.depth + 1,
					})
				}
			}
		}
	}

	for _, node := range result.Nodes {
		result.TotalNodes++
		switch node.Kind {
		case domain.NodePerson:
			result.TotalPersons++
		case domain.NodeCompany:
			result.TotalCompanies++
		}
	}

	e.logger.Info("exploration complete",
		"applicant_id", applicantID,
		"company_id", companyID,
		"max_depth", maxDepth,
		"nodes", result.TotalNodes,
		"persons", result.TotalPersons,
		"companies", result.TotalCompanies)

	return result, nil
}

func docKindFor(kind domain.NodeKind) string {
	if kind == domain.NodeCompany {
		return domain.DocKindCompany
	}
	return domain.DocKindPerson
}

// buildNode turns one bureau report into a graph node: classified
// risk, edges to related parties, and per-node alert texts.
func buildNode(item workItem, report *domain.CreditReport) *domain.GraphNode {
	tier, status, score := risk.Classify(report.RiskLabel)

	node := &domain.GraphNode{
		ID:        item.id,
		Kind:      item.kind,
		Depth:     item.depth,
		Score:     score,
		RiskLabel: risk.CanonicalLabel(tier),
		Status:    status,
	}

	switch {
	case report.Person != nil:
		node.Name = report.Person.FullName
	case report.Company != nil:
		node.Name = report.Company.LegalName
	}

	node.Edges = collectEdges(item.kind, report)
	node.Debts = convertDebts(report.Debts)
	node.Alerts = deriveAlerts(node, report)

	return node
}

// collectEdges is symmetric over node kind: a person points at the
// companies they represent, a company points at its representatives
// and related companies.
func collectEdges(kind domain.NodeKind, report *domain.CreditReport) []domain.Edge {
	var edges []domain.Edge

	appendEdges := func(relations []domain.BureauRelation, targetKind domain.NodeKind, relation string) {
		for _, rel := range relations {
			if rel.ID == "" {
				continue
			}
			edges = append(edges, domain.Edge{
				TargetID:   rel.ID,
				TargetKind: targetKind,
				TargetName: rel.Name,
				Relation:   relationOr(rel.Role, relation),
			})
		}
	}

	if kind == domain.NodePerson {
		appendEdges(report.Represents, domain.NodeCompany, relationRepresentative)
	} else {
		appendEdges(report.RepresentedBy, domain.NodePerson, relationRepresentative)
	}
	appendEdges(report.RelatedCompanies, domain.NodeCompany, relationRelatedCompany)

	return edges
}

func relationOr(role, fallback string) string {
	if role != "" {
		return role
	}
	return fallback
}

func convertDebts(debts []domain.BureauDebt) []domain.Debt {
	if len(debts) == 0 {
		return nil
	}
	out := make([]domain.Debt, 0, len(debts))
	for _, d := range debts {
		out = append(out, domain.Debt{
			Creditor:       d.Creditor,
			Type:           d.Type,
			OriginalAmount: d.OriginalAmount,
			Balance:        d.Balance,
			DaysOverdue:    d.DaysOverdue,
			Rating:         d.Rating,
			DueDate:        d.DueDate,
			Overdue:        d.DaysOverdue > 0,
		})
	}
	return out
}

// deriveAlerts produces the node-level alert texts: bad credit
// standing, overdue debt totals, and inactive tax registration.
func deriveAlerts(node *domain.GraphNode, report *domain.CreditReport) []string {
	var alerts []string

	switch node.Status {
	case domain.StatusDelinquent:
		alerts = append(alerts, fmt.Sprintf("%s is reported delinquent by the bureau", displayName(node)))
	case domain.StatusWrittenOff:
		alerts = append(alerts, fmt.Sprintf("%s has written off debt on record", displayName(node)))
	}

	var overdueTotal float64
	var overdueCount int
	for _, d := range node.Debts {
		if d.Overdue {
			overdueTotal += d.Balance
			overdueCount++
		}
	}
	if overdueCount > 0 {
		alerts = append(alerts, fmt.Sprintf("%s has %d overdue debt(s) totaling %.2f",
			displayName(node), overdueCount, overdueTotal))
	}

	if node.Kind == domain.NodeCompany && report.Company != nil {
		if ts := report.Company.TaxStatus; ts != "" && !isActiveStatus(ts) {
			alerts = append(alerts, fmt.Sprintf("%s tax registration is inactive (%s)", displayName(node), ts))
		}
	}

	return alerts
}

func isActiveStatus(status string) bool {
	switch status {
	case "active", "ACTIVE", "Active":
		return true
	}
	return false
}

func displayName(node *domain.GraphNode) string {
	if node.Name != "" {
		return node.Name
	}
	return node.ID
}

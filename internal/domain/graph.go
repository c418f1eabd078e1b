package domain

// NodeKind distinguishes natural persons from companies in the
// relationship graph.
type NodeKind string

const (
	NodePerson  NodeKind = "PERSON"
	NodeCompany NodeKind = "COMPANY"
)

// CreditStatus is the normalized credit standing derived from a node's
// risk tier.
type CreditStatus string

const (
	StatusNormal          CreditStatus = "NORMAL"
	StatusPotentialIssues CreditStatus = "POTENTIAL_ISSUES"
	StatusDelinquent      CreditStatus = "DELINQUENT"
	StatusWrittenOff      CreditStatus = "WRITTEN_OFF"
)

// Debt is one reported obligation of a graph node.
type Debt struct {
	Creditor       string  `json:"creditor"`
	Type           string  `json:"type"`
	OriginalAmount float64 `json:"originalAmount"`
	Balance        float64 `json:"balance"`
	DaysOverdue    int     `json:"daysOverdue"`
	Rating         string  `json:"rating,omitempty"`
	DueDate        string  `json:"dueDate,omitempty"`
	Overdue        bool    `json:"overdue"`
}

// Edge points from a node to a related identifier.
type Edge struct {
	TargetID   string   `json:"targetId"`
	TargetKind NodeKind `json:"targetKind"`
	TargetName string   `json:"targetName,omitempty"`
	Relation   string   `json:"relation"`
}

// GraphNode is one identifier's worth of bureau data placed in the
// explored graph. Depth is the shortest BFS distance from either root;
// first discovery wins and a visited node is never re-expanded.
type GraphNode struct {
	ID        string       `json:"id"`
	Kind      NodeKind     `json:"kind"`
	Name      string       `json:"name,omitempty"`
	Depth     int          `json:"depth"`
	Score     float64      `json:"score"`
	RiskLabel string       `json:"riskLabel"`
	Status    CreditStatus `json:"status"`
	Alerts    []string     `json:"alerts,omitempty"`
	Debts     []Debt       `json:"debts,omitempty"`
	Edges     []Edge       `json:"edges,omitempty"`
}

// ExploredGraph is the evaluation-scoped result of one traversal.
// Built once, immutable afterward, never persisted by the engine.
type ExploredGraph struct {
	ApplicantID string                `json:"applicantId"`
	CompanyID   string                `json:"companyId"`
	Nodes       map[string]*GraphNode `json:"nodes"`

	TotalNodes     int `json:"totalNodes"`
	TotalPersons   int `json:"totalPersons"`
	TotalCompanies int `json:"totalCompanies"`
}

// IsRoot reports whether id is one of the two traversal roots.
func (g *ExploredGraph) IsRoot(id string) bool {
	return id == g.ApplicantID || id == g.CompanyID
}

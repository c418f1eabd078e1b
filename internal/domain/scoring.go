package domain

// BaseScore is the starting score each category decays from.
const BaseScore = 100.0

// CategoryScore accumulates penalties and motives for one scoring
// category (applicant, company or relationships).
type CategoryScore struct {
	Penalty float64  `json:"penalty"`
	Motives []string `json:"motives,omitempty"`
}

// Score is the category sub-score, never negative.
func (c CategoryScore) Score() float64 {
	s := BaseScore - c.Penalty
	if s < 0 {
		return 0
	}
	return s
}

// ScoreBreakdown decomposes a network score into three independently
// tracked categories plus relationship counters.
type ScoreBreakdown struct {
	Applicant     CategoryScore `json:"applicant"`
	Company       CategoryScore `json:"company"`
	Relationships CategoryScore `json:"relationships"`

	TotalRelationships   int `json:"totalRelationships"`
	ProblemRelationships int `json:"problemRelationships"`
}

// TotalPenalty is the sum of the three category penalties.
func (b *ScoreBreakdown) TotalPenalty() float64 {
	return b.Applicant.Penalty + b.Company.Penalty + b.Relationships.Penalty
}

// FinalScore is the combined score, never negative.
func (b *ScoreBreakdown) FinalScore() float64 {
	s := BaseScore - b.TotalPenalty()
	if s < 0 {
		return 0
	}
	return s
}

// AlertSeverity ranks network alerts.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "CRITICAL"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityLow      AlertSeverity = "LOW"
)

// Rank orders severities for sorting; higher is more severe.
func (s AlertSeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Alert is one entry in the ranked network alert list.
type Alert struct {
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
	NodeID   string        `json:"nodeId,omitempty"`
	Depth    int           `json:"depth"`
}

// NetworkStats summarizes the explored graph for reporting.
type NetworkStats struct {
	TotalNodes   int `json:"totalNodes"`
	Persons      int `json:"persons"`
	Companies    int `json:"companies"`
	ProblemNodes int `json:"problemNodes"`

	TotalDebt    float64 `json:"totalDebt"`
	OverdueDebt  float64 `json:"overdueDebt"`
	AverageScore float64 `json:"averageScore"`
}

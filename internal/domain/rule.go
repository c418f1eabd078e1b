package domain

// Operator compares a field value against a rule threshold.
type Operator string

const (
	OpGreaterThan    Operator = "gt"
	OpLessThan       Operator = "lt"
	OpGreaterOrEqual Operator = "gte"
	OpLessOrEqual    Operator = "lte"
	OpEqual          Operator = "eq"
	OpNotEqual       Operator = "neq"
)

// ComparisonEpsilon is the tolerance for eq/neq on floating values.
const ComparisonEpsilon = 0.0001

// Describe returns a human-readable form of the operator.
func (o Operator) Describe() string {
	switch o {
	case OpGreaterThan:
		return "greater than"
	case OpLessThan:
		return "less than"
	case OpGreaterOrEqual:
		return "greater than or equal to"
	case OpLessOrEqual:
		return "less than or equal to"
	case OpEqual:
		return "equal to"
	case OpNotEqual:
		return "not equal to"
	default:
		return string(o)
	}
}

// Outcome is what a satisfied rule condition implies for the
// application, not the rule's own pass/fail state.
type Outcome string

const (
	OutcomeApprove Outcome = "APPROVE"
	OutcomeReview  Outcome = "REVIEW"
	OutcomeReject  Outcome = "REJECT"
)

// RuleKind selects how a rule's condition is evaluated.
type RuleKind string

const (
	// RuleKindComparison applies Operator/Threshold to a single field.
	RuleKindComparison RuleKind = "comparison"

	// RuleKindExpression evaluates a CEL predicate over the field map.
	RuleKindExpression RuleKind = "expression"
)

// ComparisonRule is a data-driven decision rule evaluated against a
// flat field map. Rules live in the repository and can change without
// a rebuild; the engine only reads the active set.
type ComparisonRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Kind defaults to comparison when empty.
	Kind RuleKind `json:"kind,omitempty"`

	// Comparison rules: field name, operator and threshold.
	Field     string   `json:"field"`
	Operator  Operator `json:"operator"`
	Threshold float64  `json:"threshold"`

	// Expression rules: CEL predicate over the field map.
	Expression string `json:"expression,omitempty"`

	// Weight in the final score; 0 disables weighting but the rule
	// still produces a verdict.
	Weight float64 `json:"weight"`

	Outcome      Outcome `json:"outcome"`
	Enabled      bool    `json:"enabled"`
	DisplayOrder int     `json:"displayOrder"`
}

// EffectiveKind resolves the default rule kind.
func (r *ComparisonRule) EffectiveKind() RuleKind {
	if r.Kind == RuleKindExpression {
		return RuleKindExpression
	}
	return RuleKindComparison
}

// RuleVerdict is the per-rule result of one evaluation. Actual is nil
// when the field is absent or non-numeric.
type RuleVerdict struct {
	RuleID    string   `json:"ruleId"`
	RuleName  string   `json:"ruleName"`
	Field     string   `json:"field"`
	Operator  string   `json:"operator"`
	Expected  float64  `json:"expected"`
	Actual    *float64 `json:"actual"`
	Satisfied bool     `json:"satisfied"`
	Weight    float64  `json:"weight"`
	Outcome   Outcome  `json:"outcome"`
	Message   string   `json:"message"`
}

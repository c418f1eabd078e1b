// Package rules provides the weighted rule evaluation engine.
package rules

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/andes-fintech/condor/internal/domain"
)

// Recommendation thresholds on the favorable-weight percentage.
const (
	approveThreshold = 80.0
	reviewThreshold  = 50.0
)

// partialCredit is the score fraction awarded to Approve/Review rules
// whose condition did not come out favorable.
const partialCredit = 0.3

// Engine evaluates comparison and expression rules against a flat
// field map. Rules are loaded from the rule store and can be
// hot-reloaded; evaluation itself never returns an error for data
// problems, it degrades to unfavorable verdicts with a message.
type Engine struct {
	mu    sync.RWMutex
	env   *cel.Env
	rules map[string]*loadedRule
}

type loadedRule struct {
	rule *domain.ComparisonRule

	// program is the compiled CEL predicate for expression rules,
	// nil for comparison rules.
	program cel.Program
}

// NewEngine creates a rule evaluation engine.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("fields", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:   env,
		rules: make(map[string]*loadedRule),
	}, nil
}

// ValidateRule checks a rule configuration without loading it.
func (e *Engine) ValidateRule(rule *domain.ComparisonRule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	_, err := e.prepareRule(rule)
	return err
}

// LoadRule validates and loads a single rule into the engine.
func (e *Engine) LoadRule(rule *domain.ComparisonRule) error {
	loaded, err := e.prepareRule(rule)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.rules[rule.ID] = loaded
	e.mu.Unlock()

	return nil
}

// LoadRules loads every enabled rule from the given set.
func (e *Engine) LoadRules(rules []*domain.ComparisonRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(rules []*domain.ComparisonRule) error {
	next := make(map[string]*loadedRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		loaded, err := e.prepareRule(rule)
		if err != nil {
			return err
		}
		next[rule.ID] = loaded
	}

	e.mu.Lock()
	e.rules = next
	e.mu.Unlock()

	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// GetLoadedRules returns the currently loaded rules in display order.
func (e *Engine) GetLoadedRules() []*domain.ComparisonRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ComparisonRule, 0, len(e.rules))
	for _, loaded := range e.rules {
		rules = append(rules, loaded.rule)
	}
	sortRules(rules)
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = make(map[string]*loadedRule)
	return nil
}

// Evaluate runs the loaded rules (or the subset named by ruleIDs)
// against the field map and returns a rule-only evaluation result.
// The caller populates validation, graph and credit-line fields.
func (e *Engine) Evaluate(fields map[string]any, ruleIDs []string) *domain.EvaluationResult {
	start := time.Now()

	selected := e.selectRules(ruleIDs)

	verdicts := make([]domain.RuleVerdict, 0, len(selected))
	for _, loaded := range selected {
		verdicts = append(verdicts, e.evaluateRule(loaded, fields))
	}

	result := aggregate(verdicts)
	result.Timestamp = time.Now().UTC()
	result.Metadata.RulesEvaluated = len(verdicts)
	result.Metadata.RulesMs = time.Since(start).Milliseconds()

	return result
}

func (e *Engine) selectRules(ruleIDs []string) []*loadedRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var selected []*loadedRule
	if ruleIDs == nil {
		selected = make([]*loadedRule, 0, len(e.rules))
		for _, loaded := range e.rules {
			selected = append(selected, loaded)
		}
	} else {
		selected = make([]*loadedRule, 0, len(ruleIDs))
		for _, id := range ruleIDs {
			if loaded, ok := e.rules[id]; ok {
				selected = append(selected, loaded)
			}
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i].rule, selected[j].rule
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.ID < b.ID
	})

	return selected
}

// evaluateRule produces the verdict for one rule. Missing or
// non-numeric fields yield "not satisfied" verdicts, never errors.
func (e *Engine) evaluateRule(loaded *loadedRule, fields map[string]any) domain.RuleVerdict {
	rule := loaded.rule

	verdict := domain.RuleVerdict{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Field:    rule.Field,
		Operator: rule.Operator.Describe(),
		Expected: rule.Threshold,
		Weight:   rule.Weight,
		Outcome:  rule.Outcome,
	}

	if rule.EffectiveKind() == domain.RuleKindExpression {
		verdict.Operator = "expression"
		verdict.Satisfied, verdict.Message = evalExpression(loaded.program, fields)
		return verdict
	}

	raw, ok := fields[rule.Field]
	if !ok {
		verdict.Message = fmt.Sprintf("field %q not found", rule.Field)
		return verdict
	}

	actual, ok := toFloat(raw)
	if !ok {
		verdict.Message = fmt.Sprintf("field %q has a non-numeric value", rule.Field)
		return verdict
	}

	verdict.Actual = &actual
	verdict.Satisfied = compare(actual, rule.Operator, rule.Threshold)
	if verdict.Satisfied {
		verdict.Message = fmt.Sprintf("%s (%v) is %s %v", rule.Field, actual, rule.Operator.Describe(), rule.Threshold)
	} else {
		verdict.Message = fmt.Sprintf("%s (%v) is not %s %v", rule.Field, actual, rule.Operator.Describe(), rule.Threshold)
	}

	return verdict
}

func evalExpression(program cel.Program, fields map[string]any) (bool, string) {
	if program == nil {
		return false, "expression rule has no compiled program"
	}

	out, _, err := program.Eval(map[string]any{"fields": fields})
	if err != nil {
		return false, fmt.Sprintf("expression error: %v", err)
	}

	if b, ok := out.(types.Bool); ok && bool(b) {
		return true, "expression condition met"
	}
	return false, "expression condition not met"
}

// aggregate folds verdicts into a recommendation, score and tier.
//
// Any satisfied Reject-outcome rule forces a Reject recommendation.
// Otherwise the favorable weight percentage decides: >=80 Approve
// (Review if a Review-outcome rule fired), >=50 Review, else Reject.
// Zero total weight cannot decide and degrades to Review with score 0.
func aggregate(verdicts []domain.RuleVerdict) *domain.EvaluationResult {
	var (
		rejected        bool
		reviewTriggered bool
		totalWeight     float64
		favorable       float64
		points          float64
	)

	for _, v := range verdicts {
		good := isFavorable(v.Outcome, v.Satisfied)

		if v.Outcome == domain.OutcomeReject && v.Satisfied {
			rejected = true
		}
		if v.Outcome == domain.OutcomeReview && v.Satisfied {
			reviewTriggered = true
		}

		if v.Weight <= 0 {
			continue
		}
		totalWeight += v.Weight
		if good {
			favorable += v.Weight
			points += v.Weight
		} else if v.Outcome != domain.OutcomeReject {
			points += partialCredit * v.Weight
		}
	}

	result := &domain.EvaluationResult{Verdicts: verdicts}

	if totalWeight <= 0 {
		result.Recommendation = domain.RecommendReview
		result.Score = 0
		result.RiskTier = domain.RiskTierFromScore(0)
		result.Summary = "no weighted rules available; manual review required"
		return result
	}

	result.Score = round2(points / totalWeight * 100)
	result.RiskTier = domain.RiskTierFromScore(result.Score)

	favorablePct := favorable / totalWeight * 100
	switch {
	case rejected:
		result.Recommendation = domain.RecommendReject
	case favorablePct >= approveThreshold && !reviewTriggered:
		result.Recommendation = domain.RecommendApprove
	case favorablePct >= reviewThreshold:
		result.Recommendation = domain.RecommendReview
	default:
		result.Recommendation = domain.RecommendReject
	}

	result.Summary = fmt.Sprintf("%d rules evaluated, %.1f%% favorable weight, score %.2f",
		len(verdicts), favorablePct, result.Score)

	return result
}

// isFavorable reports whether the rule condition came out in the
// applicant's favor given what a satisfied condition implies.
func isFavorable(outcome domain.Outcome, satisfied bool) bool {
	if outcome == domain.OutcomeApprove {
		return satisfied
	}
	return !satisfied
}

// compare applies the operator with an epsilon-tolerant equality.
func compare(actual float64, op domain.Operator, threshold float64) bool {
	switch op {
	case domain.OpGreaterThan:
		return actual > threshold
	case domain.OpLessThan:
		return actual < threshold
	case domain.OpGreaterOrEqual:
		return actual >= threshold
	case domain.OpLessOrEqual:
		return actual <= threshold
	case domain.OpEqual:
		return math.Abs(actual-threshold) < domain.ComparisonEpsilon
	case domain.OpNotEqual:
		return math.Abs(actual-threshold) >= domain.ComparisonEpsilon
	default:
		return false
	}
}

// toFloat coerces the numeric shapes a field map may carry, including
// numeric strings from the extraction layer.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortRules(rules []*domain.ComparisonRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].DisplayOrder != rules[j].DisplayOrder {
			return rules[i].DisplayOrder < rules[j].DisplayOrder
		}
		return rules[i].ID < rules[j].ID
	})
}

// prepareRule validates rule configuration and compiles expression
// rules. Configuration problems are reported at load time so that
// evaluation never has to error.
func (e *Engine) prepareRule(rule *domain.ComparisonRule) (*loadedRule, error) {
	if rule.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}
	if rule.Weight < 0 {
		return nil, fmt.Errorf("rule %s: weight must not be negative", rule.ID)
	}
	switch rule.Outcome {
	case domain.OutcomeApprove, domain.OutcomeReview, domain.OutcomeReject:
	default:
		return nil, fmt.Errorf("rule %s: unknown outcome %q", rule.ID, rule.Outcome)
	}

	if rule.EffectiveKind() == domain.RuleKindExpression {
		ast, issues := e.env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s: failed to compile expression: %w", rule.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
		}
		program, err := e.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s: failed to create program: %w", rule.ID, err)
		}
		return &loadedRule{rule: rule, program: program}, nil
	}

	if rule.Field == "" {
		return nil, fmt.Errorf("rule %s: field is required", rule.ID)
	}
	switch rule.Operator {
	case domain.OpGreaterThan, domain.OpLessThan, domain.OpGreaterOrEqual,
		domain.OpLessOrEqual, domain.OpEqual, domain.OpNotEqual:
	default:
		return nil, fmt.Errorf("rule %s: unknown operator %q", rule.ID, rule.Operator)
	}

	return &loadedRule{rule: rule}, nil
}

// Package risk maps bureau risk labels onto the internal tier, credit
// status and score scale.
package risk

import (
	"strings"

	"github.com/andes-fintech/condor/internal/domain"
)

// Score equivalents per tier. Labels that do not normalize to a known
// tier score ScoreDefault.
const (
	ScoreVeryLow  = 900.0
	ScoreLow      = 800.0
	ScoreModerate = 550.0
	ScoreHigh     = 350.0
	ScoreVeryHigh = 150.0
	ScoreDefault  = 400.0
)

// TierFromLabel normalizes bureau risk text to an internal tier. Both
// the plain convention ("LOW") and the prefixed one ("RISK LOW") are
// accepted, case-insensitively. Unrecognized text maps to Moderate.
func TierFromLabel(label string) domain.RiskTier {
	tier, _ := tierFromLabel(label)
	return tier
}

func tierFromLabel(label string) (domain.RiskTier, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	s = strings.TrimSpace(strings.TrimPrefix(s, "RISK"))

	switch {
	case strings.Contains(s, "VERY LOW") || strings.Contains(s, "MINIMAL"):
		return domain.TierVeryLow, true
	case strings.Contains(s, "VERY HIGH") || strings.Contains(s, "SEVERE"):
		return domain.TierVeryHigh, true
	case strings.Contains(s, "LOW") || s == "NORMAL":
		return domain.TierLow, true
	case strings.Contains(s, "HIGH"):
		return domain.TierHigh, true
	case strings.Contains(s, "MODERATE") || strings.Contains(s, "MEDIUM"):
		return domain.TierModerate, true
	default:
		return domain.TierModerate, false
	}
}

// StatusForTier maps a tier to a credit status.
func StatusForTier(tier domain.RiskTier) domain.CreditStatus {
	switch tier {
	case domain.TierVeryLow, domain.TierLow:
		return domain.StatusNormal
	case domain.TierModerate:
		return domain.StatusPotentialIssues
	case domain.TierHigh:
		return domain.StatusDelinquent
	case domain.TierVeryHigh:
		return domain.StatusWrittenOff
	default:
		return domain.StatusPotentialIssues
	}
}

// ScoreForTier maps a tier to its numeric score equivalent.
func ScoreForTier(tier domain.RiskTier) float64 {
	switch tier {
	case domain.TierVeryLow:
		return ScoreVeryLow
	case domain.TierLow:
		return ScoreLow
	case domain.TierModerate:
		return ScoreModerate
	case domain.TierHigh:
		return ScoreHigh
	case domain.TierVeryHigh:
		return ScoreVeryHigh
	default:
		return ScoreDefault
	}
}

// ScoreForLabel maps raw bureau text to a score equivalent.
func ScoreForLabel(label string) float64 {
	tier, ok := tierFromLabel(label)
	if !ok {
		return ScoreDefault
	}
	return ScoreForTier(tier)
}

// CanonicalLabel is the inverse mapping, used when re-serializing a
// tier into the bureau's textual convention.
func CanonicalLabel(tier domain.RiskTier) string {
	switch tier {
	case domain.TierVeryLow:
		return "RISK VERY LOW"
	case domain.TierLow:
		return "RISK LOW"
	case domain.TierModerate:
		return "RISK MODERATE"
	case domain.TierHigh:
		return "RISK HIGH"
	case domain.TierVeryHigh:
		return "RISK VERY HIGH"
	default:
		return "RISK MODERATE"
	}
}

// Classify bundles the full label mapping for one bureau report.
func Classify(label string) (domain.RiskTier, domain.CreditStatus, float64) {
	tier, ok := tierFromLabel(label)
	status := StatusForTier(tier)
	if !ok {
		return tier, status, ScoreDefault
	}
	return tier, status, ScoreForTier(tier)
}

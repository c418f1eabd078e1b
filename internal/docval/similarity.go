package docval

import "strings"

// similarityThreshold is the minimum normalized similarity at which
// two company names count as the same entity after normalization.
const similarityThreshold = 0.80

// legalSuffixes are legal-entity tokens dropped from the end of a
// company name after punctuation removal ("S.A.C." becomes "SAC").
var legalSuffixes = map[string]bool{
	"SAC":  true,
	"SA":   true,
	"SRL":  true,
	"EIRL": true,
	"SCRL": true,
	"SAA":  true,
}

// normalizeCompanyName upper-cases, strips legal-entity suffixes and
// punctuation, and collapses whitespace, so OCR noise and formal
// variations compare equal.
func normalizeCompanyName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r == '.':
			// Dropped outright so "S.A.C." joins into one token.
		default:
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// namesSimilar reports whether two raw company names refer to the same
// entity: normalized, then compared by edit distance over max length.
func namesSimilar(a, b string) bool {
	na, nb := normalizeCompanyName(a), normalizeCompanyName(b)
	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}

	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	distance := levenshtein(na, nb)
	similarity := 1.0 - float64(distance)/float64(maxLen)
	return similarity >= similarityThreshold
}

// levenshtein computes classic edit distance (insert, delete and
// substitute each cost 1) over the full dynamic-programming matrix.
// Inputs are short entity names, so correctness wins over cleverness.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	rows, cols := len(ra)+1, len(rb)+1

	matrix := make([][]int, rows)
	for i := range matrix {
		matrix[i] = make([]int, cols)
		matrix[i][0] = i
	}
	for j := 0; j < cols; j++ {
		matrix[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			matrix[i][j] = min3(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}
	return matrix[rows-1][cols-1]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// normalizeID reduces an identifier to its digits with leading zeros
// stripped, so "012345678" and "12345678" compare equal.
func normalizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}

// idsMatch compares two identifiers after normalization. Two empty
// identifiers do not match.
func idsMatch(a, b string) bool {
	na, nb := normalizeID(a), normalizeID(b)
	return na != "" && na == nb
}

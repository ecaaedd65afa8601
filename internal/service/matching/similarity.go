package matching

import (
	"github.com/agnivade/levenshtein"
)

// Similarity computes a bounded [0,1] similarity between two strings over
// their normalized forms, as an edit-distance ratio. Identical strings score
// 1.0; an empty operand or fully disjoint equal-length strings score 0.0.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}

	lenA := len([]rune(na))
	lenB := len([]rune(nb))
	maxLen := lenA
	if lenB > maxLen {
		maxLen = lenB
	}

	dist := levenshtein.ComputeDistance(na, nb)
	score := 1.0 - float64(dist)/float64(maxLen)
	if score < 0 {
		return 0.0
	}
	return score
}

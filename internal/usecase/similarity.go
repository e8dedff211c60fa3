package usecase

import "strings"

// SimilarityScore is the word-overlap accuracy of actual against expected, in [0, 100].
//
// Every word of actual that also occurs in expected counts once per occurrence;
// the count is divided by the longer of the two word lists. Reports are keyed
// to this scale, so keep it as is.
func SimilarityScore(expected, actual string) float64 {
	expectedWords := strings.Fields(strings.ToLower(expected))
	actualWords := strings.Fields(strings.ToLower(actual))
	if len(expectedWords) == 0 || len(actualWords) == 0 {
		return 0
	}

	vocab := make(map[string]struct{}, len(expectedWords))
	for _, w := range expectedWords {
		vocab[w] = struct{}{}
	}
	common := 0
	for _, w := range actualWords {
		if _, ok := vocab[w]; ok {
			common++
		}
	}

	score := float64(common) / float64(max(len(expectedWords), len(actualWords))) * 100
	return min(max(score, 0), 100)
}

// CostUSD prices a token count at costPerK dollars per thousand tokens.
func CostUSD(tokens int, costPerK float64) float64 {
	return float64(tokens) / 1000 * costPerK
}

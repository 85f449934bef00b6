package matching

import (
	"sort"
	"strings"
)

// Similarity returns a sequence-based ratio between two normalized
// strings: 2*LCS / (len(a)+len(b)), 1.0 for identical strings and 0.0
// when either side is empty. Providers order the same words differently
// ("United FC Red" vs "FC United Red"), so the ratio is also computed
// over token-sorted forms and the better of the two wins.
func Similarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}

	raw := lcsRatio(a, b)
	sorted := lcsRatio(sortTokens(a), sortTokens(b))
	if sorted > raw {
		return sorted
	}
	return raw
}

func lcsRatio(a, b string) float64 {
	lcs := longestCommonSubsequence(a, b)
	return 2.0 * float64(lcs) / float64(len(a)+len(b))
}

func sortTokens(s string) string {
	words := strings.Fields(s)
	sort.Strings(words)
	return strings.Join(words, " ")
}

func longestCommonSubsequence(a, b string) int {
	// Two rolling rows keep memory linear in the shorter string.
	if len(b) > len(a) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// ScoreInput carries the per-candidate facts the weighted score is
// computed from. Name and club strings must already be normalized.
type ScoreInput struct {
	NameSim        float64
	ClubSim        float64
	ClubsIdentical bool
	LocationMatch  bool
	AgeMatch       bool
}

// WeightedScore combines the similarity components with fixed weights:
// 0.65 name, 0.25 club, plus small bonuses for identical clubs, matching
// location, and matching age group. Capped at 1.0.
func WeightedScore(in ScoreInput) float64 {
	score := 0.65*in.NameSim + 0.25*in.ClubSim
	if in.ClubsIdentical {
		score += 0.05
	}
	if in.LocationMatch {
		score += 0.05
	}
	if in.AgeMatch {
		score += 0.05
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

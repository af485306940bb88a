// Package fuzzy implements approximate matching of normalised terms against
// a reference dictionary. The primary scorer is a weighted-ratio metric in
// the rapidfuzz WRatio style, tolerant of token reordering and partial
// overlap, built on Levenshtein edit distance. A degraded fallback scorer
// (exact / substring containment) exists as a safety net only.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Scorer computes a 0..100 similarity score between two terms.
type Scorer interface {
	Score(a, b string) int
	Name() string
}

// WeightedScorer is the default scorer: a weighted combination of plain,
// partial, token-sort, and token-set ratios. Comparisons are
// case-insensitive.
type WeightedScorer struct{}

func (WeightedScorer) Name() string { return "weighted_ratio" }

// Score returns the weighted-ratio similarity of a and b on a 0..100 scale.
func (WeightedScorer) Score(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		if a == "" {
			return 0
		}
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	base := ratio(a, b)
	tokenSort := tokenSortRatio(a, b) * 95 / 100
	tokenSet := tokenSetRatio(a, b) * 95 / 100

	best := maxInt(base, tokenSort, tokenSet)

	// For strings of very different lengths a partial alignment of the
	// shorter inside the longer is more informative than the full ratio.
	shorter, longer := len(a), len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if shorter > 0 && float64(longer)/float64(shorter) >= 1.5 {
		partial := partialRatio(a, b) * 90 / 100
		best = maxInt(best, partial)
	}
	return best
}

// ratio is the normalised Levenshtein similarity: 100 * (1 - dist/maxLen).
func ratio(a, b string) int {
	la := len([]rune(a))
	lb := len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(float64(longest-dist) / float64(longest) * 100)
}

// partialRatio slides the shorter string across the longer one and returns
// the best window ratio.
func partialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return 0
	}
	best := 0
	for start := 0; start+len(ra) <= len(rb); start++ {
		window := string(rb[start : start+len(ra)])
		if r := ratio(string(ra), window); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// tokenSortRatio compares the whitespace tokens of both strings in sorted
// order, neutralising word reordering.
func tokenSortRatio(a, b string) int {
	return ratio(sortedTokens(a), sortedTokens(b))
}

// tokenSetRatio compares the shared token core of the two strings, scoring
// high when one term's tokens are a subset of the other's.
func tokenSetRatio(a, b string) int {
	ta := tokenSet(a)
	tb := tokenSet(b)

	var shared []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared = append(shared, tok)
		}
	}
	if len(shared) == 0 {
		return tokenSortRatio(a, b)
	}
	sort.Strings(shared)
	core := strings.Join(shared, " ")

	best := ratio(core, sortedTokens(a))
	if r := ratio(core, sortedTokens(b)); r > best {
		best = r
	}
	if r := tokenSortRatio(a, b); r > best {
		best = r
	}
	return best
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// FallbackScorer is the degraded matcher used only when the weighted scorer
// is unavailable: exact match scores 100, substring containment in either
// direction scores 80, anything else 0. It is deliberately inferior.
type FallbackScorer struct{}

func (FallbackScorer) Name() string { return "fallback" }

func (FallbackScorer) Score(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	switch {
	case a == "" || b == "":
		return 0
	case a == b:
		return 100
	case strings.Contains(a, b) || strings.Contains(b, a):
		return 80
	default:
		return 0
	}
}

func maxInt(vals ...int) int {
	best := 0
	for _, v := range vals {
		if v > best {
			best = v
		}
	}
	return best
}

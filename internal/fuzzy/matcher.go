package fuzzy

import (
	"fmt"

	"github.com/clinsight/ade-signal-pipeline/internal/reference"
	"github.com/clinsight/ade-signal-pipeline/pkg/errors"
)

// DefaultThreshold is the minimum score (0..100) required before a match
// identity is reported.
const DefaultThreshold = 85

// Result is the outcome of matching one term against a dictionary. When the
// best score fell below the threshold, Key and Original are empty but Score
// still carries the best observed value for audit.
type Result struct {
	Key      string `json:"key"`
	Original string `json:"original"`
	Score    int    `json:"score"`
}

// Matcher scores a query term against every key of a reference dictionary
// and reports the single best match above its threshold.
type Matcher struct {
	scorer    Scorer
	threshold int
}

// NewMatcher creates a Matcher with the default weighted-ratio scorer.
// The threshold must lie in [0, 100]; out-of-range values are rejected, not
// clamped.
func NewMatcher(threshold int) (*Matcher, error) {
	return NewMatcherWithScorer(WeightedScorer{}, threshold)
}

// NewMatcherWithScorer creates a Matcher with an explicit scorer, e.g. the
// degraded FallbackScorer.
func NewMatcherWithScorer(scorer Scorer, threshold int) (*Matcher, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("%w: fuzzy threshold %d outside [0,100]", errors.ErrInvalidConfig, threshold)
	}
	return &Matcher{scorer: scorer, threshold: threshold}, nil
}

// Threshold returns the configured minimum score.
func (m *Matcher) Threshold() int { return m.threshold }

// ScorerName returns the name of the active scorer.
func (m *Matcher) ScorerName() string { return m.scorer.Name() }

// Match scores term against every dictionary key and returns the best match.
// An empty term or empty dictionary yields ("", "", 0). Ties are broken by
// the first-encountered key in dictionary insertion order. A best score
// below the threshold withholds the matched identity but reports the score.
func (m *Matcher) Match(term string, dict *reference.Dictionary) Result {
	if term == "" || dict == nil || dict.Len() == 0 {
		return Result{}
	}

	bestKey := ""
	bestScore := -1
	for _, key := range dict.Keys() {
		score := m.scorer.Score(term, key)
		if score > bestScore {
			bestScore = score
			bestKey = key
			if bestScore == 100 {
				break
			}
		}
	}

	if bestScore < m.threshold {
		return Result{Score: bestScore}
	}
	original, _ := dict.Get(bestKey)
	return Result{Key: bestKey, Original: original, Score: bestScore}
}

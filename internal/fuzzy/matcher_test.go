package fuzzy

import (
	pkgerrors "errors"
	"testing"

	"github.com/clinsight/ade-signal-pipeline/internal/reference"
	"github.com/clinsight/ade-signal-pipeline/pkg/errors"
)

func buildDict(entries ...[2]string) *reference.Dictionary {
	d := reference.NewDictionary()
	for _, e := range entries {
		d.Add(e[0], e[1])
	}
	return d
}

func TestNewMatcherRejectsBadThreshold(t *testing.T) {
	for _, threshold := range []int{-1, 101, 500} {
		if _, err := NewMatcher(threshold); !pkgerrors.Is(err, errors.ErrInvalidConfig) {
			t.Errorf("NewMatcher(%d) error = %v, want ErrInvalidConfig", threshold, err)
		}
	}
	if _, err := NewMatcher(0); err != nil {
		t.Errorf("NewMatcher(0) unexpected error: %v", err)
	}
	if _, err := NewMatcher(100); err != nil {
		t.Errorf("NewMatcher(100) unexpected error: %v", err)
	}
}

func TestMatcherExactMatch(t *testing.T) {
	m, err := NewMatcher(DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	dict := buildDict([2]string{"nausea", "Nausea"}, [2]string{"vomiting", "Vomiting"})

	got := m.Match("nausea", dict)
	if got.Key != "nausea" || got.Original != "Nausea" || got.Score != 100 {
		t.Errorf("Match(nausea) = %+v, want key=nausea original=Nausea score=100", got)
	}
}

func TestMatcherEmptyInputs(t *testing.T) {
	m, err := NewMatcher(DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	dict := buildDict([2]string{"nausea", "Nausea"})

	if got := m.Match("", dict); got != (Result{}) {
		t.Errorf("Match with empty term = %+v, want zero result", got)
	}
	if got := m.Match("nausea", reference.NewDictionary()); got != (Result{}) {
		t.Errorf("Match against empty dictionary = %+v, want zero result", got)
	}
	if got := m.Match("nausea", nil); got != (Result{}) {
		t.Errorf("Match against nil dictionary = %+v, want zero result", got)
	}
}

func TestMatcherWithholdsBelowThreshold(t *testing.T) {
	m, err := NewMatcher(95)
	if err != nil {
		t.Fatal(err)
	}
	dict := buildDict([2]string{"aspirin", "Aspirin"})

	got := m.Match("asprin", dict)
	if got.Key != "" || got.Original != "" {
		t.Errorf("below-threshold match leaked identity: %+v", got)
	}
	if got.Score <= 0 || got.Score >= 95 {
		t.Errorf("below-threshold match score = %d, want in (0, 95)", got.Score)
	}
}

func TestMatcherFirstSeenTieBreak(t *testing.T) {
	m, err := NewMatcherWithScorer(FallbackScorer{}, 50)
	if err != nil {
		t.Fatal(err)
	}
	// Both keys contain the term, scoring an identical 80; insertion order
	// decides the winner.
	dict := buildDict(
		[2]string{"nausea and vomiting", "Nausea and vomiting"},
		[2]string{"severe nausea", "Severe nausea"},
	)

	got := m.Match("nausea", dict)
	if got.Key != "nausea and vomiting" {
		t.Errorf("tie broken to %q, want first-inserted key", got.Key)
	}
	if got.Score != 80 {
		t.Errorf("tie score = %d, want 80", got.Score)
	}
}

func BenchmarkMatch(b *testing.B) {
	m, err := NewMatcher(DefaultThreshold)
	if err != nil {
		b.Fatal(err)
	}
	dict := reference.NewDictionary()
	for _, key := range []string{
		"nausea", "vomiting", "diarrhea", "headache", "dizziness",
		"rash", "pruritus", "fatigue", "bleeding", "renal failure",
	} {
		dict.Add(key, key)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Match("renal failur", dict)
	}
}

func TestMatcherFallbackScorer(t *testing.T) {
	m, err := NewMatcherWithScorer(FallbackScorer{}, DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if name := m.ScorerName(); name != "fallback" {
		t.Errorf("ScorerName = %q, want fallback", name)
	}
	dict := buildDict([2]string{"aspirin", "Aspirin"})

	// Substring scores 80, below the 85 threshold: identity withheld.
	got := m.Match("aspir", dict)
	if got.Key != "" || got.Score != 80 {
		t.Errorf("fallback substring = %+v, want withheld identity with score 80", got)
	}
	if got := m.Match("aspirin", dict); got.Key != "aspirin" || got.Score != 100 {
		t.Errorf("fallback exact = %+v, want full match", got)
	}
}

package pattern

import (
	"testing"

	"github.com/clinsight/ade-signal-pipeline/internal/mention"
)

func validated(drug, ade string, consistent bool) mention.Validated {
	return mention.Validated{
		Normalized: mention.Normalized{
			DrugNormalized: drug,
			ADENormalized:  ade,
		},
		IsConsistent: consistent,
	}
}

func TestBuildAggregatesPerDrug(t *testing.T) {
	mentions := []mention.Validated{
		validated("warfarin", "bleeding", true),
		validated("warfarin", "bleeding", true),
		validated("warfarin", "headache", false),
		validated("aspirin", "nausea", false),
	}

	patterns := Build(mentions)
	if len(patterns) != 2 {
		t.Fatalf("got %d drug patterns, want 2", len(patterns))
	}

	w := patterns["warfarin"]
	if w.TotalMentions != 3 {
		t.Errorf("warfarin TotalMentions = %d, want 3", w.TotalMentions)
	}
	if w.ADEs["bleeding"] != 2 || w.ADEs["headache"] != 1 {
		t.Errorf("warfarin ADE counts = %v", w.ADEs)
	}
	if w.ReferenceValidated != 2 {
		t.Errorf("warfarin ReferenceValidated = %d, want 2", w.ReferenceValidated)
	}
	if _, ok := w.ConsistentADEs["bleeding"]; !ok {
		t.Error("bleeding should be a consistent ADE for warfarin")
	}
	if _, ok := w.ConsistentADEs["headache"]; ok {
		t.Error("headache should not be a consistent ADE for warfarin")
	}

	a := patterns["aspirin"]
	if a.TotalMentions != 1 || a.ReferenceValidated != 0 {
		t.Errorf("aspirin pattern = %+v", a)
	}
}

func TestBuildADECountsSumToTotal(t *testing.T) {
	mentions := []mention.Validated{
		validated("warfarin", "bleeding", true),
		validated("warfarin", "bruising", false),
		validated("warfarin", "bleeding", true),
	}
	p := Build(mentions)["warfarin"]

	sum := 0
	for _, n := range p.ADEs {
		sum += n
	}
	if sum != p.TotalMentions {
		t.Errorf("ADE counts sum to %d, TotalMentions %d", sum, p.TotalMentions)
	}
	if p.ReferenceValidated > p.TotalMentions {
		t.Error("validated count exceeds total")
	}
}

func TestRatios(t *testing.T) {
	p := &DrugPattern{
		TotalMentions:      4,
		ADEs:               map[string]int{"bleeding": 2, "nausea": 2},
		ReferenceValidated: 1,
	}
	if got := p.ADERatio("bleeding"); got != 0.5 {
		t.Errorf("ADERatio = %v, want 0.5", got)
	}
	if got := p.ADERatio("unknown"); got != 0 {
		t.Errorf("ADERatio(unknown) = %v, want 0", got)
	}
	if got := p.ValidatedRatio(); got != 0.25 {
		t.Errorf("ValidatedRatio = %v, want 0.25", got)
	}

	empty := &DrugPattern{ADEs: map[string]int{}}
	if empty.ADERatio("x") != 0 || empty.ValidatedRatio() != 0 {
		t.Error("zero-mention pattern should yield zero ratios, not divide by zero")
	}
}

func TestBuildUsesResolvedIdentity(t *testing.T) {
	mentions := []mention.Validated{
		{Normalized: mention.Normalized{DrugNormalized: "asprin", DrugMatched: "aspirin", ADENormalized: "nausea"}},
		{Normalized: mention.Normalized{DrugNormalized: "aspirin", ADENormalized: "nausea"}},
	}
	patterns := Build(mentions)
	if len(patterns) != 1 {
		t.Fatalf("got %d patterns, want matched and normalized variants folded into 1", len(patterns))
	}
	if patterns["aspirin"].TotalMentions != 2 {
		t.Errorf("aspirin TotalMentions = %d, want 2", patterns["aspirin"].TotalMentions)
	}
}

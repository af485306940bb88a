package pipeline

import (
	"context"
	"testing"

	"github.com/clinsight/ade-signal-pipeline/internal/filter"
	"github.com/clinsight/ade-signal-pipeline/internal/fuzzy"
	"github.com/clinsight/ade-signal-pipeline/internal/mention"
	"github.com/clinsight/ade-signal-pipeline/internal/reference"
)

func testVocab() *reference.Vocabulary {
	drugs := []reference.DrugRow{
		{CompoundID: "CID1", Name: "Warfarin"},
		{CompoundID: "CID2", Name: "Aspirin"},
	}
	effects := []reference.EffectRow{
		{CompoundFlat: "CID1", Name: "Bleeding"},
		{CompoundFlat: "CID1", Name: "Bleeding"},
		{CompoundFlat: "CID2", Name: "Nausea"},
	}
	return reference.Build(drugs, effects, nil)
}

func newTestPipeline(t *testing.T, workers int) *Pipeline {
	t.Helper()
	matcher, err := fuzzy.NewMatcher(fuzzy.DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(testVocab(), matcher, filter.DefaultConfig(), workers, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunEndToEnd(t *testing.T) {
	p := newTestPipeline(t, 4)

	mentions := []mention.Mention{
		{DrugText: "Warfarin", ADEText: "Bleeding", SourceID: "note-1"},
		{DrugText: "warfarin.", ADEText: "bleeding,", SourceID: "note-2"},
		{DrugText: "Mystodrug", ADEText: "itching", SourceID: "note-3"},
	}

	result, err := p.Run(context.Background(), mentions)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.RunID == "" {
		t.Error("missing run ID")
	}
	if len(result.Normalized) != 3 || len(result.Validated) != 3 || len(result.Decisions) != 3 {
		t.Fatalf("stage lengths = %d/%d/%d, want 3 each",
			len(result.Normalized), len(result.Validated), len(result.Decisions))
	}

	// Order is preserved regardless of match parallelism.
	for i, want := range []string{"note-1", "note-2", "note-3"} {
		if got := result.Decisions[i].SourceID; got != want {
			t.Errorf("decision %d source = %q, want %q", i, got, want)
		}
	}

	// Punctuated surface forms resolve to the same reference identity.
	first, second := result.Decisions[0], result.Decisions[1]
	if first.DrugMatched != "warfarin" || second.DrugMatched != "warfarin" {
		t.Errorf("drug matches = %q, %q, want warfarin for both", first.DrugMatched, second.DrugMatched)
	}
	if !first.IsConsistent || !second.IsConsistent {
		t.Error("documented warfarin-bleeding mentions should be consistent")
	}
	if !first.Kept || first.Reason != filter.ReasonHighConfidenceReference {
		t.Errorf("first decision = kept=%v reason=%q", first.Kept, first.Reason)
	}

	third := result.Decisions[2]
	if third.Kept || third.Reason != filter.ReasonInsufficientEvidence {
		t.Errorf("unknown singleton = kept=%v reason=%q", third.Kept, third.Reason)
	}
	if third.DrugMatched != "" {
		t.Errorf("unknown drug matched %q, want withheld identity", third.DrugMatched)
	}
}

func TestRunSummaryCounts(t *testing.T) {
	p := newTestPipeline(t, 1)

	mentions := []mention.Mention{
		{DrugText: "Warfarin", ADEText: "Bleeding", SourceID: "a"},
		{DrugText: "Warfarin", ADEText: "Bleeding", SourceID: "b"},
		{DrugText: "Unknowndrug", ADEText: "wheezing", SourceID: "c"},
	}

	result, err := p.Run(context.Background(), mentions)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := result.Summary
	if s.Total != 3 {
		t.Errorf("Total = %d, want 3", s.Total)
	}
	if s.Kept != 2 || s.Consistent != 2 {
		t.Errorf("Kept = %d, Consistent = %d, want 2 and 2", s.Kept, s.Consistent)
	}
	if s.MatchRates.DrugsMatched != 2 || s.MatchRates.ADEsMatched != 2 || s.MatchRates.BothMatched != 2 {
		t.Errorf("MatchRates = %+v", s.MatchRates)
	}

	if len(s.PerDrug) != 2 {
		t.Fatalf("PerDrug has %d rows, want 2", len(s.PerDrug))
	}
	// Rows are sorted by drug identity.
	if s.PerDrug[0].Drug >= s.PerDrug[1].Drug {
		t.Errorf("PerDrug not sorted: %q, %q", s.PerDrug[0].Drug, s.PerDrug[1].Drug)
	}
	for _, row := range s.PerDrug {
		if row.Drug == "warfarin" && (row.Mentions != 2 || row.Kept != 2 || row.Consistent != 2) {
			t.Errorf("warfarin summary row = %+v", row)
		}
	}

	total := 0
	for _, rc := range s.Reasons {
		total += rc.Count
	}
	if total != s.Total {
		t.Errorf("reason counts sum to %d, want %d", total, s.Total)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	p := newTestPipeline(t, 4)
	result, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run on empty batch: %v", err)
	}
	if result.Summary.Total != 0 || len(result.Decisions) != 0 {
		t.Errorf("empty batch produced %+v", result.Summary)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	matcher, err := fuzzy.NewMatcher(fuzzy.DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(testVocab(), matcher, filter.Config{ConsistencyThreshold: 2}, 4, nil)
	if err == nil {
		t.Error("expected error for out-of-range consistency threshold")
	}
}

func TestRunCancelledContext(t *testing.T) {
	p := newTestPipeline(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []mention.Mention{
		{DrugText: "Warfarin", ADEText: "Bleeding", SourceID: "a"},
	})
	if err == nil {
		t.Error("expected error when the context is already cancelled")
	}
}

package filter

import (
	pkgerrors "errors"
	"testing"

	"github.com/clinsight/ade-signal-pipeline/internal/mention"
	"github.com/clinsight/ade-signal-pipeline/internal/pattern"
	"github.com/clinsight/ade-signal-pipeline/internal/reference"
	"github.com/clinsight/ade-signal-pipeline/pkg/errors"
)

// testVocab documents warfarin-bleeding twice, so the pair clears the
// default MinFreq of 2.
func testVocab() *reference.Vocabulary {
	drugs := []reference.DrugRow{{CompoundID: "CID1", Name: "Warfarin"}}
	effects := []reference.EffectRow{
		{CompoundFlat: "CID1", Name: "Bleeding"},
		{CompoundFlat: "CID1", Name: "Bleeding"},
		{CompoundFlat: "CID1", Name: "Bruising"},
	}
	return reference.Build(drugs, effects, nil)
}

func validated(drug, ade string, consistent bool) mention.Validated {
	return mention.Validated{
		Normalized: mention.Normalized{
			DrugNormalized: drug,
			ADENormalized:  ade,
		},
		IsConsistent: consistent,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero thresholds", Config{}, false},
		{"negative min freq", Config{MinFreq: -1, ConsistencyThreshold: 0.4}, true},
		{"threshold above one", Config{MinFreq: 2, ConsistencyThreshold: 1.5}, true},
		{"negative threshold", Config{MinFreq: 2, ConsistencyThreshold: -0.1}, true},
		{"boundary one", Config{MinFreq: 0, ConsistencyThreshold: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !pkgerrors.Is(err, errors.ErrInvalidConfig) {
				t.Errorf("error %v should wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestDecideHighConfidenceReference(t *testing.T) {
	vocab := testVocab()
	m := validated("warfarin", "bleeding", true)
	p := &pattern.DrugPattern{
		TotalMentions:      3,
		ADEs:               map[string]int{"bleeding": 3},
		ReferenceValidated: 3,
	}

	d := Decide(m, p, vocab, DefaultConfig())
	if !d.Kept || d.Reason != ReasonHighConfidenceReference {
		t.Errorf("decision = kept=%v reason=%q, want kept high_confidence_reference", d.Kept, d.Reason)
	}
}

// A consistent high-frequency pair that also carries a strong local signal
// must report the reference reason: the cascade stops at the first match.
func TestDecidePriorityOrder(t *testing.T) {
	vocab := testVocab()
	m := validated("warfarin", "bleeding", true)
	p := &pattern.DrugPattern{
		TotalMentions:      10,
		ADEs:               map[string]int{"bleeding": 9},
		ReferenceValidated: 10,
	}

	d := Decide(m, p, vocab, DefaultConfig())
	if d.Reason != ReasonHighConfidenceReference {
		t.Errorf("reason = %q, want high_confidence_reference to shadow later rules", d.Reason)
	}
}

func TestDecideStrongLocalSignal(t *testing.T) {
	vocab := testVocab()
	// Unknown to the reference, but 2 of 3 of this drug's mentions name the
	// same ADE.
	m := validated("mystodrug", "itching", false)
	p := &pattern.DrugPattern{
		TotalMentions: 3,
		ADEs:          map[string]int{"itching": 2, "rash": 1},
	}

	d := Decide(m, p, vocab, DefaultConfig())
	if !d.Kept || d.Reason != ReasonStrongLocalSignal {
		t.Errorf("decision = kept=%v reason=%q, want kept strong_local_signal", d.Kept, d.Reason)
	}
}

func TestDecideConsistentDrugPattern(t *testing.T) {
	vocab := testVocab()
	// Pair frequency 1 fails the high-confidence rule; the ADE ratio of 0.4
	// misses the local-signal cutoff; but 40% of the drug's mentions are
	// reference-validated.
	m := validated("warfarin", "bruising", true)
	p := &pattern.DrugPattern{
		TotalMentions:      5,
		ADEs:               map[string]int{"bruising": 2, "nausea": 3},
		ReferenceValidated: 2,
	}

	d := Decide(m, p, vocab, DefaultConfig())
	if !d.Kept || d.Reason != ReasonConsistentDrugPattern {
		t.Errorf("decision = kept=%v reason=%q, want kept consistent_drug_pattern", d.Kept, d.Reason)
	}
}

func TestDecideFrequentAssociation(t *testing.T) {
	vocab := testVocab()
	// Not consistent, no validated mentions, only one mention of this ADE,
	// but the ADE accounts for a third of a well-observed drug.
	m := validated("mystodrug", "fatigue", false)
	p := &pattern.DrugPattern{
		TotalMentions: 6,
		ADEs:          map[string]int{"fatigue": 2, "nausea": 4},
	}
	// adeMentions of 2 would trip the pattern rule only with validated
	// mentions; here ReferenceValidated is 0.

	d := Decide(m, p, vocab, DefaultConfig())
	if !d.Kept || d.Reason != ReasonFrequentAssociation {
		t.Errorf("decision = kept=%v reason=%q, want kept frequent_association", d.Kept, d.Reason)
	}
}

func TestDecideInsufficientEvidence(t *testing.T) {
	vocab := testVocab()
	m := validated("mystodrug", "itching", false)
	p := &pattern.DrugPattern{
		TotalMentions: 1,
		ADEs:          map[string]int{"itching": 1},
	}

	d := Decide(m, p, vocab, DefaultConfig())
	if d.Kept || d.Reason != ReasonInsufficientEvidence {
		t.Errorf("decision = kept=%v reason=%q, want rejected insufficient_evidence", d.Kept, d.Reason)
	}
}

func TestDecideNilPattern(t *testing.T) {
	vocab := testVocab()
	m := validated("mystodrug", "itching", false)

	d := Decide(m, nil, vocab, DefaultConfig())
	if d.Kept || d.Reason != ReasonInsufficientEvidence {
		t.Errorf("nil-pattern decision = kept=%v reason=%q, want rejection", d.Kept, d.Reason)
	}
}

func TestDecideConsistentButRare(t *testing.T) {
	vocab := testVocab()
	// warfarin-bruising is documented once; with MinFreq 2 consistency alone
	// is not enough.
	m := validated("warfarin", "bruising", true)
	p := &pattern.DrugPattern{
		TotalMentions:      1,
		ADEs:               map[string]int{"bruising": 1},
		ReferenceValidated: 1,
	}

	d := Decide(m, p, vocab, DefaultConfig())
	if d.Reason == ReasonHighConfidenceReference {
		t.Error("pair below MinFreq should not pass the high-confidence rule")
	}
	// With MinFreq relaxed to 1 the same mention passes.
	d = Decide(m, p, vocab, Config{MinFreq: 1, ConsistencyThreshold: 0.4})
	if !d.Kept || d.Reason != ReasonHighConfidenceReference {
		t.Errorf("MinFreq=1 decision = kept=%v reason=%q", d.Kept, d.Reason)
	}
}

// Scenario table exercising the cascade end to end with realistic numbers.
func TestDecideScenarios(t *testing.T) {
	// aspirin-nausea documented three times in the reference.
	drugs := []reference.DrugRow{{CompoundID: "CID1", Name: "Aspirin"}}
	effects := []reference.EffectRow{
		{CompoundFlat: "CID1", Name: "Nausea"},
		{CompoundFlat: "CID1", Name: "Nausea"},
		{CompoundFlat: "CID1", Name: "Nausea"},
	}
	vocab := reference.Build(drugs, effects, nil)

	tests := []struct {
		name       string
		m          mention.Validated
		p          *pattern.DrugPattern
		wantKept   bool
		wantReason string
	}{
		{
			name: "documented frequent pair",
			m:    validated("aspirin", "nausea", true),
			p: &pattern.DrugPattern{
				TotalMentions:      10,
				ADEs:               map[string]int{"nausea": 6, "tinnitus": 4},
				ReferenceValidated: 6,
			},
			wantKept:   true,
			wantReason: ReasonHighConfidenceReference,
		},
		{
			name: "dominant local ade without reference support",
			m:    validated("metformin", "diarrhea", false),
			p: &pattern.DrugPattern{
				TotalMentions: 3,
				ADEs:          map[string]int{"diarrhea": 2, "nausea": 1},
			},
			wantKept:   true,
			wantReason: ReasonStrongLocalSignal,
		},
		{
			name: "singleton with no support anywhere",
			m:    validated("ibuprofen", "rash", false),
			p: &pattern.DrugPattern{
				TotalMentions: 1,
				ADEs:          map[string]int{"rash": 1},
			},
			wantKept:   false,
			wantReason: ReasonInsufficientEvidence,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.m, tt.p, vocab, DefaultConfig())
			if d.Kept != tt.wantKept || d.Reason != tt.wantReason {
				t.Errorf("decision = kept=%v reason=%q, want kept=%v reason=%q",
					d.Kept, d.Reason, tt.wantKept, tt.wantReason)
			}
		})
	}
}

func TestDecideAllRejectsInvalidConfig(t *testing.T) {
	vocab := testVocab()
	mentions := []mention.Validated{validated("warfarin", "bleeding", true)}
	patterns := pattern.Build(mentions)

	_, err := DecideAll(mentions, patterns, vocab, Config{MinFreq: -5})
	if !pkgerrors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("DecideAll error = %v, want ErrInvalidConfig", err)
	}
}

func TestDecideAllCoversEveryMention(t *testing.T) {
	vocab := testVocab()
	mentions := []mention.Validated{
		validated("warfarin", "bleeding", true),
		validated("warfarin", "bleeding", true),
		validated("mystodrug", "itching", false),
	}
	patterns := pattern.Build(mentions)

	decisions, err := DecideAll(mentions, patterns, vocab, DefaultConfig())
	if err != nil {
		t.Fatalf("DecideAll: %v", err)
	}
	if len(decisions) != len(mentions) {
		t.Fatalf("got %d decisions for %d mentions", len(decisions), len(mentions))
	}
	for i, d := range decisions {
		if d.Reason == "" {
			t.Errorf("decision %d has empty reason", i)
		}
		if d.DrugNormalized != mentions[i].DrugNormalized {
			t.Errorf("decision %d out of order", i)
		}
	}
}

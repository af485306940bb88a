package consistency

import (
	"testing"

	"github.com/clinsight/ade-signal-pipeline/internal/mention"
	"github.com/clinsight/ade-signal-pipeline/internal/reference"
)

func testVocab() *reference.Vocabulary {
	drugs := []reference.DrugRow{{CompoundID: "CID1", Name: "Warfarin"}}
	effects := []reference.EffectRow{
		{CompoundFlat: "CID1", Name: "Bleeding"},
		{CompoundFlat: "CID1", Name: "Bruising"},
	}
	return reference.Build(drugs, effects, nil)
}

func TestCheck(t *testing.T) {
	vocab := testVocab()

	tests := []struct {
		name           string
		m              mention.Normalized
		wantConsistent bool
		wantRefFound   bool
	}{
		{
			name: "documented pair",
			m: mention.Normalized{
				DrugMatched: "warfarin",
				ADEMatched:  "bleeding",
			},
			wantConsistent: true,
			wantRefFound:   true,
		},
		{
			name: "known drug, undocumented ade",
			m: mention.Normalized{
				DrugMatched:   "warfarin",
				ADENormalized: "hair loss",
			},
			wantConsistent: false,
			wantRefFound:   true,
		},
		{
			name: "unknown drug",
			m: mention.Normalized{
				DrugNormalized: "mystodrug",
				ADEMatched:     "bleeding",
			},
			wantConsistent: false,
			wantRefFound:   false,
		},
		{
			name: "normalized fallback identity",
			m: mention.Normalized{
				DrugNormalized: "warfarin",
				ADENormalized:  "bruising",
			},
			wantConsistent: true,
			wantRefFound:   true,
		},
		{
			name:           "empty mention",
			m:              mention.Normalized{},
			wantConsistent: false,
			wantRefFound:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.m, vocab)
			if got.IsConsistent != tt.wantConsistent {
				t.Errorf("IsConsistent = %v, want %v", got.IsConsistent, tt.wantConsistent)
			}
			if got.ReferenceMatchFound != tt.wantRefFound {
				t.Errorf("ReferenceMatchFound = %v, want %v", got.ReferenceMatchFound, tt.wantRefFound)
			}
		})
	}
}

func TestCheckAllPreservesOrder(t *testing.T) {
	vocab := testVocab()
	in := []mention.Normalized{
		{Mention: mention.Mention{SourceID: "a"}, DrugMatched: "warfarin", ADEMatched: "bleeding"},
		{Mention: mention.Mention{SourceID: "b"}, DrugNormalized: "mystodrug"},
	}
	out := CheckAll(in, vocab)
	if len(out) != 2 {
		t.Fatalf("got %d validated mentions, want 2", len(out))
	}
	if out[0].SourceID != "a" || out[1].SourceID != "b" {
		t.Error("CheckAll reordered mentions")
	}
	if !out[0].IsConsistent || out[1].IsConsistent {
		t.Error("CheckAll verdicts wrong")
	}
}

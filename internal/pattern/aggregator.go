// Package pattern builds per-drug aggregate statistics over all validated
// mentions of a batch. The confidence filter needs complete per-drug totals
// for every mention before any decision is scored, so aggregation is a full
// pass over the batch, never interleaved with scoring.
package pattern

import (
	"github.com/clinsight/ade-signal-pipeline/internal/mention"
)

// DrugPattern holds the running statistics for one drug, keyed by its
// resolved identity. It is read-only during the scoring pass.
type DrugPattern struct {
	TotalMentions      int
	ADEs               map[string]int
	ConsistentADEs     map[string]struct{}
	ReferenceValidated int
}

// ADERatio returns the fraction of this drug's mentions naming the given
// ADE, or 0 when the drug has no mentions.
func (p *DrugPattern) ADERatio(ade string) float64 {
	if p.TotalMentions == 0 {
		return 0
	}
	return float64(p.ADEs[ade]) / float64(p.TotalMentions)
}

// ValidatedRatio returns the fraction of this drug's mentions that were
// reference-validated, or 0 when the drug has no mentions.
func (p *DrugPattern) ValidatedRatio() float64 {
	if p.TotalMentions == 0 {
		return 0
	}
	return float64(p.ReferenceValidated) / float64(p.TotalMentions)
}

// Build aggregates the full validated-mention collection into per-drug
// patterns in a single pass. Drugs and ADEs are keyed by the same resolved
// identity rule the consistency checker uses.
func Build(mentions []mention.Validated) map[string]*DrugPattern {
	patterns := make(map[string]*DrugPattern)
	for _, m := range mentions {
		drug := m.ResolvedDrug()
		ade := m.ResolvedADE()

		p, ok := patterns[drug]
		if !ok {
			p = &DrugPattern{
				ADEs:           make(map[string]int),
				ConsistentADEs: make(map[string]struct{}),
			}
			patterns[drug] = p
		}

		p.TotalMentions++
		p.ADEs[ade]++
		if m.IsConsistent {
			p.ConsistentADEs[ade] = struct{}{}
			p.ReferenceValidated++
		}
	}
	return patterns
}

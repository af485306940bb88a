// Package consistency cross-checks normalised mentions against the
// pharmacovigilance reference. A mention is consistent when its resolved
// (drug, ADE) pair is a documented association; independently, the drug
// alone may be known to the reference even when this particular ADE is not
// associated with it.
package consistency

import (
	"github.com/clinsight/ade-signal-pipeline/internal/mention"
	"github.com/clinsight/ade-signal-pipeline/internal/reference"
)

// Check evaluates one normalised mention against the reference vocabulary.
// Identities are resolved by the shared matched-if-available-else-normalized
// rule, applied independently for the drug and the ADE side. It is a pure
// function: absent identities simply fail to match.
func Check(m mention.Normalized, vocab *reference.Vocabulary) mention.Validated {
	drug := m.ResolvedDrug()
	ade := m.ResolvedADE()

	return mention.Validated{
		Normalized:          m,
		IsConsistent:        vocab.HasAssociation(drug, ade),
		ReferenceMatchFound: vocab.HasDrug(drug),
	}
}

// CheckAll validates every mention in order, returning a fully materialised
// collection for the aggregation pass.
func CheckAll(mentions []mention.Normalized, vocab *reference.Vocabulary) []mention.Validated {
	validated := make([]mention.Validated, len(mentions))
	for i, m := range mentions {
		validated[i] = Check(m, vocab)
	}
	return validated
}

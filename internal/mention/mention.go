// Package mention defines the data model flowing through the ADE evidence
// pipeline: a raw Mention as extracted from a clinical narrative, its
// normalised and fuzzy-matched form, the reference-validated form, and the
// final filter decision.
//
// It also owns the single resolved-identity rule shared by the consistency
// checker and the pattern aggregator: prefer the fuzzy-matched key when one
// exists, else fall back to the normalised key. Keeping this rule in one
// place guarantees both components agree on which drug/ADE identity a
// mention represents.
package mention

// Mention is one observed occurrence of a drug together with an adverse
// drug event in a source document. It is immutable once extracted.
type Mention struct {
	DrugText string `json:"drug_text"`
	ADEText  string `json:"ade_text"`
	SourceID string `json:"source_id"`
}

// Normalized is a Mention augmented with normalised keys and the outcome of
// fuzzy matching against the reference vocabularies. Normalised keys are
// always populated (possibly empty for missing input); matched fields are
// populated only when the match score met the threshold. Scores are retained
// for audit even when the matched identity was withheld.
type Normalized struct {
	Mention

	DrugNormalized string `json:"drug_normalized"`
	ADENormalized  string `json:"ade_normalized"`

	DrugMatched         string `json:"drug_matched"`
	DrugMatchedOriginal string `json:"drug_matched_original"`
	ADEMatched          string `json:"ade_matched"`
	ADEMatchedOriginal  string `json:"ade_matched_original"`

	DrugMatchScore int `json:"drug_match_score"`
	ADEMatchScore  int `json:"ade_match_score"`
}

// Validated is a Normalized mention augmented with the consistency-check
// outcome. Both flags default to false and are only ever set to true.
type Validated struct {
	Normalized

	// IsConsistent reports that the resolved (drug, ADE) pair exactly
	// matches a reference association.
	IsConsistent bool `json:"is_consistent"`

	// ReferenceMatchFound reports that the resolved drug appears anywhere
	// in the reference, regardless of this particular ADE.
	ReferenceMatchFound bool `json:"reference_match_found"`
}

// Decision is the per-mention outcome of the confidence filter. It is
// computed once during the scoring pass and never mutated afterward.
type Decision struct {
	Validated

	Kept   bool   `json:"kept"`
	Reason string `json:"filter_reason"`
}

// ResolvedDrug returns the drug identity used for reference lookups and
// aggregation: the fuzzy-matched key if present, else the normalised key.
func (m Normalized) ResolvedDrug() string {
	return resolve(m.DrugMatched, m.DrugNormalized)
}

// ResolvedADE returns the ADE identity used for reference lookups and
// aggregation: the fuzzy-matched key if present, else the normalised key.
func (m Normalized) ResolvedADE() string {
	return resolve(m.ADEMatched, m.ADENormalized)
}

func resolve(matched, normalized string) string {
	if matched != "" {
		return matched
	}
	return normalized
}

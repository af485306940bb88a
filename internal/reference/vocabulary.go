package reference

import (
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/clinsight/ade-signal-pipeline/internal/normalize"
)

// Pair is a canonical (drug key, side-effect key) association, both sides
// normalised.
type Pair struct {
	Drug string
	ADE  string
}

// Vocabulary bundles the reference lookup structures the pipeline matches
// against: the drug and side-effect dictionaries, the canonical association
// set, and per-pair frequency counts.
type Vocabulary struct {
	Drugs   *Dictionary
	Effects *Dictionary

	associations map[Pair]struct{}
	frequencies  map[Pair]int
	drugKeys     map[string]struct{}

	fingerprint string
}

// Build constructs the full Vocabulary from the loaded source rows. The ATC
// mapping is optional; when present it is used as a secondary join key for
// side-effect rows whose compound identifier does not appear in the drug
// table directly.
func Build(drugs []DrugRow, effects []EffectRow, atc []ATCRow) *Vocabulary {
	logger := slog.Default().With("component", "reference-builder")

	v := &Vocabulary{
		Drugs:        NewDictionary(),
		Effects:      NewDictionary(),
		associations: make(map[Pair]struct{}),
		frequencies:  make(map[Pair]int),
		drugKeys:     make(map[string]struct{}),
	}

	// Dictionaries: normalised term -> first-seen surface form.
	for _, row := range drugs {
		if row.Name == "" {
			continue
		}
		v.Drugs.Add(normalize.Normalize(row.Name), row.Name)
	}
	for _, row := range effects {
		if row.Name == "" {
			continue
		}
		v.Effects.Add(normalize.Normalize(row.Name), row.Name)
	}

	// Join keys for the association build.
	compoundToDrug := make(map[string]string, len(drugs))
	for _, row := range drugs {
		if row.CompoundID != "" && row.Name != "" {
			if _, exists := compoundToDrug[row.CompoundID]; !exists {
				compoundToDrug[row.CompoundID] = row.Name
			}
		}
	}
	compoundToATC := make(map[string]string, len(atc))
	atcToDrug := make(map[string]string)
	for _, row := range atc {
		if row.CompoundID != "" && row.ATCCode != "" {
			compoundToATC[row.CompoundID] = row.ATCCode
		}
	}
	// When an ATC map is supplied, drug rows may be keyed by ATC code
	// instead of compound identifier.
	for _, row := range drugs {
		if row.CompoundID != "" && row.Name != "" {
			atcToDrug[row.CompoundID] = row.Name
		}
	}

	unresolved := 0
	for _, row := range effects {
		if row.Name == "" {
			continue
		}
		drugName, ok := compoundToDrug[row.CompoundFlat]
		if !ok {
			if code, mapped := compoundToATC[row.CompoundFlat]; mapped {
				drugName, ok = atcToDrug[code]
			}
		}
		if !ok {
			unresolved++
			continue
		}

		pair := Pair{
			Drug: normalize.Normalize(drugName),
			ADE:  normalize.Normalize(row.Name),
		}
		// Rows where either side normalises to empty carry no signal.
		if pair.Drug == "" || pair.ADE == "" {
			continue
		}
		// Frequency counts every source row that produced the pair;
		// the association set itself deduplicates.
		v.frequencies[pair]++
		v.associations[pair] = struct{}{}
		v.drugKeys[pair.Drug] = struct{}{}
	}

	if unresolved > 0 {
		logger.Warn("side-effect rows with unresolvable join key skipped", "count", unresolved)
	}
	logger.Info("reference vocabulary built",
		"drugs", v.Drugs.Len(),
		"side_effects", v.Effects.Len(),
		"associations", len(v.associations),
	)

	v.fingerprint = computeFingerprint(v)
	return v
}

// HasAssociation reports whether (drug, ade) is a known reference
// association.
func (v *Vocabulary) HasAssociation(drug, ade string) bool {
	_, ok := v.associations[Pair{Drug: drug, ADE: ade}]
	return ok
}

// HasDrug reports whether the drug key appears anywhere in the association
// set, regardless of side effect.
func (v *Vocabulary) HasDrug(drug string) bool {
	_, ok := v.drugKeys[drug]
	return ok
}

// Frequency returns the number of reference source rows that documented the
// (drug, ade) pair, or 0 when the pair is unknown.
func (v *Vocabulary) Frequency(drug, ade string) int {
	return v.frequencies[Pair{Drug: drug, ADE: ade}]
}

// Associations returns the number of distinct association pairs.
func (v *Vocabulary) Associations() int {
	return len(v.associations)
}

// Fingerprint identifies this vocabulary's content. It is stable across
// processes for identical source tables and is used to key the external
// fuzzy-match cache so that stale entries from an older reference never
// leak into a run against a newer one.
func (v *Vocabulary) Fingerprint() string {
	return v.fingerprint
}

func computeFingerprint(v *Vocabulary) string {
	h := fnv.New64a()
	for _, key := range v.Drugs.Keys() {
		h.Write([]byte(key))
		h.Write([]byte{0})
	}
	for _, key := range v.Effects.Keys() {
		h.Write([]byte(key))
		h.Write([]byte{1})
	}
	fmt.Fprintf(h, "assoc=%d", len(v.associations))
	return fmt.Sprintf("%016x", h.Sum64())
}

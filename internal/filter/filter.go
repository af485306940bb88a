// Package filter implements the confidence scorer that accepts or rejects
// each validated mention. Decisions come from an ordered rule cascade
// evaluated first-match-wins, so adding or reordering acceptance criteria is
// a data change rather than a control-flow rewrite.
package filter

import (
	"fmt"

	"github.com/clinsight/ade-signal-pipeline/internal/mention"
	"github.com/clinsight/ade-signal-pipeline/internal/pattern"
	"github.com/clinsight/ade-signal-pipeline/internal/reference"
	"github.com/clinsight/ade-signal-pipeline/pkg/errors"
)

// Reason codes, in cascade priority order.
const (
	ReasonHighConfidenceReference = "high_confidence_reference"
	ReasonStrongLocalSignal       = "strong_local_signal"
	ReasonConsistentDrugPattern   = "consistent_drug_pattern"
	ReasonFrequentAssociation     = "frequent_association"
	ReasonInsufficientEvidence    = "insufficient_evidence"
)

// Fixed policy constants of the cascade. Only MinFreq and
// ConsistencyThreshold are caller-configurable.
const (
	localSignalRatio    = 0.5
	frequentRatio       = 0.3
	minADEMentions      = 2
	minDrugTotalForFreq = 5
)

// Config holds the caller-configurable thresholds of the scorer.
type Config struct {
	// MinFreq is the minimum reference frequency for the
	// high-confidence acceptance rule.
	MinFreq int
	// ConsistencyThreshold is the minimum fraction of a drug's mentions
	// that must be reference-validated for the drug-pattern rule.
	ConsistencyThreshold float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{MinFreq: 2, ConsistencyThreshold: 0.4}
}

// Validate rejects out-of-range thresholds before any processing begins.
// Values are never silently clamped.
func (c Config) Validate() error {
	if c.MinFreq < 0 {
		return fmt.Errorf("%w: min_freq %d must be non-negative", errors.ErrInvalidConfig, c.MinFreq)
	}
	if c.ConsistencyThreshold < 0 || c.ConsistencyThreshold > 1 {
		return fmt.Errorf("%w: consistency_threshold %v outside [0,1]", errors.ErrInvalidConfig, c.ConsistencyThreshold)
	}
	return nil
}

// evidence gathers everything one rule needs to decide about one mention.
type evidence struct {
	consistent     bool
	pairFreq       int
	totalMentions  int
	adeMentions    int
	adeRatio       float64
	validatedRatio float64
}

// rule pairs an acceptance predicate with its reason code.
type rule struct {
	reason string
	accept func(cfg Config, ev evidence) bool
}

// cascade is evaluated in order; the first matching rule wins and later
// rules are not evaluated.
var cascade = []rule{
	{
		reason: ReasonHighConfidenceReference,
		accept: func(cfg Config, ev evidence) bool {
			return ev.consistent && ev.pairFreq >= cfg.MinFreq
		},
	},
	{
		reason: ReasonStrongLocalSignal,
		accept: func(cfg Config, ev evidence) bool {
			return ev.adeRatio >= localSignalRatio && ev.adeMentions >= minADEMentions
		},
	},
	{
		reason: ReasonConsistentDrugPattern,
		accept: func(cfg Config, ev evidence) bool {
			return ev.validatedRatio >= cfg.ConsistencyThreshold && ev.adeMentions >= minADEMentions
		},
	},
	{
		reason: ReasonFrequentAssociation,
		accept: func(cfg Config, ev evidence) bool {
			return ev.totalMentions >= minDrugTotalForFreq && ev.adeRatio >= frequentRatio
		},
	},
}

// Decide scores a single validated mention against its drug's aggregated
// pattern and the reference frequency data. Ratios default to 0 rather than
// dividing by zero when a drug somehow has no counted mentions.
func Decide(m mention.Validated, p *pattern.DrugPattern, vocab *reference.Vocabulary, cfg Config) mention.Decision {
	drug := m.ResolvedDrug()
	ade := m.ResolvedADE()

	ev := evidence{
		consistent: m.IsConsistent,
		pairFreq:   vocab.Frequency(drug, ade),
	}
	if p != nil {
		ev.totalMentions = p.TotalMentions
		ev.adeMentions = p.ADEs[ade]
		ev.adeRatio = p.ADERatio(ade)
		ev.validatedRatio = p.ValidatedRatio()
	}

	for _, r := range cascade {
		if r.accept(cfg, ev) {
			return mention.Decision{Validated: m, Kept: true, Reason: r.reason}
		}
	}
	return mention.Decision{Validated: m, Kept: false, Reason: ReasonInsufficientEvidence}
}

// DecideAll scores every mention using the prebuilt pattern map. The pattern
// map must cover the full batch; aggregation and scoring are strictly
// sequential passes.
func DecideAll(mentions []mention.Validated, patterns map[string]*pattern.DrugPattern, vocab *reference.Vocabulary, cfg Config) ([]mention.Decision, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	decisions := make([]mention.Decision, len(mentions))
	for i, m := range mentions {
		decisions[i] = Decide(m, patterns[m.ResolvedDrug()], vocab, cfg)
	}
	return decisions, nil
}

package pipeline

import (
	"sort"

	"github.com/clinsight/ade-signal-pipeline/internal/mention"
)

// Summary condenses one run for reporting: per-drug counts, decision counts
// by reason, and the match-rate statistics.
type Summary struct {
	Total      int            `json:"total"`
	Kept       int            `json:"kept"`
	Consistent int            `json:"consistent"`
	PerDrug    []DrugSummary  `json:"per_drug"`
	Reasons    []ReasonCount  `json:"reasons"`
	MatchRates MatchRateStats `json:"match_rates"`
}

// DrugSummary is the per-drug output table row: mention count, consistent
// count, and kept count, keyed by resolved drug identity.
type DrugSummary struct {
	Drug       string `json:"drug"`
	Mentions   int    `json:"mentions"`
	Consistent int    `json:"consistent"`
	Kept       int    `json:"kept"`
}

// ReasonCount tallies decisions per reason code.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
	Kept   int    `json:"kept"`
}

// MatchRateStats reports how many mentions resolved to a reference identity
// on each side.
type MatchRateStats struct {
	DrugsMatched int `json:"drugs_matched"`
	ADEsMatched  int `json:"ades_matched"`
	BothMatched  int `json:"both_matched"`
}

func buildSummary(decisions []mention.Decision) Summary {
	s := Summary{Total: len(decisions)}

	perDrug := make(map[string]*DrugSummary)
	reasons := make(map[string]*ReasonCount)

	for _, d := range decisions {
		drug := d.ResolvedDrug()
		ds, ok := perDrug[drug]
		if !ok {
			ds = &DrugSummary{Drug: drug}
			perDrug[drug] = ds
		}
		ds.Mentions++

		rc, ok := reasons[d.Reason]
		if !ok {
			rc = &ReasonCount{Reason: d.Reason}
			reasons[d.Reason] = rc
		}
		rc.Count++

		if d.IsConsistent {
			s.Consistent++
			ds.Consistent++
		}
		if d.Kept {
			s.Kept++
			ds.Kept++
			rc.Kept++
		}
		if d.DrugMatched != "" {
			s.MatchRates.DrugsMatched++
		}
		if d.ADEMatched != "" {
			s.MatchRates.ADEsMatched++
		}
		if d.DrugMatched != "" && d.ADEMatched != "" {
			s.MatchRates.BothMatched++
		}
	}

	s.PerDrug = make([]DrugSummary, 0, len(perDrug))
	for _, ds := range perDrug {
		s.PerDrug = append(s.PerDrug, *ds)
	}
	sort.Slice(s.PerDrug, func(i, j int) bool { return s.PerDrug[i].Drug < s.PerDrug[j].Drug })

	s.Reasons = make([]ReasonCount, 0, len(reasons))
	for _, rc := range reasons {
		s.Reasons = append(s.Reasons, *rc)
	}
	sort.Slice(s.Reasons, func(i, j int) bool { return s.Reasons[i].Reason < s.Reasons[j].Reason })

	return s
}

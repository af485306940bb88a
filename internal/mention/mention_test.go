package mention

import "testing"

func TestResolvedIdentityPrefersMatch(t *testing.T) {
	m := Normalized{
		DrugNormalized: "asprin",
		DrugMatched:    "aspirin",
		ADENormalized:  "stomach pain",
	}

	if got := m.ResolvedDrug(); got != "aspirin" {
		t.Errorf("ResolvedDrug = %q, want matched key", got)
	}
	if got := m.ResolvedADE(); got != "stomach pain" {
		t.Errorf("ResolvedADE = %q, want normalized fallback", got)
	}
}

func TestResolvedIdentityEmpty(t *testing.T) {
	var m Normalized
	if m.ResolvedDrug() != "" || m.ResolvedADE() != "" {
		t.Error("zero-value mention should resolve to empty identities")
	}
}

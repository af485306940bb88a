// Package normalize provides deterministic canonicalisation of free-text
// drug and adverse-event spans into comparison keys. It lower-cases input,
// strips clinical punctuation, and trims whitespace. Hyphens and slashes are
// kept because drug names and clinical terms depend on them for distinctness
// (e.g. "co-trimoxazole", "nausea/vomiting").
package normalize

import "strings"

// stripped contains the punctuation removed without replacement. Hyphen and
// slash are deliberately absent.
const stripped = "\"'.,;:!?()[]{}"

// Normalize canonicalises a raw text span into a comparison key. It is pure
// and total: missing or empty input yields the empty string, never an error.
// Applying Normalize twice is the same as applying it once.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.ToLower(raw)
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(stripped, r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

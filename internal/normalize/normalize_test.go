package normalize

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercases", "Aspirin", "aspirin"},
		{"strips punctuation", "nausea,", "nausea"},
		{"strips quotes and brackets", `"Stevens-Johnson (syndrome)"`, "stevens-johnson syndrome"},
		{"keeps hyphen", "co-trimoxazole", "co-trimoxazole"},
		{"keeps slash", "Nausea/Vomiting.", "nausea/vomiting"},
		{"trims whitespace", "  warfarin  ", "warfarin"},
		{"punctuation only", ".,;:", ""},
		{"interior whitespace kept", "acute renal failure", "acute renal failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Aspirin!", "Nausea/Vomiting.", "  (severe) headache  ", "co-trimoxazole"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

package reference

import "testing"

func TestDictionaryFirstSeenWins(t *testing.T) {
	d := NewDictionary()
	d.Add("aspirin", "Aspirin")
	d.Add("aspirin", "ASPIRIN 100mg")

	surface, ok := d.Get("aspirin")
	if !ok || surface != "Aspirin" {
		t.Errorf("Get(aspirin) = %q, %v; want first-seen surface Aspirin", surface, ok)
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1 after duplicate insert", d.Len())
	}
}

func TestDictionaryIgnoresEmptyKey(t *testing.T) {
	d := NewDictionary()
	d.Add("", "something")
	if d.Len() != 0 {
		t.Errorf("Len = %d after empty-key Add, want 0", d.Len())
	}
}

func TestDictionaryKeysInsertionOrder(t *testing.T) {
	d := NewDictionary()
	for _, key := range []string{"warfarin", "aspirin", "metformin"} {
		d.Add(key, key)
	}
	want := []string{"warfarin", "aspirin", "metformin"}
	got := d.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if !d.Has("aspirin") || d.Has("ibuprofen") {
		t.Error("Has membership incorrect")
	}
}

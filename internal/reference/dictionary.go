package reference

// Dictionary maps a normalised term to the first-seen original surface form.
// Insertion order is preserved so that downstream tie-breaks ("first
// encountered key wins") are deterministic for a given source-table row
// order. Later duplicates of the same normalised key are dropped silently.
type Dictionary struct {
	keys     []string
	surfaces map[string]string
}

// NewDictionary returns an empty Dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{surfaces: make(map[string]string)}
}

// Add records a normalised key with its original surface form. The first
// insertion wins; subsequent inserts of the same key are no-ops. Empty keys
// are ignored.
func (d *Dictionary) Add(key, surface string) {
	if key == "" {
		return
	}
	if _, exists := d.surfaces[key]; exists {
		return
	}
	d.keys = append(d.keys, key)
	d.surfaces[key] = surface
}

// Get returns the surface form for key and whether the key is present.
func (d *Dictionary) Get(key string) (string, bool) {
	surface, ok := d.surfaces[key]
	return surface, ok
}

// Has reports whether the normalised key is present.
func (d *Dictionary) Has(key string) bool {
	_, ok := d.surfaces[key]
	return ok
}

// Keys returns the normalised keys in insertion order. The returned slice is
// shared; callers must not modify it.
func (d *Dictionary) Keys() []string {
	return d.keys
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	return len(d.keys)
}

package profiles

// Passthrough performs no extraction; it wraps the raw line as the sole
// "message" field. Grounded on observix_indexer/profiles/passthrough.py.
type Passthrough struct{}

func (Passthrough) Normalize(raw string) map[string]any {
	return map[string]any{"message": raw}
}

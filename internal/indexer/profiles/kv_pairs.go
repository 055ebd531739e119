package profiles

import "strings"

// KVPairs parses "key=value key2=value2 ..." lines. Grounded on
// observix_indexer/profiles/kv_pairs.py.
type KVPairs struct{}

func (KVPairs) Normalize(raw string) map[string]any {
	out := make(map[string]any)
	for _, part := range strings.Fields(raw) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if len(out) == 0 {
		out["message"] = raw
	}
	return out
}

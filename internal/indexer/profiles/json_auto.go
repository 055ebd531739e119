package profiles

import (
	"encoding/json"
	"strings"
)

// JSONAuto parses a line as a JSON object and returns its fields directly
// at the top level -- no nesting under a sub-key. Falls back to
// {"message": raw} for anything that isn't a JSON object, including valid
// JSON scalars and arrays (only input starting with "{" is parsed at all).
// Grounded on observix_indexer/profiles/json_auto.py.
type JSONAuto struct{}

func (JSONAuto) Normalize(raw string) map[string]any {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "{") {
		return map[string]any{"message": raw}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj
	}

	var value any
	if err := json.Unmarshal([]byte(s), &value); err == nil {
		return map[string]any{"value": value, "message": raw}
	}
	return map[string]any{"message": raw}
}

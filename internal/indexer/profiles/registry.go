// Package profiles holds the indexer's pluggable line-normalization
// strategies, grounded on observix_indexer/profiles/*.py: each profile
// turns one raw line into a map of extracted fields.
package profiles

import "fmt"

// Profile turns a raw line into a doc of extracted fields. Implementations
// never return an error for malformed input -- they fall back to
// {"message": raw} instead, matching the Python profiles' behavior of
// always producing something usable.
type Profile interface {
	Normalize(raw string) map[string]any
}

var registry = map[string]Profile{
	"passthrough": Passthrough{},
	"json_auto":   JSONAuto{},
	"kv_pairs":    KVPairs{},
}

// Get looks up a profile by name, returning a nil Profile and an error for
// an unknown one so the caller can surface invalid_spec rather than panicking.
func Get(name string) (Profile, error) {
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s", name)
	}
	return p, nil
}

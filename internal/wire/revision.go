package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// RevisionTuple is one (pipeline_id, version, enabled) entry folded into a
// revision hash. Exported so the control-plane store can build the slice
// directly from query rows without an intermediate conversion type.
type RevisionTuple struct {
	PipelineID string
	Version    int
	Enabled    bool
}

// ComputeRevision returns a deterministic content hash over the sorted set
// of tuples. Equal sets (any order) always hash identically; any change to
// the set changes the hash. This is what makes GET .../assignments revision
// stable across repeated polls and unchanged across unrelated edits.
func ComputeRevision(tuples []RevisionTuple) string {
	sorted := make([]RevisionTuple, len(tuples))
	copy(sorted, tuples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PipelineID < sorted[j].PipelineID
	})

	h := sha256.New()
	for _, t := range sorted {
		fmt.Fprintf(h, "%s|%d|%t\n", t.PipelineID, t.Version, t.Enabled)
	}
	return hex.EncodeToString(h.Sum(nil))
}

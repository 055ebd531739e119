package wire

import "time"

// Event is the unit of work flowing through an agent pipeline. Raw is always
// populated, even after normalization -- the original line survives indexer
// failure downstream.
type Event struct {
	Raw        string         `json:"raw"`
	Ts         time.Time      `json:"ts"`
	SourceAddr string         `json:"source_addr,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// NewEvent builds an Event with Meta pre-allocated so callers can assign into
// it without a nil-map check.
func NewEvent(raw string, ts time.Time) Event {
	return Event{Raw: raw, Ts: ts, Meta: make(map[string]any)}
}

// Clone returns a deep-enough copy: Meta is copied so callers may mutate the
// clone's fields without affecting the original (Events are passed by value
// through most of the pipeline, but Meta is a map and shares backing storage
// unless copied).
func (e Event) Clone() Event {
	c := e
	c.Meta = make(map[string]any, len(e.Meta))
	for k, v := range e.Meta {
		c.Meta[k] = v
	}
	return c
}

// Doc is the indexer's wire response row: a non-empty Raw field plus zero or
// more extracted fields merged at the top level. Modeled as a plain map so
// arbitrary extracted keys round-trip through JSON without a fixed schema.
type Doc map[string]any

// RawOf extracts the pinned "raw" key, defaulting to the empty string if the
// indexer violated its own contract (callers should treat that as malformed).
func (d Doc) RawOf() string {
	if v, ok := d["raw"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ToEventMeta splits a Doc back into (raw, meta) for the agent's internal
// Event representation, which keeps Meta separate from Raw even though the
// indexer's wire Doc merges them at the top level.
func (d Doc) ToEventMeta() (string, map[string]any) {
	meta := make(map[string]any, len(d))
	raw := ""
	for k, v := range d {
		if k == "raw" {
			if s, ok := v.(string); ok {
				raw = s
			}
			continue
		}
		meta[k] = v
	}
	return raw, meta
}

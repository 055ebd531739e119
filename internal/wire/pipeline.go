package wire

import (
	"fmt"
	"time"
)

// SourceKind enumerates the discriminated-union "type" tag for a pipeline
// source. Unknown kinds fail validation with invalid_spec.
type SourceKind string

const (
	SourceSyslogUDP   SourceKind = "syslog_udp"
	SourceFileTail    SourceKind = "file_tail"
	SourceHTTPListener SourceKind = "http_listener"
)

type DestinationKind string

const (
	DestSyslogUDP DestinationKind = "syslog_udp"
	DestHTTP      DestinationKind = "http"
	DestFile      DestinationKind = "file"
)

type ProcessorMode string

const (
	ProcessorRaw     ProcessorMode = "raw"
	ProcessorIndexed ProcessorMode = "indexed"
)

// PipelineSource is the tagged-union source description: a kind plus a bag
// of kind-specific options, validated at deserialization/creation time
// rather than modeled as N concrete struct fields.
type PipelineSource struct {
	Type    SourceKind     `json:"type"`
	Options map[string]any `json:"options,omitempty"`
}

type PipelineProcessor struct {
	Mode    ProcessorMode  `json:"mode"`
	Options map[string]any `json:"options,omitempty"`
}

type PipelineDestination struct {
	Type    DestinationKind `json:"type"`
	Options map[string]any  `json:"options,omitempty"`
}

// PipelineSpec is the declarative description of one pipeline.
type PipelineSpec struct {
	Source          PipelineSource       `json:"source"`
	Processor       PipelineProcessor    `json:"processor"`
	Destination     PipelineDestination  `json:"destination"`
	BatchMaxEvents  int                  `json:"batch_max_events"`
	BatchMaxSeconds float64              `json:"batch_max_seconds"`
}

// Validate enforces the PipelineSpec invariants from the wire contract.
// Unknown source/destination kinds and processor modes fail as invalid_spec,
// matching the "dynamic config objects -> tagged variants, validated at
// deserialization time" design note.
func (s PipelineSpec) Validate() *Error {
	if s.BatchMaxEvents < 1 {
		return InvalidSpec("batch_max_events must be >= 1")
	}
	if s.BatchMaxSeconds <= 0 {
		return InvalidSpec("batch_max_seconds must be > 0")
	}

	switch s.Source.Type {
	case SourceSyslogUDP, SourceFileTail, SourceHTTPListener:
	default:
		return InvalidSpec(fmt.Sprintf("unknown source type: %q", s.Source.Type))
	}

	switch s.Destination.Type {
	case DestSyslogUDP, DestHTTP, DestFile:
	default:
		return InvalidSpec(fmt.Sprintf("unknown destination type: %q", s.Destination.Type))
	}

	switch s.Processor.Mode {
	case "", ProcessorRaw:
	case ProcessorIndexed:
		if err := requireStringOption(s.Processor.Options, "indexer_url"); err != nil {
			return err
		}
		if err := requireStringOption(s.Processor.Options, "profile"); err != nil {
			return err
		}
	default:
		return InvalidSpec(fmt.Sprintf("unknown processor mode: %q", s.Processor.Mode))
	}

	return nil
}

func requireStringOption(opts map[string]any, key string) *Error {
	v, ok := opts[key]
	if !ok {
		return InvalidSpec(fmt.Sprintf("processor.options.%s is required for indexed mode", key))
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return InvalidSpec(fmt.Sprintf("processor.options.%s must be a non-empty string", key))
	}
	return nil
}

// Pipeline is the control-plane's authoritative record for one pipeline.
type Pipeline struct {
	PipelineID string       `json:"pipeline_id"`
	Name       string       `json:"name"`
	Enabled    bool         `json:"enabled"`
	Spec       PipelineSpec `json:"spec"`
	Version    int          `json:"version"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// AgentStatus is the computed liveness status surfaced by GET /v1/agents.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
)

// Agent is the control-plane's record of a registered/polling agent.
type Agent struct {
	AgentID     string      `json:"agent_id"`
	Region      string      `json:"region"`
	FirstSeenAt time.Time   `json:"first_seen_at"`
	LastSeenAt  time.Time   `json:"last_seen_at"`
	Status      AgentStatus `json:"status"`
}

// Assignment binds one pipeline to one (agent, region).
type Assignment struct {
	AssignmentID string    `json:"assignment_id"`
	AgentID      string    `json:"agent_id"`
	Region       string    `json:"region"`
	PipelineID   string    `json:"pipeline_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// AssignedPipeline is one entry in an AssignmentView's pipeline list.
type AssignedPipeline struct {
	PipelineID string       `json:"pipeline_id"`
	Version    int          `json:"version"`
	Enabled    bool         `json:"enabled"`
	Spec       PipelineSpec `json:"spec"`
}

// AssignmentView is the per-poll response body an agent consumes.
type AssignmentView struct {
	Revision  string             `json:"revision"`
	Pipelines []AssignedPipeline `json:"pipelines"`
}

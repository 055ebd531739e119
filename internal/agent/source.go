package agent

import (
	"context"
	"fmt"

	"github.com/observix/observix/internal/wire"
)

// source owns an inbound socket/listener/file handle and pushes Events into
// the pipeline's bounded queue until run's context is cancelled. run must
// never block indefinitely past ctx cancellation -- each implementation
// polls its I/O with a short deadline to stay cooperative.
type source interface {
	// run blocks until ctx is cancelled or a fatal bind error occurs.
	run(ctx context.Context, q *boundedQueue, stats *PipelineStats) error
	// close releases the underlying resource; called after run returns.
	close() error
}

func buildSource(spec wire.PipelineSource) (source, error) {
	switch spec.Type {
	case wire.SourceSyslogUDP:
		return newSyslogUDPSource(spec.Options)
	case wire.SourceFileTail:
		return newFileTailSource(spec.Options)
	case wire.SourceHTTPListener:
		return newHTTPListenerSource(spec.Options)
	default:
		return nil, fmt.Errorf("unknown source type: %s", spec.Type)
	}
}

func optString(opts map[string]any, key, def string) string {
	if v, ok := opts[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func optInt(opts map[string]any, key string, def int) int {
	if v, ok := opts[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

func optBool(opts map[string]any, key string, def bool) bool {
	if v, ok := opts[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

package agent

import (
	"fmt"

	"github.com/observix/observix/internal/wire"
)

// destination emits per-event records to a sink. send is best-effort per
// spec: a failed send is a destination_send_error recorded in stats, never
// a panic or process-level failure.
type destination interface {
	send(events []wire.Event) error
	close() error
}

func buildDestination(spec wire.PipelineDestination) (destination, error) {
	switch spec.Type {
	case wire.DestSyslogUDP:
		return newSyslogUDPDestination(spec.Options)
	case wire.DestHTTP:
		return newHTTPDestination(spec.Options)
	case wire.DestFile:
		return newFileDestination(spec.Options)
	default:
		return nil, fmt.Errorf("unknown destination type: %s", spec.Type)
	}
}

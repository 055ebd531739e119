package agent

import "github.com/observix/observix/internal/wire"

// boundedQueue is the sole back-pressure point in a pipeline: a fixed
// capacity channel of Events. Push never blocks -- on a full queue the
// newest event is dropped (drop-tail) and the caller is told so it can bump
// dropped_queue_full.
type boundedQueue struct {
	ch chan wire.Event
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{ch: make(chan wire.Event, capacity)}
}

// push returns false if the queue was full and the event was dropped.
func (q *boundedQueue) push(e wire.Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
		return false
	}
}

func (q *boundedQueue) len() int {
	return len(q.ch)
}

// drain removes and discards any events still queued, returning the count,
// used by Pipeline.stop once the pipeline's tasks have exited or its
// shutdown deadline has elapsed.
func (q *boundedQueue) drain() int {
	n := 0
	for {
		select {
		case _, ok := <-q.ch:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

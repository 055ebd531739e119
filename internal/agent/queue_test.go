package agent

import (
	"testing"
	"time"

	"github.com/observix/observix/internal/wire"
)

func TestBoundedQueuePushDropsOnFull(t *testing.T) {
	q := newBoundedQueue(2)
	e := wire.NewEvent("line", time.Now())

	if !q.push(e) {
		t.Fatalf("expected first push to succeed")
	}
	if !q.push(e) {
		t.Fatalf("expected second push to succeed")
	}
	if q.push(e) {
		t.Fatalf("expected third push to be dropped on a full queue")
	}
	if q.len() != 2 {
		t.Fatalf("expected len 2, got %d", q.len())
	}
}

func TestBoundedQueueDrain(t *testing.T) {
	q := newBoundedQueue(5)
	e := wire.NewEvent("line", time.Now())
	q.push(e)
	q.push(e)
	q.push(e)

	if n := q.drain(); n != 3 {
		t.Fatalf("expected drain to report 3, got %d", n)
	}
	if q.len() != 0 {
		t.Fatalf("expected empty queue after drain, got len %d", q.len())
	}
}

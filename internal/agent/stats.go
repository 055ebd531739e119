package agent

import (
	"sync"
	"sync/atomic"
	"time"
)

// PipelineStats is the atomic counters and last-observed fields tracked per
// pipeline. The counters are the only state shared across a pipeline's
// tasks, following the "shared stats block behind atomics + a mutex-guarded
// last_err/last_ok pair" concurrency rule.
type PipelineStats struct {
	recv             int64
	droppedQueueFull int64
	sentEvents       int64
	sentBatches      int64
	failedBatches    int64

	mu       sync.RWMutex
	lastOk   time.Time
	lastErr  string
	lastErrAt time.Time
	state    string
	name     string
}

// PipelineStatsSnapshot is the immutable value returned from Agent.Stats();
// copying out of the live atomics avoids handing callers a live handle.
type PipelineStatsSnapshot struct {
	PipelineName     string    `json:"pipeline_name"`
	State            string    `json:"state"`
	Recv             int64     `json:"recv"`
	DroppedQueueFull int64     `json:"dropped_queue_full"`
	SentEvents       int64     `json:"sent_events"`
	SentBatches      int64     `json:"sent_batches"`
	FailedBatches    int64     `json:"failed_batches"`
	Buffer           int       `json:"buffer"`
	LastOk           time.Time `json:"last_ok,omitzero"`
	LastErr          string    `json:"last_err,omitempty"`
	LastErrAt        time.Time `json:"last_err_at,omitzero"`
}

func newPipelineStats(name string) *PipelineStats {
	return &PipelineStats{name: name, state: string(StateStarting)}
}

func (s *PipelineStats) addRecv(n int64)             { atomic.AddInt64(&s.recv, n) }
func (s *PipelineStats) addDroppedQueueFull(n int64) { atomic.AddInt64(&s.droppedQueueFull, n) }
func (s *PipelineStats) addSentEvents(n int64)       { atomic.AddInt64(&s.sentEvents, n) }
func (s *PipelineStats) addSentBatches(n int64)      { atomic.AddInt64(&s.sentBatches, n) }
func (s *PipelineStats) addFailedBatches(n int64)    { atomic.AddInt64(&s.failedBatches, n) }

func (s *PipelineStats) recordOk() {
	s.mu.Lock()
	s.lastOk = time.Now()
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *PipelineStats) recordErr(err string) {
	s.mu.Lock()
	s.lastErr = err
	s.lastErrAt = time.Now()
	s.mu.Unlock()
}

func (s *PipelineStats) setState(st State) {
	s.mu.Lock()
	s.state = string(st)
	s.mu.Unlock()
}

func (s *PipelineStats) snapshot(bufferLen int) PipelineStatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PipelineStatsSnapshot{
		PipelineName:     s.name,
		State:            s.state,
		Recv:             atomic.LoadInt64(&s.recv),
		DroppedQueueFull: atomic.LoadInt64(&s.droppedQueueFull),
		SentEvents:       atomic.LoadInt64(&s.sentEvents),
		SentBatches:      atomic.LoadInt64(&s.sentBatches),
		FailedBatches:    atomic.LoadInt64(&s.failedBatches),
		Buffer:           bufferLen,
		LastOk:           s.lastOk,
		LastErr:          s.lastErr,
		LastErrAt:        s.lastErrAt,
	}
}

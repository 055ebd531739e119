package agent

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/observix/observix/internal/wire"
)

// State is a pipeline's position in its lifecycle. Transitions only move
// forward: Starting -> Running -> Stopping -> Stopped, with Failed reachable
// from any state on an unrecoverable source bind error.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

const defaultQueueCapacity = 10000

// Pipeline is the running form of a wire.Pipeline: one source task, one
// bounded queue, and one batcher task that runs the processor and then the
// destination inline (there is no separate destination goroutine), wired
// together and isolated from every other pipeline on the agent.
type Pipeline struct {
	id      string
	name    string
	spec    wire.PipelineSpec
	version int

	queue  *boundedQueue
	src    source
	proc   processor
	dst    destination
	stats  *PipelineStats

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	state State
}

// newPipeline constructs the source/processor/destination trio from spec
// but does not start any goroutines.
func newPipeline(id, name string, spec wire.PipelineSpec, version int) (*Pipeline, error) {
	src, err := buildSource(spec.Source)
	if err != nil {
		return nil, err
	}
	proc, err := buildProcessor(spec.Processor)
	if err != nil {
		return nil, err
	}
	dst, err := buildDestination(spec.Destination)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		id:      id,
		name:    name,
		spec:    spec,
		version: version,
		queue:   newBoundedQueue(defaultQueueCapacity),
		src:     src,
		proc:    proc,
		dst:     dst,
		stats:   newPipelineStats(name),
		state:   StateStarting,
	}, nil
}

// start marks the pipeline Running and launches the source and batcher
// tasks. It returns immediately; the source binds inside its own goroutine,
// so a bind failure surfaces later through stats and StateFailed, not
// through start.
func (p *Pipeline) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.setState(StateRunning)

	p.wg.Add(2)
	go p.runSource(runCtx)
	go p.runBatcher(runCtx)
}

// stop cancels both tasks and waits up to deadline for them to exit, then
// drains and discards anything left in the queue.
func (p *Pipeline) stop(deadline time.Duration) {
	p.setState(StateStopping)
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(deadline):
		log.Warn().Str("pipeline_id", p.id).Msg("shutdown deadline elapsed, forcing close")
	}

	if err := p.src.close(); err != nil {
		log.Warn().Err(err).Str("pipeline_id", p.id).Msg("source close error")
	}
	if err := p.dst.close(); err != nil {
		log.Warn().Err(err).Str("pipeline_id", p.id).Msg("destination close error")
	}
	dropped := p.queue.drain()
	if dropped > 0 {
		p.stats.addDroppedQueueFull(int64(dropped))
	}
	p.setState(StateStopped)
}

func (p *Pipeline) runSource(ctx context.Context) {
	defer p.wg.Done()
	if err := p.src.run(ctx, p.queue, p.stats); err != nil {
		log.Error().Err(err).Str("pipeline_id", p.id).Msg("source exited with error")
		p.stats.recordErr(err.Error())
		p.setState(StateFailed)
	}
}

// runBatcher accumulates events off the queue and flushes to the processor
// and destination whenever batch_max_events is reached OR batch_max_seconds
// has elapsed since the first event in the current batch arrived -- never
// on an empty batch.
func (p *Pipeline) runBatcher(ctx context.Context) {
	defer p.wg.Done()

	maxEvents := p.spec.BatchMaxEvents
	maxWait := time.Duration(p.spec.BatchMaxSeconds * float64(time.Second))

	batch := make([]wire.Event, 0, maxEvents)
	var flushAt <-chan time.Time

	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.flushBatch(batch)
		batch = make([]wire.Event, 0, maxEvents)
		flushAt = nil
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case e, ok := <-p.queue.ch:
			if !ok {
				flush()
				return
			}
			if len(batch) == 0 {
				timer = time.NewTimer(maxWait)
				flushAt = timer.C
			}
			batch = append(batch, e)
			if len(batch) >= maxEvents {
				if timer != nil {
					timer.Stop()
				}
				flush()
			}
		case <-flushAt:
			flush()
		}
	}
}

// flushBatch runs the processor then, if it produced anything to send,
// hands it to the destination. The processor already records its own
// failures on stats (so a fallback batch still counts against
// failed_batches/last_err even though it reaches the destination); this
// only records the destination's own send failures, and only clears
// last_err via recordOk when the flush was clean end to end.
func (p *Pipeline) flushBatch(batch []wire.Event) {
	out, procErr := p.proc.process(batch, p.stats)
	if len(out) == 0 {
		return
	}
	if err := p.dst.send(out); err != nil {
		p.stats.addFailedBatches(1)
		p.stats.recordErr(err.Error())
		return
	}
	p.stats.addSentBatches(1)
	p.stats.addSentEvents(int64(len(out)))
	if procErr == nil {
		p.stats.recordOk()
	}
}

func (p *Pipeline) setState(st State) {
	p.mu.Lock()
	p.state = st
	p.mu.Unlock()
	p.stats.setState(st)
}

func (p *Pipeline) currentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) snapshot() PipelineStatsSnapshot {
	return p.stats.snapshot(p.queue.len())
}

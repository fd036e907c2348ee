package engine

import (
	"context"
	"sync"

	"github.com/ordertask/ordertask/internal/platform/logger"
)

// workerPool is a fixed set of goroutines pulling ready queues from intake
// and running exactly one envelope per pickup.
type workerPool struct {
	in       intake
	registry *QueueRegistry
	counter  *inFlightCounter
	bridge   *asyncCompletionBridge
	log      logger.Logger
	metrics  *engineMetrics
	tracer   engineTracer

	probes []*workerIsolationProbe

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newWorkerPool(n int, in intake, registry *QueueRegistry, counter *inFlightCounter, log logger.Logger, metrics *engineMetrics, tracer engineTracer) *workerPool {
	p := &workerPool{
		in:       in,
		registry: registry,
		counter:  counter,
		log:      log,
		metrics:  metrics,
		tracer:   tracer,
		probes:   make([]*workerIsolationProbe, n),
		stopCh:   make(chan struct{}),
	}
	p.bridge = newAsyncCompletionBridge(registry, log, metrics, p.onTerminal)
	for i := range p.probes {
		p.probes[i] = &workerIsolationProbe{}
	}
	return p
}

// start launches the pool's workers. It is not idempotent: calling it twice
// on the same pool would double the worker count — callers (the
// TaskExecutor facade) guard against that with postConstruct's once-only
// semantics.
func (p *workerPool) start() {
	for i := range p.probes {
		p.wg.Add(1)
		go p.run(i)
	}
}

// stop signals every worker to exit after finishing its current envelope,
// waits for them to drain out, then drains and discards whatever ready
// queues are still buffered in intake.
func (p *workerPool) stop() {
	close(p.stopCh)
	p.wg.Wait()
	for {
		select {
		case <-p.in:
		default:
			return
		}
	}
}

func (p *workerPool) run(workerIndex int) {
	defer p.wg.Done()
	probe := p.probes[workerIndex]

	for {
		select {
		case <-p.stopCh:
			return
		case q, ok := <-p.in:
			if !ok {
				return
			}
			p.runOne(q, probe)
		}
	}
}

func (p *workerPool) runOne(q *TaskQueue, probe *workerIsolationProbe) {
	env := q.pickUp()
	if env == nil {
		// Spurious pickup: the queue transitioned to RUNNING but had
		// nothing pending (can't happen on the happy path, but leaves the
		// queue consistent either way).
		republish := p.registry.completeSync(q)
		p.onTerminal(q, republish)
		return
	}

	p.metrics.observeActiveWorkers(1)
	defer p.metrics.observeActiveWorkers(-1)

	handle := env.Context.Handle
	probe.set(handle)
	ctx := withIsolation(context.Background(), handle)

	spanEnd := p.tracer.startSpan(ctx, env)
	result := timedInvoke(p.metrics, env, func() *invocationResult {
		return invoke(ctx, p.log, p.metrics, env)
	})
	spanEnd()

	probe.set(nil)

	switch env.Shape {
	case ShapeIn:
		p.counter.release()
		republish := p.registry.completeSync(q)
		p.onTerminal(q, republish)
		return
	}

	if result == nil {
		// invoke already logged and swallowed whatever went wrong; treat
		// as completed synchronously with no output to post.
		p.counter.release()
		republish := p.registry.completeSync(q)
		p.onTerminal(q, republish)
		return
	}

	if result.isAsync {
		p.bridge.attach(q, env, result.output, handle, p.counter.release)
		return
	}

	runPostHook(ctx, p.log, p.metrics, env, result.output)
	p.counter.release()
	republish := p.registry.completeSync(q)
	p.onTerminal(q, republish)
}

func (p *workerPool) onTerminal(q *TaskQueue, republish bool) {
	if republish {
		p.in.publish(q)
	}
}

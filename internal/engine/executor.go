package engine

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/ordertask/ordertask/internal/platform/config"
	"github.com/ordertask/ordertask/internal/platform/logger"
)

// TaskExecutor is the public submission facade: the single entry point
// producers call to hand in work, and the only component that enforces the
// global intake bound.
type TaskExecutor struct {
	counter  *inFlightCounter
	registry *QueueRegistry
	intake   intake
	pool     *workerPool
	janitor  *janitor
	metrics  *engineMetrics
	log      logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewTaskExecutor wires an executor from configuration. tracer may be nil,
// in which case execution runs untraced.
func NewTaskExecutor(cfg config.EngineConfig, log logger.Logger, reg prometheus.Registerer, tracer trace.Tracer) *TaskExecutor {
	registry := newQueueRegistry()
	in := newIntake(cfg.MaxInFlight)

	e := &TaskExecutor{
		counter:  newInFlightCounter(cfg.MaxInFlight),
		registry: registry,
		intake:   in,
		log:      log,
	}

	e.metrics = newEngineMetrics(reg,
		func() float64 { return float64(len(in)) },
		func() float64 { return float64(registry.size()) },
	)

	e.pool = newWorkerPool(cfg.Workers, in, registry, e.counter, log, e.metrics, newOtelTracer(tracer))
	e.janitor = newJanitor(registry, e.metrics, log, cfg.JanitorPeriod, cfg.JanitorIdleFor)

	return e
}

// Submit is the `submit(envelope) → bool` contract: it returns false
// immediately on back-pressure with no other side effects, otherwise
// accepts the envelope and returns true. Never blocks.
func (e *TaskExecutor) Submit(env *Envelope) bool {
	if !e.counter.tryAcquire() {
		e.metrics.submissionsRejected.Inc()
		return false
	}

	if env.Context.Identity == "" {
		env.Context.Identity = Identity(uuid.NewString())
	}

	q, becameReady := e.registry.submit(env.Context.Identity, env)
	if becameReady {
		e.intake.publish(q)
	}

	e.metrics.submissionsAccepted.Inc()
	e.metrics.inFlight.Set(float64(e.counter.load()))
	return true
}

// PostConstruct lazily starts the worker pool and janitor. Idempotent
// within one instance.
func (e *TaskExecutor) PostConstruct() {
	e.startOnce.Do(func() {
		e.pool.start()
		e.janitor.start()
	})
}

// Stop signals workers to exit after finishing their current task, drains
// and discards remaining queued envelopes, and stops the janitor. Futures
// already attached via the AsyncCompletionBridge before Stop was called are
// still honored — see DESIGN.md's open-question decision — because their
// listeners run on the resolving goroutine, not a pool worker, so they
// never block this call.
func (e *TaskExecutor) Stop() {
	e.stopOnce.Do(func() {
		e.pool.stop()
		e.janitor.stop()
	})
}

// InFlight reports the current accepted-but-not-completed count, primarily
// for tests asserting back-pressure recovery.
func (e *TaskExecutor) InFlight() int64 {
	return e.counter.load()
}

// WorkerIsolation exposes a worker's currently installed isolation handle
// by index, for test introspection per spec.md's isolation-handle contract.
func (e *TaskExecutor) WorkerIsolation(workerIndex int) *IsolationHandle {
	if workerIndex < 0 || workerIndex >= len(e.pool.probes) {
		return nil
	}
	return e.pool.probes[workerIndex].get()
}

// WorkerCount reports the configured worker pool size.
func (e *TaskExecutor) WorkerCount() int {
	return len(e.pool.probes)
}

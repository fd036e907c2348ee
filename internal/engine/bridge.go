package engine

import (
	"context"

	"github.com/ordertask/ordertask/internal/platform/logger"
)

// asyncCompletionBridge binds a task's future result to queue resumption
// without tying up a worker. It transitions the queue to WAITING_ASYNC,
// attaches a completion listener, and returns immediately; the listener —
// invoked on whatever goroutine resolves the future, or inline on the
// attaching worker when the future is already resolved at attach time —
// runs the post-hook and performs the same terminal transition a
// synchronous completion would.
type asyncCompletionBridge struct {
	registry   *QueueRegistry
	log        logger.Logger
	metrics    *engineMetrics
	onTerminal func(q *TaskQueue, republish bool)
}

func newAsyncCompletionBridge(registry *QueueRegistry, log logger.Logger, metrics *engineMetrics, onTerminal func(q *TaskQueue, republish bool)) *asyncCompletionBridge {
	return &asyncCompletionBridge{registry: registry, log: log, metrics: metrics, onTerminal: onTerminal}
}

// attach transitions q to WAITING_ASYNC and registers the terminal listener
// on output's future. Must be called from the worker that owns q in RUNNING
// state; the worker must not touch q again after calling attach. release is
// invoked exactly once, after the post-hook runs and before the terminal
// queue transition, mirroring the single release point of the sync path.
func (b *asyncCompletionBridge) attach(q *TaskQueue, env *Envelope, output *Output, handle *IsolationHandle, release func()) {
	q.awaitAsync()

	future := output.AsyncFuture()
	future.OnComplete(func(ok bool, err error) {
		if !ok || err != nil {
			b.metrics.asyncFutureFaults.Inc()
			b.log.Error("async future fault", "identity", env.Context.Identity, "error", err)
		}

		// Re-install the isolation handle for the post-hook, exactly as the
		// worker would have for a synchronous completion.
		ctx := withIsolation(context.Background(), handle)
		runPostHook(ctx, b.log, b.metrics, env, output)
		release()

		republish := b.registry.completeAsync(q)
		b.onTerminal(q, republish)
	})
}

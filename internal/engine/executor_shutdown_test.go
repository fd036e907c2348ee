package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordertask/ordertask/internal/platform/config"
	"github.com/ordertask/ordertask/internal/platform/logger"
)

// Stop must not cancel a future already attached via the
// AsyncCompletionBridge before shutdown was requested: its post-hook still
// runs and the queue still advances, on an ambient goroutine rather than a
// pool worker, so Stop itself returns promptly regardless.
func TestStop_HonorsFuturesAttachedBeforeShutdown(t *testing.T) {
	log := logger.New(config.LoggerConfig{Level: "error", Format: "json", OutputPath: "stdout"})
	reg := prometheus.NewRegistry()
	cfg := config.EngineConfig{MaxInFlight: 10, Workers: 2, JanitorPeriod: time.Hour, JanitorIdleFor: time.Hour}
	e := NewTaskExecutor(cfg, log, reg, nil)
	e.PostConstruct()

	var postHookRan sync.WaitGroup
	postHookRan.Add(1)

	future := NewFuture()
	task := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		output.MarkAsAsync(future)
		return output, nil
	})

	ctx := &Context{
		Identity: "shutdown-async",
		Handle:   &IsolationHandle{Name: "h"},
		Post: func(ctx context.Context, output *Output) error {
			defer postHookRan.Done()
			return nil
		},
	}
	require.True(t, e.Submit(NewOutEnvelope(ctx, NewOutput, task)))

	// Give the worker a moment to reach the async attach point, then stop
	// the executor while the future is still unresolved.
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an in-flight async future")
	}

	future.Set(true, nil)
	waitOrTimeout(t, &postHookRan, 5*time.Second)

	assert.EqualValues(t, 0, e.InFlight())
}

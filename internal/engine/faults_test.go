package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Scenario 6 (sync fault): a throwing task followed by a normal task on the
// same identity — both post-hooks must still fire, in order.
func TestFaultIsolation_SyncTaskFaultThenNormalTask(t *testing.T) {
	e := newTestExecutor(t, 100, 4)

	var wg sync.WaitGroup
	wg.Add(2)

	throwing := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		return output, errors.New("boom")
	})
	normal := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		output.Values["ran"] = true
		return output, nil
	})

	id := Identity("fault-sync")
	ranNormal := false

	ctx1 := &Context{Identity: id, Handle: &IsolationHandle{Name: "h"}, Post: countdownPostHook(&wg, nil)}
	ctx2 := &Context{Identity: id, Handle: &IsolationHandle{Name: "h"}, Post: countdownPostHook(&wg, func(ctx context.Context, output *Output) error {
		ranNormal, _ = output.Values["ran"].(bool)
		return nil
	})}

	require.True(t, e.Submit(NewOutEnvelope(ctx1, NewOutput, throwing)))
	require.True(t, e.Submit(NewOutEnvelope(ctx2, NewOutput, normal)))

	waitOrTimeout(t, &wg, 10*time.Second)
	require.True(t, ranNormal)
}

// Scenario 6 (async success): an async task that resolves successfully
// still advances to the next same-identity task.
func TestFaultIsolation_AsyncTaskThenNormalTask(t *testing.T) {
	e := newTestExecutor(t, 100, 4)

	var wg sync.WaitGroup
	wg.Add(2)

	asyncTask := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		future := NewFuture()
		output.MarkAsAsync(future)
		go func() {
			time.Sleep(20 * time.Millisecond)
			future.Set(true, nil)
		}()
		return output, nil
	})
	normal := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		return output, nil
	})

	id := Identity("fault-async-ok")
	ctx1 := &Context{Identity: id, Handle: &IsolationHandle{Name: "h"}, Post: countdownPostHook(&wg, nil)}
	ctx2 := &Context{Identity: id, Handle: &IsolationHandle{Name: "h"}, Post: countdownPostHook(&wg, nil)}

	require.True(t, e.Submit(NewOutEnvelope(ctx1, NewOutput, asyncTask)))
	require.True(t, e.Submit(NewOutEnvelope(ctx2, NewOutput, normal)))

	waitOrTimeout(t, &wg, 10*time.Second)
}

// Scenario 6 (async future error): an async future that settles with an
// error still runs the post-hook and advances the queue.
func TestFaultIsolation_AsyncFutureErrorThenNormalTask(t *testing.T) {
	e := newTestExecutor(t, 100, 4)

	var wg sync.WaitGroup
	wg.Add(2)

	asyncTask := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		future := NewFuture()
		output.MarkAsAsync(future)
		go func() {
			time.Sleep(20 * time.Millisecond)
			future.Set(false, errors.New("async boom"))
		}()
		return output, nil
	})
	normal := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		return output, nil
	})

	id := Identity("fault-async-err")
	ctx1 := &Context{Identity: id, Handle: &IsolationHandle{Name: "h"}, Post: countdownPostHook(&wg, nil)}
	ctx2 := &Context{Identity: id, Handle: &IsolationHandle{Name: "h"}, Post: countdownPostHook(&wg, nil)}

	require.True(t, e.Submit(NewOutEnvelope(ctx1, NewOutput, asyncTask)))
	require.True(t, e.Submit(NewOutEnvelope(ctx2, NewOutput, normal)))

	waitOrTimeout(t, &wg, 10*time.Second)
}

// Scenario 6 (sync panic): a task that panics, rather than returning an
// error, must still run its post-hook and let the next same-identity task
// through — the post-hook's guarantee does not distinguish an error return
// from a genuine panic.
func TestFaultIsolation_SyncTaskPanicThenNormalTask(t *testing.T) {
	e := newTestExecutor(t, 100, 4)

	var wg sync.WaitGroup
	wg.Add(2)

	panicking := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		panic("boom")
	})
	normal := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		output.Values["ran"] = true
		return output, nil
	})

	id := Identity("fault-panic")
	postHookRan := false
	ranNormal := false

	ctx1 := &Context{Identity: id, Handle: &IsolationHandle{Name: "h"}, Post: countdownPostHook(&wg, func(ctx context.Context, output *Output) error {
		postHookRan = true
		return nil
	})}
	ctx2 := &Context{Identity: id, Handle: &IsolationHandle{Name: "h"}, Post: countdownPostHook(&wg, func(ctx context.Context, output *Output) error {
		ranNormal, _ = output.Values["ran"].(bool)
		return nil
	})}

	require.True(t, e.Submit(NewOutEnvelope(ctx1, NewOutput, panicking)))
	require.True(t, e.Submit(NewOutEnvelope(ctx2, NewOutput, normal)))

	waitOrTimeout(t, &wg, 10*time.Second)
	require.True(t, postHookRan, "post-hook must still run after a task panic")
	require.True(t, ranNormal)
}

// Scenario 6 (InOut panic): same guarantee for the InOut shape.
func TestFaultIsolation_InOutTaskPanicStillRunsPostHook(t *testing.T) {
	e := newTestExecutor(t, 100, 4)

	var wg sync.WaitGroup
	wg.Add(1)

	panicking := funcInOutTask(func(ctx context.Context, input interface{}, output *Output) (*Output, error) {
		panic("boom")
	})

	postHookRan := false
	ctx := &Context{
		Identity: "fault-inout-panic",
		Handle:   &IsolationHandle{Name: "h"},
		Post: countdownPostHook(&wg, func(ctx context.Context, output *Output) error {
			postHookRan = true
			return nil
		}),
	}

	require.True(t, e.Submit(NewInOutEnvelope(ctx, nil, NewOutput, panicking)))

	waitOrTimeout(t, &wg, 10*time.Second)
	require.True(t, postHookRan, "post-hook must still run after an InOut task panic")
}

// Scenario 6 (post-hook fault): a failing post-hook still lets the next
// same-identity task run and complete.
func TestFaultIsolation_PostHookFaultThenNormalTask(t *testing.T) {
	e := newTestExecutor(t, 100, 4)

	var wg sync.WaitGroup
	wg.Add(2)

	task := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		return output, nil
	})

	id := Identity("fault-post-hook")
	faultyPost := countdownPostHook(&wg, func(ctx context.Context, output *Output) error {
		return errors.New("post-hook boom")
	})
	ctx1 := &Context{Identity: id, Handle: &IsolationHandle{Name: "h"}, Post: faultyPost}
	ctx2 := &Context{Identity: id, Handle: &IsolationHandle{Name: "h"}, Post: countdownPostHook(&wg, nil)}

	require.True(t, e.Submit(NewOutEnvelope(ctx1, NewOutput, task)))
	require.True(t, e.Submit(NewOutEnvelope(ctx2, NewOutput, task)))

	waitOrTimeout(t, &wg, 10*time.Second)
}

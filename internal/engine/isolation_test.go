package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The isolation handle visible to a task body must equal the handle
// attached to that task's context.
func TestIsolationHandle_VisibleToTaskBodyMatchesAttached(t *testing.T) {
	e := newTestExecutor(t, 10, 2)

	expected := &IsolationHandle{Name: "plugin-a"}
	var observed *IsolationHandle
	var wg sync.WaitGroup
	wg.Add(1)

	task := funcInTask(func(ctx context.Context, input interface{}) error {
		defer wg.Done()
		observed = installedIsolation(ctx)
		return nil
	})

	ctx := &Context{Identity: "iso", Handle: expected}
	require.True(t, e.Submit(NewInEnvelope(ctx, nil, task)))

	waitOrTimeout(t, &wg, 5*time.Second)
	assert.Same(t, expected, observed)
}

func TestIsolationHandle_RestoredAfterEachTask(t *testing.T) {
	e := newTestExecutor(t, 10, 1)

	var wg sync.WaitGroup
	wg.Add(1)

	task := funcInTask(func(ctx context.Context, input interface{}) error {
		defer wg.Done()
		return nil
	})

	ctx := &Context{Identity: "iso-restore", Handle: &IsolationHandle{Name: "plugin-b"}}
	require.True(t, e.Submit(NewInEnvelope(ctx, nil, task)))
	waitOrTimeout(t, &wg, 5*time.Second)

	// After the single worker finishes, its probe must be cleared rather
	// than left pointing at the last task's handle.
	require.Eventually(t, func() bool {
		return e.WorkerIsolation(0) == nil
	}, time.Second, 10*time.Millisecond)
}

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 4: filling intake to capacity with slow tasks makes the next
// submit return false, with no other observable side effect.
func TestBackpressure_RejectsAtCapacity(t *testing.T) {
	e := newTestExecutor(t, 3, 1)

	release := make(chan struct{})
	blocking := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		<-release
		return output, nil
	})

	for i := 0; i < 3; i++ {
		ctx := &Context{Identity: "x", Handle: &IsolationHandle{Name: "h"}}
		env := NewOutEnvelope(ctx, NewOutput, blocking)
		require.True(t, e.Submit(env))
	}

	overflow := &Context{Identity: "x", Handle: &IsolationHandle{Name: "h"}}
	assert.False(t, e.Submit(NewOutEnvelope(overflow, NewOutput, blocking)))
	assert.EqualValues(t, 3, e.InFlight())

	close(release)
}

// Scenario 5: once in-flight submissions drain below capacity, submit
// returns true again and the new task actually executes.
func TestBackpressure_RecoversAfterDrain(t *testing.T) {
	e := newTestExecutor(t, 5, 5)

	const capacity = 5
	const attempted = 8

	task := funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		time.Sleep(200 * time.Millisecond)
		return output, nil
	})

	var wg sync.WaitGroup
	accepted := 0
	for i := 0; i < attempted; i++ {
		ctx := &Context{
			Identity: Identity("x" + string(rune('a'+i))),
			Handle:   &IsolationHandle{Name: "h"},
			Post:     countdownPostHook(&wg, nil),
		}
		env := NewOutEnvelope(ctx, NewOutput, task)
		wg.Add(1)
		if e.Submit(env) {
			accepted++
		} else {
			wg.Done()
		}
	}

	require.Equal(t, capacity, accepted)
	waitOrTimeout(t, &wg, 5*time.Second)

	var final sync.WaitGroup
	final.Add(1)
	ctx := &Context{
		Identity: "after-drain",
		Handle:   &IsolationHandle{Name: "h"},
		Post:     countdownPostHook(&final, nil),
	}
	require.True(t, e.Submit(NewOutEnvelope(ctx, NewOutput, task)))
	waitOrTimeout(t, &final, 5*time.Second)
}

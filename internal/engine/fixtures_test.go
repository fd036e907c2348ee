package engine

import (
	"context"
	"sync"
)

// funcInTask adapts a plain function to InTask for table-driven fixtures.
type funcInTask func(ctx context.Context, input interface{}) error

func (f funcInTask) Accept(ctx context.Context, input interface{}) error { return f(ctx, input) }

// funcOutTask adapts a plain function to OutTask.
type funcOutTask func(ctx context.Context, output *Output) (*Output, error)

func (f funcOutTask) Apply(ctx context.Context, output *Output) (*Output, error) { return f(ctx, output) }

// funcInOutTask adapts a plain function to InOutTask.
type funcInOutTask func(ctx context.Context, input interface{}, output *Output) (*Output, error)

func (f funcInOutTask) Apply(ctx context.Context, input interface{}, output *Output) (*Output, error) {
	return f(ctx, input, output)
}

// sequenceRecorder collects values appended by post-hooks under a mutex, the
// way a producer would observe completion order from outside the engine.
type sequenceRecorder struct {
	mu     sync.Mutex
	values []int
}

func (r *sequenceRecorder) record(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *sequenceRecorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.values))
	copy(out, r.values)
	return out
}

// byIdentityRecorder tracks completion order per identity, for the
// many-identity scenario where only per-identity order is asserted.
type byIdentityRecorder struct {
	mu   sync.Mutex
	byID map[Identity][]int
}

func newByIdentityRecorder() *byIdentityRecorder {
	return &byIdentityRecorder{byID: make(map[Identity][]int)}
}

func (r *byIdentityRecorder) record(id Identity, v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = append(r.byID[id], v)
}

func (r *byIdentityRecorder) sequenceFor(id Identity) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.byID[id]))
	copy(out, r.byID[id])
	return out
}

// recordingOutTask returns an OutTask that stashes ordinal in the output's
// Values map; a post-hook reads it back and appends to recorder. This keeps
// the "observe completion order" idiom entirely on the producer side of the
// post-hook boundary, the way spec.md's Context.post contract intends.
func recordingOutTask(ordinal int) OutTask {
	return funcOutTask(func(ctx context.Context, output *Output) (*Output, error) {
		output.Values["ordinal"] = ordinal
		return output, nil
	})
}

func recordingPostHook(recorder *sequenceRecorder) PostHook {
	return func(ctx context.Context, output *Output) error {
		recorder.record(output.Values["ordinal"].(int))
		return nil
	}
}

func recordingByIdentityPostHook(recorder *byIdentityRecorder, id Identity) PostHook {
	return func(ctx context.Context, output *Output) error {
		recorder.record(id, output.Values["ordinal"].(int))
		return nil
	}
}

// countdownPostHook wraps another post-hook and signals wg.Done() after it
// runs, regardless of the wrapped hook's outcome — mirroring how the engine
// itself always advances the queue after a post-hook fault.
func countdownPostHook(wg *sync.WaitGroup, inner PostHook) PostHook {
	return func(ctx context.Context, output *Output) error {
		defer wg.Done()
		if inner == nil {
			return nil
		}
		return inner(ctx, output)
	}
}

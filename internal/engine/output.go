package engine

import "sync"

// Output carries a task's result plus its async-completion state. Outputs
// are constructed fresh per execution via an OutputFactory and must never be
// reused across executions.
type Output struct {
	mu          sync.Mutex
	isAsync     bool
	isTimedOut  bool
	asyncFuture *Future

	// Values holds whatever the task chose to record. The engine never
	// inspects it; it exists so producers and tests have somewhere to put
	// observable state without defining their own output type per test.
	Values map[string]interface{}
}

// NewOutput returns a fresh, synchronous-by-default output.
func NewOutput() *Output {
	return &Output{Values: make(map[string]interface{})}
}

// MarkAsAsync flags the output as asynchronously completed and attaches the
// future the AsyncCompletionBridge will wait on.
func (o *Output) MarkAsAsync(future *Future) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.isAsync = true
	o.asyncFuture = future
}

// ResetAsyncStatus clears the async flag and detaches the future.
func (o *Output) ResetAsyncStatus() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.isAsync = false
	o.asyncFuture = nil
}

// IsAsync reports whether the task deferred completion to a future.
func (o *Output) IsAsync() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.isAsync
}

// AsyncFuture returns the attached future, or nil if the output is not async.
func (o *Output) AsyncFuture() *Future {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.asyncFuture
}

// MarkAsTimedOut flags the output as having timed out. The engine never
// interprets this itself; it is carried for external collaborators that
// implement timeout policy above the core, per the timeout non-goal.
func (o *Output) MarkAsTimedOut() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.isTimedOut = true
}

// IsTimedOut reports the timed-out flag.
func (o *Output) IsTimedOut() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.isTimedOut
}

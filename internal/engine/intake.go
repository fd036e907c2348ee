package engine

// intake is the bounded, multi-producer/multi-consumer channel of ready
// TaskQueues feeding the worker pool. It carries queue references rather
// than bare identities so a worker never has to re-resolve an identity
// through the registry — the registry may have already evicted and
// recreated an entry for the same identity by the time the worker wakes up.
//
// Its capacity is a defensive backstop only; the authoritative back-pressure
// bound is the global in-flight counter (see counter.go and executor.go).
type intake chan *TaskQueue

func newIntake(capacity int) intake {
	return make(intake, capacity)
}

// publish enqueues a ready queue. Called with the intake sized to the same
// bound as the in-flight counter, so in practice this never blocks once the
// counter is correctly enforced at submit time; it is still a blocking send
// rather than a non-blocking one; a full intake under a correct counter
// indicates a bug upstream, not a condition to silently drop work for.
func (i intake) publish(q *TaskQueue) {
	i <- q
}

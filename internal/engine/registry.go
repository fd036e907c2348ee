package engine

import (
	"sync"
	"time"
)

// QueueRegistry maps identity to TaskQueue with atomic get-or-create.
//
// Per the design notes, the registry lock is deliberately the single shared
// lock on the submission hot path: contention on one identity is acceptable
// because that identity is already serialized by design. The same lock also
// guards the terminal idle transition so opportunistic eviction can never
// race a concurrent submit that is about to append into a queue this
// instant is deleting — both sides take the registry lock before touching
// either the map or the queue's terminal state.
type QueueRegistry struct {
	mu     sync.Mutex
	queues map[Identity]*TaskQueue
}

func newQueueRegistry() *QueueRegistry {
	return &QueueRegistry{queues: make(map[Identity]*TaskQueue)}
}

// submit appends env to the identity's queue, creating the queue if absent,
// and reports whether the queue just became ready for Intake publication.
func (r *QueueRegistry) submit(identity Identity, env *Envelope) (*TaskQueue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[identity]
	if !ok {
		q = newTaskQueue(identity)
		r.queues[identity] = q
	}

	becameReady := q.enqueue(env)
	return q, becameReady
}

// completeSync performs the running→{idle|ready} transition and, when the
// queue lands idle and empty, opportunistically evicts it from the map.
func (r *QueueRegistry) completeSync(q *TaskQueue) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	republish := q.finishSync()
	r.maybeEvictLocked(q, republish)
	return republish
}

// completeAsync mirrors completeSync for the waitingAsync→{idle|ready} path.
func (r *QueueRegistry) completeAsync(q *TaskQueue) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	republish := q.finishAsync()
	r.maybeEvictLocked(q, republish)
	return republish
}

func (r *QueueRegistry) maybeEvictLocked(q *TaskQueue, republish bool) {
	if republish {
		return
	}
	if existing, ok := r.queues[q.identity]; ok && existing == q && q.idleAndEmpty() {
		delete(r.queues, q.identity)
	}
}

// size reports the number of identities currently tracked, for metrics and
// the janitor's sweep.
func (r *QueueRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}

// sweepIdle evicts tracked queues that have been idle and empty for at
// least idleFor. It is a defensive second pass behind the opportunistic
// eviction above — harmless if it finds nothing, since submit always
// lazily recreates a missing queue.
func (r *QueueRegistry) sweepIdle(idleFor time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for identity, q := range r.queues {
		if q.idleLongerThan(idleFor) {
			delete(r.queues, identity)
			reaped++
		}
	}
	return reaped
}

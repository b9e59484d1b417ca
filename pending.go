package reactor

import (
	"sync"
	"time"
)

// pendingCommand is a command that failed its precondition when first
// reached, tagged with the absolute instant after which it is dropped.
type pendingCommand[S, E any] struct {
	id        string
	cmd       Command[S, E]
	submitted time.Time
	expiresAt time.Time
}

func (p pendingCommand[S, E]) expired(now time.Time) bool {
	return !now.Before(p.expiresAt)
}

// pendingQueue holds deferred commands in submission order.
//
// push and scan are called only from the worker, so every scan sees the
// state that was just committed. The mutex exists for len, which
// introspection calls from other goroutines.
type pendingQueue[S, E any] struct {
	mu      sync.Mutex
	entries []pendingCommand[S, E]
}

func newPendingQueue[S, E any]() *pendingQueue[S, E] {
	return &pendingQueue[S, E]{}
}

func (q *pendingQueue[S, E]) push(p pendingCommand[S, E]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, p)
}

// scan removes every expired entry and every entry whose precondition holds
// for state. Expiry is checked first, so an expired entry is dropped even if
// its precondition would now pass. Both result slices keep FIFO order.
//
// Ready entries are out of the queue before the caller runs them, which is
// what makes execution at-most-once.
func (q *pendingQueue[S, E]) scan(state S, now time.Time) (ready, expired []pendingCommand[S, E]) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil, nil
	}

	kept := q.entries[:0]
	for _, p := range q.entries {
		switch {
		case p.expired(now):
			expired = append(expired, p)
		case p.cmd.CanExecute(state):
			ready = append(ready, p)
		default:
			kept = append(kept, p)
		}
	}

	// Clear the tail so dropped commands can be collected.
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = pendingCommand[S, E]{}
	}
	q.entries = kept

	return ready, expired
}

func (q *pendingQueue[S, E]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// clear drops everything. Used when the Core closes.
func (q *pendingQueue[S, E]) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.entries)
	q.entries = nil
	return n
}

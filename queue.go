package reactor

import "sync"

// workQueue is a thread-safe, unbounded FIFO.
//
// Unbounded so that a command action running on the worker can fire further
// events without blocking on its own queue. A buffered signal channel of
// size 1 coalesces wake-ups for the single consumer; closing the queue
// closes the channel, which wakes the consumer for its final drain.
type workQueue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
}

func newWorkQueue[T any]() *workQueue[T] {
	return &workQueue[T]{
		items:  make([]T, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// push appends an item. Returns false once the queue is closed.
func (q *workQueue[T]) push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, item)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// tryPop removes the front item without blocking.
func (q *workQueue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	// Clear the slot so the backing array does not pin the item.
	q.items[0] = zero

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return item, true
}

// wait returns the wake-up channel. It is closed when the queue closes.
func (q *workQueue[T]) wait() <-chan struct{} {
	return q.signal
}

func (q *workQueue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *workQueue[T]) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// close stops accepting items. Items already queued remain poppable.
func (q *workQueue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// drain runs fn for every item until the queue is closed and empty.
// Must be called from exactly one goroutine.
func (q *workQueue[T]) drain(fn func(T)) {
	for {
		if item, ok := q.tryPop(); ok {
			fn(item)
			continue
		}

		_, open := <-q.signal
		if !open && q.len() == 0 {
			return
		}
	}
}

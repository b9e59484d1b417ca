package reactor

// Executor is a delivery context for subscriber notifications, such as an
// application's UI loop.
//
// Execute must not block and must run tasks in the order they were
// submitted; the registry calls it while holding its lock, and per-subscriber
// ordering depends on FIFO execution.
type Executor interface {
	Execute(task func())
}

// SerialExecutor runs tasks one at a time, in order, on its own goroutine.
//
// The registry creates one per subscription unless the subscriber asks for
// a specific Executor. Sharing one SerialExecutor across several
// subscriptions models a single-threaded UI context.
type SerialExecutor struct {
	queue *workQueue[func()]
	done  chan struct{}
}

// NewSerialExecutor starts an executor goroutine.
// The goroutine exits after Close once queued tasks have run.
func NewSerialExecutor() *SerialExecutor {
	e := &SerialExecutor{
		queue: newWorkQueue[func()](),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(e.done)
		e.queue.drain(func(task func()) { task() })
	}()
	return e
}

// Execute queues task. Tasks submitted after Close are discarded.
func (e *SerialExecutor) Execute(task func()) {
	e.queue.push(task)
}

// Close stops accepting tasks without waiting for queued ones.
func (e *SerialExecutor) Close() {
	e.queue.close()
}

// Done is closed once the executor goroutine has exited.
func (e *SerialExecutor) Done() <-chan struct{} {
	return e.done
}

// Pending reports how many tasks are queued and not yet started.
func (e *SerialExecutor) Pending() int {
	return e.queue.len()
}

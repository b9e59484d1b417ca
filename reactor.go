package reactor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/reactor/internal/metrics"
)

type jobKind int

const (
	jobEvent jobKind = iota + 1
	jobCommand
	jobBarrier
)

// job is one unit of work for the worker.
type job[S, E any] struct {
	kind      jobKind
	event     E
	cmd       Command[S, E]
	cmdID     string
	submitted time.Time
	done      chan struct{} // closed when a barrier is reached
}

// Core is the state container.
//
// Thread-safety model:
//   - Fire, FireCommand, Add, Select, Observe: safe from any goroutine, never block
//   - Remove: safe from any goroutine, blocks until in-flight delivery to
//     that subscriber returns (must not be called from its own callback)
//   - State, Version, Pending, Subscribers: lock-free or briefly locked reads
//   - Close: must not be called from the worker (a middleware or command action)
//
// INVARIANTS:
//   - reduce, pending scans, command actions and middleware run only on the
//     worker goroutine
//   - state versions increase by exactly one per applied event
//   - a command action runs at most once
type Core[S, E any] struct {
	id     string
	name   string
	reduce Reducer[S, E]

	state    atomic.Pointer[snapshot[S]]
	queue    *workQueue[job[S, E]]
	pending  *pendingQueue[S, E]
	pipeline *pipeline[S, E]
	registry *registry[S]

	clock   Clock
	expiry  time.Duration
	ids     IDGenerator
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a Core holding initial and starts its worker.
//
// middleware is installed in order before any event is applied. reduce must
// not be nil. Call Close to stop the worker.
func New[S, E any](initial S, reduce Reducer[S, E], middleware []Middleware[S, E], opts ...Option) *Core[S, E] {
	if reduce == nil {
		panic("reactor: nil reducer")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	id := cfg.ids.Generate()
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("core_id", id, "core_name", cfg.name)

	c := &Core[S, E]{
		id:       id,
		name:     cfg.name,
		reduce:   reduce,
		queue:    newWorkQueue[job[S, E]](),
		pending:  newPendingQueue[S, E](),
		pipeline: &pipeline[S, E]{},
		registry: newRegistry[S](),
		clock:    cfg.clock,
		expiry:   cfg.expiry,
		ids:      cfg.ids,
		logger:   logger,
		tracer:   cfg.tracer,
		done:     make(chan struct{}),
	}
	c.state.Store(&snapshot[S]{value: initial})

	if cfg.registerer != nil {
		m, err := metrics.New(cfg.registerer, cfg.name)
		if err != nil {
			logger.Warn("metrics disabled", "error", err)
		} else {
			c.metrics = m
		}
	}

	for _, mw := range middleware {
		if mw != nil {
			c.pipeline.add(mw)
		}
	}

	go c.run()
	return c
}

// ID returns the Core's unique identifier.
func (c *Core[S, E]) ID() string {
	return c.id
}

// Name returns the Core's name.
func (c *Core[S, E]) Name() string {
	return c.name
}

// State returns the latest committed state.
func (c *Core[S, E]) State() S {
	return c.state.Load().value
}

// Version returns the number of events applied so far.
func (c *Core[S, E]) Version() uint64 {
	return c.state.Load().version
}

// Pending returns the number of deferred commands.
func (c *Core[S, E]) Pending() int {
	return c.pending.len()
}

// Subscribers returns the number of live subscriptions.
func (c *Core[S, E]) Subscribers() int {
	return c.registry.len()
}

// Subscribed reports whether sub is currently registered.
func (c *Core[S, E]) Subscribed(sub any) bool {
	if !usableKey(sub) {
		return false
	}
	return c.registry.contains(sub)
}

// Fire schedules event for reduction. It never blocks.
func (c *Core[S, E]) Fire(event E) {
	if !c.queue.push(job[S, E]{kind: jobEvent, event: event}) {
		c.logger.Warn("event fired after close dropped", "event", EventName(event))
	}
}

// FireCommand schedules cmd. It executes on the worker as soon as it is
// reached if its precondition holds; otherwise it is deferred until a later
// event satisfies it or its expiry elapses. It never blocks.
func (c *Core[S, E]) FireCommand(cmd Command[S, E]) {
	if cmd == nil {
		return
	}
	j := job[S, E]{
		kind:      jobCommand,
		cmd:       cmd,
		cmdID:     c.ids.Generate(),
		submitted: c.clock.Now(),
	}
	if !c.queue.push(j) {
		c.logger.Warn("command fired after close dropped", "command_id", j.cmdID)
	}
}

// Observe registers middleware and returns a function that removes exactly
// this registration. The disposer is idempotent.
func (c *Core[S, E]) Observe(mw Middleware[S, E]) (dispose func()) {
	if mw == nil {
		return func() {}
	}
	id := c.pipeline.add(mw)
	c.logger.Debug("middleware observed", "middleware_id", id)
	return sync.OnceFunc(func() {
		if c.pipeline.remove(id) {
			c.logger.Debug("middleware disposed", "middleware_id", id)
		}
	})
}

// Add subscribes sub to full state. The current state is delivered first,
// asynchronously, followed by every subsequent state. Adding a subscriber
// that is already subscribed does nothing.
func (c *Core[S, E]) Add(sub Subscriber[S], opts ...SubscribeOption) {
	if sub == nil {
		return
	}
	c.subscribe(sub, sub.Update, opts)
}

// Select subscribes sub to a projection of the state. project runs on the
// subscriber's executor for every delivery, including the initial one.
func Select[S, E, V any](c *Core[S, E], sub Subscriber[V], project func(S) V, opts ...SubscribeOption) {
	if sub == nil || project == nil {
		return
	}
	c.subscribe(sub, func(state S) { sub.Update(project(state)) }, opts)
}

func (c *Core[S, E]) subscribe(key any, deliver func(S), opts []SubscribeOption) {
	if c.queue.isClosed() {
		c.logger.Warn("subscribe after close ignored")
		return
	}
	if !usableKey(key) {
		c.logger.Warn("subscriber of non-comparable type ignored", "type", fmt.Sprintf("%T", key))
		return
	}

	var cfg subscribeConfig
	if l, ok := key.(Liveness); ok {
		cfg.alive = l.Alive
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !c.registry.add(key, deliver, cfg, c.state.Load) {
		return
	}
	c.metrics.SetSubscribers(c.registry.len())
}

// Remove unsubscribes sub. When Remove returns, sub will not be called
// again, even if a notification was already scheduled.
//
// If the initial delivery has not run yet, Remove performs it first so a
// subscriber always sees the state it was registered against. That delivery
// runs on the goroutine calling Remove, not on the subscriber's Executor, so
// a subscriber bound to a thread-affine executor must be removed from that
// same context.
func (c *Core[S, E]) Remove(sub any) {
	if !usableKey(sub) {
		return
	}
	if c.registry.remove(sub) {
		c.metrics.SetSubscribers(c.registry.len())
	}
}

// Flush blocks until every event and command submitted before the call has
// been processed, including anything they submitted synchronously while
// being processed. Subscriber deliveries may still be in flight.
func (c *Core[S, E]) Flush(ctx context.Context) error {
	for {
		done := make(chan struct{})
		if !c.queue.push(job[S, E]{kind: jobBarrier, done: done}) {
			return ErrClosed
		}

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		if c.queue.len() == 0 {
			return nil
		}
	}
}

// Close stops accepting work, processes what is already queued, drops
// pending commands and detaches every subscription. Safe to call more than
// once.
func (c *Core[S, E]) Close() {
	c.closeOnce.Do(c.queue.close)
	<-c.done
}

// Done is closed once the worker has exited.
func (c *Core[S, E]) Done() <-chan struct{} {
	return c.done
}

// run is the worker loop. It is the only goroutine that reduces state,
// scans pending commands, executes command actions or runs middleware.
func (c *Core[S, E]) run() {
	defer close(c.done)

	c.logger.Info("core starting")

	c.queue.drain(c.process)

	dropped := c.pending.clear()
	c.metrics.SetPending(0)
	c.registry.closeAll()
	c.metrics.SetSubscribers(0)

	c.logger.Info("core stopped", "dropped_commands", dropped, "version", c.Version())
}

func (c *Core[S, E]) process(j job[S, E]) {
	switch j.kind {
	case jobEvent:
		c.apply(j.event)
	case jobCommand:
		c.submit(j)
	case jobBarrier:
		close(j.done)
	}
}

// apply runs one mutation cycle.
func (c *Core[S, E]) apply(event E) {
	prev := c.state.Load()
	next := &snapshot[S]{
		value:   c.reduce(prev.value, event),
		version: prev.version + 1,
	}
	c.state.Store(next)
	c.metrics.EventApplied()

	name := EventName(event)
	_, span := c.tracer.Start(context.Background(), "reactor.apply",
		trace.WithAttributes(
			attribute.String("reactor.core", c.name),
			attribute.String("reactor.event", name),
			attribute.Int64("reactor.version", int64(next.version)),
		),
	)
	defer span.End()

	now := c.clock.Now()
	ready, expired := c.pending.scan(next.value, now)
	for _, p := range expired {
		c.logger.Debug("command expired",
			"command_id", p.id,
			"waited", now.Sub(p.submitted),
			"version", next.version,
		)
	}
	c.metrics.CommandsExpired(len(expired))

	for _, p := range ready {
		c.logger.Debug("deferred command ready",
			"command_id", p.id,
			"waited", now.Sub(p.submitted),
			"version", next.version,
		)
		c.execute(p.cmd, next.value)
	}
	c.metrics.SetPending(c.pending.len())

	c.pipeline.run(event, next.value)

	scheduled, pruned := c.registry.notify(next)
	c.metrics.Notified(scheduled)
	if len(pruned) > 0 {
		c.logger.Debug("pruned dead subscribers", "count", len(pruned), "version", next.version)
		c.metrics.SetSubscribers(c.registry.len())
	}

	span.SetAttributes(
		attribute.Int("reactor.commands.executed", len(ready)),
		attribute.Int("reactor.commands.expired", len(expired)),
		attribute.Int("reactor.notifications", scheduled),
	)

	c.logger.Debug("event applied",
		"event", name,
		"version", next.version,
		"executed", len(ready),
		"expired", len(expired),
		"notified", scheduled,
	)
}

// submit handles a freshly fired command against the current state.
func (c *Core[S, E]) submit(j job[S, E]) {
	state := c.state.Load().value

	if j.cmd.CanExecute(state) {
		_, span := c.tracer.Start(context.Background(), "reactor.command",
			trace.WithAttributes(
				attribute.String("reactor.core", c.name),
				attribute.String("reactor.command_id", j.cmdID),
			),
		)
		c.execute(j.cmd, state)
		span.End()
		return
	}

	expiry := expiryOf(j.cmd, c.expiry)
	c.pending.push(pendingCommand[S, E]{
		id:        j.cmdID,
		cmd:       j.cmd,
		submitted: j.submitted,
		expiresAt: j.submitted.Add(expiry),
	})
	c.metrics.CommandDeferred()
	c.metrics.SetPending(c.pending.len())

	c.logger.Debug("command deferred",
		"command_id", j.cmdID,
		"expires_after", expiry,
	)
}

func (c *Core[S, E]) execute(cmd Command[S, E], state S) {
	c.metrics.CommandExecuted()
	cmd.Execute(state, c)
}

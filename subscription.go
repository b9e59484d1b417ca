package reactor

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Subscriber receives committed states, or projections of them.
//
// Subscribers are identified by interface equality, so the dynamic type must
// be comparable; pointer receivers are the usual choice. Subscribers of a
// non-comparable type, such as a func or slice type, are rejected with a
// warning. Adding the same subscriber twice is a no-op.
type Subscriber[V any] interface {
	Update(value V)
}

// Liveness is implemented by subscribers that can report their own demise.
// Once Alive returns false the subscription is pruned on the next state
// change and any queued delivery is skipped. Alive may be called from the
// worker and from delivery goroutines, so it must be safe for concurrent use
// and must not call back into the Core.
type Liveness interface {
	Alive() bool
}

// usableKey reports whether key can identify a subscription.
func usableKey(key any) bool {
	return key != nil && reflect.TypeOf(key).Comparable()
}

// Listener wraps a function as a comparable Subscriber.
type Listener[V any] struct {
	fn func(V)
}

// NewListener returns a Subscriber that calls fn. Each call returns a new
// identity.
func NewListener[V any](fn func(V)) *Listener[V] {
	return &Listener[V]{fn: fn}
}

// Update implements Subscriber.
func (l *Listener[V]) Update(value V) {
	l.fn(value)
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	executor Executor
	alive    func() bool
}

// On delivers notifications on exec instead of a dedicated SerialExecutor.
func On(exec Executor) SubscribeOption {
	return func(c *subscribeConfig) {
		c.executor = exec
	}
}

// WithLiveness supplies the liveness check for subscribers that do not
// implement Liveness themselves.
func WithLiveness(alive func() bool) SubscribeOption {
	return func(c *subscribeConfig) {
		c.alive = alive
	}
}

// subscription is one registry record.
type subscription[S any] struct {
	key      any
	deliver  func(S)
	executor Executor
	owned    *SerialExecutor // non-nil when the registry created the executor
	alive    func() bool

	// Guarded by registry.mu.
	scheduled bool
	last      uint64

	// mu is held for the duration of each delivery; retire acquires it to
	// wait out an in-flight callback.
	mu      sync.Mutex
	removed atomic.Bool

	// The initial delivery is claimed exactly once, either by its executor
	// task or by retire. Guarded by mu.
	initial        S
	initialClaimed bool
}

func (s *subscription[S]) isAlive() bool {
	return s.alive == nil || s.alive()
}

// run delivers value unless the subscription was removed or its subscriber
// died after the delivery was scheduled.
func (s *subscription[S]) run(value S) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed.Load() || !s.isAlive() {
		return
	}
	s.deliver(value)
}

// runInitial performs the initial delivery unless retire already took it.
func (s *subscription[S]) runInitial() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimInitial()
}

// claimInitial delivers the initial value once. Caller holds s.mu.
func (s *subscription[S]) claimInitial() {
	if s.initialClaimed {
		return
	}
	s.initialClaimed = true
	value := s.initial
	var zero S
	s.initial = zero

	if s.removed.Load() || !s.isAlive() {
		return
	}
	s.deliver(value)
}

// detach stops future deliveries without waiting for an in-flight one.
func (s *subscription[S]) detach() {
	s.removed.Store(true)
	if s.owned != nil {
		s.owned.Close()
	}
}

// retire stops future deliveries and waits until any in-flight delivery
// has returned. An initial delivery that has not started yet is performed
// here, on the caller's goroutine, so every subscriber sees at least the
// state current at registration.
func (s *subscription[S]) retire() {
	s.mu.Lock()
	s.claimInitial()
	s.removed.Store(true)
	s.mu.Unlock()

	if s.owned != nil {
		s.owned.Close()
	}
}

// registry is the set of live subscriptions.
//
// Its lock is separate from the worker: registration and removal never wait
// for a reduction, and a notification pass never waits for a reducer. All
// scheduling happens under the lock so that, for any one subscription,
// deliveries are handed to its executor in version order.
type registry[S any] struct {
	mu   sync.Mutex
	subs map[any]*subscription[S]
}

func newRegistry[S any]() *registry[S] {
	return &registry[S]{subs: make(map[any]*subscription[S])}
}

// add registers a subscription and schedules the initial delivery of
// current(). Returns false if key is already subscribed.
//
// current is read under the registry lock, so a concurrent notify either
// happened before (and current already reflects it) or will see this
// subscription and schedule the next version.
func (r *registry[S]) add(key any, deliver func(S), cfg subscribeConfig, current func() *snapshot[S]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[key]; exists {
		return false
	}

	sub := &subscription[S]{
		key:      key,
		deliver:  deliver,
		executor: cfg.executor,
		alive:    cfg.alive,
	}
	if sub.executor == nil {
		sub.owned = NewSerialExecutor()
		sub.executor = sub.owned
	}

	snap := current()
	sub.initial = snap.value
	sub.scheduled = true
	sub.last = snap.version

	r.subs[key] = sub
	sub.executor.Execute(sub.runInitial)
	return true
}

// schedule hands snap to the subscription's executor unless the
// subscription has already been given this version or a later one.
// Caller holds r.mu.
func (r *registry[S]) schedule(sub *subscription[S], snap *snapshot[S]) bool {
	if sub.scheduled && snap.version <= sub.last {
		return false
	}
	sub.scheduled = true
	sub.last = snap.version

	value := snap.value
	sub.executor.Execute(func() { sub.run(value) })
	return true
}

// notify prunes dead subscriptions, then schedules snap for the rest.
// Returns the number of deliveries scheduled and the pruned keys.
func (r *registry[S]) notify(snap *snapshot[S]) (scheduled int, pruned []any) {
	var dead []*subscription[S]

	r.mu.Lock()
	for key, sub := range r.subs {
		if !sub.isAlive() {
			delete(r.subs, key)
			dead = append(dead, sub)
			continue
		}
		if r.schedule(sub, snap) {
			scheduled++
		}
	}
	r.mu.Unlock()

	for _, sub := range dead {
		sub.detach()
		pruned = append(pruned, sub.key)
	}
	return scheduled, pruned
}

// remove unregisters key and blocks until no delivery to it is running.
func (r *registry[S]) remove(key any) bool {
	r.mu.Lock()
	sub, ok := r.subs[key]
	if ok {
		delete(r.subs, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	sub.retire()
	return true
}

func (r *registry[S]) contains(key any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[key]
	return ok
}

func (r *registry[S]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// closeAll drops every subscription without waiting for in-flight
// deliveries.
func (r *registry[S]) closeAll() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[any]*subscription[S])
	r.mu.Unlock()

	for _, sub := range subs {
		sub.detach()
	}
}

package testutil

import "sync"

// Recorder is a subscriber that remembers every value delivered to it.
//
// It satisfies reactor.Subscriber[V] and, being used by pointer, is a
// comparable subscriber identity. Killing a Recorder makes it report itself
// dead through Alive, which exercises registry pruning.
type Recorder[V any] struct {
	mu     sync.Mutex
	values []V
	dead   bool
}

// NewRecorder creates an empty, live Recorder.
func NewRecorder[V any]() *Recorder[V] {
	return &Recorder[V]{}
}

// Update records value.
func (r *Recorder[V]) Update(value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, value)
}

// Alive reports false once Kill has been called.
func (r *Recorder[V]) Alive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.dead
}

// Kill marks the recorder dead.
func (r *Recorder[V]) Kill() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dead = true
}

// Values returns a copy of everything recorded, in delivery order.
func (r *Recorder[V]) Values() []V {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]V, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns the number of deliveries.
func (r *Recorder[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Last returns the latest value and whether there was one.
func (r *Recorder[V]) Last() (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero V
	if len(r.values) == 0 {
		return zero, false
	}
	return r.values[len(r.values)-1], true
}

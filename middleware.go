package reactor

import (
	"slices"
	"sync"
)

// Middleware observes every applied event together with the state it
// produced. It runs synchronously on the worker, in registration order, and
// cannot change the state. A panicking middleware is a programming error
// and is not recovered.
type Middleware[S, E any] interface {
	Process(event E, state S)
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc[S, E any] func(event E, state S)

// Process implements Middleware.
func (f MiddlewareFunc[S, E]) Process(event E, state S) {
	f(event, state)
}

type middlewareEntry[S, E any] struct {
	id uint64
	mw Middleware[S, E]
}

// pipeline is the ordered middleware list.
//
// Registration and disposal may happen from any goroutine, including from
// inside a middleware, so the worker iterates over a copy taken under the
// read lock.
type pipeline[S, E any] struct {
	mu      sync.RWMutex
	ids     sequence
	entries []middlewareEntry[S, E]
}

// add registers mw and returns its unique registration ID.
func (p *pipeline[S, E]) add(mw Middleware[S, E]) uint64 {
	id := p.ids.next()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, middlewareEntry[S, E]{id: id, mw: mw})
	return id
}

// remove drops the registration with the given ID, and only that one.
func (p *pipeline[S, E]) remove(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := slices.IndexFunc(p.entries, func(e middlewareEntry[S, E]) bool { return e.id == id })
	if i < 0 {
		return false
	}
	p.entries = slices.Delete(p.entries, i, i+1)
	return true
}

func (p *pipeline[S, E]) snapshot() []middlewareEntry[S, E] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.entries)
}

func (p *pipeline[S, E]) run(event E, state S) {
	for _, e := range p.snapshot() {
		e.mw.Process(event, state)
	}
}

func (p *pipeline[S, E]) len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

package reactor

import "fmt"

// Reducer folds one event into a new state value.
//
// Reducers run only on the worker and must be deterministic. They return a
// new value rather than mutating the old one: snapshots handed to
// subscribers and middleware are shared, not copied.
type Reducer[S, E any] func(state S, event E) S

// Reducible is a state type that knows how to fold an event into itself.
type Reducible[S, E any] interface {
	Reduce(event E) S
}

// ReducerOf adapts a Reducible state type into a Reducer.
//
//	core := reactor.New(Counter{}, reactor.ReducerOf[Counter, CounterEvent](), nil)
func ReducerOf[S Reducible[S, E], E any]() Reducer[S, E] {
	return func(state S, event E) S {
		return state.Reduce(event)
	}
}

// Named is implemented by events that want a stable name in logs, spans,
// journals and broadcast envelopes. Events without it are named by type.
type Named interface {
	EventName() string
}

// EventName returns the event's name.
func EventName(event any) string {
	if n, ok := event.(Named); ok {
		return n.EventName()
	}
	return fmt.Sprintf("%T", event)
}

// snapshot is an immutable committed state with its version.
// Version 0 is the initial state; each applied event increments it.
type snapshot[S any] struct {
	value   S
	version uint64
}

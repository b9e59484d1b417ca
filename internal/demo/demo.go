// Package demo is a small counter domain driven by the CLI and the
// scenario harness.
//
// State is a Tally. Events are a sealed set: Increment, Decrement, Reset
// and Mark. Threshold is a deferred command that fires a follow-up event
// once the count reaches a bound.
package demo

import (
	"fmt"
	"time"

	"github.com/roach88/reactor"
)

// Tally is the demo state.
type Tally struct {
	Count    int    `json:"count" yaml:"count"`
	LatestID string `json:"latest_id" yaml:"latest_id"`
}

// Event is implemented only by the event types in this package.
type Event interface {
	reactor.Named
	isEvent()
}

// Increment adds By to the count.
type Increment struct {
	By int `json:"by"`
}

// Decrement subtracts By from the count.
type Decrement struct {
	By int `json:"by"`
}

// Reset zeroes the count. LatestID is kept.
type Reset struct{}

// Mark records ID as the latest id.
type Mark struct {
	ID string `json:"id"`
}

func (Increment) isEvent() {}
func (Decrement) isEvent() {}
func (Reset) isEvent() {}
func (Mark) isEvent() {}

// EventName implements reactor.Named.
func (Increment) EventName() string { return "increment" }

// EventName implements reactor.Named.
func (Decrement) EventName() string { return "decrement" }

// EventName implements reactor.Named.
func (Reset) EventName() string { return "reset" }

// EventName implements reactor.Named.
func (Mark) EventName() string { return "mark" }

// Reduce folds one event into a Tally.
func Reduce(t Tally, e Event) Tally {
	switch ev := e.(type) {
	case Increment:
		t.Count += ev.By
	case Decrement:
		t.Count -= ev.By
	case Reset:
		t.Count = 0
	case Mark:
		t.LatestID = ev.ID
	}
	return t
}

// NewEvent builds an event from its name and arguments, as read from a
// scenario file. by defaults to 1 for increment and decrement.
func NewEvent(name string, by int, id string) (Event, error) {
	switch name {
	case "increment":
		return Increment{By: orOne(by)}, nil
	case "decrement":
		return Decrement{By: orOne(by)}, nil
	case "reset":
		return Reset{}, nil
	case "mark":
		if id == "" {
			return nil, fmt.Errorf("mark requires an id")
		}
		return Mark{ID: id}, nil
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}
}

func orOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// Core is the demo Core type.
type Core = reactor.Core[Tally, Event]

// New creates a demo Core starting from initial.
func New(initial Tally, middleware []reactor.Middleware[Tally, Event], opts ...reactor.Option) *Core {
	return reactor.New(initial, Reduce, middleware, opts...)
}

// Threshold fires Then once Count >= AtLeast.
type Threshold struct {
	ID      string
	AtLeast int
	Then    Event
	// TTL overrides the Core's default expiry when set. A zero TTL expires
	// the command at the first event that finds it unsatisfied.
	TTL *time.Duration
}

var (
	_ reactor.Command[Tally, Event] = Threshold{}
	_ reactor.Expirer               = Threshold{}
)

// CanExecute implements reactor.Command.
func (c Threshold) CanExecute(t Tally) bool {
	return t.Count >= c.AtLeast
}

// Execute implements reactor.Command.
func (c Threshold) Execute(_ Tally, core reactor.Dispatcher[Tally, Event]) {
	if c.Then != nil {
		core.Fire(c.Then)
	}
}

// ExpiresAfter implements reactor.Expirer.
func (c Threshold) ExpiresAfter() (time.Duration, bool) {
	if c.TTL == nil {
		return 0, false
	}
	return *c.TTL, true
}

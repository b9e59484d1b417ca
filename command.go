package reactor

import "time"

// DefaultExpiry is how long a deferred command waits for its precondition
// before being dropped, unless the command or the Core says otherwise.
const DefaultExpiry = 10 * time.Second

// Dispatcher is the handle a command action receives back to its Core.
// Actions may call it synchronously or later, from any goroutine, for
// example after finishing network I/O.
type Dispatcher[S, E any] interface {
	Fire(event E)
	FireCommand(cmd Command[S, E])
	State() S
}

// Command is deferred work gated by a precondition on State.
//
// CanExecute is evaluated on the worker, once when the command is reached
// and again after every subsequent event while it is pending. Execute runs
// at most once, on the worker, with the state that satisfied CanExecute.
// Long-running work belongs in a goroutine started by Execute; failures
// inside it are the command's own concern.
type Command[S, E any] interface {
	CanExecute(state S) bool
	Execute(state S, core Dispatcher[S, E])
}

// Expirer overrides the expiry of a deferred command. When ok is false the
// Core's default applies. A zero or negative duration expires the command
// on the first event applied after submission.
type Expirer interface {
	ExpiresAfter() (d time.Duration, ok bool)
}

// CommandFunc builds a Command from plain functions.
type CommandFunc[S, E any] struct {
	when      func(S) bool
	do        func(S, Dispatcher[S, E])
	expiry    time.Duration
	hasExpiry bool
}

// NewCommand creates a command that runs do once when holds(state) is true.
// A nil holds is always satisfied.
func NewCommand[S, E any](holds func(S) bool, do func(S, Dispatcher[S, E])) *CommandFunc[S, E] {
	return &CommandFunc[S, E]{when: holds, do: do}
}

// ExpireAfter sets an explicit expiry and returns the command.
func (c *CommandFunc[S, E]) ExpireAfter(d time.Duration) *CommandFunc[S, E] {
	c.expiry = d
	c.hasExpiry = true
	return c
}

// CanExecute implements Command.
func (c *CommandFunc[S, E]) CanExecute(state S) bool {
	if c.when == nil {
		return true
	}
	return c.when(state)
}

// Execute implements Command.
func (c *CommandFunc[S, E]) Execute(state S, core Dispatcher[S, E]) {
	if c.do != nil {
		c.do(state, core)
	}
}

// ExpiresAfter implements Expirer.
func (c *CommandFunc[S, E]) ExpiresAfter() (time.Duration, bool) {
	return c.expiry, c.hasExpiry
}

// expiryOf resolves a command's expiry against the Core default.
func expiryOf[S, E any](cmd Command[S, E], fallback time.Duration) time.Duration {
	if ex, ok := cmd.(Expirer); ok {
		if d, set := ex.ExpiresAfter(); set {
			if d < 0 {
				return 0
			}
			return d
		}
	}
	return fallback
}

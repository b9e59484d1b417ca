package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/reactor/internal/demo"
)

// Trace entry kinds.
const (
	KindEvent   = "event"
	KindCommand = "command"
	KindAdvance = "advance"
)

// TraceEntry is one observed step of a run.
//
// Event entries are recorded by middleware after the event is reduced.
// Command entries are recorded when a command action runs, which for a
// deferred command is inside the cycle of the triggering event and before
// that event's own entry.
type TraceEntry struct {
	Seq     int         `json:"seq"`
	Kind    string      `json:"kind"`
	Event   string      `json:"event,omitempty"`
	Payload any         `json:"payload,omitempty"`
	State   *demo.Tally `json:"state,omitempty"`
	Command string      `json:"command,omitempty"`
	Advance string      `json:"advance,omitempty"`
	Version uint64      `json:"version"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Pass is true if every expectation matched.
	Pass bool `json:"pass"`

	// Errors lists the expectations that did not match.
	Errors []string `json:"errors,omitempty"`

	// Trace lists events, executed commands and clock advances in order.
	Trace []TraceEntry `json:"trace"`

	Final    demo.Tally `json:"final"`
	Version  uint64     `json:"version"`
	Pending  int        `json:"pending"`
	Executed []string   `json:"executed"`
}

// NewResult creates a passing result for the named scenario.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Errors:   []string{},
		Trace:    []TraceEntry{},
		Executed: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Err returns an *AssertionError if the run failed, nil otherwise.
func (r *Result) Err() error {
	if r.Pass {
		return nil
	}
	return &AssertionError{Scenario: r.Scenario, Failures: r.Errors}
}

// AssertionError reports the expectations a scenario did not meet.
type AssertionError struct {
	Scenario string
	Failures []string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("scenario %s failed: %s", e.Scenario, strings.Join(e.Failures, "; "))
}

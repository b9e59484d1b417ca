package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/reactor"
	"github.com/roach88/reactor/internal/demo"
	"github.com/roach88/reactor/internal/testutil"
)

// RunOption configures a run.
type RunOption func(*runConfig)

type runConfig struct {
	coreOpts []reactor.Option
	setup    []func(*demo.Core) error
}

// WithCoreOptions passes extra options to the Core. The clock and ID
// generator are always the harness's own.
func WithCoreOptions(opts ...reactor.Option) RunOption {
	return func(c *runConfig) {
		c.coreOpts = append(c.coreOpts, opts...)
	}
}

// WithSetup runs fn after the Core is created and before the first step.
// The CLI uses it to attach the journal and the broadcaster.
func WithSetup(fn func(*demo.Core) error) RunOption {
	return func(c *runConfig) {
		if fn != nil {
			c.setup = append(c.setup, fn)
		}
	}
}

// recorder collects the trace. Middleware and command actions append to it
// on the worker; advance entries are appended by the runner while the Core
// is idle.
type recorder struct {
	mu       sync.Mutex
	trace    []TraceEntry
	executed []string
	version  uint64
}

func (r *recorder) append(e TraceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Seq = len(r.trace) + 1
	r.trace = append(r.trace, e)
}

// Process implements reactor.Middleware.
func (r *recorder) Process(event demo.Event, state demo.Tally) {
	r.mu.Lock()
	r.version++
	v := r.version
	r.mu.Unlock()

	r.append(TraceEntry{
		Kind:    KindEvent,
		Event:   event.EventName(),
		Payload: event,
		State:   &state,
		Version: v,
	})
}

func (r *recorder) commandRan(id string, version uint64) {
	r.mu.Lock()
	r.executed = append(r.executed, id)
	r.mu.Unlock()

	r.append(TraceEntry{Kind: KindCommand, Command: id, Version: version})
}

func (r *recorder) snapshot() ([]TraceEntry, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.trace), slices.Clone(r.executed)
}

// trackedCommand records its execution before delegating to the Threshold.
type trackedCommand struct {
	demo.Threshold
	rec  *recorder
	core *demo.Core
}

func (c trackedCommand) Execute(state demo.Tally, d reactor.Dispatcher[demo.Tally, demo.Event]) {
	c.rec.commandRan(c.ID, c.core.Version())
	c.Threshold.Execute(state, d)
}

// Run executes a scenario against a fresh demo Core and checks its
// expectations.
//
// The Core uses a testutil.ManualClock starting at testutil.Epoch and a
// SequenceGenerator prefixed with the scenario name, so the trace is the
// same on every run. A non-nil error means the scenario could not run; a
// failed expectation is reported in the Result.
func Run(ctx context.Context, s *Scenario, opts ...RunOption) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	clock := testutil.NewManualClock()
	coreOpts := []reactor.Option{
		reactor.WithName(s.Name),
		reactor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if s.DefaultExpiry != "" {
		d, err := time.ParseDuration(s.DefaultExpiry)
		if err != nil {
			return nil, fmt.Errorf("default_expiry: %w", err)
		}
		coreOpts = append(coreOpts, reactor.WithDefaultExpiry(d))
	}
	coreOpts = append(coreOpts, cfg.coreOpts...)
	coreOpts = append(coreOpts,
		reactor.WithClock(clock),
		reactor.WithIDGenerator(testutil.NewSequenceGenerator(s.Name)),
	)

	rec := &recorder{}
	core := demo.New(s.Initial, []reactor.Middleware[demo.Tally, demo.Event]{rec}, coreOpts...)
	defer core.Close()

	for _, fn := range cfg.setup {
		if err := fn(core); err != nil {
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := runStep(ctx, core, clock, rec, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	if err := core.Flush(ctx); err != nil {
		return nil, fmt.Errorf("final flush: %w", err)
	}

	result := NewResult(s.Name)
	result.Trace, result.Executed = rec.snapshot()
	result.Final = core.State()
	result.Version = core.Version()
	result.Pending = core.Pending()
	check(s.Expect, result)
	return result, nil
}

func runStep(ctx context.Context, core *demo.Core, clock *testutil.ManualClock, rec *recorder, step Step) error {
	switch step.Kind() {
	case StepFire:
		event, err := step.EventSpec.Event()
		if err != nil {
			return err
		}
		core.Fire(event)

	case StepCommand:
		cmd := demo.Threshold{ID: step.Command, AtLeast: step.AtLeast}
		if step.Then != nil {
			then, err := step.Then.Event()
			if err != nil {
				return fmt.Errorf("then: %w", err)
			}
			cmd.Then = then
		}
		if step.TTL != "" {
			ttl, err := time.ParseDuration(step.TTL)
			if err != nil {
				return fmt.Errorf("ttl: %w", err)
			}
			cmd.TTL = &ttl
		}
		core.FireCommand(trackedCommand{Threshold: cmd, rec: rec, core: core})

	case StepAdvance:
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		// Everything fired so far is scanned at the current time.
		if err := core.Flush(ctx); err != nil {
			return err
		}
		clock.Advance(d)
		rec.append(TraceEntry{Kind: KindAdvance, Advance: d.String(), Version: core.Version()})

	case StepFlush:
		return core.Flush(ctx)

	default:
		return fmt.Errorf("step has no action")
	}
	return nil
}

func check(expect Expect, r *Result) {
	if expect.State != nil && *expect.State != r.Final {
		r.AddError("state: expected %+v, got %+v", *expect.State, r.Final)
	}
	if expect.Pending != nil && *expect.Pending != r.Pending {
		r.AddError("pending: expected %d, got %d", *expect.Pending, r.Pending)
	}
	if expect.Executed != nil && !slices.Equal(expect.Executed, r.Executed) {
		r.AddError("executed: expected %v, got %v", expect.Executed, r.Executed)
	}
	if expect.Version != nil && *expect.Version != r.Version {
		r.AddError("version: expected %d, got %d", *expect.Version, r.Version)
	}
}

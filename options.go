package reactor

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultName is the Core name used in logs and metric labels when
// WithName is not given.
const DefaultName = "reactor"

const tracerName = "github.com/roach88/reactor"

// Option configures a Core.
type Option func(*config)

type config struct {
	name       string
	logger     *slog.Logger
	clock      Clock
	expiry     time.Duration
	registerer prometheus.Registerer
	tracer     trace.Tracer
	ids        IDGenerator
}

func defaultConfig() config {
	return config{
		name:   DefaultName,
		clock:  SystemClock{},
		expiry: DefaultExpiry,
		tracer: noop.NewTracerProvider().Tracer(tracerName),
		ids:    UUIDv7Generator{},
	}
}

// WithName labels the Core in logs and metrics.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock sets the clock used to stamp and expire deferred commands.
//
// Use a testutil.ManualClock to control expiry in tests.
func WithClock(clock Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithDefaultExpiry sets the expiry for deferred commands that do not
// carry their own. Default: DefaultExpiry.
func WithDefaultExpiry(d time.Duration) Option {
	return func(c *config) {
		if d < 0 {
			d = 0
		}
		c.expiry = d
	}
}

// WithMetrics registers the Core's Prometheus collectors on reg, labelled
// with the Core name. A registration failure is logged and metrics are
// disabled for that Core.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

// WithTracer records one span per mutation cycle and per immediately
// executed command. Default: a no-op tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *config) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithIDGenerator overrides how Core and command IDs are generated.
func WithIDGenerator(ids IDGenerator) Option {
	return func(c *config) {
		if ids != nil {
			c.ids = ids
		}
	}
}

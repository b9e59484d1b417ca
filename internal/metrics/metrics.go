// Package metrics exposes Prometheus collectors for a reactor Core.
//
// Every collector carries a constant "core" label so several Cores can share
// one registry. All Collector methods are safe on a nil receiver, which is
// how a Core without metrics records nothing.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reactor"

// Collector holds the instruments for one Core.
type Collector struct {
	eventsApplied    prometheus.Counter
	commandsExecuted prometheus.Counter
	commandsDeferred prometheus.Counter
	commandsExpired  prometheus.Counter
	notifications    prometheus.Counter
	pending          prometheus.Gauge
	subscribers      prometheus.Gauge
}

// New registers a Collector for the Core named core on reg.
//
// Returns an error if collectors with the same core label are already
// registered on reg.
func New(reg prometheus.Registerer, core string) (c *Collector, err error) {
	if reg == nil {
		return nil, fmt.Errorf("metrics: nil registerer")
	}

	// promauto panics on duplicate registration; surface it as an error.
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("metrics: register core %q: %v", core, r)
		}
	}()

	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"core": core}, reg))

	return &Collector{
		eventsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Number of events reduced into state.",
		}),
		commandsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_executed_total",
			Help:      "Number of command actions invoked, immediately or after deferral.",
		}),
		commandsDeferred: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_deferred_total",
			Help:      "Number of commands parked because their precondition did not hold.",
		}),
		commandsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_expired_total",
			Help:      "Number of deferred commands dropped unexecuted after their deadline.",
		}),
		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Number of subscriber deliveries scheduled.",
		}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "commands_pending",
			Help:      "Deferred commands waiting for their precondition.",
		}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Live subscriptions.",
		}),
	}, nil
}

// EventApplied counts one reduced event.
func (c *Collector) EventApplied() {
	if c == nil {
		return
	}
	c.eventsApplied.Inc()
}

// CommandExecuted counts one invoked command action.
func (c *Collector) CommandExecuted() {
	if c == nil {
		return
	}
	c.commandsExecuted.Inc()
}

// CommandDeferred counts one parked command.
func (c *Collector) CommandDeferred() {
	if c == nil {
		return
	}
	c.commandsDeferred.Inc()
}

// CommandsExpired counts n dropped commands.
func (c *Collector) CommandsExpired(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.commandsExpired.Add(float64(n))
}

// Notified counts n scheduled deliveries.
func (c *Collector) Notified(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.notifications.Add(float64(n))
}

// SetPending records the pending queue length.
func (c *Collector) SetPending(n int) {
	if c == nil {
		return
	}
	c.pending.Set(float64(n))
}

// SetSubscribers records the number of live subscriptions.
func (c *Collector) SetSubscribers(n int) {
	if c == nil {
		return
	}
	c.subscribers.Set(float64(n))
}

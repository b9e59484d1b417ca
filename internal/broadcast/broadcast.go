// Package broadcast publishes applied events to a message bus.
//
// Middleware turns every (event, state) pair a Core applies into an
// envelope and hands it to a Publisher on subject "<base>.<event type>".
// NATSPublisher is the production transport; MemoryPublisher records
// messages for tests.
package broadcast

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/reactor"
	"github.com/roach88/reactor/internal/canonical"
)

// DefaultSubject is the base subject used when none is configured.
const DefaultSubject = "reactor.events"

// publishTimeout bounds one publish from the worker.
const publishTimeout = 2 * time.Second

// Publisher sends raw payloads to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Envelope is the published payload.
type Envelope struct {
	Type  string `json:"type"`
	Core  string `json:"core"`
	Event any    `json:"event"`
	State any    `json:"state"`
}

// Middleware publishes an Envelope for every applied event.
//
// It runs on the Core's worker. Encoding and publish failures are logged
// and dropped, never propagated into the Core.
type Middleware[S, E any] struct {
	pub     Publisher
	subject string
	core    string
	logger  *slog.Logger
}

var _ reactor.Middleware[int, int] = (*Middleware[int, int])(nil)

// NewMiddleware creates a broadcasting middleware for the Core named core.
// An empty subject becomes DefaultSubject.
func NewMiddleware[S, E any](pub Publisher, subject, core string, logger *slog.Logger) *Middleware[S, E] {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware[S, E]{
		pub:     pub,
		subject: subject,
		core:    core,
		logger:  logger.With("subject", subject),
	}
}

// Process implements reactor.Middleware.
func (m *Middleware[S, E]) Process(event E, state S) {
	name := reactor.EventName(event)
	data, err := canonical.Marshal(Envelope{
		Type:  name,
		Core:  m.core,
		Event: event,
		State: state,
	})
	if err != nil {
		m.logger.Error("broadcast: encode", "event", name, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	subject := SubjectFor(m.subject, name)
	if err := m.pub.Publish(ctx, subject, data); err != nil {
		m.logger.Warn("broadcast: publish", "event", name, "error", err)
		return
	}
	m.logger.Debug("broadcast: published", "event", name, "bytes", len(data))
}

// SubjectFor returns the subject an event type is published on. Characters
// that NATS treats as wildcards or separators inside a token are replaced.
func SubjectFor(base, eventType string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, eventType)
	token = strings.Trim(token, ".")
	if token == "" {
		return base
	}
	return base + "." + token
}

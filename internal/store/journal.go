package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/reactor"
	"github.com/roach88/reactor/internal/canonical"
)

// writeTimeout bounds a single journal write so a locked database cannot
// stall the worker indefinitely.
const writeTimeout = 5 * time.Second

// Journal is a middleware that appends every applied event to a Store,
// chaining each entry to the one before it.
//
// It runs on the Core's worker, so seq and prev need no lock. Failures are
// logged and never propagated back into the Core.
type Journal[S, E any] struct {
	st     *Store
	coreID string
	seq    int64
	prev   string
	logger *slog.Logger
}

var _ reactor.Middleware[int, int] = (*Journal[int, int])(nil)

// OpenJournal registers a Core and returns the journal to Observe it with.
//
// Registering an ID that is already journaled keeps the original record;
// numbering and the chain then continue after its latest entry. Call it
// before the first event is applied.
func OpenJournal[S, E any](ctx context.Context, st *Store, id, name string, initial S, logger *slog.Logger) (*Journal[S, E], error) {
	if logger == nil {
		logger = slog.Default()
	}
	state, err := canonical.MarshalString(initial)
	if err != nil {
		return nil, fmt.Errorf("journal %q: encode initial state: %w", id, err)
	}
	if err := st.RegisterCore(ctx, CoreRecord{ID: id, Name: name, InitialState: state}); err != nil {
		return nil, err
	}
	rec, err := st.Core(ctx, id)
	if err != nil {
		return nil, err
	}

	j := &Journal[S, E]{
		st:     st,
		coreID: id,
		prev:   GenesisDigest(rec.InitialState),
		logger: logger.With("core_id", id),
	}
	latest, err := st.LatestEntry(ctx, id)
	switch {
	case err == nil:
		j.seq, j.prev = latest.Seq, latest.ChainDigest
		j.logger.Debug("journal resumed", "seq", j.seq)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return j, nil
}

// Process implements reactor.Middleware.
func (j *Journal[S, E]) Process(event E, state S) {
	eventJSON, err := canonical.MarshalString(event)
	if err != nil {
		j.logger.Error("journal: encode event", "event", reactor.EventName(event), "error", err)
		return
	}
	stateJSON, err := canonical.MarshalString(state)
	if err != nil {
		j.logger.Error("journal: encode state", "event", reactor.EventName(event), "error", err)
		return
	}

	entry := Seal(j.prev, Entry{
		CoreID:    j.coreID,
		Seq:       j.seq + 1,
		EventType: reactor.EventName(event),
		Event:     eventJSON,
		State:     stateJSON,
	})

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.st.AppendEntry(ctx, entry); err != nil {
		// seq and prev stay put so the next event retries this position.
		j.logger.Error("journal: append", "seq", entry.Seq, "error", err)
		return
	}
	j.seq, j.prev = entry.Seq, entry.ChainDigest
	j.logger.Debug("journal: appended", "seq", entry.Seq, "event", entry.EventType)
}

// Seq returns the seq of the last entry written.
// Only meaningful once the Core has been flushed.
func (j *Journal[S, E]) Seq() int64 {
	return j.seq
}

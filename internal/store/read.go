package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Cores returns every registered Core ordered by ID.
//
// Returns an empty slice (not nil) if no Cores are registered.
func (s *Store) Cores(ctx context.Context) ([]CoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, initial_state
		FROM cores
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query cores: %w", err)
	}
	defer rows.Close()

	cores := []CoreRecord{}
	for rows.Next() {
		var rec CoreRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.InitialState); err != nil {
			return nil, fmt.Errorf("scan core: %w", err)
		}
		cores = append(cores, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cores: %w", err)
	}
	return cores, nil
}

// Core returns one Core record, or ErrNotFound.
func (s *Store) Core(ctx context.Context, id string) (CoreRecord, error) {
	var rec CoreRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, initial_state FROM cores WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Name, &rec.InitialState)
	if errors.Is(err, sql.ErrNoRows) {
		return CoreRecord{}, fmt.Errorf("core %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return CoreRecord{}, fmt.Errorf("query core: %w", err)
	}
	return rec, nil
}

// Entries returns the journal of one Core ordered by seq.
//
// Returns an empty slice (not nil) if the Core has no entries.
func (s *Store) Entries(ctx context.Context, coreID string) ([]Entry, error) {
	return s.queryEntries(ctx, `
		SELECT core_id, seq, event_type, event, state, state_digest, chain_digest
		FROM entries
		WHERE core_id = ?
		ORDER BY seq ASC
	`, coreID)
}

// EntriesOfType returns the entries of one Core whose event type matches.
func (s *Store) EntriesOfType(ctx context.Context, coreID, eventType string) ([]Entry, error) {
	return s.queryEntries(ctx, `
		SELECT core_id, seq, event_type, event, state, state_digest, chain_digest
		FROM entries
		WHERE core_id = ? AND event_type = ?
		ORDER BY seq ASC
	`, coreID, eventType)
}

// LatestEntry returns the entry with the highest seq for a Core, or
// ErrNotFound if the Core has none.
func (s *Store) LatestEntry(ctx context.Context, coreID string) (Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx, `
		SELECT core_id, seq, event_type, event, state, state_digest, chain_digest
		FROM entries
		WHERE core_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, coreID).Scan(&e.CoreID, &e.Seq, &e.EventType, &e.Event, &e.State, &e.StateDigest, &e.ChainDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("latest entry for %q: %w", coreID, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("query latest entry: %w", err)
	}
	return e, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.CoreID, &e.Seq, &e.EventType, &e.Event, &e.State, &e.StateDigest, &e.ChainDigest); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

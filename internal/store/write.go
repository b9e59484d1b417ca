package store

import (
	"context"
	"fmt"
)

// RegisterCore inserts a Core record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - re-registering the same
// ID is silently ignored and keeps the original record.
func (s *Store) RegisterCore(ctx context.Context, rec CoreRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("register core: empty id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cores (id, name, initial_state)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Name, rec.InitialState)
	if err != nil {
		return fmt.Errorf("register core: %w", err)
	}
	return nil
}

// AppendEntry inserts a sealed journal entry (see Seal).
// Uses ON CONFLICT DO NOTHING - a duplicate (core_id, seq) is silently
// ignored. The Core must already be registered (foreign key constraint).
func (s *Store) AppendEntry(ctx context.Context, e Entry) error {
	if e.Seq < 1 {
		return fmt.Errorf("append entry: seq must be positive, got %d", e.Seq)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (core_id, seq, event_type, event, state, state_digest, chain_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, e.CoreID, e.Seq, e.EventType, e.Event, e.State, e.StateDigest, e.ChainDigest)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// Package store provides a SQLite-backed journal of applied events.
//
// The journal is an append-only audit trail of what each Core did:
//   - Cores: one record per Core, with its name and initial state
//   - Entries: one record per applied event, with the resulting state
//
// It records; it does not restore. Nothing in the module rebuilds a Core
// from the journal.
//
// # Critical Patterns
//
// Logical ordering:
//   - Entries are ordered by seq INTEGER (per-Core logical clock), never by
//     wall time
//   - All queries include ORDER BY seq ASC or id ASC COLLATE BINARY
//
// Idempotency:
//   - PRIMARY KEY(core_id, seq) with ON CONFLICT DO NOTHING
//   - RegisterCore and AppendEntry can safely be retried
//
// Deterministic payloads:
//   - Event and state columns hold canonical JSON (internal/canonical)
//   - state_digest is the domain-separated SHA-256 of the state JSON
//
// Integrity:
//   - chain_digest links each entry to the one before it, starting from
//     GenesisDigest of the Core's initial state
//   - Verify recomputes both digests; rewriting, reordering or dropping an
//     entry breaks the chain at that point
//   - OpenJournal resumes the chain when a Core ID is reused
//
// # Schema Versions
//
// PRAGMA user_version records the schema version; Open applies each later
// migration in its own transaction:
//   - v1: cores and entries
//   - v2: entries(core_id, event_type, seq) index for filtered traces
//   - v3: entries.chain_digest, backfilled for existing journals
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Entries must reference a registered Core
package store

package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var baselineSQL string

// migration moves the journal schema from version-1 to version. Each one
// runs in its own transaction together with the user_version bump, so a
// failed step leaves the database at the previous version.
type migration struct {
	version int
	name    string
	up      func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the full schema history, oldest first. Append only.
var migrations = []migration{
	{1, "cores and entries tables", execSQL(baselineSQL)},
	{2, "index entries by event type", execSQL(`
		CREATE INDEX IF NOT EXISTS idx_entries_event_type
		ON entries(core_id, event_type, seq)`)},
	{3, "chain digest on entries", addChainDigest},
}

// SchemaVersion is the version Open migrates to.
var SchemaVersion = migrations[len(migrations)-1].version

// pragmas are applied on every connection Open makes. busy_timeout covers
// the CLI reading a journal another process is still writing.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store is a journal of Cores and the events they applied.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path and migrates it to
// SchemaVersion. Opening an up-to-date journal changes nothing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One connection: SQLite has a single writer and the pragmas are
	// per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("open journal: %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the journal.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Version returns the schema version recorded in the database.
func (s *Store) Version(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (s *Store) migrate(ctx context.Context) error {
	current, err := s.Version(ctx)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("journal schema v%d is newer than supported v%d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.step(ctx, m); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (s *Store) step(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}
	// user_version is transactional in SQLite; it commits with the step.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return err
	}
	return tx.Commit()
}

func execSQL(stmt string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, stmt)
		return err
	}
}

// addChainDigest adds entries.chain_digest and links every existing entry
// into its Core's chain, starting from the genesis digest of the Core's
// initial state.
func addChainDigest(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx,
		`ALTER TABLE entries ADD COLUMN chain_digest TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}

	type link struct {
		coreID string
		seq    int64
		chain  string
	}
	var links []link

	rows, err := tx.QueryContext(ctx, `
		SELECT c.initial_state, e.core_id, e.seq, e.event_type, e.event, e.state_digest
		FROM entries e JOIN cores c ON c.id = e.core_id
		ORDER BY e.core_id COLLATE BINARY ASC, e.seq ASC`)
	if err != nil {
		return err
	}
	prev := map[string]string{}
	for rows.Next() {
		var initial string
		var e Entry
		if err := rows.Scan(&initial, &e.CoreID, &e.Seq, &e.EventType, &e.Event, &e.StateDigest); err != nil {
			rows.Close()
			return err
		}
		p, ok := prev[e.CoreID]
		if !ok {
			p = GenesisDigest(initial)
		}
		e.ChainDigest = chainDigest(p, e)
		prev[e.CoreID] = e.ChainDigest
		links = append(links, link{e.CoreID, e.Seq, e.ChainDigest})
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range links {
		if _, err := tx.ExecContext(ctx,
			`UPDATE entries SET chain_digest = ? WHERE core_id = ? AND seq = ?`,
			l.chain, l.coreID, l.seq); err != nil {
			return err
		}
	}
	return nil
}

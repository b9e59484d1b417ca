package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor/internal/store"
)

func TestTrace_EmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	out, err := execute(t, "trace", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No cores journaled.")
}

func TestTrace_ListCores(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reactor.db")
	_, err := execute(t, "run", "--db", dbPath, "testdata/scenarios/counter.yaml")
	require.NoError(t, err)
	_, err = execute(t, "run", "--db", dbPath, "testdata/scenarios/threshold.yaml")
	require.NoError(t, err)

	out, err := execute(t, "trace", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "counter-1  counter  (4 entries)")
	assert.Contains(t, out, "threshold-1  threshold  (4 entries)")
}

func TestTrace_EventFilter(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reactor.db")
	_, err := execute(t, "run", "--db", dbPath, "testdata/scenarios/counter.yaml")
	require.NoError(t, err)

	out, err := execute(t, "trace", "--db", dbPath, "--core", "counter-1", "--event", "mark")
	require.NoError(t, err)
	assert.Contains(t, out, `[3] mark {"id":"a1"} -> {"count":3,"latest_id":"a1"}`)
	assert.NotContains(t, out, "decrement")
}

func TestTrace_UnknownCore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reactor.db")

	_, err := execute(t, "trace", "--db", dbPath, "--core", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "core not found")
}

// registerAndSeal registers c1 and returns entries sealed in order, unwritten.
func registerAndSeal(t *testing.T, dbPath string, entries ...store.Entry) []store.Entry {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	const initial = `{"count":0,"latest_id":""}`
	require.NoError(t, st.RegisterCore(ctx, store.CoreRecord{ID: "c1", Name: "tampered", InitialState: initial}))

	prev := store.GenesisDigest(initial)
	sealed := make([]store.Entry, 0, len(entries))
	for i, e := range entries {
		e.CoreID, e.Seq = "c1", int64(i+1)
		e = store.Seal(prev, e)
		sealed = append(sealed, e)
		prev = e.ChainDigest
	}
	return sealed
}

func appendRaw(t *testing.T, dbPath string, entries ...store.Entry) {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	for _, e := range entries {
		require.NoError(t, st.AppendEntry(context.Background(), e))
	}
}

func TestTrace_DigestMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reactor.db")
	entries := registerAndSeal(t, dbPath,
		store.Entry{EventType: "reset", Event: `{}`, State: `{"count":0,"latest_id":""}`},
	)
	entries[0].StateDigest = "not-a-digest"
	appendRaw(t, dbPath, entries...)

	out, err := execute(t, "trace", "--db", dbPath, "--core", "c1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "DIGEST MISMATCH")
	assert.Contains(t, out, "Failed verification: 1")
}

func TestTrace_ChainBroken(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reactor.db")
	entries := registerAndSeal(t, dbPath,
		store.Entry{EventType: "increment", Event: `{"by":1}`, State: `{"count":1,"latest_id":""}`},
		store.Entry{EventType: "increment", Event: `{"by":1}`, State: `{"count":2,"latest_id":""}`},
	)
	// Rewrite the first event and reseal it; the second no longer links.
	entries[0].Event = `{"by":2}`
	entries[0] = store.Seal(store.GenesisDigest(`{"count":0,"latest_id":""}`), entries[0])
	appendRaw(t, dbPath, entries...)

	out, err := execute(t, "trace", "--db", dbPath, "--core", "c1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `[2] increment {"by":1} -> {"count":2,"latest_id":""}  CHAIN BROKEN`)
	assert.NotContains(t, out, "DIGEST MISMATCH")
}

func TestTrace_FilteredTimelineStillVerifiesWholeJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reactor.db")
	entries := registerAndSeal(t, dbPath,
		store.Entry{EventType: "increment", Event: `{"by":1}`, State: `{"count":1,"latest_id":""}`},
		store.Entry{EventType: "mark", Event: `{"id":"x"}`, State: `{"count":1,"latest_id":"x"}`},
	)
	entries[0].State = `{"count":5,"latest_id":""}`
	appendRaw(t, dbPath, entries...)

	out, err := execute(t, "trace", "--db", dbPath, "--core", "c1", "--event", "mark")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.NotContains(t, out, "[1]")
	assert.Contains(t, out, "Failed verification: 1")
}

func TestTrace_MissingDBFlag(t *testing.T) {
	_, err := execute(t, "trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor"
	"github.com/roach88/reactor/internal/canonical"
	"github.com/roach88/reactor/internal/testutil"
)

type gauge struct {
	Level int `json:"level"`
}

type bump struct {
	By int `json:"by"`
}

func (bump) EventName() string { return "bump" }

func reduceGauge(g gauge, b bump) gauge {
	return gauge{Level: g.Level + b.By}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJournaledCore(t *testing.T, s *Store, coreID string) (*reactor.Core[gauge, bump], *Journal[gauge, bump]) {
	t.Helper()
	j, err := OpenJournal[gauge, bump](context.Background(), s, coreID, "gauge", gauge{}, quietLogger())
	require.NoError(t, err)

	c := reactor.New(gauge{}, reduceGauge, []reactor.Middleware[gauge, bump]{j},
		reactor.WithLogger(quietLogger()),
		reactor.WithClock(testutil.NewManualClock()),
	)
	t.Cleanup(c.Close)
	return c, j
}

func flushCore(t *testing.T, c *reactor.Core[gauge, bump]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))
}

// verifyAll asserts that every entry of coreID passes Verify.
func verifyAll(t *testing.T, s *Store, coreID string) []Entry {
	t.Helper()
	ctx := context.Background()
	core, err := s.Core(ctx, coreID)
	require.NoError(t, err)
	entries, err := s.Entries(ctx, coreID)
	require.NoError(t, err)
	for _, c := range Verify(core, entries) {
		assert.True(t, c.OK(), "%s seq %d: %+v", coreID, c.Seq, c)
	}
	return entries
}

func TestJournal_RecordsEveryAppliedEvent(t *testing.T) {
	s := createTestStore(t)
	c, j := newJournaledCore(t, s, "core-a")

	c.Fire(bump{By: 2})
	c.Fire(bump{By: 3})
	flushCore(t, c)

	entries := verifyAll(t, s, "core-a")
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), j.Seq())

	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, "bump", entries[0].EventType)
	assert.Equal(t, `{"by":2}`, entries[0].Event)
	assert.Equal(t, `{"level":2}`, entries[0].State)
	assert.Equal(t, Seal(GenesisDigest(`{"level":0}`), entries[0]).ChainDigest, entries[0].ChainDigest)

	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, `{"level":5}`, entries[1].State)
	assert.Equal(t, canonical.Digest(canonical.DomainState, []byte(`{"level":5}`)), entries[1].StateDigest)
	assert.Equal(t, Seal(entries[0].ChainDigest, entries[1]).ChainDigest, entries[1].ChainDigest)
}

func TestOpenJournal_RegistersInitialState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := OpenJournal[gauge, bump](ctx, s, "core-a", "gauge", gauge{Level: 7}, quietLogger())
	require.NoError(t, err)

	rec, err := s.Core(ctx, "core-a")
	require.NoError(t, err)
	assert.Equal(t, "gauge", rec.Name)
	assert.Equal(t, `{"level":7}`, rec.InitialState)
}

func TestOpenJournal_EmptyID(t *testing.T) {
	s := createTestStore(t)
	_, err := OpenJournal[gauge, bump](context.Background(), s, "", "gauge", gauge{}, nil)
	assert.Error(t, err)
}

func TestOpenJournal_UnencodableInitialState(t *testing.T) {
	s := createTestStore(t)
	_, err := OpenJournal[chan int, bump](context.Background(), s, "c", "chan", make(chan int), nil)
	assert.Error(t, err)

	_, err = s.Core(context.Background(), "c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournal_ResumesNumberingAndChain(t *testing.T) {
	s := createTestStore(t)

	first, _ := newJournaledCore(t, s, "reused")
	first.Fire(bump{By: 1})
	first.Fire(bump{By: 1})
	flushCore(t, first)
	first.Close()

	second, j := newJournaledCore(t, s, "reused")
	assert.Equal(t, int64(2), j.Seq())
	second.Fire(bump{By: 1})
	flushCore(t, second)

	entries := verifyAll(t, s, "reused")
	require.Len(t, entries, 3)
	assert.Equal(t, int64(3), entries[2].Seq)
	// The second Core starts from its own initial state; the chain spans both.
	assert.Equal(t, `{"level":1}`, entries[2].State)
}

func TestJournal_CoresAreIsolated(t *testing.T) {
	s := createTestStore(t)
	a, _ := newJournaledCore(t, s, "a")
	b, _ := newJournaledCore(t, s, "b")

	a.Fire(bump{By: 1})
	b.Fire(bump{By: 10})
	a.Fire(bump{By: 1})
	flushCore(t, a)
	flushCore(t, b)

	ea := verifyAll(t, s, "a")
	eb := verifyAll(t, s, "b")
	require.Len(t, ea, 2)
	require.Len(t, eb, 1)
	assert.Equal(t, int64(1), eb[0].Seq, "numbering is per Core")
	assert.Equal(t, `{"level":10}`, eb[0].State)
	assert.Equal(t, `{"level":2}`, ea[1].State)
}

func TestVerify_DetectsTampering(t *testing.T) {
	s := createTestStore(t)
	c, _ := newJournaledCore(t, s, "core-a")
	for i := 0; i < 3; i++ {
		c.Fire(bump{By: 1})
	}
	flushCore(t, c)

	core, err := s.Core(context.Background(), "core-a")
	require.NoError(t, err)
	entries := verifyAll(t, s, "core-a")
	require.Len(t, entries, 3)

	t.Run("rewritten state", func(t *testing.T) {
		forged := append([]Entry(nil), entries...)
		forged[1].State = `{"level":99}`
		checks := Verify(core, forged)
		assert.False(t, checks[1].StateOK)
		assert.True(t, checks[1].ChainOK)
		assert.True(t, checks[2].OK())
	})

	t.Run("resealed entry", func(t *testing.T) {
		// Recomputing both digests still breaks the link to the next entry.
		forged := append([]Entry(nil), entries...)
		forged[1].Event = `{"by":50}`
		forged[1] = Seal(forged[0].ChainDigest, forged[1])
		checks := Verify(core, forged)
		assert.True(t, checks[1].OK())
		assert.False(t, checks[2].ChainOK)
	})

	t.Run("dropped entry", func(t *testing.T) {
		checks := Verify(core, []Entry{entries[0], entries[2]})
		assert.True(t, checks[0].OK())
		assert.False(t, checks[1].ChainOK)
	})

	t.Run("different genesis", func(t *testing.T) {
		other := core
		other.InitialState = `{"level":1}`
		assert.False(t, Verify(other, entries)[0].ChainOK)
	})
}

func TestJournal_WriteFailureDoesNotStopCore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	j, err := OpenJournal[gauge, bump](context.Background(), s, "c", "gauge", gauge{}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	c := reactor.New(gauge{}, reduceGauge, []reactor.Middleware[gauge, bump]{j}, reactor.WithLogger(quietLogger()))
	defer c.Close()

	c.Fire(bump{By: 4})
	flushCore(t, c)

	assert.Equal(t, gauge{Level: 4}, c.State())
	assert.Equal(t, int64(0), j.Seq(), "a failed append does not advance the journal")
}

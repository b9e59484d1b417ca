package reactor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor/internal/testutil"
)

// counter is the state used throughout the Core tests.
type counter struct {
	N        int
	LatestID int
}

type counterEvent struct {
	Kind string // "inc", "dec", "mark"
	ID   int
}

func (e counterEvent) EventName() string { return e.Kind }

func reduceCounter(s counter, e counterEvent) counter {
	switch e.Kind {
	case "inc":
		s.N++
	case "dec":
		s.N--
	case "mark":
		s.LatestID = e.ID
	}
	return s
}

func inc() counterEvent { return counterEvent{Kind: "inc"} }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCore creates a counter Core with a manual clock and deterministic
// IDs, closed automatically at test end.
func newTestCore(t *testing.T, opts ...Option) (*Core[counter, counterEvent], *testutil.ManualClock) {
	t.Helper()
	clock := testutil.NewManualClock()
	base := []Option{
		WithLogger(quietLogger()),
		WithClock(clock),
		WithIDGenerator(testutil.NewSequenceGenerator("test")),
	}
	c := New(counter{}, reduceCounter, nil, append(base, opts...)...)
	t.Cleanup(c.Close)
	return c, clock
}

func flush(t *testing.T, c *Core[counter, counterEvent]) {
	t.Helper()
	flushWithin(t, c, 5*time.Second)
}

// flushWithin is flush with an explicit deadline, for fan-out tests that
// run far slower under the race detector.
func flushWithin(t *testing.T, c *Core[counter, counterEvent], d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, c.Flush(ctx))
}

// waitLen waits until r has received n values.
func waitLen[V any](t *testing.T, r *testutil.Recorder[V], n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.Len() >= n },
		5*time.Second, time.Millisecond, "expected %d deliveries", n)
}

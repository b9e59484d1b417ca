package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor/internal/broadcast"
	"github.com/roach88/reactor/internal/demo"
)

func TestRun_Text(t *testing.T) {
	out, err := execute(t, "run", "testdata/scenarios/counter.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ counter")
	assert.Contains(t, out, `count=2 latest_id="a1"`)
	assert.Contains(t, out, "version:  4")
	assert.Contains(t, out, "pending:  0")
}

func TestRun_JSON(t *testing.T) {
	out, err := execute(t, "run", "--format", "json", "testdata/scenarios/threshold.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, demo.Tally{Count: 13, LatestID: "unlocked"}, resp.Data.Final)
	assert.Equal(t, []string{"unlock", "already"}, resp.Data.Executed)
	assert.Nil(t, resp.Data.Journal)
}

func TestRun_Journal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reactor.db")

	out, err := execute(t, "run", "--db", dbPath, "testdata/scenarios/counter.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "journal:  4 entries for counter-1")

	out, err = execute(t, "trace", "--db", dbPath, "--core", "counter-1", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "counter", resp.Data.Core.Name)
	assert.JSONEq(t, `{"count":0,"latest_id":""}`, resp.Data.Core.InitialState)
	require.Len(t, resp.Data.Timeline, 4)
	assert.Equal(t, "decrement", resp.Data.Timeline[3].EventType)
	assert.JSONEq(t, `{"count":2,"latest_id":"a1"}`, string(resp.Data.Timeline[3].State))
	assert.Zero(t, resp.Data.Stats.DigestMismatches)
	assert.Equal(t, 2, resp.Data.Stats.EventTypes["increment"])
	for _, e := range resp.Data.Timeline {
		assert.True(t, e.StateOK && e.ChainOK, "seq %d", e.Seq)
	}
}

func TestRun_JournalResumesAcrossRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reactor.db")

	for i := 0; i < 2; i++ {
		_, err := execute(t, "run", "--db", dbPath, "testdata/scenarios/counter.yaml")
		require.NoError(t, err, "run %d", i)
	}

	out, err := execute(t, "trace", "--db", dbPath, "--core", "counter-1", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 8)
	for i, e := range resp.Data.Timeline {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.True(t, e.ChainOK, "seq %d", e.Seq)
	}
	assert.Zero(t, resp.Data.Stats.DigestMismatches)
}

func TestRun_Broadcast(t *testing.T) {
	pub := broadcast.NewMemoryPublisher()
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}, Publisher: pub}

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, runScenario(opts, "testdata/scenarios/counter.yaml", cmd))

	msgs := pub.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "reactor.events.increment", msgs[0].Subject)
	assert.Equal(t, "reactor.events.mark", msgs[2].Subject)
	assert.Equal(t,
		`{"core":"counter","event":{"by":1},"state":{"count":2,"latest_id":"a1"},"type":"decrement"}`,
		string(msgs[3].Data))
}

func TestRun_Metrics(t *testing.T) {
	out, err := execute(t, "run", "--metrics", "testdata/scenarios/counter.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, `reactor_events_applied_total{core="counter"} 4`)
	assert.Contains(t, out, `reactor_commands_pending{core="counter"} 0`)
}

func TestRun_FailedExpectation(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "wrong.yaml", `
name: wrong
description: expects the wrong count
steps:
  - fire: increment
expect:
  state:
    count: 5
`)

	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "state: expected")
}

func TestRun_MissingScenario(t *testing.T) {
	_, err := execute(t, "run", "testdata/scenarios/missing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRun_InvalidEnvironment(t *testing.T) {
	t.Setenv("REACTOR_LOG_LEVEL", "loud")

	_, err := execute(t, "run", "testdata/scenarios/counter.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRun_EnvironmentDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("REACTOR_DB", dbPath)

	out, err := execute(t, "run", "testdata/scenarios/counter.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, dbPath)
}

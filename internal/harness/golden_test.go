package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"counter", "threshold", "expiry"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, load(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_CanonicalKeyOrder(t *testing.T) {
	data, err := Snapshot("s", []TraceEntry{{Seq: 1, Kind: KindCommand, Command: "c", Version: 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"scenario":"s","trace":[{"command":"c","kind":"command","seq":1,"version":2}]}`, string(data))
}

func TestSnapshot_EmptyTrace(t *testing.T) {
	data, err := Snapshot("empty", []TraceEntry{})
	require.NoError(t, err)
	assert.Equal(t, `{"scenario":"empty","trace":[]}`, string(data))
}

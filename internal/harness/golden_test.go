package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace with testdata/golden/<name>.golden.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			sc, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalTrace_Canonical(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Step: 0, Seq: 1, Caller: "alice", Command: "cancel_trade_loop", Outcome: "ok"})

	data, err := MarshalTrace("tiny", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"tiny","trace":[{"caller":"alice","command":"cancel_trade_loop","outcome":"ok","seq":1,"step":0}]}`,
		string(data))
}

func TestMarshalTrace_EmptyTrace(t *testing.T) {
	data, err := MarshalTrace("nothing", NewResult())
	require.NoError(t, err)
	assert.Equal(t, `{"scenario_name":"nothing","trace":[]}`, string(data))
}

func TestAssertGolden_FromResult(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/cancel_before_approval.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, sc.Name, result))
}

package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithAssertions(t *testing.T, assertions ...Assertion) *Result {
	t.Helper()
	sc := twoPartyScenario()
	sc.Assertions = assertions
	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	return result
}

func TestAssertions_Pass(t *testing.T) {
	result := runWithAssertions(t,
		Assertion{Type: AssertStepStatus, Step: intPtr(0), Status: "executed"},
		Assertion{Type: AssertStepStatus, Step: intPtr(1), Status: "executed"},
		Assertion{Type: AssertBalance, Asset: "alice_nft", Holder: "bob"},
		Assertion{Type: AssertBalance, Asset: "alice_nft", Holder: "alice", Balance: uint64Ptr(0)},
		Assertion{Type: AssertLoopExists, Exists: boolPtr(true)},
		Assertion{Type: AssertLoopExists, Loop: "elsewhere", Exists: boolPtr(false)},
		Assertion{Type: AssertJournalCount, Count: intPtr(6)},
		Assertion{Type: AssertJournalCount, Outcome: "ok", Count: intPtr(6)},
		Assertion{Type: AssertJournalCount, Outcome: "CancellationDenied", Count: intPtr(0)},
	)
	assert.True(t, result.Pass, result.Errors)
}

func TestAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      []string
	}{
		{
			name:      "wrong status",
			assertion: Assertion{Type: AssertStepStatus, Step: intPtr(0), Status: "approved"},
			want:      []string{"Expected: loop pair step 0 approved", "Actual: executed"},
		},
		{
			name:      "step out of range",
			assertion: Assertion{Type: AssertStepStatus, Step: intPtr(5), Status: "created"},
			want:      []string{"Actual: loop has 2 steps"},
		},
		{
			name:      "status of missing loop",
			assertion: Assertion{Type: AssertStepStatus, Loop: "nowhere", Step: intPtr(0), Status: "created"},
			want:      []string{"does not exist"},
		},
		{
			name:      "wrong balance",
			assertion: Assertion{Type: AssertBalance, Asset: "alice_nft", Holder: "alice"},
			want:      []string{"Expected: alice holds 1 of alice_nft", "Actual: 0"},
		},
		{
			name:      "loop unexpectedly present",
			assertion: Assertion{Type: AssertLoopExists, Exists: boolPtr(false)},
			want:      []string{"Expected: loop pair exists=false", "Actual: exists=true"},
		},
		{
			name:      "journal count",
			assertion: Assertion{Type: AssertJournalCount, Outcome: "ok", Count: intPtr(2)},
			want:      []string{"Expected: 2 journal entries with outcome ok", "Actual: 6"},
		},
		{
			name:      "journal count of any outcome",
			assertion: Assertion{Type: AssertJournalCount, Count: intPtr(0)},
			want:      []string{"with outcome any"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runWithAssertions(t, tt.assertion)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], "assertion 0:")
			for _, w := range tt.want {
				assert.Contains(t, result.Errors[0], w)
			}
		})
	}
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := runWithAssertions(t,
		Assertion{Type: AssertLoopExists, Exists: boolPtr(true)},
		Assertion{Type: AssertBalance, Asset: "bob_nft", Holder: "bob"},
		Assertion{Type: AssertJournalCount, Count: intPtr(6)},
	)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertion 1:")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	failures := EvaluateAssertions(NewResult(), []Assertion{{Type: "vibes"}}, &AssertionContext{Ctx: context.Background()})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], `unknown assertion type "vibes"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertBalance,
		Expected: "bob holds 1 of coin",
		Actual:   "0",
		Trace: []TraceEvent{
			{Step: 0, Seq: 1, Caller: "alice", Command: "initialize_trade_loop", Outcome: "ok"},
			{Step: 1, Seq: 2, Caller: "bob", Command: "cancel_trade_loop", Outcome: "InvalidAccountOwner"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: balance")
	assert.Contains(t, msg, "Expected: bob holds 1 of coin")
	assert.Contains(t, msg, "Actual: 0")
	assert.Contains(t, msg, "[0] alice initialize_trade_loop -> ok")
	assert.Contains(t, msg, "[1] bob cancel_trade_loop -> InvalidAccountOwner")
}

package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/loopswap/internal/engine"
	"github.com/roach88/loopswap/internal/swaperr"
)

// AssertionContext gives assertions read access to the final state.
type AssertionContext struct {
	Ctx         context.Context
	Engine      *engine.Engine
	DefaultLoop string
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Step, event.Caller, event.Command, event.Outcome)
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: result.Trace}
	}

	loopName := a.Loop
	if loopName == "" {
		loopName = actx.DefaultLoop
	}

	switch a.Type {
	case AssertStepStatus:
		expected := fmt.Sprintf("loop %s step %d %s", loopName, *a.Step, a.Status)
		loop, err := actx.Engine.LoadLoop(actx.Ctx, ResolveKey(loopName))
		if err != nil {
			return fail(expected, err.Error())
		}
		if *a.Step < 0 || *a.Step >= len(loop.Steps) {
			return fail(expected, fmt.Sprintf("loop has %d steps", len(loop.Steps)))
		}
		if got := loop.Steps[*a.Step].Status.String(); got != a.Status {
			return fail(expected, got)
		}

	case AssertBalance:
		want := uint64(1)
		if a.Balance != nil {
			want = *a.Balance
		}
		got, err := actx.Engine.Balance(actx.Ctx, ResolveKey(a.Asset), ResolveKey(a.Holder))
		if err != nil {
			return err
		}
		if got != want {
			return fail(fmt.Sprintf("%s holds %d of %s", a.Holder, want, a.Asset), fmt.Sprintf("%d", got))
		}

	case AssertLoopExists:
		_, err := actx.Engine.LoadLoop(actx.Ctx, ResolveKey(loopName))
		exists := err == nil
		if err != nil && !swaperr.Is(err, swaperr.CodeUninitializedAccount) {
			return err
		}
		if exists != *a.Exists {
			return fail(fmt.Sprintf("loop %s exists=%t", loopName, *a.Exists), fmt.Sprintf("exists=%t", exists))
		}

	case AssertJournalCount:
		entries, err := actx.Engine.Journal(actx.Ctx, 0)
		if err != nil {
			return err
		}
		n := 0
		for _, e := range entries {
			if a.Outcome == "" || e.Outcome == a.Outcome {
				n++
			}
		}
		if n != *a.Count {
			label := a.Outcome
			if label == "" {
				label = "any"
			}
			return fail(fmt.Sprintf("%d journal entries with outcome %s", *a.Count, label), fmt.Sprintf("%d", n))
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

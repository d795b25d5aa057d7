package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/loopswap/internal/assets"
	"github.com/roach88/loopswap/internal/engine"
	"github.com/roach88/loopswap/internal/instruction"
	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/logging"
	"github.com/roach88/loopswap/internal/swaperr"
	"github.com/roach88/loopswap/internal/testutil"
)

// DefaultClock is the start time of scenarios that do not set one.
const DefaultClock = 1_700_000_000

// keyArgs are the command fields whose values are names.
var keyArgs = map[string]bool{
	"trade_id":       true,
	"to":             true,
	"governance":     true,
	"new_authority":  true,
	"new_governance": true,
}

// Harness executes one scenario against a private engine.
type Harness struct {
	store  *ledger.Store
	engine *engine.Engine
	clock  *testutil.ManualClock
	logger *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger routes engine logs to l. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
// 1. Create fresh in-memory database and engine
// 2. Mint the scenario's assets
// 3. Process steps, comparing each outcome with its expectation
// 4. Evaluate assertions against the final state
//
// The returned error reports a broken scenario or infrastructure failure;
// unmet expectations are recorded in the Result instead.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := ledger.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	start := scenario.Clock
	if start == 0 {
		start = DefaultClock
	}
	h := &Harness{
		store:  st,
		clock:  testutil.NewManualClock(start),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}

	mode := assets.ModeStandard
	if scenario.Verification != "" {
		if mode, err = assets.ParseMode(scenario.Verification); err != nil {
			return nil, err
		}
	}

	h.engine, err = engine.New(ctx, st,
		engine.WithClock(h.clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs("")),
		engine.WithVerification(mode),
		engine.WithLogger(h.logger),
	)
	if err != nil {
		return nil, err
	}

	if err := h.mintAssets(ctx, scenario.Assets); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, scenario.Loop, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	actx := &AssertionContext{Ctx: ctx, Engine: h.engine, DefaultLoop: scenario.Loop}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) mintAssets(ctx context.Context, setup []AssetSetup) error {
	for i, a := range setup {
		asset := assets.Asset{Decimals: a.Decimals, Supply: a.Supply, Name: a.Label}
		if asset.Supply == 0 {
			asset.Supply = 1
		}
		if asset.Name == "" {
			asset.Name = a.Name
		}
		if err := h.engine.Mint(ctx, ResolveKey(a.Name), ResolveKey(a.Holder), asset); err != nil {
			return fmt.Errorf("assets[%d] %s: %w", i, a.Name, err)
		}
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, index int, step Step, defaultLoop string, result *Result) error {
	if step.Advance > 0 {
		h.clock.Advance(step.Advance)
	}

	loopName := step.Loop
	if loopName == "" {
		loopName = defaultLoop
	}
	data, err := EncodeStep(step, loopName)
	if err != nil {
		return err
	}

	inv := engine.Invocation{Caller: ResolveKey(step.Caller), Data: data}
	if loopName != "" {
		inv.Loop = ResolveKey(loopName)
	}
	for _, a := range step.Accounts {
		inv.Accounts = append(inv.Accounts, ResolveKey(a))
	}

	res, perr := h.engine.Process(ctx, inv)
	outcome := ledger.OutcomeOK
	if perr != nil {
		if !engine.IsRejection(perr) {
			return perr
		}
		outcome = string(swaperr.CodeOf(perr))
	}

	result.AddTrace(TraceEvent{
		Step:    index,
		Seq:     res.Seq,
		Caller:  step.Caller,
		Command: step.Command,
		Outcome: outcome,
	})

	want := step.ExpectError
	if want == "" {
		want = ledger.OutcomeOK
	}
	if outcome != want {
		msg := fmt.Sprintf("step %d (%s by %s): expected %s, got %s", index, step.Command, step.Caller, want, outcome)
		if perr != nil {
			msg += ": " + perr.Error()
		}
		result.AddError(msg)
	}
	return nil
}

// ResolveKey maps a scenario name to a key. 64-character hex strings are
// taken literally.
func ResolveKey(name string) ir.Key {
	if k, err := ir.ParseKey(name); err == nil {
		return k
	}
	return testutil.Key(name)
}

// EncodeStep builds the instruction bytes of step, resolving names in its
// args. The command is always assembled as a versioned envelope, so args
// are checked by the envelope schema; legacy steps are then re-encoded.
func EncodeStep(step Step, loopName string) ([]byte, error) {
	cmd := map[string]any{"type": step.Command}
	for field, v := range step.Args {
		resolved, err := resolveArg(field, v)
		if err != nil {
			return nil, err
		}
		cmd[field] = resolved
	}
	if step.Command == instruction.TagInitializeTradeLoop.String() {
		if _, ok := cmd["trade_id"]; !ok && loopName != "" {
			cmd["trade_id"] = ResolveKey(loopName).String()
		}
	}

	payload, err := ir.MarshalCanonical(map[string]any{
		"version": instruction.WireVersion1,
		"command": cmd,
	})
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	data := append([]byte{instruction.VersionedMarker, instruction.WireVersion1}, payload...)

	if step.Format != FormatLegacy {
		return data, nil
	}
	decoded, err := instruction.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("legacy step args: %w", err)
	}
	return instruction.PackLegacy(decoded)
}

func resolveArg(field string, v any) (any, error) {
	if keyArgs[field] {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("arg %s: want a name, got %T", field, v)
		}
		return ResolveKey(name).String(), nil
	}
	if field == "assets" {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("arg assets: want a list, got %T", v)
		}
		out := make([]any, len(list))
		for i, item := range list {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("arg assets[%d]: want a name, got %T", i, item)
			}
			out[i] = ResolveKey(name).String()
		}
		return out, nil
	}
	return v, nil
}

package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/loopswap/internal/assets"
	"github.com/roach88/loopswap/internal/instruction"
	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/state"
	"github.com/roach88/loopswap/internal/testutil"
)

const startTime = 1_700_000_000

var (
	alice = testutil.Key("alice")
	bob   = testutil.Key("bob")
	carol = testutil.Key("carol")
	dave  = testutil.Key("dave")
	erin  = testutil.Key("erin")
	mal   = testutil.Key("mallory")
	admin = testutil.Key("admin")
)

// testEnv wires an engine to a temp sqlite store and a manual clock.
type testEnv struct {
	t      *testing.T
	ctx    context.Context
	store  *ledger.Store
	clock  *testutil.ManualClock
	engine *Engine
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	s, err := ledger.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewManualClock(startTime)
	base := []Option{
		WithClock(clock),
		WithIDGenerator(testutil.NewSequentialIDs("")),
		WithLogger(quietLogger()),
	}
	e, err := New(context.Background(), s, append(base, opts...)...)
	require.NoError(t, err)

	return &testEnv{t: t, ctx: context.Background(), store: s, clock: clock, engine: e}
}

// do packs cmd in the versioned format and processes it.
func (env *testEnv) do(caller, loop ir.Key, cmd instruction.Command, accounts ...ir.Key) error {
	env.t.Helper()
	data, err := instruction.Pack(cmd)
	require.NoError(env.t, err)
	_, err = env.engine.Process(env.ctx, Invocation{Caller: caller, Loop: loop, Accounts: accounts, Data: data})
	return err
}

// doLegacy packs cmd in the legacy format and processes it.
func (env *testEnv) doLegacy(caller, loop ir.Key, cmd instruction.Command, accounts ...ir.Key) error {
	env.t.Helper()
	data, err := instruction.PackLegacy(cmd)
	require.NoError(env.t, err)
	_, err = env.engine.Process(env.ctx, Invocation{Caller: caller, Loop: loop, Accounts: accounts, Data: data})
	return err
}

func (env *testEnv) mint(asset, holder ir.Key) {
	env.t.Helper()
	require.NoError(env.t, env.engine.Mint(env.ctx, asset, holder, assets.NewUnique("test asset")))
}

func (env *testEnv) loop(id ir.Key) *state.TradeLoop {
	env.t.Helper()
	l, err := env.engine.LoadLoop(env.ctx, id)
	require.NoError(env.t, err)
	return l
}

func (env *testEnv) loopExists(id ir.Key) bool {
	env.t.Helper()
	_, ok, err := env.store.Load(env.ctx, ledger.LoopAddress(id))
	require.NoError(env.t, err)
	return ok
}

func (env *testEnv) rawLoop(id ir.Key) []byte {
	env.t.Helper()
	rec, ok, err := env.store.Load(env.ctx, ledger.LoopAddress(id))
	require.NoError(env.t, err)
	require.True(env.t, ok)
	return rec.Data
}

func (env *testEnv) balance(asset, holder ir.Key) uint64 {
	env.t.Helper()
	n, err := env.engine.Balance(env.ctx, asset, holder)
	require.NoError(env.t, err)
	return n
}

func (env *testEnv) statuses(id ir.Key) []state.StepStatus {
	env.t.Helper()
	var out []state.StepStatus
	for _, s := range env.loop(id).Steps {
		out = append(out, s.Status)
	}
	return out
}

func assetOf(p ir.Key) ir.Key {
	return ir.Key(ir.HashWithDomain("engine-test/asset", p[:]))
}

// buildRing initializes loop id with one step per party, party i giving
// assetOf(party i) to party i+1. Every asset is minted first.
func (env *testEnv) buildRing(id ir.Key, parties ...ir.Key) {
	env.t.Helper()
	require.NoError(env.t, env.do(parties[0], id, instruction.InitializeTradeLoop{
		TradeID: id, StepCount: uint8(len(parties)), TimeoutSeconds: 86400,
	}))
	for i, p := range parties {
		env.mint(assetOf(p), p)
		require.NoError(env.t, env.do(p, id, instruction.AddTradeStep{
			StepIndex: uint8(i),
			To:        parties[(i+1)%len(parties)],
			Assets:    []ir.Key{assetOf(p)},
		}))
	}
}

func (env *testEnv) approveAll(id ir.Key, parties ...ir.Key) {
	env.t.Helper()
	for i, p := range parties {
		require.NoError(env.t, env.do(p, id, instruction.ApproveTradeStep{StepIndex: uint8(i)}))
	}
}

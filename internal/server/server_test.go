package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/roach88/loopswap/internal/assets"
	"github.com/roach88/loopswap/internal/engine"
	"github.com/roach88/loopswap/internal/instruction"
	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/logging"
	"github.com/roach88/loopswap/internal/swaperr"
	"github.com/roach88/loopswap/internal/testutil"
)

type testServer struct {
	engine *engine.Engine
	client *Client
	raw    LedgerClient
}

func startServer(t *testing.T) *testServer {
	t.Helper()

	st, err := ledger.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	eng, err := engine.New(context.Background(), st,
		engine.WithClock(testutil.NewManualClock(1_700_000_000)),
		engine.WithIDGenerator(testutil.NewSequentialIDs("")),
		engine.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(runCtx)
	}()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterLedgerServer(srv, &Server{Engine: eng, Logger: logging.Discard()})
	go func() {
		_ = srv.Serve(lis)
	}()

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	client, err := Dial("passthrough:///bufnet", DialOptions{
		Timeout: 5 * time.Second,
		Extra:   []grpc.DialOption{grpc.WithContextDialer(dialer)},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		srv.Stop()
		cancel()
		<-done
	})
	return &testServer{engine: eng, client: client, raw: client.client}
}

func (ts *testServer) submit(t *testing.T, caller, loop ir.Key, cmd instruction.Command, accounts ...ir.Key) (string, error) {
	t.Helper()
	data, err := instruction.Pack(cmd)
	require.NoError(t, err)
	return ts.client.Submit(context.Background(), engine.Invocation{Caller: caller, Loop: loop, Accounts: accounts, Data: data})
}

func TestServer_SubmitAndRead(t *testing.T) {
	ts := startServer(t)
	ctx := context.Background()
	alice, bob := testutil.Key("alice"), testutil.Key("bob")
	a1, b1 := testutil.Key("a1"), testutil.Key("b1")
	id := testutil.Key("loop")

	require.NoError(t, ts.engine.Mint(ctx, a1, alice, assets.NewUnique("a1")))
	require.NoError(t, ts.engine.Mint(ctx, b1, bob, assets.NewUnique("b1")))

	invID, err := ts.submit(t, alice, id, instruction.InitializeTradeLoop{TradeID: id, StepCount: 2, TimeoutSeconds: 600})
	require.NoError(t, err)
	assert.Equal(t, "inv-0001", invID)

	_, err = ts.submit(t, alice, id, instruction.AddTradeStep{StepIndex: 0, To: bob, Assets: []ir.Key{a1}})
	require.NoError(t, err)
	_, err = ts.submit(t, bob, id, instruction.AddTradeStep{StepIndex: 1, To: alice, Assets: []ir.Key{b1}})
	require.NoError(t, err)
	_, err = ts.submit(t, alice, id, instruction.ApproveTradeStep{StepIndex: 0})
	require.NoError(t, err)
	_, err = ts.submit(t, bob, id, instruction.ApproveTradeStep{StepIndex: 1})
	require.NoError(t, err)
	_, err = ts.submit(t, alice, id, instruction.ExecuteFullTradeLoop{})
	require.NoError(t, err)

	view, err := ts.client.GetLoop(ctx, id)
	require.NoError(t, err)
	var loop map[string]any
	require.NoError(t, json.Unmarshal(view, &loop))
	assert.Equal(t, id.String(), loop["id"])
	steps := loop["steps"].([]any)
	require.Len(t, steps, 2)
	assert.Equal(t, "executed", steps[0].(map[string]any)["status"])

	entries, err := ts.client.GetJournal(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "execute_full_trade_loop", entries[1]["command"])
	assert.Equal(t, ledger.OutcomeOK, entries[1]["outcome"])
}

func TestServer_DomainErrorsCrossTheWire(t *testing.T) {
	ts := startServer(t)
	alice, mal := testutil.Key("alice"), testutil.Key("mallory")
	id := testutil.Key("loop")

	_, err := ts.submit(t, alice, id, instruction.InitializeTradeLoop{TradeID: id, StepCount: 2, TimeoutSeconds: 600})
	require.NoError(t, err)

	_, err = ts.submit(t, mal, id, instruction.CancelTradeLoop{})
	require.Error(t, err)
	assert.Equal(t, swaperr.CodeInvalidAccountOwner, swaperr.CodeOf(err))

	_, err = ts.submit(t, alice, id, instruction.InitializeTradeLoop{TradeID: id, StepCount: 2, TimeoutSeconds: 600})
	assert.Equal(t, swaperr.CodeInvalidAccountData, swaperr.CodeOf(err))

	_, err = ts.client.GetLoop(context.Background(), testutil.Key("missing"))
	assert.Equal(t, swaperr.CodeUninitializedAccount, swaperr.CodeOf(err))
}

func TestServer_StatusCodes(t *testing.T) {
	ts := startServer(t)
	ctx := context.Background()

	_, err := ts.raw.Submit(ctx, wrapperspb.Bytes([]byte{1, 2, 3}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	frame, err := EncodeFrame(engine.Invocation{Caller: testutil.Key("alice"), Data: []byte{42}})
	require.NoError(t, err)
	_, err = ts.raw.Submit(ctx, wrapperspb.Bytes(frame))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "InvalidInstructionData: ")

	_, err = ts.raw.GetLoop(ctx, wrapperspb.String("not-hex"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = ts.raw.GetLoop(ctx, wrapperspb.String(testutil.Key("missing").String()))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{swaperr.New(swaperr.CodeMissingApprovals, "x"), codes.FailedPrecondition},
		{swaperr.New(swaperr.CodeUpgradeAuthorityMismatch, "x"), codes.PermissionDenied},
		{&engine.InvocationError{InvocationID: "inv-1", Err: swaperr.New(swaperr.CodeTooManyParticipants, "x")}, codes.InvalidArgument},
		{engine.ErrStopped, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("disk full"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(mapErr(tt.err)), "%v", tt.err)
	}
	assert.NoError(t, mapErr(nil))
}

func TestMapRPC(t *testing.T) {
	err := mapRPC(status.Error(codes.FailedPrecondition, "CancellationDenied: invocation inv-7: nope"))
	assert.Equal(t, swaperr.CodeCancellationDenied, swaperr.CodeOf(err))
	assert.Equal(t, "CancellationDenied: invocation inv-7: nope", err.Error())

	plain := status.Error(codes.Unavailable, "engine stopped")
	assert.Equal(t, plain, mapRPC(plain))

	other := errors.New("not a status")
	assert.Equal(t, other, mapRPC(other))
}

// journalEngine records the limit GetJournal passes through.
type journalEngine struct {
	Engine
	limits []int
}

func (e *journalEngine) Journal(_ context.Context, limit int) ([]ledger.Invocation, error) {
	e.limits = append(e.limits, limit)
	return nil, nil
}

func TestServer_GetJournalClampsLimit(t *testing.T) {
	eng := &journalEngine{}
	s := &Server{Engine: eng, Logger: logging.Discard()}

	for _, n := range []int64{0, -5, 7, MaxJournalEntries, MaxJournalEntries + 1, 1 << 40} {
		reply, err := s.GetJournal(context.Background(), wrapperspb.Int64(n))
		require.NoError(t, err)
		assert.Equal(t, "[]", reply.GetValue())
	}
	assert.Equal(t, []int{
		MaxJournalEntries, MaxJournalEntries, 7,
		MaxJournalEntries, MaxJournalEntries, MaxJournalEntries,
	}, eng.limits)
}

func TestServer_MissingEngine(t *testing.T) {
	s := &Server{}
	_, err := s.Submit(context.Background(), wrapperspb.Bytes(nil))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/roach88/loopswap/internal/engine"
	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/state"
)

// Engine is what the server needs from an engine. *engine.Engine
// implements it; Submit requires the engine's Run loop to be running.
type Engine interface {
	Submit(ctx context.Context, inv engine.Invocation) (engine.Result, error)
	LoadLoop(ctx context.Context, id ir.Key) (*state.TradeLoop, error)
	Journal(ctx context.Context, limit int) ([]ledger.Invocation, error)
}

// Server exposes an Engine over the Ledger gRPC service.
type Server struct {
	UnimplementedLedgerServer
	Engine Engine
	Logger *slog.Logger
}

var _ LedgerServer = (*Server)(nil)

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) Submit(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Engine == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing engine")
	}
	inv, err := DecodeFrame(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.Engine.Submit(ctx, inv)
	if err != nil {
		s.logger().Debug("submission rejected", "caller", inv.Caller.Short(), "error", err)
		return nil, mapErr(err)
	}
	return wrapperspb.String(res.ID), nil
}

func (s *Server) GetLoop(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Engine == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing engine")
	}
	id, err := ir.ParseKey(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	loop, err := s.Engine.LoadLoop(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	out, err := ir.MarshalCanonical(loop.Describe())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.String(string(out)), nil
}

// MaxJournalEntries caps one GetJournal reply. Zero, negative and larger
// limits are served as MaxJournalEntries.
const MaxJournalEntries = 1000

func journalLimit(n int64) int {
	if n <= 0 || n > MaxJournalEntries {
		return MaxJournalEntries
	}
	return int(n)
}

func (s *Server) GetJournal(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.StringValue, error) {
	if s == nil || s.Engine == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing engine")
	}
	entries, err := s.Engine.Journal(ctx, journalLimit(in.GetValue()))
	if err != nil {
		return nil, mapErr(err)
	}
	views := make([]any, len(entries))
	for i, e := range entries {
		views[i] = e.Describe()
	}
	out, err := ir.MarshalCanonical(views)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.String(string(out)), nil
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/loopswap/internal/assets"
	"github.com/roach88/loopswap/internal/instruction"
	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/swaperr"
)

// Invocation is one submitted instruction with the identities it acts for.
type Invocation struct {
	// Caller is the authenticated submitting party.
	Caller ir.Key

	// Loop is the trade id of the loop the instruction targets. Config
	// commands ignore it; InitializeTradeLoop may leave it zero.
	Loop ir.Key

	// Accounts lists extra participants. ExecuteTradeStep expects the
	// step's sender and recipient, in that order.
	Accounts []ir.Key

	// Data is the encoded instruction, legacy or versioned.
	Data []byte
}

// Result describes a processed invocation.
type Result struct {
	ID      string
	Seq     int64
	Time    uint64
	Command instruction.Command
}

// AssetsFactory builds the asset service for one invocation over its
// record batch.
type AssetsFactory func(records ledger.Records) assets.Service

// Engine is the single-writer invocation processor.
type Engine struct {
	store   *ledger.Store
	clock   Clock
	seq     *Sequencer
	ids     IDGenerator
	mode    assets.Mode
	assets  AssetsFactory
	logger  *slog.Logger
	version string

	mu    sync.Mutex // serializes Process
	queue *requestQueue
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the invocation id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithVerification sets the asset verification mode of the default
// registry. Default: assets.ModeStandard.
func WithVerification(m assets.Mode) Option {
	return func(e *Engine) {
		e.mode = m
	}
}

// WithAssets replaces the asset service. The factory is called once per
// invocation with that invocation's record batch.
func WithAssets(f AssetsFactory) Option {
	return func(e *Engine) {
		e.assets = f
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over s. The sequencer resumes after the highest
// journaled seq.
func New(ctx context.Context, s *ledger.Store, opts ...Option) (*Engine, error) {
	last, err := s.MaxSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	e := &Engine{
		store:   s,
		clock:   SystemClock{},
		seq:     NewSequencerAt(last),
		ids:     UUIDv7Generator{},
		mode:    assets.ModeStandard,
		logger:  slog.Default(),
		version: ir.EngineVersion,
		queue:   newRequestQueue(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.assets == nil {
		mode := e.mode
		e.assets = func(records ledger.Records) assets.Service {
			return assets.NewRegistry(records, mode)
		}
	}

	return e, nil
}

// Store returns the underlying ledger store.
func (e *Engine) Store() *ledger.Store {
	return e.store
}

// Process runs one invocation to completion. Either every effect of the
// invocation is committed or none is. The outcome is journaled in both cases.
func (e *Engine) Process(ctx context.Context, inv Invocation) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := Result{
		ID:   e.ids.Generate(),
		Seq:  e.seq.Next(),
		Time: e.clock.Now(),
	}

	cmd, err := instruction.Unpack(inv.Data)
	if err == nil {
		res.Command = cmd
		err = e.execute(ctx, inv, cmd, res)
	}

	e.record(ctx, inv, res, err)

	if err != nil {
		ie := &InvocationError{InvocationID: res.ID, Err: err}
		if cmd != nil {
			ie.Command = cmd.Tag().String()
		}
		return res, ie
	}
	return res, nil
}

// execute runs cmd against a fresh batch and commits it on success.
func (e *Engine) execute(ctx context.Context, inv Invocation, cmd instruction.Command, res Result) error {
	batch := e.store.NewBatch()
	defer batch.Discard()

	h := &handler{
		ctx:     ctx,
		inv:     inv,
		records: batch,
		assets:  e.assets(batch),
		now:     res.Time,
		logger:  e.logger.With("invocation_id", res.ID),
	}
	if err := h.dispatch(cmd); err != nil {
		return err
	}
	return batch.Commit(ctx, res.Seq)
}

// record journals the outcome. Journal failures are logged, not returned:
// the record batch has already been committed or discarded.
func (e *Engine) record(ctx context.Context, inv Invocation, res Result, err error) {
	entry := ledger.Invocation{
		ID:            res.ID,
		Seq:           res.Seq,
		Caller:        inv.Caller.String(),
		Loop:          inv.Loop.String(),
		Outcome:       ledger.OutcomeOK,
		Args:          "{}",
		RecordedAt:    res.Time,
		EngineVersion: e.version,
	}
	if res.Command != nil {
		entry.Loop = targetLoop(inv, res.Command).String()
		entry.Command = res.Command.Tag().String()
		if args, merr := ir.MarshalCanonical(instruction.Describe(res.Command)); merr == nil {
			entry.Args = string(args)
		}
	}
	if err != nil {
		entry.Outcome = string(swaperr.CodeOf(err))
		entry.Message = err.Error()
	}

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "invocation processed",
		"invocation_id", res.ID,
		"seq", res.Seq,
		"caller", inv.Caller.Short(),
		"command", entry.Command,
		"outcome", entry.Outcome,
	)

	if jerr := e.store.WriteInvocation(ctx, entry); jerr != nil {
		e.logger.Error("journal write failed",
			"error", jerr,
			"invocation_id", res.ID,
			"seq", res.Seq,
		)
	}
}

// Submit queues inv for the Run loop and waits for its outcome.
// Thread-safe: may be called from any goroutine.
//
// If ctx ends while inv is still queued, inv is withdrawn and never
// processed. Once Run has taken inv, Submit waits for the real outcome so
// a committed invocation is never reported as failed.
func (e *Engine) Submit(ctx context.Context, inv Invocation) (Result, error) {
	req := &request{ctx: ctx, inv: inv, reply: make(chan outcome, 1)}
	if !e.queue.Enqueue(req) {
		return Result{}, ErrStopped
	}
	select {
	case <-ctx.Done():
		if e.queue.Remove(req) {
			return Result{}, ctx.Err()
		}
		out := <-req.reply
		return out.result, out.err
	case out := <-req.reply:
		return out.result, out.err
	}
}

// Run drains the submission queue until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: a failed invocation is reported to its submitter and the
// loop continues. There are no retries.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "seq", e.seq.Current(), "version", e.version)

	for {
		if req, ok := e.queue.TryDequeue(); ok {
			if err := req.ctx.Err(); err != nil {
				e.logger.Debug("submission abandoned before processing", "error", err)
				req.reply <- outcome{err: err}
				continue
			}
			res, err := e.Process(ctx, req.inv)
			req.reply <- outcome{result: res, err: err}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drain()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue
			if e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the submission queue, which causes Run to return once the
// queue is empty.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) drain() {
	for {
		req, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		req.reply <- outcome{err: ErrStopped}
	}
}

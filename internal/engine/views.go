package engine

import (
	"context"
	"fmt"

	"github.com/roach88/loopswap/internal/assets"
	"github.com/roach88/loopswap/internal/governance"
	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/state"
	"github.com/roach88/loopswap/internal/swaperr"
)

// LoadLoop returns the committed trade loop with the given id.
// A missing loop fails with UninitializedAccount.
func (e *Engine) LoadLoop(ctx context.Context, id ir.Key) (*state.TradeLoop, error) {
	rec, ok, err := e.store.Load(ctx, ledger.LoopAddress(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, swaperr.Newf(swaperr.CodeUninitializedAccount, "trade loop %s does not exist", id.Short())
	}
	return state.DecodeTradeLoop(rec.Data)
}

// LoadConfig returns the committed program config, if any.
func (e *Engine) LoadConfig(ctx context.Context) (*state.ProgramConfig, bool, error) {
	batch := e.store.NewBatch()
	defer batch.Discard()
	return governance.Load(ctx, batch)
}

// Balance returns how many units of asset holder has.
func (e *Engine) Balance(ctx context.Context, asset, holder ir.Key) (uint64, error) {
	batch := e.store.NewBatch()
	defer batch.Discard()
	return assets.NewRegistry(batch, e.mode).Balance(ctx, asset, holder)
}

// Mint registers an asset and credits its supply to holder. It is a setup
// operation outside the instruction set and is not journaled.
func (e *Engine) Mint(ctx context.Context, asset, holder ir.Key, a assets.Asset) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch := e.store.NewBatch()
	defer batch.Discard()
	if err := assets.NewRegistry(batch, e.mode).Mint(ctx, asset, holder, a); err != nil {
		return err
	}
	if err := batch.Commit(ctx, e.seq.Current()); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	e.logger.Info("asset minted", "asset", asset.Short(), "holder", holder.Short(), "supply", a.Supply)
	return nil
}

// Journal returns the last limit journal entries (all if limit <= 0).
func (e *Engine) Journal(ctx context.Context, limit int) ([]ledger.Invocation, error) {
	return e.store.ReadInvocations(ctx, limit)
}

package assets

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/swaperr"
)

// Registry is the ledger-backed Service.
type Registry struct {
	records ledger.Records
	mode    Mode
}

var _ Service = (*Registry)(nil)

// NewRegistry returns a registry working through records.
func NewRegistry(records ledger.Records, mode Mode) *Registry {
	return &Registry{records: records, mode: mode}
}

// Mode returns the verification mode.
func (r *Registry) Mode() Mode {
	return r.mode
}

// Mint registers asset and credits its whole supply to holder.
func (r *Registry) Mint(ctx context.Context, asset, holder ir.Key, a Asset) error {
	if a.Supply == 0 {
		return swaperr.New(swaperr.CodeInvalidInstructionData, "cannot mint zero supply")
	}
	a.Initialized = true
	data, err := a.marshal()
	if err != nil {
		return err
	}
	addr := ledger.AssetAddress(asset)
	if err := r.records.Create(ctx, addr, AssetSpace); err != nil {
		return fmt.Errorf("mint %s: %w", asset.Short(), err)
	}
	if err := r.records.Write(ctx, addr, data); err != nil {
		return fmt.Errorf("mint %s: %w", asset.Short(), err)
	}
	return r.credit(ctx, asset, holder, a.Supply)
}

// Lookup returns the asset record.
func (r *Registry) Lookup(ctx context.Context, asset ir.Key) (*Asset, bool, error) {
	data, ok, err := r.records.Load(ctx, ledger.AssetAddress(asset))
	if err != nil || !ok {
		return nil, false, err
	}
	a, err := unmarshalAsset(data)
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// Balance returns how many units of asset holder has.
func (r *Registry) Balance(ctx context.Context, asset, holder ir.Key) (uint64, error) {
	data, ok, err := r.records.Load(ctx, ledger.HoldingAddress(asset, holder))
	if err != nil || !ok {
		return 0, err
	}
	if len(data) < HoldingSpace {
		return 0, swaperr.Newf(swaperr.CodeInvalidAccountData, "holding record for %s is corrupt", asset.Short())
	}
	return binary.LittleEndian.Uint64(data), nil
}

// VerifyGenuineUnit implements Service.
func (r *Registry) VerifyGenuineUnit(ctx context.Context, asset ir.Key) error {
	a, ok, err := r.Lookup(ctx, asset)
	if err != nil {
		return err
	}
	if !ok {
		return swaperr.Newf(swaperr.CodeInvalidMetadataAccount, "asset %s is not registered", asset.Short())
	}
	if !a.Initialized {
		return swaperr.Newf(swaperr.CodeInvalidMetadataAccount, "asset %s is not initialized", asset.Short())
	}
	if a.Decimals != 0 {
		return swaperr.Newf(swaperr.CodeInvalidMetadataAccount,
			"asset %s has %d decimals, want 0", asset.Short(), a.Decimals)
	}
	if r.mode >= ModeStandard && a.Supply != 1 {
		return swaperr.Newf(swaperr.CodeInvalidMetadataAccount,
			"asset %s has supply %d, want 1", asset.Short(), a.Supply)
	}
	if r.mode >= ModeStrict && a.Name == "" {
		return swaperr.Newf(swaperr.CodeInvalidMetadataAccount, "asset %s has no metadata name", asset.Short())
	}
	return nil
}

// VerifyHolder implements Service.
func (r *Registry) VerifyHolder(ctx context.Context, asset, holder ir.Key) error {
	balance, err := r.Balance(ctx, asset, holder)
	if err != nil {
		return err
	}
	if balance < 1 {
		return swaperr.Newf(swaperr.CodeInsufficientFunds,
			"%s does not hold asset %s", holder.Short(), asset.Short())
	}
	return nil
}

// Transfer implements Service.
func (r *Registry) Transfer(ctx context.Context, asset, from, to ir.Key) error {
	if err := r.VerifyHolder(ctx, asset, from); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if err := r.debit(ctx, asset, from, 1); err != nil {
		return err
	}
	return r.credit(ctx, asset, to, 1)
}

func (r *Registry) debit(ctx context.Context, asset, holder ir.Key, n uint64) error {
	balance, err := r.Balance(ctx, asset, holder)
	if err != nil {
		return err
	}
	if balance < n {
		return swaperr.Newf(swaperr.CodeInsufficientFunds,
			"%s holds %d of asset %s, needs %d", holder.Short(), balance, asset.Short(), n)
	}
	return r.writeBalance(ctx, ledger.HoldingAddress(asset, holder), balance-n)
}

func (r *Registry) credit(ctx context.Context, asset, holder ir.Key, n uint64) error {
	addr := ledger.HoldingAddress(asset, holder)
	_, exists, err := r.records.Load(ctx, addr)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.records.Create(ctx, addr, HoldingSpace); err != nil {
			return err
		}
	}
	balance, err := r.Balance(ctx, asset, holder)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-n {
		return swaperr.Newf(swaperr.CodeInvalidAccountData, "balance of asset %s overflows", asset.Short())
	}
	return r.writeBalance(ctx, addr, balance+n)
}

func (r *Registry) writeBalance(ctx context.Context, addr ledger.Address, balance uint64) error {
	return r.records.Write(ctx, addr, binary.LittleEndian.AppendUint64(nil, balance))
}

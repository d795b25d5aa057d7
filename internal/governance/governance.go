// Package governance owns the program config singleton: the pause gate
// consulted before participant operations, and the authority-checked
// initialize, update and upgrade operations.
package governance

import (
	"context"
	"fmt"

	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/state"
	"github.com/roach88/loopswap/internal/swaperr"
)

// Changes is a partial config update. Nil fields are left alone.
type Changes struct {
	Authority  *ir.Key
	Governance *ir.Key
	Paused     *bool
}

// Load reads the config record. Corrupt data fails with InvalidAccountData.
func Load(ctx context.Context, records ledger.Records) (*state.ProgramConfig, bool, error) {
	data, ok, err := records.Load(ctx, ledger.ConfigAddress())
	if err != nil || !ok {
		return nil, false, err
	}
	cfg, err := state.DecodeProgramConfig(data)
	if err != nil {
		return nil, false, fmt.Errorf("program config: %w", err)
	}
	return cfg, true, nil
}

// CheckNotPaused fails when a valid config says the program is paused. A
// missing config counts as not paused; an unreadable one fails closed.
func CheckNotPaused(ctx context.Context, records ledger.Records) error {
	cfg, ok, err := Load(ctx, records)
	if err != nil {
		return err
	}
	if ok && cfg.Initialized && cfg.Paused {
		return swaperr.New(swaperr.CodeInvalidInstructionData, "program is paused")
	}
	return nil
}

// Initialize creates the config with caller as upgrade authority.
func Initialize(ctx context.Context, records ledger.Records, caller ir.Key, governance *ir.Key) (*state.ProgramConfig, error) {
	addr := ledger.ConfigAddress()
	if _, exists, err := records.Load(ctx, addr); err != nil {
		return nil, err
	} else if exists {
		return nil, swaperr.New(swaperr.CodeInvalidAccountData, "program config already exists")
	}
	cfg := &state.ProgramConfig{
		Initialized:      true,
		Version:          state.ProgramVersion,
		UpgradeAuthority: caller,
		Governance:       governance,
	}
	if err := records.Create(ctx, addr, state.ConfigSpace); err != nil {
		return nil, err
	}
	if err := store(ctx, records, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Update applies changes if caller is the upgrade authority or governance.
func Update(ctx context.Context, records ledger.Records, caller ir.Key, changes Changes) (*state.ProgramConfig, error) {
	cfg, err := authorized(ctx, records, caller)
	if err != nil {
		return nil, err
	}
	if changes.Authority != nil {
		cfg.UpgradeAuthority = *changes.Authority
	}
	if changes.Governance != nil {
		gov := *changes.Governance
		cfg.Governance = &gov
	}
	if changes.Paused != nil {
		cfg.Paused = *changes.Paused
	}
	if err := store(ctx, records, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Upgrade records newVersion, which must exceed the current version.
func Upgrade(ctx context.Context, records ledger.Records, caller ir.Key, newVersion uint32) (*state.ProgramConfig, error) {
	cfg, err := authorized(ctx, records, caller)
	if err != nil {
		return nil, err
	}
	if newVersion <= cfg.Version {
		return nil, swaperr.Newf(swaperr.CodeInvalidProgramVersion,
			"new version %d must exceed current version %d", newVersion, cfg.Version)
	}
	cfg.Version = newVersion
	if err := store(ctx, records, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func authorized(ctx context.Context, records ledger.Records, caller ir.Key) (*state.ProgramConfig, error) {
	cfg, ok, err := Load(ctx, records)
	if err != nil {
		return nil, err
	}
	if !ok || !cfg.Initialized {
		return nil, swaperr.New(swaperr.CodeUninitializedAccount, "program config is not initialized")
	}
	if !cfg.Authorizes(caller) {
		return nil, swaperr.Newf(swaperr.CodeUpgradeAuthorityMismatch,
			"%s is neither the upgrade authority nor governance", caller.Short())
	}
	return cfg, nil
}

func store(ctx context.Context, records ledger.Records, cfg *state.ProgramConfig) error {
	data, err := cfg.MarshalBinary()
	if err != nil {
		return err
	}
	return records.Write(ctx, ledger.ConfigAddress(), data)
}

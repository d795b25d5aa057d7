package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/loopswap/internal/assets"
	"github.com/roach88/loopswap/internal/governance"
	"github.com/roach88/loopswap/internal/instruction"
	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/state"
	"github.com/roach88/loopswap/internal/swaperr"
)

// handler carries one invocation's view of the world. All writes go to
// records, which is the invocation's batch.
type handler struct {
	ctx     context.Context
	inv     Invocation
	records ledger.Records
	assets  assets.Service
	now     uint64
	logger  *slog.Logger
}

// targetLoop is the trade id an invocation addresses.
func targetLoop(inv Invocation, cmd instruction.Command) ir.Key {
	if c, ok := cmd.(instruction.InitializeTradeLoop); ok && inv.Loop.IsZero() {
		return c.TradeID
	}
	return inv.Loop
}

// participantCommand reports whether cmd is subject to the pause gate.
// Config and upgrade commands stay available so a paused program can be
// resumed.
func participantCommand(cmd instruction.Command) bool {
	return cmd.Tag() <= instruction.TagCancelTradeLoop
}

func (h *handler) dispatch(cmd instruction.Command) error {
	if participantCommand(cmd) {
		if err := governance.CheckNotPaused(h.ctx, h.records); err != nil {
			return err
		}
	}

	switch c := cmd.(type) {
	case instruction.InitializeTradeLoop:
		return h.initializeTradeLoop(c)
	case instruction.AddTradeStep:
		return h.addTradeStep(c)
	case instruction.ApproveTradeStep:
		return h.approveTradeStep(c)
	case instruction.ExecuteTradeStep:
		return h.executeTradeStep(c)
	case instruction.ExecuteFullTradeLoop:
		return h.executeFullTradeLoop()
	case instruction.CancelTradeLoop:
		return h.cancelTradeLoop()
	case instruction.UpgradeProgram:
		cfg, err := governance.Upgrade(h.ctx, h.records, h.inv.Caller, c.NewVersion)
		if err != nil {
			return err
		}
		h.logger.Info("program upgraded", "version", cfg.Version)
		return nil
	case instruction.InitializeConfig:
		cfg, err := governance.Initialize(h.ctx, h.records, h.inv.Caller, c.Governance)
		if err != nil {
			return err
		}
		h.logger.Info("program config initialized", "authority", cfg.UpgradeAuthority.Short())
		return nil
	case instruction.UpdateConfig:
		cfg, err := governance.Update(h.ctx, h.records, h.inv.Caller, governance.Changes{
			Authority:  c.NewAuthority,
			Governance: c.NewGovernance,
			Paused:     c.NewPaused,
		})
		if err != nil {
			return err
		}
		h.logger.Info("program config updated", "paused", cfg.Paused)
		return nil
	default:
		return swaperr.Newf(swaperr.CodeInvalidInstructionData, "unsupported command %T", cmd)
	}
}

func (h *handler) initializeTradeLoop(c instruction.InitializeTradeLoop) error {
	if c.TradeID.IsZero() {
		return swaperr.New(swaperr.CodeInvalidInstructionData, "trade id must not be zero")
	}
	if !h.inv.Loop.IsZero() && h.inv.Loop != c.TradeID {
		return swaperr.Newf(swaperr.CodeInvalidAccountData,
			"loop account %s does not match trade id %s", h.inv.Loop.Short(), c.TradeID.Short())
	}

	loop, err := state.NewTradeLoop(c.TradeID, c.StepCount, c.TimeoutSeconds, h.now, h.inv.Caller)
	if err != nil {
		return err
	}

	addr := ledger.LoopAddress(c.TradeID)
	if _, exists, err := h.records.Load(h.ctx, addr); err != nil {
		return err
	} else if exists {
		return swaperr.Newf(swaperr.CodeInvalidAccountData, "trade loop %s already exists", c.TradeID.Short())
	}
	if err := h.records.Create(h.ctx, addr, state.Space(int(c.StepCount), state.MaxAssetsPerStep)); err != nil {
		return err
	}
	return h.saveLoop(loop)
}

func (h *handler) addTradeStep(c instruction.AddTradeStep) error {
	loop, err := h.loadLoop()
	if err != nil {
		return err
	}
	if int(c.StepIndex) >= int(loop.Capacity) {
		return swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"step index %d out of range (capacity %d)", c.StepIndex, loop.Capacity)
	}
	if err := state.ValidateAssets(c.Assets); err != nil {
		return err
	}
	for _, asset := range c.Assets {
		if err := h.assets.VerifyGenuineUnit(h.ctx, asset); err != nil {
			return err
		}
		if err := h.assets.VerifyHolder(h.ctx, asset, h.inv.Caller); err != nil {
			return err
		}
	}

	if err := loop.PutStep(int(c.StepIndex), h.inv.Caller, c.To, c.Assets); err != nil {
		return err
	}
	if loop.IsComplete() {
		if !loop.VerifyLoop() {
			return swaperr.New(swaperr.CodeTradeLoopVerificationFailed, "steps do not form a valid cycle")
		}
		h.logger.Info("trade loop complete", "loop", loop.ID.Short(), "steps", len(loop.Steps))
	}
	return h.saveLoop(loop)
}

func (h *handler) approveTradeStep(c instruction.ApproveTradeStep) error {
	loop, err := h.loadLoop()
	if err != nil {
		return err
	}
	if loop.IsExpired(h.now) {
		return expired(loop)
	}
	step, err := loop.Step(int(c.StepIndex))
	if err != nil {
		return err
	}
	if step.From != h.inv.Caller {
		return swaperr.Newf(swaperr.CodeInvalidAccountOwner,
			"step %d belongs to %s, not %s", c.StepIndex, step.From.Short(), h.inv.Caller.Short())
	}
	switch step.Status {
	case state.StatusApproved:
		return nil
	case state.StatusExecuted:
		return swaperr.Newf(swaperr.CodeStepAlreadyExecuted, "step %d already executed", c.StepIndex)
	}

	step.Status = state.StatusApproved
	h.logger.Info("step approved; this approval cannot be revoked",
		"loop", loop.ID.Short(),
		"step", c.StepIndex,
		"sender", step.From.Short(),
	)
	return h.saveLoop(loop)
}

func (h *handler) executeTradeStep(c instruction.ExecuteTradeStep) error {
	loop, err := h.loadLoop()
	if err != nil {
		return err
	}
	if loop.IsExpired(h.now) {
		return expired(loop)
	}
	step, err := loop.Step(int(c.StepIndex))
	if err != nil {
		return err
	}
	if step.Status == state.StatusExecuted {
		return swaperr.Newf(swaperr.CodeStepAlreadyExecuted, "step %d already executed", c.StepIndex)
	}
	if step.Status != state.StatusApproved {
		return swaperr.Newf(swaperr.CodeMissingApprovals, "step %d is not approved", c.StepIndex)
	}
	if len(h.inv.Accounts) < 2 {
		return swaperr.New(swaperr.CodeInvalidInstructionData, "execute step needs sender and recipient accounts")
	}
	if h.inv.Accounts[0] != step.From || h.inv.Accounts[1] != step.To {
		return swaperr.Newf(swaperr.CodeInvalidAccountData,
			"accounts do not match step %d participants", c.StepIndex)
	}

	if err := h.settle(int(c.StepIndex), step); err != nil {
		return err
	}
	return h.saveLoop(loop)
}

func (h *handler) executeFullTradeLoop() error {
	loop, err := h.loadLoop()
	if err != nil {
		return err
	}
	if loop.IsExpired(h.now) {
		return expired(loop)
	}
	if !loop.VerifyLoop() {
		return swaperr.New(swaperr.CodeTradeLoopVerificationFailed, "steps do not form a valid cycle")
	}
	if !loop.IsComplete() {
		return swaperr.Newf(swaperr.CodeTradeLoopVerificationFailed,
			"loop has %d of %d steps", len(loop.Steps), loop.Capacity)
	}
	for i, step := range loop.Steps {
		if step.Status == state.StatusExecuted {
			return swaperr.Newf(swaperr.CodeStepAlreadyExecuted, "step %d already executed", i)
		}
	}
	if !loop.IsReadyForExecution() {
		return swaperr.New(swaperr.CodeMissingApprovals, "not every step is approved")
	}
	if len(loop.Steps) > state.MaxParticipants {
		return swaperr.Newf(swaperr.CodeTooManyParticipants,
			"loop has %d steps, maximum is %d", len(loop.Steps), state.MaxParticipants)
	}

	for i := range loop.Steps {
		if err := h.settle(i, &loop.Steps[i]); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	h.logger.Info("trade loop settled", "loop", loop.ID.Short(), "steps", len(loop.Steps))
	return h.saveLoop(loop)
}

func (h *handler) cancelTradeLoop() error {
	loop, err := h.loadLoop()
	if err != nil {
		return err
	}
	if loop.AnyCommitted() {
		return swaperr.New(swaperr.CodeCancellationDenied, "a participant has already approved")
	}
	if _, ok := loop.StepOwnedBy(h.inv.Caller); !ok {
		return swaperr.Newf(swaperr.CodeInvalidAccountOwner,
			"%s is not a participant in this trade loop", h.inv.Caller.Short())
	}
	if err := h.records.Erase(h.ctx, ledger.LoopAddress(loop.ID)); err != nil {
		return err
	}
	h.logger.Info("trade loop cancelled", "loop", loop.ID.Short(), "by", h.inv.Caller.Short())
	return nil
}

// settle re-verifies and transfers every asset of step, then marks it
// Executed.
func (h *handler) settle(index int, step *state.TradeStep) error {
	for _, asset := range step.Assets {
		if err := h.assets.VerifyGenuineUnit(h.ctx, asset); err != nil {
			return err
		}
		if err := h.assets.VerifyHolder(h.ctx, asset, step.From); err != nil {
			return err
		}
		if err := h.assets.Transfer(h.ctx, asset, step.From, step.To); err != nil {
			return err
		}
		h.logger.Debug("asset transferred",
			"step", index,
			"asset", asset.Short(),
			"from", step.From.Short(),
			"to", step.To.Short(),
		)
	}
	step.Status = state.StatusExecuted
	return nil
}

func (h *handler) loadLoop() (*state.TradeLoop, error) {
	if h.inv.Loop.IsZero() {
		return nil, swaperr.New(swaperr.CodeInvalidInstructionData, "invocation names no trade loop")
	}
	data, ok, err := h.records.Load(h.ctx, ledger.LoopAddress(h.inv.Loop))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, swaperr.Newf(swaperr.CodeUninitializedAccount, "trade loop %s does not exist", h.inv.Loop.Short())
	}
	loop, err := state.DecodeTradeLoop(data)
	if err != nil {
		return nil, fmt.Errorf("trade loop %s: %w", h.inv.Loop.Short(), err)
	}
	if !loop.Initialized {
		return nil, swaperr.Newf(swaperr.CodeUninitializedAccount, "trade loop %s is not initialized", h.inv.Loop.Short())
	}
	if loop.ID != h.inv.Loop {
		return nil, swaperr.Newf(swaperr.CodeInvalidAccountData,
			"record at %s holds trade loop %s", h.inv.Loop.Short(), loop.ID.Short())
	}
	return loop, nil
}

func (h *handler) saveLoop(loop *state.TradeLoop) error {
	data, err := loop.MarshalBinary()
	if err != nil {
		return err
	}
	return h.records.Write(h.ctx, ledger.LoopAddress(loop.ID), data)
}

func expired(loop *state.TradeLoop) error {
	return swaperr.Newf(swaperr.CodeTradeTimeoutExceeded, "trade loop %s expired at %d", loop.ID.Short(), loop.ExpiresAt)
}

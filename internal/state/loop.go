package state

import (
	"math/bits"

	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/swaperr"
)

// StepStatus is the lifecycle of one step. Values only ever increase.
type StepStatus uint8

const (
	StatusCreated StepStatus = iota
	StatusApproved
	StatusExecuted
)

var statusNames = [...]string{
	StatusCreated:  "created",
	StatusApproved: "approved",
	StatusExecuted: "executed",
}

func (s StepStatus) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// ParseStepStatus resolves a lower-case status name.
func ParseStepStatus(name string) (StepStatus, bool) {
	for i, n := range statusNames {
		if n == name {
			return StepStatus(i), true
		}
	}
	return 0, false
}

// TradeStep moves Assets from From to To.
type TradeStep struct {
	From   ir.Key
	To     ir.Key
	Assets []ir.Key
	Status StepStatus
}

// TradeLoop is one barter cycle under construction or settlement.
type TradeLoop struct {
	Initialized bool
	ID          ir.Key
	CreatedAt   uint64
	ExpiresAt   uint64
	Capacity    uint8
	Steps       []TradeStep
	Authority   ir.Key
}

// NewTradeLoop validates the construction parameters and returns an empty
// loop created at now.
func NewTradeLoop(id ir.Key, stepCount uint8, timeoutSeconds, now uint64, authority ir.Key) (*TradeLoop, error) {
	if stepCount == 0 {
		return nil, swaperr.New(swaperr.CodeInvalidInstructionData, "step count must be at least 1")
	}
	if stepCount > MaxParticipants {
		return nil, swaperr.Newf(swaperr.CodeTooManyParticipants,
			"step count %d exceeds maximum %d", stepCount, MaxParticipants)
	}
	if timeoutSeconds == 0 {
		return nil, swaperr.New(swaperr.CodeInvalidInstructionData, "timeout must be positive")
	}
	if timeoutSeconds > MaxTimeoutSeconds {
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"timeout %ds exceeds maximum %ds", timeoutSeconds, MaxTimeoutSeconds)
	}
	expires, carry := bits.Add64(now, timeoutSeconds, 0)
	if carry != 0 {
		return nil, swaperr.New(swaperr.CodeInvalidInstructionData, "expiry overflows")
	}
	return &TradeLoop{
		Initialized: true,
		ID:          id,
		CreatedAt:   now,
		ExpiresAt:   expires,
		Capacity:    stepCount,
		Authority:   authority,
	}, nil
}

// VerifyLoop reports whether the steps form a closed ring with at least two
// distinct senders.
func (l *TradeLoop) VerifyLoop() bool {
	n := len(l.Steps)
	if n == 0 {
		return false
	}
	senders := make(map[ir.Key]struct{}, n)
	for i, step := range l.Steps {
		if step.To != l.Steps[(i+1)%n].From {
			return false
		}
		senders[step.From] = struct{}{}
	}
	return len(senders) >= 2
}

// IsComplete reports whether every slot up to capacity is populated.
func (l *TradeLoop) IsComplete() bool {
	return len(l.Steps) == int(l.Capacity)
}

// IsReadyForExecution reports whether every step is Approved.
func (l *TradeLoop) IsReadyForExecution() bool {
	for _, step := range l.Steps {
		if step.Status != StatusApproved {
			return false
		}
	}
	return true
}

// IsSettled reports whether a complete loop has every step Executed.
func (l *TradeLoop) IsSettled() bool {
	if !l.IsComplete() || len(l.Steps) == 0 {
		return false
	}
	for _, step := range l.Steps {
		if step.Status != StatusExecuted {
			return false
		}
	}
	return true
}

// IsExpired reports whether now is at or past ExpiresAt.
func (l *TradeLoop) IsExpired(now uint64) bool {
	return now >= l.ExpiresAt
}

// StepOwnedBy returns the index of the first step sent by who.
func (l *TradeLoop) StepOwnedBy(who ir.Key) (int, bool) {
	for i, step := range l.Steps {
		if step.From == who {
			return i, true
		}
	}
	return -1, false
}

// AnyCommitted reports whether some step has left Created.
func (l *TradeLoop) AnyCommitted() bool {
	for _, step := range l.Steps {
		if step.Status != StatusCreated {
			return true
		}
	}
	return false
}

// Step returns the step at index or an InvalidInstructionData error.
func (l *TradeLoop) Step(index int) (*TradeStep, error) {
	if index < 0 || index >= len(l.Steps) {
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"step index %d out of range (have %d steps)", index, len(l.Steps))
	}
	return &l.Steps[index], nil
}

// PutStep appends a Created step at len(Steps) or overwrites the step at a
// lower index. Overwrites are refused once any step is committed. Indexes at
// or past capacity and gaps are rejected.
func (l *TradeLoop) PutStep(index int, from, to ir.Key, assets []ir.Key) error {
	if index < 0 || index >= int(l.Capacity) {
		return swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"step index %d out of range (capacity %d)", index, l.Capacity)
	}
	if err := ValidateAssets(assets); err != nil {
		return err
	}
	step := TradeStep{From: from, To: to, Assets: append([]ir.Key(nil), assets...), Status: StatusCreated}
	switch {
	case index == len(l.Steps):
		l.Steps = append(l.Steps, step)
	case index < len(l.Steps):
		if l.AnyCommitted() {
			return swaperr.Newf(swaperr.CodeInvalidInstructionData,
				"step %d cannot be replaced once any step is approved", index)
		}
		l.Steps[index] = step
	default:
		return swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"step index %d leaves a gap (have %d steps)", index, len(l.Steps))
	}
	return nil
}

// ValidateAssets checks that a step's asset list is non-empty, within
// MaxAssetsPerStep and free of duplicates.
func ValidateAssets(assets []ir.Key) error {
	if len(assets) == 0 {
		return swaperr.New(swaperr.CodeInvalidInstructionData, "step must move at least one asset")
	}
	if len(assets) > MaxAssetsPerStep {
		return swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"step moves %d assets, maximum is %d", len(assets), MaxAssetsPerStep)
	}
	seen := make(map[ir.Key]struct{}, len(assets))
	for _, a := range assets {
		if _, dup := seen[a]; dup {
			return swaperr.Newf(swaperr.CodeInvalidInstructionData, "asset %s listed twice", a.Short())
		}
		seen[a] = struct{}{}
	}
	return nil
}

// Describe returns a canonical-JSON-ready view of the loop.
func (l *TradeLoop) Describe() map[string]any {
	steps := make([]any, len(l.Steps))
	for i, step := range l.Steps {
		assets := make([]any, len(step.Assets))
		for j, a := range step.Assets {
			assets[j] = a
		}
		steps[i] = map[string]any{
			"from":   step.From,
			"to":     step.To,
			"assets": assets,
			"status": step.Status.String(),
		}
	}
	return map[string]any{
		"id":         l.ID,
		"created_at": l.CreatedAt,
		"expires_at": l.ExpiresAt,
		"capacity":   l.Capacity,
		"authority":  l.Authority,
		"steps":      steps,
	}
}

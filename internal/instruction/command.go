package instruction

import (
	"fmt"

	"github.com/roach88/loopswap/internal/ir"
)

// Tag identifies a command. Values double as the legacy tag byte.
type Tag uint8

const (
	TagInitializeTradeLoop Tag = iota
	TagAddTradeStep
	TagApproveTradeStep
	TagExecuteTradeStep
	TagExecuteFullTradeLoop
	TagCancelTradeLoop
	TagUpgradeProgram
	TagInitializeConfig
	TagUpdateConfig
)

var tagNames = [...]string{
	TagInitializeTradeLoop:  "initialize_trade_loop",
	TagAddTradeStep:         "add_trade_step",
	TagApproveTradeStep:     "approve_trade_step",
	TagExecuteTradeStep:     "execute_trade_step",
	TagExecuteFullTradeLoop: "execute_full_trade_loop",
	TagCancelTradeLoop:      "cancel_trade_loop",
	TagUpgradeProgram:       "upgrade_program",
	TagInitializeConfig:     "initialize_config",
	TagUpdateConfig:         "update_config",
}

// String returns the snake_case name used as the versioned "type" field.
func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// ParseTag resolves a snake_case command name.
func ParseTag(name string) (Tag, bool) {
	for i, n := range tagNames {
		if n == name {
			return Tag(i), true
		}
	}
	return 0, false
}

// Command is the tagged union of protocol operations. The concrete types
// below are the only implementations.
type Command interface {
	Tag() Tag
}

// InitializeTradeLoop creates an empty trade loop with a fixed step capacity.
type InitializeTradeLoop struct {
	TradeID        ir.Key
	StepCount      uint8
	TimeoutSeconds uint64
}

// AddTradeStep appends or overwrites the step at StepIndex. The submitting
// party becomes the step's sender.
type AddTradeStep struct {
	StepIndex uint8
	To        ir.Key
	Assets    []ir.Key
}

// ApproveTradeStep irrevocably commits the sender of a step.
type ApproveTradeStep struct {
	StepIndex uint8
}

// ExecuteTradeStep settles one approved step.
type ExecuteTradeStep struct {
	StepIndex uint8
}

// ExecuteFullTradeLoop settles every step of a fully approved loop at once.
type ExecuteFullTradeLoop struct{}

// CancelTradeLoop erases a loop nobody has approved yet.
type CancelTradeLoop struct{}

// UpgradeProgram bumps the recorded program version.
type UpgradeProgram struct {
	NewVersion uint32
}

// InitializeConfig creates the singleton program config. The caller becomes
// the upgrade authority.
type InitializeConfig struct {
	Governance *ir.Key
}

// UpdateConfig changes any subset of the config fields; nil keeps a field.
type UpdateConfig struct {
	NewAuthority  *ir.Key
	NewGovernance *ir.Key
	NewPaused     *bool
}

func (InitializeTradeLoop) Tag() Tag  { return TagInitializeTradeLoop }
func (AddTradeStep) Tag() Tag         { return TagAddTradeStep }
func (ApproveTradeStep) Tag() Tag     { return TagApproveTradeStep }
func (ExecuteTradeStep) Tag() Tag     { return TagExecuteTradeStep }
func (ExecuteFullTradeLoop) Tag() Tag { return TagExecuteFullTradeLoop }
func (CancelTradeLoop) Tag() Tag      { return TagCancelTradeLoop }
func (UpgradeProgram) Tag() Tag       { return TagUpgradeProgram }
func (InitializeConfig) Tag() Tag     { return TagInitializeConfig }
func (UpdateConfig) Tag() Tag         { return TagUpdateConfig }

// Describe returns the command as a canonical-JSON-ready map. The same map
// is the "command" object of the versioned envelope.
func Describe(cmd Command) map[string]any {
	m := map[string]any{"type": cmd.Tag().String()}
	switch c := cmd.(type) {
	case InitializeTradeLoop:
		m["trade_id"] = c.TradeID
		m["step_count"] = c.StepCount
		m["timeout_seconds"] = c.TimeoutSeconds
	case AddTradeStep:
		m["step_index"] = c.StepIndex
		m["to"] = c.To
		assets := make([]any, len(c.Assets))
		for i, a := range c.Assets {
			assets[i] = a
		}
		m["assets"] = assets
	case ApproveTradeStep:
		m["step_index"] = c.StepIndex
	case ExecuteTradeStep:
		m["step_index"] = c.StepIndex
	case UpgradeProgram:
		m["new_version"] = c.NewVersion
	case InitializeConfig:
		if c.Governance != nil {
			m["governance"] = *c.Governance
		}
	case UpdateConfig:
		if c.NewAuthority != nil {
			m["new_authority"] = *c.NewAuthority
		}
		if c.NewGovernance != nil {
			m["new_governance"] = *c.NewGovernance
		}
		if c.NewPaused != nil {
			m["new_paused"] = *c.NewPaused
		}
	}
	return m
}

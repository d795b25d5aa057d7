package state

import "github.com/roach88/loopswap/internal/ir"

// ProgramConfig is the deployment-wide singleton consulted before every
// participant operation.
type ProgramConfig struct {
	Initialized      bool
	Version          uint32
	UpgradeAuthority ir.Key
	Governance       *ir.Key
	Paused           bool
}

// Authorizes reports whether who may change the config or upgrade.
func (c *ProgramConfig) Authorizes(who ir.Key) bool {
	if who == c.UpgradeAuthority {
		return true
	}
	return c.Governance != nil && *c.Governance == who
}

// Describe returns a canonical-JSON-ready view of the config.
func (c *ProgramConfig) Describe() map[string]any {
	m := map[string]any{
		"version":           c.Version,
		"upgrade_authority": c.UpgradeAuthority,
		"paused":            c.Paused,
	}
	if c.Governance != nil {
		m["governance"] = *c.Governance
	}
	return m
}

package ir

// Version constants for the wire format and engine.
const (
	// WireVersion is the newest versioned-instruction format this build emits.
	WireVersion = 1

	// EngineVersion is the loopswap engine version.
	EngineVersion = "0.1.0"
)

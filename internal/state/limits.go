package state

const (
	// MaxParticipants bounds the step capacity of a single loop.
	MaxParticipants = 11

	// MaxAssetsPerStep bounds the asset list of a single step.
	MaxAssetsPerStep = 4

	// MaxTimeoutSeconds is the longest lifetime a loop may request (30 days).
	MaxTimeoutSeconds uint64 = 30 * 24 * 60 * 60

	// ProgramVersion is the version recorded by config initialization.
	ProgramVersion uint32 = 1
)

// Sizes of the fixed parts of a trade-loop record.
const (
	loopHeaderSize = 1 + 32 + 8 + 8 + 1 // initialized, id, created, expires, capacity
	loopTailSize   = 32                 // authority
	vecHeaderSize  = 4
	stepBaseSize   = 32 + 32 + vecHeaderSize + 1 // from, to, asset vec header, status
)

// Space returns the record size needed for a loop of stepCount steps with at
// most assetsPerStep assets each. Both arguments are clamped to their maximums.
func Space(stepCount, assetsPerStep int) int {
	stepCount = clamp(stepCount, MaxParticipants)
	assetsPerStep = clamp(assetsPerStep, MaxAssetsPerStep)
	return loopHeaderSize + vecHeaderSize + loopTailSize +
		stepCount*(stepBaseSize+assetsPerStep*32)
}

// ConfigSpace is the record size of ProgramConfig.
const ConfigSpace = 1 + 4 + 32 + 1 + 32 + 1

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

package instruction

import "github.com/roach88/loopswap/internal/swaperr"

// Unpack decodes either wire format. An empty buffer, an unknown legacy tag
// or a malformed versioned payload fails with InvalidInstructionData.
func Unpack(input []byte) (Command, error) {
	if len(input) == 0 {
		return nil, swaperr.New(swaperr.CodeInvalidInstructionData, "empty instruction")
	}
	if input[0] == VersionedMarker && len(input) >= 2 {
		return unpackVersioned(input)
	}
	return unpackLegacy(input)
}

// Pack encodes cmd in the preferred (versioned) format.
func Pack(cmd Command) ([]byte, error) {
	return PackVersioned(cmd)
}

// IsVersioned reports whether input uses the versioned format.
func IsVersioned(input []byte) bool {
	return len(input) >= 2 && input[0] == VersionedMarker
}

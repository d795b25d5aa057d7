package instruction

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/swaperr"
)

// maxLegacyAssets is the largest asset list the one-byte count can carry.
const maxLegacyAssets = 255

// reader walks a legacy payload with explicit bounds checks.
type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int, what string) ([]byte, error) {
	if len(r.buf)-r.off < n {
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"truncated %s at offset %d: need %d bytes, have %d", what, r.off+1, n, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8(what string) (uint8, error) {
	b, err := r.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u32(what string) (uint32, error) {
	b, err := r.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64(what string) (uint64, error) {
	b, err := r.take(8, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) key(what string) (ir.Key, error) {
	var k ir.Key
	b, err := r.take(ir.KeySize, what)
	if err != nil {
		return k, err
	}
	copy(k[:], b)
	return k, nil
}

// flag reads a presence/boolean byte. Only 0 and 1 are valid.
func (r *reader) flag(what string) (bool, error) {
	b, err := r.u8(what)
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, swaperr.Newf(swaperr.CodeInvalidInstructionData, "%s flag must be 0 or 1, got %d", what, b)
}

func (r *reader) optionalKey(what string) (*ir.Key, error) {
	present, err := r.flag(what)
	if err != nil || !present {
		return nil, err
	}
	k, err := r.key(what)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *reader) finish() error {
	if r.off != len(r.buf) {
		return swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"%d trailing bytes after instruction", len(r.buf)-r.off)
	}
	return nil
}

// unpackLegacy decodes the fixed-offset format. input[0] is the tag.
func unpackLegacy(input []byte) (Command, error) {
	tag := Tag(input[0])
	r := &reader{buf: input[1:]}

	var (
		cmd Command
		err error
	)
	switch tag {
	case TagInitializeTradeLoop:
		cmd, err = readInitializeTradeLoop(r)
	case TagAddTradeStep:
		cmd, err = readAddTradeStep(r)
	case TagApproveTradeStep:
		var idx uint8
		idx, err = r.u8("step index")
		cmd = ApproveTradeStep{StepIndex: idx}
	case TagExecuteTradeStep:
		var idx uint8
		idx, err = r.u8("step index")
		cmd = ExecuteTradeStep{StepIndex: idx}
	case TagExecuteFullTradeLoop:
		cmd = ExecuteFullTradeLoop{}
	case TagCancelTradeLoop:
		cmd = CancelTradeLoop{}
	case TagUpgradeProgram:
		var v uint32
		v, err = r.u32("new version")
		cmd = UpgradeProgram{NewVersion: v}
	case TagInitializeConfig:
		var gov *ir.Key
		gov, err = r.optionalKey("governance")
		cmd = InitializeConfig{Governance: gov}
	case TagUpdateConfig:
		cmd, err = readUpdateConfig(r)
	default:
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData, "unknown instruction tag %d", input[0])
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	if err := r.finish(); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return cmd, nil
}

func readInitializeTradeLoop(r *reader) (Command, error) {
	id, err := r.key("trade id")
	if err != nil {
		return nil, err
	}
	count, err := r.u8("step count")
	if err != nil {
		return nil, err
	}
	timeout, err := r.u64("timeout")
	if err != nil {
		return nil, err
	}
	return InitializeTradeLoop{TradeID: id, StepCount: count, TimeoutSeconds: timeout}, nil
}

func readAddTradeStep(r *reader) (Command, error) {
	idx, err := r.u8("step index")
	if err != nil {
		return nil, err
	}
	to, err := r.key("recipient")
	if err != nil {
		return nil, err
	}
	count, err := r.u8("asset count")
	if err != nil {
		return nil, err
	}
	var assets []ir.Key
	for i := 0; i < int(count); i++ {
		a, err := r.key(fmt.Sprintf("asset %d", i))
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return AddTradeStep{StepIndex: idx, To: to, Assets: assets}, nil
}

func readUpdateConfig(r *reader) (Command, error) {
	authority, err := r.optionalKey("authority")
	if err != nil {
		return nil, err
	}
	governance, err := r.optionalKey("governance")
	if err != nil {
		return nil, err
	}
	var paused *bool
	hasPaused, err := r.flag("paused presence")
	if err != nil {
		return nil, err
	}
	if hasPaused {
		p, err := r.flag("paused")
		if err != nil {
			return nil, err
		}
		paused = &p
	}
	return UpdateConfig{NewAuthority: authority, NewGovernance: governance, NewPaused: paused}, nil
}

// PackLegacy encodes cmd in the fixed-offset format. Unpack accepts both
// formats indefinitely; new clients should prefer Pack.
func PackLegacy(cmd Command) ([]byte, error) {
	out := []byte{byte(cmd.Tag())}
	switch c := cmd.(type) {
	case InitializeTradeLoop:
		out = append(out, c.TradeID[:]...)
		out = append(out, c.StepCount)
		out = binary.LittleEndian.AppendUint64(out, c.TimeoutSeconds)
	case AddTradeStep:
		if len(c.Assets) > maxLegacyAssets {
			return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData,
				"legacy format carries at most %d assets, got %d", maxLegacyAssets, len(c.Assets))
		}
		out = append(out, c.StepIndex)
		out = append(out, c.To[:]...)
		out = append(out, byte(len(c.Assets)))
		for _, a := range c.Assets {
			out = append(out, a[:]...)
		}
	case ApproveTradeStep:
		out = append(out, c.StepIndex)
	case ExecuteTradeStep:
		out = append(out, c.StepIndex)
	case ExecuteFullTradeLoop, CancelTradeLoop:
	case UpgradeProgram:
		out = binary.LittleEndian.AppendUint32(out, c.NewVersion)
	case InitializeConfig:
		out = appendOptionalKey(out, c.Governance)
	case UpdateConfig:
		out = appendOptionalKey(out, c.NewAuthority)
		out = appendOptionalKey(out, c.NewGovernance)
		if c.NewPaused == nil {
			out = append(out, 0)
		} else {
			out = append(out, 1, boolByte(*c.NewPaused))
		}
	default:
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData, "cannot pack %T", cmd)
	}
	return out, nil
}

func appendOptionalKey(out []byte, k *ir.Key) []byte {
	if k == nil {
		return append(out, 0)
	}
	out = append(out, 1)
	return append(out, k[:]...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

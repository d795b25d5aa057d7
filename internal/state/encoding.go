package state

import (
	"encoding/binary"

	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/swaperr"
)

// Record layouts are little-endian with u32 length-prefixed vectors. A record
// may be followed by zero padding up to its allocated size; any other trailing
// byte marks the record corrupt.

// MarshalBinary encodes the loop without padding.
func (l *TradeLoop) MarshalBinary() ([]byte, error) {
	if len(l.Steps) > int(l.Capacity) {
		return nil, swaperr.Newf(swaperr.CodeInvalidAccountData,
			"loop holds %d steps over capacity %d", len(l.Steps), l.Capacity)
	}
	out := make([]byte, 0, Space(int(l.Capacity), MaxAssetsPerStep))
	out = append(out, boolByte(l.Initialized))
	out = append(out, l.ID[:]...)
	out = binary.LittleEndian.AppendUint64(out, l.CreatedAt)
	out = binary.LittleEndian.AppendUint64(out, l.ExpiresAt)
	out = append(out, l.Capacity)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(l.Steps)))
	for _, step := range l.Steps {
		out = append(out, step.From[:]...)
		out = append(out, step.To[:]...)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(step.Assets)))
		for _, a := range step.Assets {
			out = append(out, a[:]...)
		}
		out = append(out, byte(step.Status))
	}
	out = append(out, l.Authority[:]...)
	return out, nil
}

// UnmarshalBinary decodes a loop record. Corrupt data fails with
// InvalidAccountData.
func (l *TradeLoop) UnmarshalBinary(data []byte) error {
	d := &decoder{buf: data}
	var loop TradeLoop
	loop.Initialized = d.flag()
	loop.ID = d.key()
	loop.CreatedAt = d.u64()
	loop.ExpiresAt = d.u64()
	loop.Capacity = d.u8()
	if d.err == nil && loop.Capacity > MaxParticipants {
		d.fail("capacity %d exceeds maximum", loop.Capacity)
	}
	n := d.u32()
	if d.err == nil && n > uint32(loop.Capacity) {
		d.fail("%d steps exceed capacity %d", n, loop.Capacity)
	}
	for i := uint32(0); d.err == nil && i < n; i++ {
		var step TradeStep
		step.From = d.key()
		step.To = d.key()
		count := d.u32()
		if d.err == nil && count > MaxAssetsPerStep {
			d.fail("step %d carries %d assets", i, count)
		}
		for j := uint32(0); d.err == nil && j < count; j++ {
			step.Assets = append(step.Assets, d.key())
		}
		status := d.u8()
		if d.err == nil && status > uint8(StatusExecuted) {
			d.fail("step %d has unknown status %d", i, status)
		}
		step.Status = StepStatus(status)
		loop.Steps = append(loop.Steps, step)
	}
	loop.Authority = d.key()
	if err := d.finish(); err != nil {
		return err
	}
	*l = loop
	return nil
}

// DecodeTradeLoop is a convenience wrapper around UnmarshalBinary.
func DecodeTradeLoop(data []byte) (*TradeLoop, error) {
	var l TradeLoop
	if err := l.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &l, nil
}

// MarshalBinary encodes the config.
func (c *ProgramConfig) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, ConfigSpace)
	out = append(out, boolByte(c.Initialized))
	out = binary.LittleEndian.AppendUint32(out, c.Version)
	out = append(out, c.UpgradeAuthority[:]...)
	if c.Governance == nil {
		out = append(out, 0)
	} else {
		out = append(out, 1)
		out = append(out, c.Governance[:]...)
	}
	out = append(out, boolByte(c.Paused))
	return out, nil
}

// UnmarshalBinary decodes a config record.
func (c *ProgramConfig) UnmarshalBinary(data []byte) error {
	d := &decoder{buf: data}
	var cfg ProgramConfig
	cfg.Initialized = d.flag()
	cfg.Version = d.u32()
	cfg.UpgradeAuthority = d.key()
	if d.flag() {
		gov := d.key()
		cfg.Governance = &gov
	}
	cfg.Paused = d.flag()
	if err := d.finish(); err != nil {
		return err
	}
	*c = cfg
	return nil
}

// DecodeProgramConfig is a convenience wrapper around UnmarshalBinary.
func DecodeProgramConfig(data []byte) (*ProgramConfig, error) {
	var c ProgramConfig
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &c, nil
}

// decoder records the first failure and turns every later read into a no-op.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = swaperr.Newf(swaperr.CodeInvalidAccountData, "corrupt record: "+format, args...)
	}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf)-d.off < n {
		d.fail("truncated at offset %d", d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) key() ir.Key {
	var k ir.Key
	if b := d.take(ir.KeySize); b != nil {
		copy(k[:], b)
	}
	return k
}

func (d *decoder) flag() bool {
	b := d.u8()
	if d.err == nil && b > 1 {
		d.fail("flag byte %d at offset %d", b, d.off-1)
	}
	return b == 1
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	for i := d.off; i < len(d.buf); i++ {
		if d.buf[i] != 0 {
			return swaperr.Newf(swaperr.CodeInvalidAccountData,
				"corrupt record: non-zero byte after end at offset %d", i)
		}
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

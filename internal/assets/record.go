package assets

import (
	"encoding/binary"

	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/swaperr"
)

// MaxNameLength bounds Asset.Name in bytes.
const MaxNameLength = 32

// Record sizes.
const (
	AssetSpace   = 1 + 1 + 8 + (1 + 32) + (1 + 32) + 4 + MaxNameLength
	HoldingSpace = 8
)

// Asset describes an asset class.
type Asset struct {
	Initialized     bool
	Decimals        uint8
	Supply          uint64
	MintAuthority   *ir.Key
	FreezeAuthority *ir.Key
	Name            string
}

// NewUnique returns the description of a genuine singular asset.
func NewUnique(name string) Asset {
	return Asset{Initialized: true, Supply: 1, Name: name}
}

func (a *Asset) marshal() ([]byte, error) {
	if len(a.Name) > MaxNameLength {
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"asset name is %d bytes, maximum is %d", len(a.Name), MaxNameLength)
	}
	out := make([]byte, 0, AssetSpace)
	out = append(out, boolByte(a.Initialized), a.Decimals)
	out = binary.LittleEndian.AppendUint64(out, a.Supply)
	out = appendOptionalKey(out, a.MintAuthority)
	out = appendOptionalKey(out, a.FreezeAuthority)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(a.Name)))
	out = append(out, a.Name...)
	return out, nil
}

func unmarshalAsset(data []byte) (*Asset, error) {
	corrupt := swaperr.New(swaperr.CodeInvalidMetadataAccount, "asset record is corrupt")
	if len(data) < 1+1+8+1 {
		return nil, corrupt
	}
	a := &Asset{Initialized: data[0] == 1, Decimals: data[1]}
	a.Supply = binary.LittleEndian.Uint64(data[2:10])
	rest := data[10:]
	var ok bool
	if a.MintAuthority, rest, ok = readOptionalKey(rest); !ok {
		return nil, corrupt
	}
	if a.FreezeAuthority, rest, ok = readOptionalKey(rest); !ok {
		return nil, corrupt
	}
	if len(rest) < 4 {
		return nil, corrupt
	}
	n := binary.LittleEndian.Uint32(rest)
	rest = rest[4:]
	if n > MaxNameLength || int(n) > len(rest) {
		return nil, corrupt
	}
	a.Name = string(rest[:n])
	return a, nil
}

func readOptionalKey(b []byte) (*ir.Key, []byte, bool) {
	if len(b) < 1 {
		return nil, nil, false
	}
	switch b[0] {
	case 0:
		return nil, b[1:], true
	case 1:
		if len(b) < 1+ir.KeySize {
			return nil, nil, false
		}
		var k ir.Key
		copy(k[:], b[1:1+ir.KeySize])
		return &k, b[1+ir.KeySize:], true
	}
	return nil, nil, false
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

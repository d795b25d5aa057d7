package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/roach88/loopswap/internal/ir"
)

// Address locates a record. It is the string form of a CIDv1 (raw codec,
// sha2-256) over a label and its seeds.
type Address string

// Labels for the derived address spaces.
const (
	LabelTradeLoop = "trade_loop"
	LabelConfig    = "config"
	LabelAsset     = "asset"
	LabelHolding   = "holding"
)

// Derive computes the address for label and seeds. Seeds are length
// prefixed so distinct seed lists never collide.
func Derive(label string, seeds ...[]byte) Address {
	buf := make([]byte, 0, 64)
	buf = append(buf, "loopswap/address/v1"...)
	buf = append(buf, 0)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(label)))
	buf = append(buf, label...)
	for _, s := range seeds {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}
	sum, err := multihash.Sum(buf, multihash.SHA2_256, -1)
	if err != nil {
		// unreachable for SHA2_256 with default length
		panic(fmt.Sprintf("ledger: multihash: %v", err))
	}
	return Address(cid.NewCidV1(cid.Raw, sum).String())
}

// LoopAddress is where the trade loop with the given id lives.
func LoopAddress(id ir.Key) Address {
	return Derive(LabelTradeLoop, id[:])
}

// ConfigAddress is the location of the program config singleton.
func ConfigAddress() Address {
	return Derive(LabelConfig)
}

// AssetAddress is where the asset record for asset lives.
func AssetAddress(asset ir.Key) Address {
	return Derive(LabelAsset, asset[:])
}

// HoldingAddress is the balance record of holder for asset.
func HoldingAddress(asset, holder ir.Key) Address {
	return Derive(LabelHolding, asset[:], holder[:])
}

// ParseAddress validates s as a record address.
func ParseAddress(s string) (Address, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w", s, err)
	}
	if c.Version() != 1 || c.Type() != cid.Raw {
		return "", fmt.Errorf("parse address %q: not a CIDv1 raw address", s)
	}
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w", s, err)
	}
	if decoded.Code != multihash.SHA2_256 {
		return "", fmt.Errorf("parse address %q: hash code 0x%x, want sha2-256", s, decoded.Code)
	}
	return Address(c.String()), nil
}

func (a Address) String() string { return string(a) }

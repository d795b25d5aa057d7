package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/loopswap/internal/ir"
)

// Service moves single asset units and vouches for their authenticity.
type Service interface {
	// VerifyGenuineUnit checks the asset is a genuine singular unit.
	VerifyGenuineUnit(ctx context.Context, asset ir.Key) error
	// VerifyHolder checks holder holds at least one unit of asset.
	VerifyHolder(ctx context.Context, asset, holder ir.Key) error
	// Transfer moves one unit of asset from one holder to another.
	Transfer(ctx context.Context, asset, from, to ir.Key) error
}

// Mode selects how strict VerifyGenuineUnit is.
type Mode int

const (
	// ModeBasic requires an initialized asset with zero decimals.
	ModeBasic Mode = iota
	// ModeStandard additionally requires a supply of exactly one.
	ModeStandard
	// ModeStrict additionally requires a metadata name.
	ModeStrict
)

var modeNames = [...]string{
	ModeBasic:    "basic",
	ModeStandard: "standard",
	ModeStrict:   "strict",
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode resolves a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown verification mode %q (want basic, standard or strict)", s)
}

package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loopswap/internal/ir"
)

func key(b byte) ir.Key {
	var k ir.Key
	for i := range k {
		k[i] = b
	}
	return k
}

func TestDerive_Deterministic(t *testing.T) {
	assert.Equal(t, LoopAddress(key(1)), LoopAddress(key(1)))
	assert.Equal(t, ConfigAddress(), ConfigAddress())
	assert.NotEqual(t, LoopAddress(key(1)), LoopAddress(key(2)))
}

func TestDerive_LabelsSeparateSpaces(t *testing.T) {
	k := key(5)
	addrs := map[Address]string{
		LoopAddress(k):            "loop",
		AssetAddress(k):           "asset",
		HoldingAddress(k, k):      "holding",
		ConfigAddress():           "config",
		Derive(LabelTradeLoop):    "bare loop label",
		Derive("ab", []byte("c")): "split seed a",
		Derive("a", []byte("bc")): "split seed b",
	}
	assert.Len(t, addrs, 7)
}

func TestDerive_HoldingOrderMatters(t *testing.T) {
	assert.NotEqual(t, HoldingAddress(key(1), key(2)), HoldingAddress(key(2), key(1)))
}

func TestParseAddress(t *testing.T) {
	addr := LoopAddress(key(9))
	assert.True(t, strings.HasPrefix(addr.String(), "b"), "CIDv1 base32 multibase prefix")

	got, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	_, err = ParseAddress("not-a-cid")
	assert.Error(t, err)

	// CIDv0 (dag-pb) is a valid CID but not a ledger address
	_, err = ParseAddress("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
	assert.Error(t, err)
}

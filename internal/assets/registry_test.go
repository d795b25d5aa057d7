package assets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/swaperr"
)

func key(b byte) ir.Key {
	var k ir.Key
	for i := range k {
		k[i] = b
	}
	return k
}

var (
	alice = key(0xa0)
	bob   = key(0xb0)
)

func newBatch(t *testing.T) (*ledger.Store, *ledger.Batch) {
	t.Helper()
	s, err := ledger.Open(filepath.Join(t.TempDir(), "assets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, s.NewBatch()
}

func TestMintAndTransfer(t *testing.T) {
	ctx := context.Background()
	_, b := newBatch(t)
	r := NewRegistry(b, ModeStandard)
	nft := key(1)

	require.NoError(t, r.Mint(ctx, nft, alice, NewUnique("Blue Ape")))
	require.NoError(t, r.VerifyGenuineUnit(ctx, nft))
	require.NoError(t, r.VerifyHolder(ctx, nft, alice))
	assert.True(t, swaperr.Is(r.VerifyHolder(ctx, nft, bob), swaperr.CodeInsufficientFunds))

	require.NoError(t, r.Transfer(ctx, nft, alice, bob))
	alices, err := r.Balance(ctx, nft, alice)
	require.NoError(t, err)
	bobs, err := r.Balance(ctx, nft, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), alices)
	assert.Equal(t, uint64(1), bobs)

	err = r.Transfer(ctx, nft, alice, bob)
	assert.True(t, swaperr.Is(err, swaperr.CodeInsufficientFunds))
}

func TestMintTwiceFails(t *testing.T) {
	ctx := context.Background()
	_, b := newBatch(t)
	r := NewRegistry(b, ModeBasic)
	require.NoError(t, r.Mint(ctx, key(1), alice, NewUnique("x")))
	err := r.Mint(ctx, key(1), bob, NewUnique("x"))
	assert.True(t, swaperr.Is(err, swaperr.CodeInvalidAccountData))
}

func TestMintRejects(t *testing.T) {
	ctx := context.Background()
	_, b := newBatch(t)
	r := NewRegistry(b, ModeBasic)

	assert.Error(t, r.Mint(ctx, key(1), alice, Asset{}))
	long := NewUnique("this name is much longer than thirty-two bytes")
	assert.Error(t, r.Mint(ctx, key(2), alice, long))
}

func TestVerificationModes(t *testing.T) {
	ctx := context.Background()
	_, b := newBatch(t)
	seed := NewRegistry(b, ModeBasic)

	fungible := Asset{Decimals: 6, Supply: 1000}
	edition := Asset{Supply: 10, Name: "edition"}
	unnamed := Asset{Supply: 1}
	named := NewUnique("named")
	require.NoError(t, seed.Mint(ctx, key(1), alice, fungible))
	require.NoError(t, seed.Mint(ctx, key(2), alice, edition))
	require.NoError(t, seed.Mint(ctx, key(3), alice, unnamed))
	require.NoError(t, seed.Mint(ctx, key(4), alice, named))

	tests := []struct {
		mode Mode
		ok   map[byte]bool
	}{
		{ModeBasic, map[byte]bool{1: false, 2: true, 3: true, 4: true}},
		{ModeStandard, map[byte]bool{1: false, 2: false, 3: true, 4: true}},
		{ModeStrict, map[byte]bool{1: false, 2: false, 3: false, 4: true}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			r := NewRegistry(b, tt.mode)
			for id, want := range tt.ok {
				err := r.VerifyGenuineUnit(ctx, key(id))
				if want {
					assert.NoError(t, err, "asset %d", id)
				} else {
					assert.True(t, swaperr.Is(err, swaperr.CodeInvalidMetadataAccount), "asset %d", id)
				}
			}
		})
	}
}

func TestUnregisteredAsset(t *testing.T) {
	_, b := newBatch(t)
	r := NewRegistry(b, ModeBasic)
	err := r.VerifyGenuineUnit(context.Background(), key(9))
	assert.True(t, swaperr.Is(err, swaperr.CodeInvalidMetadataAccount))
}

func TestTransferRollsBackWithBatch(t *testing.T) {
	ctx := context.Background()
	s, b := newBatch(t)
	require.NoError(t, NewRegistry(b, ModeBasic).Mint(ctx, key(1), alice, NewUnique("a")))
	require.NoError(t, b.Commit(ctx, 1))

	b2 := s.NewBatch()
	require.NoError(t, NewRegistry(b2, ModeBasic).Transfer(ctx, key(1), alice, bob))
	b2.Discard()

	b3 := s.NewBatch()
	defer b3.Discard()
	bal, err := NewRegistry(b3, ModeBasic).Balance(ctx, key(1), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bal)
}

func TestAssetRecordRoundTrip(t *testing.T) {
	mint := key(5)
	a := Asset{Initialized: true, Supply: 1, MintAuthority: &mint, Name: "rare"}
	data, err := a.marshal()
	require.NoError(t, err)
	require.LessOrEqual(t, len(data), AssetSpace)

	padded := make([]byte, AssetSpace)
	copy(padded, data)
	got, err := unmarshalAsset(padded)
	require.NoError(t, err)
	assert.Equal(t, &a, got)

	_, err = unmarshalAsset(data[:5])
	assert.True(t, swaperr.Is(err, swaperr.CodeInvalidMetadataAccount))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("STRICT")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, m)
	_, err = ParseMode("paranoid")
	assert.Error(t, err)
}

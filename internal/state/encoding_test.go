package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/swaperr"
)

func TestTradeLoopBinaryRoundTrip(t *testing.T) {
	l := ring(alice, bob, carol)
	l.ID = key(7)
	l.CreatedAt = 10
	l.ExpiresAt = 20
	l.Authority = alice
	l.Steps[1].Status = StatusApproved
	l.Steps[2].Assets = []ir.Key{key(3), key(4), key(5), key(6)}

	data, err := l.MarshalBinary()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), Space(3, MaxAssetsPerStep))

	got, err := DecodeTradeLoop(data)
	require.NoError(t, err)
	assert.Equal(t, l, got)
}

func TestTradeLoopFullRecordFillsSpace(t *testing.T) {
	l := &TradeLoop{Initialized: true, Capacity: MaxParticipants}
	for i := 0; i < MaxParticipants; i++ {
		l.Steps = append(l.Steps, TradeStep{Assets: []ir.Key{key(1), key(2), key(3), key(4)}})
	}
	data, err := l.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, Space(MaxParticipants, MaxAssetsPerStep), len(data))
}

func TestTradeLoopToleratesZeroPadding(t *testing.T) {
	l, err := NewTradeLoop(key(1), 2, 60, 5, alice)
	require.NoError(t, err)
	data, err := l.MarshalBinary()
	require.NoError(t, err)

	padded := make([]byte, Space(2, MaxAssetsPerStep))
	copy(padded, data)
	got, err := DecodeTradeLoop(padded)
	require.NoError(t, err)
	assert.Equal(t, l.ExpiresAt, got.ExpiresAt)
	assert.Empty(t, got.Steps)
}

func TestTradeLoopCorrupt(t *testing.T) {
	l := ring(alice, bob)
	data, err := l.MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated", func(b []byte) []byte { return b[:len(b)-1] }},
		{"bad initialized flag", func(b []byte) []byte { b[0] = 7; return b }},
		{"capacity too large", func(b []byte) []byte { b[49] = MaxParticipants + 1; return b }},
		{"steps over capacity", func(b []byte) []byte { b[50] = 3; return b }},
		{"trailing garbage", func(b []byte) []byte { return append(b, 0, 0, 1) }},
		{"unknown status", func(b []byte) []byte {
			// status byte of the first step sits after from, to, vec header and one asset
			b[54+32+32+4+32] = 9
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := append([]byte(nil), data...)
			_, err := DecodeTradeLoop(tt.mutate(buf))
			require.Error(t, err)
			assert.Equal(t, swaperr.CodeInvalidAccountData, swaperr.CodeOf(err))
		})
	}
}

func TestProgramConfigBinaryRoundTrip(t *testing.T) {
	gov := bob
	for _, cfg := range []*ProgramConfig{
		{Initialized: true, Version: 1, UpgradeAuthority: alice},
		{Initialized: true, Version: 9, UpgradeAuthority: alice, Governance: &gov, Paused: true},
	} {
		data, err := cfg.MarshalBinary()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(data), ConfigSpace)

		padded := make([]byte, ConfigSpace)
		copy(padded, data)
		got, err := DecodeProgramConfig(padded)
		require.NoError(t, err)
		assert.Equal(t, cfg, got)
	}
}

func TestProgramConfigCorrupt(t *testing.T) {
	_, err := DecodeProgramConfig([]byte{1, 1, 0})
	assert.Equal(t, swaperr.CodeInvalidAccountData, swaperr.CodeOf(err))

	data, err := (&ProgramConfig{Initialized: true, UpgradeAuthority: alice}).MarshalBinary()
	require.NoError(t, err)
	data[len(data)-1] = 2
	_, err = DecodeProgramConfig(data)
	assert.Equal(t, swaperr.CodeInvalidAccountData, swaperr.CodeOf(err))
}

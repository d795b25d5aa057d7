package instruction

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/swaperr"
)

func fill(b byte) ir.Key {
	var k ir.Key
	for i := range k {
		k[i] = b
	}
	return k
}

func keyPtr(k ir.Key) *ir.Key { return &k }

func boolPtr(b bool) *bool { return &b }

// sampleCommands covers every variant, in tag order, with optional fields
// both present and absent. The golden files are generated from this list.
func sampleCommands() []struct {
	name string
	cmd  Command
} {
	return []struct {
		name string
		cmd  Command
	}{
		{"initialize_trade_loop", InitializeTradeLoop{TradeID: fill(0x11), StepCount: 3, TimeoutSeconds: 86400}},
		{"add_trade_step", AddTradeStep{StepIndex: 1, To: fill(0x22), Assets: []ir.Key{fill(0xa1), fill(0xa2)}}},
		{"approve_trade_step", ApproveTradeStep{StepIndex: 2}},
		{"execute_trade_step", ExecuteTradeStep{StepIndex: 0}},
		{"execute_full_trade_loop", ExecuteFullTradeLoop{}},
		{"cancel_trade_loop", CancelTradeLoop{}},
		{"upgrade_program", UpgradeProgram{NewVersion: 2}},
		{"initialize_config_none", InitializeConfig{}},
		{"initialize_config_gov", InitializeConfig{Governance: keyPtr(fill(0x33))}},
		{"update_config", UpdateConfig{NewAuthority: keyPtr(fill(0x44)), NewPaused: boolPtr(true)}},
	}
}

func TestRoundTripLegacy(t *testing.T) {
	for _, tc := range sampleCommands() {
		t.Run(tc.name, func(t *testing.T) {
			packed, err := PackLegacy(tc.cmd)
			require.NoError(t, err)
			assert.Equal(t, byte(tc.cmd.Tag()), packed[0])
			assert.False(t, IsVersioned(packed))

			got, err := Unpack(packed)
			require.NoError(t, err)
			assert.Equal(t, tc.cmd, got)
		})
	}
}

func TestRoundTripVersioned(t *testing.T) {
	for _, tc := range sampleCommands() {
		t.Run(tc.name, func(t *testing.T) {
			packed, err := Pack(tc.cmd)
			require.NoError(t, err)
			assert.Equal(t, []byte{VersionedMarker, WireVersion1}, packed[:2])
			assert.True(t, IsVersioned(packed))

			got, err := Unpack(packed)
			require.NoError(t, err)
			assert.Equal(t, tc.cmd, got)
		})
	}
}

func TestRoundTripExtremeValues(t *testing.T) {
	cmds := []Command{
		InitializeTradeLoop{TradeID: fill(0xff), StepCount: 255, TimeoutSeconds: ^uint64(0)},
		UpgradeProgram{NewVersion: ^uint32(0)},
		AddTradeStep{StepIndex: 255, To: fill(0), Assets: nil},
		UpdateConfig{NewGovernance: keyPtr(fill(9)), NewPaused: boolPtr(false)},
	}
	for _, cmd := range cmds {
		for _, pack := range []func(Command) ([]byte, error){PackLegacy, PackVersioned} {
			packed, err := pack(cmd)
			require.NoError(t, err)
			got, err := Unpack(packed)
			require.NoError(t, err)
			assert.Equal(t, cmd, got)
		}
	}
}

func TestUnpackEmpty(t *testing.T) {
	_, err := Unpack(nil)
	assert.True(t, swaperr.Is(err, swaperr.CodeInvalidInstructionData))
}

func TestUnpackUnknownTag(t *testing.T) {
	for _, tag := range []byte{9, 42, 254, 255} {
		_, err := Unpack([]byte{tag})
		assert.True(t, swaperr.Is(err, swaperr.CodeInvalidInstructionData), "tag %d", tag)
	}
}

// Every strict prefix of a valid legacy encoding must fail cleanly.
func TestUnpackLegacyTruncated(t *testing.T) {
	for _, tc := range sampleCommands() {
		packed, err := PackLegacy(tc.cmd)
		require.NoError(t, err)
		for n := 1; n < len(packed); n++ {
			t.Run(fmt.Sprintf("%s/%d", tc.name, n), func(t *testing.T) {
				_, err := Unpack(packed[:n])
				require.Error(t, err)
				assert.True(t, swaperr.Is(err, swaperr.CodeInvalidInstructionData), err.Error())
			})
		}
	}
}

func TestUnpackLegacyTrailingBytes(t *testing.T) {
	_, err := Unpack([]byte{byte(TagCancelTradeLoop), 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing")
}

func TestUnpackLegacyBadFlag(t *testing.T) {
	_, err := Unpack([]byte{byte(TagInitializeConfig), 2})
	require.Error(t, err)
	assert.True(t, swaperr.Is(err, swaperr.CodeInvalidInstructionData))
}

func TestUnpackLegacyAssetCountBeyondPayload(t *testing.T) {
	packed := []byte{byte(TagAddTradeStep), 0}
	to := fill(1)
	packed = append(packed, to[:]...)
	packed = append(packed, 3) // claims three assets, carries one
	a := fill(2)
	packed = append(packed, a[:]...)

	_, err := Unpack(packed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asset 1")
}

func TestLegacyLayout(t *testing.T) {
	packed, err := PackLegacy(InitializeTradeLoop{TradeID: fill(7), StepCount: 3, TimeoutSeconds: 86400})
	require.NoError(t, err)
	require.Len(t, packed, 1+32+1+8)
	assert.Equal(t, byte(0), packed[0])
	assert.Equal(t, byte(3), packed[33])
	assert.Equal(t, uint64(86400), binary.LittleEndian.Uint64(packed[34:]))
}

func TestUnpackVersionedMalformed(t *testing.T) {
	key := fill(0x11).String()
	tests := []struct {
		name    string
		payload string
		version byte
	}{
		{"not json", `{"version":1,`, 1},
		{"unknown version byte", `{"command":{"type":"cancel_trade_loop"},"version":1}`, 2},
		{"envelope version mismatch", `{"command":{"type":"cancel_trade_loop"},"version":2}`, 1},
		{"unknown type", `{"command":{"type":"steal_everything"},"version":1}`, 1},
		{"extra field", `{"command":{"type":"cancel_trade_loop","loot":1},"version":1}`, 1},
		{"step index overflow", `{"command":{"type":"approve_trade_step","step_index":256},"version":1}`, 1},
		{"negative version", `{"command":{"type":"upgrade_program","new_version":-1},"version":1}`, 1},
		{"short key", `{"command":{"type":"initialize_config","governance":"abcd"},"version":1}`, 1},
		{"missing field", `{"command":{"type":"initialize_trade_loop","trade_id":"` + key + `","step_count":3},"version":1}`, 1},
		{"float", `{"command":{"type":"execute_trade_step","step_index":1.5},"version":1}`, 1},
		{"not an object", `[1,2,3]`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]byte{VersionedMarker, tt.version}, tt.payload...)
			_, err := Unpack(input)
			require.Error(t, err)
			assert.True(t, swaperr.Is(err, swaperr.CodeInvalidInstructionData), err.Error())
		})
	}
}

func TestUnpackVersionedAcceptsNonCanonicalJSON(t *testing.T) {
	payload := `{ "version": 1, "command": { "step_index": 4, "type": "execute_trade_step" } }`
	got, err := Unpack(append([]byte{VersionedMarker, WireVersion1}, payload...))
	require.NoError(t, err)
	assert.Equal(t, ExecuteTradeStep{StepIndex: 4}, got)
}

func TestPackRejectsOversizedAssetList(t *testing.T) {
	assets := make([]ir.Key, 256)
	_, err := PackLegacy(AddTradeStep{Assets: assets})
	assert.True(t, swaperr.Is(err, swaperr.CodeInvalidInstructionData))
	_, err = PackVersioned(AddTradeStep{Assets: assets})
	assert.True(t, swaperr.Is(err, swaperr.CodeInvalidInstructionData))
}

func TestTagNames(t *testing.T) {
	for _, tc := range sampleCommands() {
		tag, ok := ParseTag(tc.cmd.Tag().String())
		require.True(t, ok)
		assert.Equal(t, tc.cmd.Tag(), tag)
	}
	assert.Equal(t, "tag(200)", Tag(200).String())
}

func TestGoldenLegacyEncodings(t *testing.T) {
	var buf bytes.Buffer
	for _, tc := range sampleCommands() {
		packed, err := PackLegacy(tc.cmd)
		require.NoError(t, err)
		fmt.Fprintf(&buf, "%s %x\n", tc.name, packed)
	}
	g := goldie.New(t)
	g.Assert(t, "legacy_encodings", buf.Bytes())
}

func TestGoldenVersionedEncodings(t *testing.T) {
	var buf bytes.Buffer
	for _, tc := range sampleCommands() {
		packed, err := PackVersioned(tc.cmd)
		require.NoError(t, err)
		fmt.Fprintf(&buf, "%s %x %s\n", tc.name, packed[:2], packed[2:])
	}
	g := goldie.New(t)
	g.Assert(t, "versioned_encodings", buf.Bytes())
}

// Both encoders are supported API; neither may carry a deprecation notice.
func TestEncodersNotDeprecated(t *testing.T) {
	fset := token.NewFileSet()
	for _, file := range []string{"legacy.go", "instruction.go", "versioned.go"} {
		f, err := parser.ParseFile(fset, file, nil, parser.ParseComments)
		require.NoError(t, err)
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Doc == nil || !strings.HasPrefix(fn.Name.Name, "Pack") {
				continue
			}
			assert.NotContains(t, fn.Doc.Text(), "Deprecated:", fn.Name.Name)
		}
	}
}

package instruction

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/swaperr"
)

// VersionedMarker is the first byte of every versioned instruction. It lies
// outside the legacy tag space.
const VersionedMarker = 0xFF

// WireVersion1 is the only envelope version this build understands.
const WireVersion1 = 1

//go:embed envelope.cue
var envelopeSchemaSource string

// envelopeSchema holds the compiled CUE definition. A cue.Context is not
// safe for concurrent use, so every validation takes mu.
type envelopeSchema struct {
	mu       sync.Mutex
	ctx      *cue.Context
	envelope cue.Value
}

var (
	schemaOnce sync.Once
	schema     *envelopeSchema
	schemaErr  error
)

func loadSchema() (*envelopeSchema, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(envelopeSchemaSource, cue.Filename("envelope.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile envelope schema: %s", errors.Details(err, nil))
			return
		}
		def := v.LookupPath(cue.ParsePath("#Envelope"))
		if !def.Exists() {
			schemaErr = fmt.Errorf("envelope schema has no #Envelope definition")
			return
		}
		schema = &envelopeSchema{ctx: ctx, envelope: def}
	})
	return schema, schemaErr
}

// validate checks a JSON payload against #Envelope.
func (s *envelopeSchema) validate(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.ctx.CompileBytes(payload, cue.Filename("payload.json"))
	if err := data.Err(); err != nil {
		return fmt.Errorf("parse: %s", errors.Details(err, nil))
	}
	unified := s.envelope.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema: %s", errors.Details(err, nil))
	}
	return nil
}

// wireEnvelope mirrors #Envelope for decoding after validation.
type wireEnvelope struct {
	Version int         `json:"version"`
	Command wireCommand `json:"command"`
}

type wireCommand struct {
	Type           string   `json:"type"`
	TradeID        ir.Key   `json:"trade_id"`
	StepCount      uint8    `json:"step_count"`
	TimeoutSeconds uint64   `json:"timeout_seconds"`
	StepIndex      uint8    `json:"step_index"`
	To             ir.Key   `json:"to"`
	Assets         []ir.Key `json:"assets"`
	NewVersion     uint32   `json:"new_version"`
	Governance     *ir.Key  `json:"governance"`
	NewAuthority   *ir.Key  `json:"new_authority"`
	NewGovernance  *ir.Key  `json:"new_governance"`
	NewPaused      *bool    `json:"new_paused"`
}

func (w wireCommand) command() (Command, error) {
	tag, ok := ParseTag(w.Type)
	if !ok {
		return nil, fmt.Errorf("unknown command type %q", w.Type)
	}
	switch tag {
	case TagInitializeTradeLoop:
		return InitializeTradeLoop{TradeID: w.TradeID, StepCount: w.StepCount, TimeoutSeconds: w.TimeoutSeconds}, nil
	case TagAddTradeStep:
		var assets []ir.Key
		if len(w.Assets) > 0 {
			assets = w.Assets
		}
		return AddTradeStep{StepIndex: w.StepIndex, To: w.To, Assets: assets}, nil
	case TagApproveTradeStep:
		return ApproveTradeStep{StepIndex: w.StepIndex}, nil
	case TagExecuteTradeStep:
		return ExecuteTradeStep{StepIndex: w.StepIndex}, nil
	case TagExecuteFullTradeLoop:
		return ExecuteFullTradeLoop{}, nil
	case TagCancelTradeLoop:
		return CancelTradeLoop{}, nil
	case TagUpgradeProgram:
		return UpgradeProgram{NewVersion: w.NewVersion}, nil
	case TagInitializeConfig:
		return InitializeConfig{Governance: w.Governance}, nil
	default:
		return UpdateConfig{NewAuthority: w.NewAuthority, NewGovernance: w.NewGovernance, NewPaused: w.NewPaused}, nil
	}
}

// unpackVersioned decodes input[1:] = version byte + JSON envelope.
func unpackVersioned(input []byte) (Command, error) {
	version := int(input[1])
	if version != WireVersion1 {
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData, "unsupported instruction version %d", version)
	}
	payload := input[2:]

	s, err := loadSchema()
	if err != nil {
		return nil, err
	}
	if err := s.validate(payload); err != nil {
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData, "versioned payload: %v", err)
	}

	var env wireEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData, "versioned payload: %v", err)
	}
	if env.Version != version {
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"version byte %d does not match envelope version %d", version, env.Version)
	}
	cmd, err := env.Command.command()
	if err != nil {
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData, "versioned payload: %v", err)
	}
	return cmd, nil
}

// PackVersioned encodes cmd as 0xFF, version 1, canonical JSON envelope.
func PackVersioned(cmd Command) ([]byte, error) {
	if add, ok := cmd.(AddTradeStep); ok && len(add.Assets) > maxLegacyAssets {
		return nil, swaperr.Newf(swaperr.CodeInvalidInstructionData,
			"at most %d assets per step, got %d", maxLegacyAssets, len(add.Assets))
	}
	body, err := ir.MarshalCanonical(map[string]any{
		"version": WireVersion1,
		"command": Describe(cmd),
	})
	if err != nil {
		return nil, fmt.Errorf("pack versioned %s: %w", cmd.Tag(), err)
	}
	out := make([]byte, 0, len(body)+2)
	out = append(out, VersionedMarker, WireVersion1)
	return append(out, body...), nil
}

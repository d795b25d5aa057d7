package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/loopswap/internal/harness"
	"github.com/roach88/loopswap/internal/instruction"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	Legacy bool
	Loop   string
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode <command>",
		Short: "Encode a command as instruction bytes",
		Long: `Encode a command as instruction bytes, printed as hex.

The command is a JSON (or YAML flow) object with a "type" field and the
fields of the versioned wire format. Key fields accept names, which are
hashed as in scenario files. initialize_trade_loop takes its trade_id
from --loop when the command omits it.

Examples:
  loopswap encode '{"type":"approve_trade_step","step_index":1}'
  loopswap encode --loop ring '{type: initialize_trade_loop, step_count: 3, timeout_seconds: 86400}'
  loopswap encode --legacy '{type: add_trade_step, step_index: 0, to: bob, assets: [nft]}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Legacy, "legacy", false, "use the legacy binary format")
	cmd.Flags().StringVar(&opts.Loop, "loop", "", "default trade id for initialize_trade_loop")

	return cmd
}

func runEncode(opts *EncodeOptions, input string, cmd *cobra.Command) error {
	// YAML flow syntax is a superset of JSON and keeps integers integral
	var fields map[string]any
	if err := yaml.Unmarshal([]byte(input), &fields); err != nil {
		return WrapExitError(ExitCommandError, "invalid command", err)
	}
	name, ok := fields["type"].(string)
	if !ok {
		return NewExitError(ExitCommandError, `command needs a string "type" field`)
	}
	if _, ok := instruction.ParseTag(name); !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown command %q", name))
	}
	delete(fields, "type")

	step := harness.Step{Command: name, Args: fields}
	if opts.Legacy {
		step.Format = harness.FormatLegacy
	}
	data, err := harness.EncodeStep(step, opts.Loop)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode", err)
	}

	// Decode once so schema violations surface here rather than on submit
	if _, err := instruction.Unpack(data); err != nil {
		return opts.output(cmd).Rejected(err)
	}

	encoded := hex.EncodeToString(data)
	if opts.Format == "json" {
		return opts.output(cmd).Success(map[string]any{"instruction": encoded})
	}
	return opts.output(cmd).Success(encoded)
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <instruction-hex>",
		Short: "Decode instruction bytes",
		Long: `Decode instruction bytes in either wire format and print the command.

Exit codes:
  0 - Instruction decoded
  1 - Instruction rejected (InvalidInstructionData)
  2 - Input is not hex

Example:
  loopswap decode 0201`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runDecode(opts *RootOptions, input string, cmd *cobra.Command) error {
	out := opts.output(cmd)

	data, err := hex.DecodeString(strings.TrimSpace(input))
	if err != nil {
		return WrapExitError(ExitCommandError, "instruction must be hex", err)
	}
	decoded, err := instruction.Unpack(data)
	if err != nil {
		return out.Rejected(err)
	}

	format := "legacy"
	if instruction.IsVersioned(data) {
		format = "versioned"
	}
	return out.Success(map[string]any{
		"format":  format,
		"command": instruction.Describe(decoded),
	})
}

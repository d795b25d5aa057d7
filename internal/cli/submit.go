package cli

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/loopswap/internal/engine"
	"github.com/roach88/loopswap/internal/harness"
	"github.com/roach88/loopswap/internal/ir"
	"github.com/roach88/loopswap/internal/server"
	"github.com/roach88/loopswap/internal/swaperr"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Addr     string
	Caller   string
	Loop     string
	Accounts []string
	Timeout  time.Duration
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit <instruction-hex>",
		Short: "Submit an encoded instruction to a running ledger",
		Long: `Submit an encoded instruction to a running ledger.

The instruction is hex, as printed by "loopswap encode". Keys are 64 hex
characters; any other value is hashed into a key the same way scenario
files name participants.

Exit codes:
  0 - Instruction committed
  1 - Instruction rejected (the error code is printed)
  2 - Command error (bad flags, unreachable server, etc.)

Example:
  loopswap submit --caller alice --loop ring $(loopswap encode '{type: approve_trade_step, step_index: 0}')`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "ledger address (default: server.listen from config)")
	cmd.Flags().StringVar(&opts.Caller, "caller", "", "submitting party (required)")
	_ = cmd.MarkFlagRequired("caller")
	cmd.Flags().StringVar(&opts.Loop, "loop", "", "trade loop id")
	cmd.Flags().StringSliceVar(&opts.Accounts, "account", nil, "extra participant accounts, in order (repeatable)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout")

	return cmd
}

func runSubmit(opts *SubmitOptions, data string, cmd *cobra.Command) error {
	out := opts.output(cmd)

	raw, err := hex.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return WrapExitError(ExitCommandError, "instruction must be hex", err)
	}

	addr := opts.Addr
	if addr == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Server.Listen
	}

	inv := engine.Invocation{Caller: resolveKey(opts.Caller), Data: raw}
	if opts.Loop != "" {
		inv.Loop = resolveKey(opts.Loop)
	}
	for _, a := range opts.Accounts {
		inv.Accounts = append(inv.Accounts, resolveKey(a))
	}

	client, err := server.Dial(addr, server.DialOptions{Timeout: opts.Timeout})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer client.Close()

	out.VerboseLog("submitting %d bytes to %s as %s", len(raw), addr, inv.Caller.Short())
	id, err := client.Submit(commandContext(cmd), inv)
	if err != nil {
		if swaperr.CodeOf(err).Known() {
			return out.Rejected(err)
		}
		return WrapExitError(ExitCommandError, "submit failed", err)
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{"invocation_id": id})
	}
	return out.Success(fmt.Sprintf("committed %s", id))
}

// resolveKey accepts a 64-character hex key or a name, hashed as in
// scenario files.
func resolveKey(s string) ir.Key {
	return harness.ResolveKey(strings.TrimSpace(s))
}

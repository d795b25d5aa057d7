package cli

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/loopswap/internal/server"
	"github.com/roach88/loopswap/internal/swaperr"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Addr     string
	Program  bool
	Timeout  time.Duration
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [loop-id]",
		Short: "Show a trade loop or the program config",
		Long: `Show a trade loop or, with --program, the on-ledger program config.

Loops are read from the local database, or from a running ledger when
--addr is given.

Examples:
  loopswap show --db ./loopswap.db ring
  loopswap show --addr 127.0.0.1:7420 <64-hex-id>
  loopswap show --db ./loopswap.db --program`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "read from a running ledger instead of the database")
	cmd.Flags().BoolVar(&opts.Program, "program", false, "show the program config")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout with --addr")

	return cmd
}

func runShow(opts *ShowOptions, args []string, cmd *cobra.Command) error {
	if opts.Program == (len(args) == 1) {
		return NewExitError(ExitCommandError, "pass exactly one of a loop id or --program")
	}
	if opts.Program && opts.Addr != "" {
		return NewExitError(ExitCommandError, "--program reads the local database; drop --addr")
	}
	if opts.Addr != "" {
		return showRemote(opts, args[0], cmd)
	}

	out := opts.output(cmd)
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	logger, err := opts.logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	eng, st, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Program {
		pc, ok, err := eng.LoadConfig(ctx)
		if err != nil {
			return out.Rejected(err)
		}
		if !ok {
			return out.Rejected(swaperr.New(swaperr.CodeUninitializedAccount, "program config is not initialized"))
		}
		return out.Success(pc.Describe())
	}

	loop, err := eng.LoadLoop(ctx, resolveKey(args[0]))
	if err != nil {
		return out.Rejected(err)
	}
	return out.Success(loop.Describe())
}

func showRemote(opts *ShowOptions, id string, cmd *cobra.Command) error {
	out := opts.output(cmd)

	client, err := server.Dial(opts.Addr, server.DialOptions{Timeout: opts.Timeout})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer client.Close()

	view, err := client.GetLoop(commandContext(cmd), resolveKey(id))
	if err != nil {
		if swaperr.CodeOf(err).Known() {
			return out.Rejected(err)
		}
		return WrapExitError(ExitCommandError, "get loop failed", err)
	}
	return out.Success(json.RawMessage(view))
}

package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/loopswap/internal/ledger"
	"github.com/roach88/loopswap/internal/server"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Addr     string
	Loop     string
	Limit    int
	Timeout  time.Duration
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List processed invocations",
		Long: `List the most recent processed invocations, oldest first, with their
outcome: "ok" for committed invocations, the error code for rejected ones.

Examples:
  loopswap journal --db ./loopswap.db --limit 20
  loopswap journal --db ./loopswap.db --loop ring
  loopswap journal --addr 127.0.0.1:7420 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "read from a running ledger instead of the database")
	cmd.Flags().StringVar(&opts.Loop, "loop", "", "only entries addressed to this loop (local database only)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "number of entries (0 for all; capped by the server with --addr)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout with --addr")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	entries, err := loadJournal(opts, cmd)
	if err != nil {
		return err
	}

	out := opts.output(cmd)
	if opts.Format == "json" {
		list := make([]any, len(entries))
		for i, e := range entries {
			list[i] = e
		}
		return out.Success(list)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No invocations.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(w, journalLine(e))
	}
	return nil
}

func loadJournal(opts *JournalOptions, cmd *cobra.Command) ([]map[string]any, error) {
	ctx := commandContext(cmd)

	if opts.Addr != "" {
		if opts.Loop != "" {
			return nil, NewExitError(ExitCommandError, "--loop reads the local database; drop --addr")
		}
		client, err := server.Dial(opts.Addr, server.DialOptions{Timeout: opts.Timeout})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to connect", err)
		}
		defer client.Close()
		entries, err := client.GetJournal(ctx, opts.Limit)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "get journal failed", err)
		}
		return entries, nil
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	logger, err := opts.logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	eng, st, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	var invs []ledger.Invocation
	if opts.Loop != "" {
		invs, err = eng.Store().ReadLoopInvocations(ctx, resolveKey(opts.Loop).String())
	} else {
		invs, err = eng.Journal(ctx, opts.Limit)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	entries := make([]map[string]any, len(invs))
	for i, inv := range invs {
		entries[i] = inv.Describe()
	}
	return entries, nil
}

// journalLine renders one entry as "#seq command by caller on loop -> outcome".
func journalLine(e map[string]any) string {
	line := fmt.Sprintf("#%s %v by %s", number(e["seq"]), e["command"], short(e["caller"]))
	if loop, _ := e["loop"].(string); strings.Trim(loop, "0") != "" {
		line += " on " + short(loop)
	}
	line += fmt.Sprintf(" -> %v", e["outcome"])
	if msg, _ := e["message"].(string); msg != "" {
		line += " (" + msg + ")"
	}
	return line
}

// number formats integers that may have travelled through JSON.
func number(v any) string {
	switch n := v.(type) {
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case json.Number:
		return n.String()
	default:
		return fmt.Sprint(v)
	}
}

// short abbreviates a hex key the way ir.Key.Short does.
func short(v any) string {
	s, _ := v.(string)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/loopswap/internal/assets"
)

// MintOptions holds flags for the mint command.
type MintOptions struct {
	*RootOptions
	Database string
	Asset    string
	Holder   string
	Supply   uint64
	Decimals uint8
	Label    string
}

// NewMintCommand creates the mint command.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an asset into the local database",
		Long: `Mint an asset into the local database and credit its whole supply to
one holder. Minting seeds demo and test ledgers; it is not an instruction
and is not journaled.

Example:
  loopswap mint --db ./loopswap.db --asset painting --holder alice
  loopswap mint --asset coin --holder bob --supply 100 --decimals 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMint(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Asset, "asset", "", "asset id or name (required)")
	_ = cmd.MarkFlagRequired("asset")
	cmd.Flags().StringVar(&opts.Holder, "holder", "", "first holder (required)")
	_ = cmd.MarkFlagRequired("holder")
	cmd.Flags().Uint64Var(&opts.Supply, "supply", 1, "total supply")
	cmd.Flags().Uint8Var(&opts.Decimals, "decimals", 0, "decimal places")
	cmd.Flags().StringVar(&opts.Label, "label", "", "metadata name (default: --asset)")

	return cmd
}

func runMint(opts *MintOptions, cmd *cobra.Command) error {
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

	label := opts.Label
	if label == "" {
		label = opts.Asset
	}
	asset, holder := resolveKey(opts.Asset), resolveKey(opts.Holder)
	err = eng.Mint(ctx, asset, holder, assets.Asset{
		Decimals: opts.Decimals,
		Supply:   opts.Supply,
		Name:     label,
	})
	if err != nil {
		return out.Rejected(err)
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{
			"asset":  asset.String(),
			"holder": holder.String(),
			"supply": opts.Supply,
		})
	}
	return out.Success(fmt.Sprintf("minted %d of %s to %s", opts.Supply, asset, holder))
}

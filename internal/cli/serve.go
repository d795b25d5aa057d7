package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/roach88/loopswap/internal/logging"
	"github.com/roach88/loopswap/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Listen   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger and its gRPC submission service",
		Long: `Run the ledger and its gRPC submission service.

The ledger opens the sqlite database (creating it if it doesn't exist)
and processes submissions one at a time until interrupted.

Example:
  loopswap serve --db ./loopswap.db --listen 127.0.0.1:7420
  LOOPSWAP_LOG_FORMAT=json loopswap serve --config ./loopswap.toml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.Configure(logging.Options{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure logging", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("opening database", "path", cfg.Database.Path)
	eng, st, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	lis, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	srv := grpc.NewServer()
	server.RegisterLedgerServer(srv, &server.Server{Engine: eng, Logger: logger})

	// The engine outlives ctx so in-flight RPCs can finish during
	// GracefulStop; stopServing closes it afterwards.
	engineCtx, stopEngine := context.WithCancel(context.WithoutCancel(ctx))
	defer stopEngine()
	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(engineCtx) }()
	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(lis) }()

	logger.Info("serving", "addr", lis.Addr().String(), "verification", cfg.VerificationMode().String())
	fmt.Fprintf(cmd.OutOrStdout(), "loopswap serving on %s\n", lis.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveDone:
		runErr = WrapExitError(ExitFailure, "grpc server stopped", err)
	case err := <-engineDone:
		runErr = WrapExitError(ExitFailure, "engine stopped", err)
		engineDone <- err
	}

	cancel()
	stopServing(srv, eng)
	err = <-engineDone
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) && runErr == nil {
		runErr = WrapExitError(ExitFailure, "engine error", err)
	}

	logShutdown(logger, runErr)
	return runErr
}

type gracefulStopper interface {
	GracefulStop()
}

type engineStopper interface {
	Stop()
}

// stopServing drains RPCs before closing the engine queue, so a Submit that
// is already running gets its real outcome.
func stopServing(srv gracefulStopper, eng engineStopper) {
	srv.GracefulStop()
	eng.Stop()
}

func logShutdown(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("ledger stopped", "error", err)
		return
	}
	logger.Info("ledger stopped gracefully")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/localrivet/smartsummary"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			srv, err := smartsummary.NewServer(smartsummary.ServerOptions{Config: cfg, Logger: log})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%s listening on %s (provider %s)\n",
				color.GreenString("smartsummary"), color.CyanString(cfg.Server.Addr), srv.Orchestrator().Provider())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				_ = srv.Stop(context.Background())
				return err
			case <-ctx.Done():
				log.Info("Received shutdown signal, terminating gracefully...")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overriding the config")
	return cmd
}

func newMCPCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the summarize and find_similar tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}

			srv, err := smartsummary.NewServer(smartsummary.ServerOptions{Config: cfg, Logger: log})
			if err != nil {
				return err
			}
			defer srv.Stop(context.Background())

			return srv.StartMCP()
		},
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localrivet/smartsummary"
	"github.com/localrivet/smartsummary/internal/config"
)

func newStatsCmd(opts *options) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print service statistics as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}

			if save {
				path := cfg.GetConfigPath()
				if path == "" {
					path = config.DefaultConfigFilename
				}
				if err := cfg.SaveToFile(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "configuration written to %s\n", path)
			}

			srv, err := smartsummary.NewServer(smartsummary.ServerOptions{Config: cfg, Logger: log})
			if err != nil {
				return err
			}
			defer srv.Stop(context.Background())

			report, err := srv.Orchestrator().StatsJSON(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save-config", false, "write the effective configuration back to the config file")
	return cmd
}

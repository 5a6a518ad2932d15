package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/localrivet/smartsummary/internal/config"
	"github.com/localrivet/smartsummary/internal/logger"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "smartsummary",
		Short:         "Summarize text with cached, cost-aware prompt strategies",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(opts.envFile)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigFilename, "path to the JSON config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMCPCmd(opts))
	root.AddCommand(newSummarizeCmd(opts))
	root.AddCommand(newStatsCmd(opts))

	return root
}

// loadEnvFile loads a dotenv file. A missing default file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// load reads configuration and builds the process logger. Logs always go to
// stderr so stdout stays free for summaries and the MCP transport.
func (o *options) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfigWithPath(o.configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	log := logger.FromStrings(level, cfg.Logging.Format, os.Stderr)
	slog.SetDefault(log)
	return cfg, log, nil
}

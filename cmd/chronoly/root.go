package main

import (
	"github.com/spf13/cobra"

	"chronoly/internal/cli"
	"chronoly/internal/config"
	"chronoly/internal/log"
)

// Version is set at build time via ldflags.
var Version = "dev"

// app is what every subcommand gets after the root has loaded configuration.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	root := &cobra.Command{
		Use:           "chronoly",
		Short:         "Password-gated time tracking with weekly totals",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			a.cfg = cfg
			a.logger = cli.SetupLogger(cfg.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(a),
		newWorkerCmd(a),
		newTotalsCmd(a),
		newMigrateCmd(a),
	)
	return root
}

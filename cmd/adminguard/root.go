package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/timgst1/adminguard/internal/app"
	"github.com/timgst1/adminguard/internal/logging"
)

var configFile string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adminguard",
		Short: "Policy-guarded admin API",
		Long: `adminguard serves a generic admin API over SQLite tables. Every admin
action is authorized against the abilities compiled from a YAML policy.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewPolicyCmd())

	return cmd
}

// loadApp reads the configuration and builds the application with its logger.
func loadApp() (*app.App, *slog.Logger, error) {
	cfg, err := app.LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	a, err := app.Build(cfg, log)
	if err != nil {
		logging.Error(log, "startup failed", err)
		return nil, nil, err
	}
	return a, log, nil
}

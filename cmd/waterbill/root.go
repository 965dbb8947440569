package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"waterbill/internal/config"
	"waterbill/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "waterbill",
	Short: "Water utility tariff management and billing",
	Long: `waterbill computes water bills from tiered usage tariffs, meter
rental price tables, and sewerage surcharges.

Examples:
  waterbill serve
  waterbill worker
  waterbill migrate up`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, optional)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(useraddCmd)
}

// setup loads configuration and builds the logger every subcommand shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log), nil
}

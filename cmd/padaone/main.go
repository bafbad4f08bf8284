package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"PadaOne/internal/app"
	"PadaOne/internal/config"
	"PadaOne/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "padaone",
	Short:         "Browse and curate protective antigen literature",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// serveCmd runs the web service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search pages and JSON API",
	Long: `Starts the HTTP server together with the scheduled curation sync
and, when enabled, the watcher on the curation flag directories.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// migrateCmd applies the embedded schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var curationCmd = &cobra.Command{
	Use:   "curation",
	Short: "Curation flag maintenance",
}

// curationSyncCmd mirrors flag files into the database once
var curationSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy positive/negative flag files into the curation table",
	Args:  cobra.NoArgs,
	RunE:  runCurationSync,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: $PADA_CONFIG)")

	curationCmd.AddCommand(curationSyncCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(curationCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *slog.Logger) {
	var cfg config.Config
	if configPath != "" {
		cfg = config.LoadFrom(configPath)
	} else {
		cfg = config.Load()
	}
	return cfg, logging.New(cfg.Logging.Level)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger := loadConfig()

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer application.Close()

	if err := application.Run(cmd.Context()); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	logger.Info("application stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger := loadConfig()

	version, err := app.Migrate(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
	return nil
}

func runCurationSync(cmd *cobra.Command, _ []string) error {
	cfg, logger := loadConfig()

	n, err := app.SyncCuration(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("curation sync: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "synced %d flags\n", n)
	return nil
}

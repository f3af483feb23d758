package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mdsxbm/tapcanvas/pkg/config"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Apply the embedded PostgreSQL schema migrations. Already applied versions are skipped.`,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Storage.Type != "postgres" {
		return errors.New("migrate requires storage.type \"postgres\"")
	}

	pgCfg := postgresConfig(cfg)
	pgCfg.MigrateOnStart = false
	store, err := postgres.New(cmd.Context(), pgCfg)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer store.Close()

	applied, err := store.Migrate(cmd.Context())
	if err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	slog.Info("migrations applied", "count", applied)
	return nil
}

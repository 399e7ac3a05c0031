package cmd

import (
	"errors"
	"fmt"

	"golang-quant/config"
	"golang-quant/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var (
	migrationsPath string
	downSteps      int
)

func getDSN(dbConfig config.Database) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.DBName,
		dbConfig.SSLMode)
}

// withMigrator opens the run schema migrator, hands it to fn and closes it.
func withMigrator(fn func(m *migrate.Migrate, log *logger.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return err
	}
	defer log.Sync()

	m, err := migrate.New(migrationsPath, getDSN(cfg.DB))
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Warn("Migration source error on close", logger.ErrorField(srcErr))
		}
		if dbErr != nil {
			log.Warn("Migration database error on close", logger.ErrorField(dbErr))
		}
	}()

	return fn(m, log)
}

func logVersion(m *migrate.Migrate, log *logger.Logger) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info("No migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	log.Info("Schema version", logger.IntField("version", int(version)), logger.Field("dirty", dirty))
	return nil
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create or upgrade the optimization and weighting run tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate, log *logger.Logger) error {
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration up failed: %w", err)
			}
			return logVersion(m, log)
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the last --steps migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if downSteps < 1 {
			return fmt.Errorf("--steps must be at least 1, got %d", downSteps)
		}
		return withMigrator(func(m *migrate.Migrate, log *logger.Logger) error {
			if err := m.Steps(-downSteps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration down failed: %w", err)
			}
			return logVersion(m, log)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate, log *logger.Logger) error {
			return logVersion(m, log)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the run store schema",
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "file://migrations", "migration source URL")
	downCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to revert")

	migrateCmd.AddCommand(upCmd)
	migrateCmd.AddCommand(downCmd)
	migrateCmd.AddCommand(versionCmd)
}

package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/sportsagg/cli/pkg/output"
	"github.com/telhawk-systems/sportsagg/common/storage"
)

// MigrationStatus is what migrate version prints.
type MigrationStatus struct {
	Driver  string `json:"driver" yaml:"driver"`
	Version uint   `json:"version" yaml:"version"`
	Dirty   bool   `json:"dirty" yaml:"dirty"`
}

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	var driver, sqlitePath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the games store schema",
		Long: `Apply or revert the embedded schema migrations for the configured
database driver (postgres or sqlite). The memory driver has no schema.`,
	}
	cmd.PersistentFlags().StringVar(&driver, "driver", "", "override database.driver")
	cmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "override database.sqlite.path")

	open := func() (*storage.Migrator, string, error) {
		cfg, err := opts.loadConfig()
		if err != nil {
			return nil, "", err
		}
		if driver != "" {
			cfg.Database.Driver = driver
		}
		if sqlitePath != "" {
			cfg.Database.SQLite.Path = sqlitePath
		}
		m, err := storage.NewMigrator(cfg.Database)
		if errors.Is(err, storage.ErrNoMigrations) {
			return nil, "", fmt.Errorf("%s driver: %w", cfg.Database.Driver, err)
		}
		return m, cfg.Database.Driver, err
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, driver, err := open()
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Up(cmd.Context()); err != nil {
				return err
			}
			return printMigrationStatus(cmd, opts, m, driver)
		},
	})

	var yes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert all migrations (drops the games table)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to drop the schema without --yes")
			}
			m, driver, err := open()
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Down(cmd.Context()); err != nil {
				return err
			}
			return printMigrationStatus(cmd, opts, m, driver)
		},
	}
	down.Flags().BoolVar(&yes, "yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, driver, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			return printMigrationStatus(cmd, opts, m, driver)
		},
	})
	return cmd
}

func printMigrationStatus(cmd *cobra.Command, opts *globalOptions, m *storage.Migrator, driver string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	status := MigrationStatus{Driver: driver, Version: version, Dirty: dirty}
	return output.Render(cmd.OutOrStdout(), opts.output, status, func() *output.Table {
		table := output.NewTable("DRIVER", "VERSION", "DIRTY")
		table.AddRow(status.Driver, strconv.FormatUint(uint64(status.Version), 10), strconv.FormatBool(status.Dirty))
		return table
	})
}

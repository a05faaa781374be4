// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/anerua/Credity/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or inspect the PostgreSQL schema holding accounts
and refresh tokens. The database URL comes from database.url.`,
	}

	var all bool
	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				if all {
					cmd.Println("Rolling back all migrations...")
					if err := m.Down(); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "roll back all").Wrap(err)
					}
				} else {
					if steps < 1 {
						return oops.Code("INVALID_STEPS").Errorf("--steps must be at least 1, got %d", steps)
					}
					cmd.Printf("Rolling back %d migration(s)...\n", steps)
					if err := m.Steps(-steps); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "roll back").Wrap(err)
					}
				}
				return printVersion(cmd, m)
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration, dropping all data")
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, deps, func(m Migrator) error {
					pending, err := m.PendingMigrations()
					if err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "list pending migrations").Wrap(err)
					}
					if len(pending) == 0 {
						cmd.Println("Schema is up to date")
						return nil
					}
					cmd.Println("Running migrations...")
					if err := m.Up(); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
					}
					for _, v := range pending {
						cmd.Printf("  applied %s\n", migrationLabel(v))
					}
					cmd.Println("Migrations completed successfully")
					return nil
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied schema version and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, deps, func(m Migrator) error {
					if err := printVersion(cmd, m); err != nil {
						return err
					}
					pending, err := m.PendingMigrations()
					if err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "list pending migrations").Wrap(err)
					}
					for _, v := range pending {
						cmd.Printf("  pending %s\n", migrationLabel(v))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark VERSION as applied without running it",
			Long: `Mark VERSION as the applied schema version and clear the dirty flag.
Use this only after fixing a failed migration by hand.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				target, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				return withMigrator(cmd, deps, func(m Migrator) error {
					if err := m.Force(target); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "force version").Wrap(err)
					}
					return printVersion(cmd, m)
				})
			},
		},
	)

	return cmd
}

// withMigrator opens a migrator for the configured database, runs fn and
// closes it.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) error {
	deps = deps.withDefaults()

	url, err := getDatabaseURL()
	if err != nil {
		return err
	}
	m, err := deps.MigratorFactory(url)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()
	return fn(m)
}

// getDatabaseURL returns database.url from the effective configuration.
func getDatabaseURL() (string, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("database.url is required (set CREDITY_DATABASE__URL or the config file)")
	}
	return cfg.Database.URL, nil
}

// parseForceVersion reads a leading integer from s.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return v, nil
}

func printVersion(cmd *cobra.Command, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	switch {
	case v == 0:
		cmd.Println("No migrations applied")
	case dirty:
		cmd.Printf("Schema version: %s (dirty)\n", migrationLabel(v))
	default:
		cmd.Printf("Schema version: %s\n", migrationLabel(v))
	}
	return nil
}

func migrationLabel(v uint) string {
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return fmt.Sprintf("%06d", v)
	}
	return name
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/anerua/Credity/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Credity CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credity",
		Short: "Credity - user account and token service",
		Long: `Credity registers user accounts and authenticates them with
short-lived JWT access tokens and revocable refresh tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/credity/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig reads the effective configuration for a command. flags may be
// nil for commands that expose no config overrides.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(config.Options{File: configFile, Flags: flags})
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("credity %s\ncommit: %s\nbuilt:  %s\n", version, commit, date)
			return nil
		},
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the chafer CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chafer",
		Short: "Chafer - an in-process Lua plugin runtime",
		Long: `Chafer loads self-contained Lua plugins from a directory, wires them
to a shared event registry and lets them communicate without the host
knowing them at compile time.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewListCmd())

	return cmd
}

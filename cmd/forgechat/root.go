// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the forgechat CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forgechat",
		Short: "Forgechat - a chat server with hot-loadable native plugins",
		Long: `Forgechat is a line-oriented chat server whose commands are
compiled plugins, built and hot-swapped at runtime without restarting
the service.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSweepCmd())

	return cmd
}

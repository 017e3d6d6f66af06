// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgechat/forgechat/internal/config"
	"github.com/forgechat/forgechat/internal/logging"
	"github.com/forgechat/forgechat/internal/plugin"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Clean stale plugin files and exit",
		Long: `Remove discard-pending trash markers, orphaned shadow copies, and
interrupted build intermediates from the plugin directory, without
starting the server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logging.SetDefault("forgechat", version, cfg.LogFormat)

			manager := plugin.NewManager(cfg.PluginsDir, plugin.NewLoader(plugin.OpenNativeImage))
			if err := manager.CleanDirectory(); err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			cmd.Println("Plugin directory swept.")
			return nil
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

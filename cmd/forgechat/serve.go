// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgechat/forgechat/internal/admin"
	"github.com/forgechat/forgechat/internal/build"
	"github.com/forgechat/forgechat/internal/chat"
	"github.com/forgechat/forgechat/internal/config"
	"github.com/forgechat/forgechat/internal/logging"
	"github.com/forgechat/forgechat/internal/observability"
	"github.com/forgechat/forgechat/internal/plugin"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat and admin servers",
		Long: `Start the chat server, the administrative HTTP surface, and the
plugin lifecycle manager. Runs the startup sweep before accepting
connections.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, cmd *cobra.Command) error {
	logging.SetDefault("forgechat", version, cfg.LogFormat)

	slog.Info("starting forgechat",
		"chat_addr", cfg.ChatAddr,
		"admin_addr", cfg.AdminAddr,
		"plugins_dir", cfg.PluginsDir,
		"log_format", cfg.LogFormat,
	)

	if err := os.MkdirAll(cfg.PluginsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create plugin directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Plugin lifecycle over the native image backend.
	manager := plugin.NewManager(cfg.PluginsDir, plugin.NewLoader(plugin.OpenNativeImage))
	defer manager.Close()

	// Chat state and router. The router doubles as the lifecycle
	// notifier so plugin load/unload notices reach every session.
	sessions := chat.NewSessionSet()
	mailboxes := chat.NewMailboxStore()
	identity := chat.NewIdentityMemory()
	router := chat.NewRouter(sessions, mailboxes, commandBridge{manager})
	manager.SetNotifier(router)

	if err := manager.Sweep(ctx); err != nil {
		return fmt.Errorf("startup sweep failed: %w", err)
	}
	slog.Info("startup sweep complete", "commands", len(manager.Commands()))

	builder := build.NewOrchestrator(cfg.PluginsDir, cfg.CompilerArgv, nil)

	adminServer := admin.NewServer(cfg.AdminAddr, cfg.PluginsDir, manager, builder)
	adminErrCh, err := adminServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start admin server: %w", err)
	}
	go func() {
		if adminErr := <-adminErrCh; adminErr != nil {
			slog.Error("admin server error", "error", adminErr)
			cancel()
		}
	}()

	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool { return true })
		if _, err := obsServer.Start(); err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
	}

	chatServer := chat.NewServer(cfg.ChatAddr, router, sessions, mailboxes, identity)
	chatErrCh := make(chan error, 1)
	go func() {
		chatErrCh <- chatServer.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	cmd.Println("Forgechat started")
	slog.Info("forgechat ready", "chat_addr", cfg.ChatAddr, "admin_addr", adminServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	case err := <-chatErrCh:
		if err != nil {
			slog.Error("chat server error", "error", err)
		}
	}

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := adminServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping admin server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// commandBridge adapts the plugin manager to the router's command
// source without coupling the chat package to the plugin package's
// concrete types.
type commandBridge struct {
	manager *plugin.Manager
}

func (b commandBridge) Invoke(command, sender, argument string) (string, error) {
	return b.manager.Invoke(command, sender, argument)
}

func (b commandBridge) Commands() []chat.CommandInfo {
	records := b.manager.Commands()
	infos := make([]chat.CommandInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, chat.CommandInfo{
			Command:     rec.Command,
			Description: rec.Description,
		})
	}
	return infos
}

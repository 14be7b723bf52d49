// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// studio-mcp-bridge is a stdio-to-HTTP bridge for MCP: it lets an MCP
// client speaking line-delimited JSON-RPC over stdio reach a Roblox
// Studio plugin that can only be reached through a loopback long-poll
// HTTP endpoint. See original_source/src/main.rs for the upstream this
// command surface matches (including its hidden legacy flag).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hackall360/studio-mcp-bridge/internal/config"
	"github.com/hackall360/studio-mcp-bridge/internal/install"
	"github.com/hackall360/studio-mcp-bridge/internal/lifecycle"
	"github.com/hackall360/studio-mcp-bridge/internal/obslog"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "studio-mcp-bridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "studio-mcp-bridge",
		Short:   "MCP stdio-to-HTTP bridge for the Roblox Studio plugin",
		Version: version,
		// No subcommand, and no --studio-install flag, both mean the same
		// thing: launch the installer. This is the Go equivalent of Args
		// parsing "None => install::install()" in original_source/src/main.rs.
		RunE: func(cmd *cobra.Command, args []string) error {
			return install.Run(os.Stdout)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to an optional YAML config file (defaults to $STUDIO_MCP_BRIDGE_CONFIG, then ~/.config/studio-mcp-bridge/config.yaml)")

	var legacyInstall bool
	rootCmd.Flags().BoolVar(&legacyInstall, "studio-install", false, "launch the interactive installer (legacy flag, kept for backwards compatibility)")
	_ = rootCmd.Flags().MarkHidden("studio-install")

	serverCmd := &cobra.Command{
		Use:     "server",
		Aliases: []string{"stdio"},
		Short:   "Run the MCP bridge over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), configPath)
		},
	}
	rootCmd.AddCommand(serverCmd)

	installCmd := &cobra.Command{
		Use:   "studio-install",
		Short: "Launch the interactive Roblox Studio installer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return install.Run(os.Stdout)
		},
	}
	rootCmd.AddCommand(installCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func runServer(ctx context.Context, configPath string) error {
	log := obslog.New()

	cfg, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	bridge := lifecycle.New(cfg, version, log)
	if err := bridge.Run(ctx); err != nil {
		return fmt.Errorf("bridge run: %w", err)
	}
	return nil
}

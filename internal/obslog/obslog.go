// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package obslog builds the bridge's zerolog.Logger. Every line goes to
// stderr: stdout is reserved entirely for the MCP JSON-RPC stream, so a
// stray log write there would corrupt the transport the same way an
// errant fmt.Println would in original_source/src/main.rs's stdio
// service.
package obslog

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// envVar is the bridge's logging-filter variable (spec.md §6), the Go
// equivalent of the original's RUST_LOG/tracing EnvFilter.
const envVar = "STUDIO_MCP_BRIDGE_LOG"

// New builds a logger reading its level from STUDIO_MCP_BRIDGE_LOG
// ("debug", "info", "warn", "error"; default "info"). An unrecognized
// value falls back to info rather than failing startup.
func New() zerolog.Logger {
	level := parseLevel(os.Getenv(envVar))
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

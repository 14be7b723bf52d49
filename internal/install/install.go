// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package install is a functional stub for the interactive Roblox Studio
// plugin installer. spec.md's Non-goals exclude reimplementing
// third-party MCP-client config writing and the plugin artifact
// packaging done by install_plugin/install_claude/install_cursor/etc. in
// original_source/src/install.rs — this satisfies the CLI surface in
// §6 without doing any of that work.
package install

import (
	"fmt"
	"io"
)

// Run prints guidance to out and returns nil. It exists so `studio-install`
// and the no-argument launch path are runnable commands rather than
// missing subtrees, matching spec.md §6's process command surface.
func Run(out io.Writer) error {
	_, err := fmt.Fprintln(out, "studio-mcp-bridge: interactive installation is not implemented by this build.\n"+
		"Copy the plugin into your Roblox Studio Plugins folder manually, then point\n"+
		"your MCP client at this binary with the \"server\" subcommand.")
	return err
}

// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package bridgeserver wires the three plugin tools (run_code,
// insert_model, inspect_environment) onto an MCP server, funneling every
// call through the same dispatch.State the HTTP long-poll surface drains.
// This is a Go port of the #[tool_router] impl block in
// original_source/src/main.rs, adapted to mark3labs/mcp-go's handler
// registration style.
package bridgeserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/hackall360/studio-mcp-bridge/internal/dispatch"
	"github.com/hackall360/studio-mcp-bridge/internal/proto"
)

// Server owns the dispatch state and builds the mcp-go server that exposes
// it as tools over stdio.
type Server struct {
	state   *dispatch.State
	version string
	log     zerolog.Logger
}

// New constructs a Server bound to state. version is surfaced in the MCP
// initialize handshake.
func New(state *dispatch.State, version string, log zerolog.Logger) *Server {
	return &Server{state: state, version: version, log: log}
}

// MCPServer builds the mark3labs/mcp-go server with every tool registered.
// The caller drives it over stdio (see internal/lifecycle).
func (s *Server) MCPServer() *mcpserver.MCPServer {
	srv := mcpserver.NewMCPServer(
		"studio-mcp-bridge",
		s.version,
		mcpserver.WithRecovery(),
		mcpserver.WithToolCapabilities(false),
	)

	srv.AddTool(
		mcp.NewTool("run_code",
			mcp.WithDescription("Execute a Luau command in the open Roblox Studio place and return its output"),
			mcp.WithString("command",
				mcp.Description("Luau source to execute"),
				mcp.Required(),
			),
		),
		s.handleRunCode,
	)

	srv.AddTool(
		mcp.NewTool("insert_model",
			mcp.WithDescription("Search the Roblox creator marketplace and insert the best-matching model into the place"),
			mcp.WithString("query",
				mcp.Description("Marketplace search query"),
				mcp.Required(),
			),
		),
		s.handleInsertModel,
	)

	srv.AddTool(
		mcp.NewTool("inspect_environment",
			mcp.WithDescription("Report the current Studio selection, camera, and named services"),
			mcp.WithBoolean("include_selection_names",
				mcp.Description("Include instance names in the selection report (default: true)"),
			),
			mcp.WithBoolean("include_selection_class_names",
				mcp.Description("Include class names in the selection report (default: true)"),
			),
			mcp.WithBoolean("include_selection_full_names",
				mcp.Description("Include full hierarchical names in the selection report (default: true)"),
			),
			mcp.WithBoolean("include_camera",
				mcp.Description("Include the workspace camera's CFrame, focus, and field of view (default: true)"),
			),
			mcp.WithBoolean("include_service_counts",
				mcp.Description("Include descendant counts for each reported service (default: true)"),
			),
		),
		s.handleInspectEnvironment,
	)

	return srv
}

func (s *Server) handleRunCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: command"), nil
	}
	return s.dispatch(ctx, proto.ToolArgumentValues{
		Tool:    proto.ToolRunCode,
		RunCode: &proto.RunCode{Command: command},
	})
}

func (s *Server) handleInsertModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: query"), nil
	}
	return s.dispatch(ctx, proto.ToolArgumentValues{
		Tool:        proto.ToolInsertModel,
		InsertModel: &proto.InsertModel{Query: query},
	})
}

func (s *Server) handleInspectEnvironment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	selection := proto.DefaultInspectSelectionScope()
	selection.IncludeNames = req.GetBool("include_selection_names", selection.IncludeNames)
	selection.IncludeClassNames = req.GetBool("include_selection_class_names", selection.IncludeClassNames)
	selection.IncludeFullNames = req.GetBool("include_selection_full_names", selection.IncludeFullNames)

	camera := proto.DefaultInspectCameraScope()
	camera.IncludeCFrame = req.GetBool("include_camera", camera.IncludeCFrame)
	camera.IncludeFocus = req.GetBool("include_camera", camera.IncludeFocus)
	camera.IncludeFieldOfView = req.GetBool("include_camera", camera.IncludeFieldOfView)

	services := proto.DefaultInspectServicesScope()
	services.IncludeCounts = req.GetBool("include_service_counts", services.IncludeCounts)

	return s.dispatch(ctx, proto.ToolArgumentValues{
		Tool: proto.ToolInspectEnvironment,
		InspectEnvironment: &proto.InspectEnvironment{
			Selection: &selection,
			Camera:    &camera,
			Services:  &services,
		},
	})
}

// dispatch implements spec.md §4.2: stamp a correlation id, register an
// inbox, make the invocation visible to pollers, and wait for either a
// reply or the calling context being cancelled. A reply's text becomes a
// successful result; an error outcome in the inbox (an unreachable proxy
// target, shutdown) surfaces as an MCP tool error, never as a transport
// error. Plugin replies always arrive as text, so they always produce a
// successful result. Only a cancelled context propagates as a Go error.
func (s *Server) dispatch(ctx context.Context, args proto.ToolArgumentValues) (*mcp.CallToolResult, error) {
	id := uuid.New()
	inv := proto.Invocation{Args: args, ID: &id}
	inbox := make(dispatch.Inbox, 1)

	s.log.Debug().Str("id", id.String()).Str("invocation", marshalPreview(args)).Msg("enqueueing tool invocation")
	s.state.Enqueue(inv, inbox)
	s.state.Pulse()
	defer s.state.RemoveInbox(id)

	select {
	case out := <-inbox:
		if out.Err != nil {
			s.log.Warn().Str("id", id.String()).Err(out.Err).Msg("tool invocation failed")
			return mcp.NewToolResultError(out.Err.Error()), nil
		}
		return mcp.NewToolResultText(out.Text), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// marshalPreview renders args as compact JSON for log lines; used only at
// debug level since it can contain arbitrary Luau source.
func marshalPreview(args proto.ToolArgumentValues) string {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("<unmarshalable: %v>", err)
	}
	return string(b)
}

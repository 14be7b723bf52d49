// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package lifecycle wires together the dispatch state, the MCP stdio
// transport, and either the primary HTTP listener or the secondary
// proxy-forwarder loop, coordinating their shutdown with an errgroup.
// Grounded on run_server in original_source/src/main.rs: a TCP bind
// attempt on the well-known port decides which of the two paths runs,
// and whichever task finishes first (including the stdio transport
// closing because the MCP client disconnected) tears the others down.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackall360/studio-mcp-bridge/internal/bridgeserver"
	"github.com/hackall360/studio-mcp-bridge/internal/config"
	"github.com/hackall360/studio-mcp-bridge/internal/dispatch"
	"github.com/hackall360/studio-mcp-bridge/internal/forwarder"
	"github.com/hackall360/studio-mcp-bridge/internal/httpapi"
	"github.com/hackall360/studio-mcp-bridge/internal/status"
)

// Role identifies which of the two HTTP-layer strategies this process
// ended up running, decided at Run time by the bind attempt.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// Bridge owns the process's whole runtime: dispatch state, status
// counters, and the MCP tool surface. Run drives it to completion.
type Bridge struct {
	cfg     *config.Config
	state   *dispatch.State
	status  *status.Counters
	server  *bridgeserver.Server
	log     zerolog.Logger
	version string
}

// New constructs a Bridge ready to Run.
func New(cfg *config.Config, version string, log zerolog.Logger) *Bridge {
	state := dispatch.New()
	counters := status.New()
	return &Bridge{
		cfg:     cfg,
		state:   state,
		status:  counters,
		server:  bridgeserver.New(state, version, log),
		log:     log,
		version: version,
	}
}

// Run blocks until the MCP client disconnects, the HTTP/forwarder task
// fails, or ctx is cancelled — whichever happens first — then tears down
// every remaining task and resolves any still-pending dispatch with
// dispatch.ErrShuttingDown (spec.md §4.7, Open Question 2).
func (b *Bridge) Run(ctx context.Context) error {
	listener, bindErr := bindWellKnownPort(b.cfg.Port)
	if bindErr != nil && !errors.Is(bindErr, syscall.EADDRINUSE) {
		return fmt.Errorf("bind well-known port %d: %w", b.cfg.Port, bindErr)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if bindErr == nil {
		b.status.SetRole(string(RolePrimary))
		b.log.Info().Int("port", b.cfg.Port).Msg("bound well-known port, running as primary")
		router := httpapi.New(b.state, b.cfg.PollTimeout, b.status, b.log)
		httpSrv := &http.Server{Handler: router.Mux()}

		g.Go(func() error {
			if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return httpSrv.Close()
		})
	} else {
		b.status.SetRole(string(RoleSecondary))
		b.log.Info().Err(bindErr).Int("port", b.cfg.Port).Msg("well-known port unavailable, running as secondary proxy")
		fwd := forwarder.New(b.state, fmt.Sprintf("http://127.0.0.1:%d", b.cfg.Port), b.log)
		g.Go(func() error {
			if err := fwd.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		// A client disconnect ends Listen with a nil error, which errgroup
		// does not treat as a reason to cancel gctx; cancel explicitly so
		// the HTTP server or forwarder stops as well.
		defer cancel()
		stdio := mcpserver.NewStdioServer(b.server.MCPServer())
		err := stdio.Listen(gctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio transport: %w", err)
		}
		return nil
	})

	err := g.Wait()
	b.state.Shutdown()
	return err
}

// bindWellKnownPort attempts to claim the bridge's loopback port. A nil
// error means this process is primary. A non-nil error may or may not mean
// another instance holds the port: the caller must distinguish
// syscall.EADDRINUSE (fall back to secondary/proxy mode, spec.md §4.7) from
// every other bind failure (permission denied, invalid port, ...), which is
// fatal per spec.md §7's "Transport (fatal)" classification.
func bindWellKnownPort(port int) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
}

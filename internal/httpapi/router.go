// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package httpapi implements the primary instance's loopback HTTP surface:
// the long-poll /request endpoint the plugin drains, the /response endpoint
// it posts replies to, the /proxy endpoint a secondary bridge forwards
// through, and a /debug/state status route. This is a Go port of the three
// axum handlers in original_source/src/rbx_studio_server.rs.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackall360/studio-mcp-bridge/internal/dispatch"
	"github.com/hackall360/studio-mcp-bridge/internal/proto"
	"github.com/hackall360/studio-mcp-bridge/internal/status"
)

// Router holds everything the HTTP handlers need: the shared dispatch
// state, the long-poll deadline, status counters, and a logger.
type Router struct {
	state       *dispatch.State
	pollTimeout time.Duration
	status      *status.Counters
	log         zerolog.Logger
}

// New constructs a Router. pollTimeout is the long-poll deadline from
// spec.md §4.3 (15s in production; tests use a shorter value).
func New(state *dispatch.State, pollTimeout time.Duration, counters *status.Counters, log zerolog.Logger) *Router {
	return &Router{state: state, pollTimeout: pollTimeout, status: counters, log: log}
}

// Mux builds the http.Handler serving /request, /response, /proxy, and
// /debug/state.
func (r *Router) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /request", r.handleRequest)
	mux.HandleFunc("POST /response", r.handleResponse)
	mux.HandleFunc("POST /proxy", r.handleProxy)
	mux.HandleFunc("GET /debug/state", r.handleDebugState)
	return mux
}

// handleRequest implements spec.md §4.3: pop if available, otherwise park
// on the notifier and retry, bounded by pollTimeout; 423 on expiry.
func (r *Router) handleRequest(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), r.pollTimeout)
	defer cancel()

	for {
		// Take the watch channel before popping so that an enqueue landing
		// between an empty Pop and the park still wakes this poller.
		watch := r.state.Watch()
		if inv, ok := r.state.Pop(); ok {
			r.status.RecordPoll(false)
			writeJSON(w, http.StatusOK, inv)
			return
		}
		select {
		case <-watch:
			continue
		case <-ctx.Done():
			r.status.RecordPoll(true)
			w.WriteHeader(http.StatusLocked)
			return
		}
	}
}

// handleResponse implements spec.md §4.4.
func (r *Router) handleResponse(w http.ResponseWriter, req *http.Request) {
	var reply proto.Reply
	if err := json.NewDecoder(req.Body).Decode(&reply); err != nil {
		http.Error(w, "invalid response body: "+err.Error(), http.StatusBadRequest)
		return
	}

	inbox, ok := r.state.TakeInbox(reply.ID)
	if !ok {
		r.status.RecordResponse(true)
		r.log.Warn().Str("id", reply.ID.String()).Msg("response for unknown id")
		http.Error(w, "unknown id", http.StatusBadRequest)
		return
	}
	r.status.RecordResponse(false)
	inbox <- dispatch.Outcome{Text: reply.Response}
	w.WriteHeader(http.StatusOK)
}

// handleProxy implements spec.md §4.5: enqueue an invocation the caller has
// already assigned an id to, wait for its reply, and hand it back.
func (r *Router) handleProxy(w http.ResponseWriter, req *http.Request) {
	var inv proto.Invocation
	if err := json.NewDecoder(req.Body).Decode(&inv); err != nil {
		http.Error(w, "invalid invocation body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if inv.ID == nil {
		http.Error(w, "proxy command with no id", http.StatusBadRequest)
		return
	}
	id := *inv.ID

	inbox := make(dispatch.Inbox, 1)
	r.state.Enqueue(inv, inbox)
	r.state.Pulse()

	defer r.state.RemoveInbox(id)

	select {
	case out := <-inbox:
		if out.Err != nil {
			http.Error(w, out.Err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, proto.Reply{Response: out.Text, ID: id})
	case <-req.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
	}
}

// handleDebugState serves the ambient status snapshot from SPEC_FULL.md
// §4.10. It is never read by the plugin or by a secondary bridge.
func (r *Router) handleDebugState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.status.Snapshot(r.state))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package forwarder implements the secondary bridge instance's proxy loop:
// when the well-known plugin port is already held by another bridge
// process, this instance drains its own dispatch queue and forwards each
// invocation to the primary's /proxy endpoint instead of serving /request
// itself. Grounded on dud_proxy_loop in
// original_source/src/rbx_studio_server.rs, with the retry-then-fail
// policy from SPEC_FULL.md §4.6 layered on top (the original drops the
// request on the first transport error and leaves the caller hanging).
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackall360/studio-mcp-bridge/internal/dispatch"
	"github.com/hackall360/studio-mcp-bridge/internal/proto"
)

// maxAttempts is how many times a single invocation is forwarded to the
// primary before the secondary gives up and resolves it locally with an
// error (SPEC_FULL.md §4.6, resolving spec.md's first Open Question).
const maxAttempts = 3

// retryBackoff is the delay between forwarding attempts.
const retryBackoff = 200 * time.Millisecond

// Forwarder drains a dispatch.State and relays each invocation to a
// primary bridge's /proxy endpoint over loopback HTTP.
type Forwarder struct {
	state      *dispatch.State
	primaryURL string
	client     *http.Client
	log        zerolog.Logger
}

// New constructs a Forwarder. primaryURL is the base URL of the primary
// bridge's HTTP listener, e.g. "http://127.0.0.1:44755".
func New(state *dispatch.State, primaryURL string, log zerolog.Logger) *Forwarder {
	return &Forwarder{
		state:      state,
		primaryURL: primaryURL,
		client:     &http.Client{},
		log:        log,
	}
}

// Run drains the queue until ctx is cancelled. It is meant to be the sole
// consumer of state's queue in a secondary process — nothing else pops
// from it, since there is no local /request poller to race against.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		// Take the watch channel before popping so that an enqueue landing
		// between an empty Pop and the park still wakes this loop.
		watch := f.state.Watch()
		inv, ok := f.state.Pop()
		if !ok {
			select {
			case <-watch:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		f.forward(ctx, inv)
	}
}

// forward relays one invocation to the primary, making up to maxAttempts
// attempts in total before resolving the local inbox with a synthesized
// error.
func (f *Forwarder) forward(ctx context.Context, inv proto.Invocation) {
	id := *inv.ID
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, err := f.postOnce(ctx, inv)
		if err == nil {
			f.resolve(id, dispatch.Outcome{Text: reply.Response})
			return
		}
		lastErr = err
		f.log.Warn().Err(err).Str("id", id.String()).Int("attempt", attempt).Msg("proxy forward failed")

		if attempt < maxAttempts {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				f.resolve(id, dispatch.Outcome{Err: ctx.Err()})
				return
			}
		}
	}

	f.resolve(id, dispatch.Outcome{Err: fmt.Errorf("proxy target unreachable after %d attempts: %w", maxAttempts, lastErr)})
}

func (f *Forwarder) postOnce(ctx context.Context, inv proto.Invocation) (proto.Reply, error) {
	body, err := json.Marshal(inv)
	if err != nil {
		return proto.Reply{}, fmt.Errorf("marshal invocation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.primaryURL+"/proxy", bytes.NewReader(body))
	if err != nil {
		return proto.Reply{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return proto.Reply{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return proto.Reply{}, fmt.Errorf("primary returned status %d", resp.StatusCode)
	}

	var reply proto.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return proto.Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	return reply, nil
}

// resolve delivers out to the local inbox registered for id, if any.
// By the time forward runs, the inbox was already registered by whichever
// tool handler enqueued this invocation, so this should always succeed —
// but a missing inbox (already resolved by Shutdown) is not an error.
func (f *Forwarder) resolve(id uuid.UUID, out dispatch.Outcome) {
	inbox, ok := f.state.TakeInbox(id)
	if !ok {
		return
	}
	inbox <- out
}

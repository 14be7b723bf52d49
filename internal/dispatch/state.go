// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package dispatch implements the single rendezvous point between the MCP
// tool handlers, the long-poll HTTP endpoint, and the proxy-forwarder loop:
// a FIFO queue of pending invocations plus a correlation map of reply
// inboxes, guarded by one mutex and paired with an edge-triggered notifier.
//
// This is a direct port of AppState / the process_queue + output_map pair
// in original_source/src/rbx_studio_server.rs, generalized from a single
// Arc<Mutex<..>> to an exported type any number of collaborators can hold a
// reference to.
package dispatch

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/hackall360/studio-mcp-bridge/internal/proto"
)

// ErrShuttingDown is delivered to any inbox still registered when the
// bridge tears down its dispatch state (see State.Shutdown). It resolves
// SPEC_FULL.md's Open Question 2 as "internal error result" rather than
// silent cancellation.
var ErrShuttingDown = errors.New("bridge shutting down")

// Outcome is what a reply inbox receives: either the plugin's opaque text,
// or an error (an unreachable proxy target, the forwarder's context ending,
// a failed /proxy round trip, or shutdown). Exactly one of Text/Err is
// meaningful per delivery. The /response endpoint always delivers Text, so
// a plugin reply, including one that describes a failure, never arrives
// as Err.
type Outcome struct {
	Text string
	Err  error
}

// Inbox is the per-dispatch single-use reply channel. It is always created
// with capacity 1 so that whichever side resolves it — the /response
// handler, the proxy-forwarder, or Shutdown — never blocks on a send.
type Inbox chan Outcome

func newInbox() Inbox { return make(Inbox, 1) }

// State is the process-wide dispatch singleton described in spec.md §3. The
// zero value is not usable; construct with New.
type State struct {
	mu      sync.Mutex
	queue   []proto.Invocation
	inboxes map[uuid.UUID]Inbox
	notify  *notifier
}

// New constructs an empty dispatch State.
func New() *State {
	return &State{
		inboxes: make(map[uuid.UUID]Inbox),
		notify:  newNotifier(),
	}
}

// Enqueue registers inbox under inv.ID and appends inv to the queue under a
// single lock acquisition, satisfying invariant 2 (the inbox exists before
// the invocation is visible to pollers). It does not pulse the notifier —
// callers must call Pulse after Enqueue returns, outside any lock they may
// themselves be holding.
//
// Enqueue panics if inv.ID is nil; every invocation that reaches the shared
// state must already be stamped (invariant 1).
func (s *State) Enqueue(inv proto.Invocation, inbox Inbox) {
	if inv.ID == nil {
		panic("dispatch: Enqueue called with a nil invocation ID")
	}
	s.mu.Lock()
	s.queue = append(s.queue, inv)
	s.inboxes[*inv.ID] = inbox
	s.mu.Unlock()
}

// Pulse signals the edge-triggered notifier. Safe to call with zero
// watchers; a pulse with nobody listening is simply invisible to whoever
// watches next, which is correct (they'll see the queue state directly).
func (s *State) Pulse() {
	s.notify.pulse()
}

// Pop removes and returns the oldest queued invocation, preserving FIFO
// order (testable property 1 in spec.md §8).
func (s *State) Pop() (proto.Invocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return proto.Invocation{}, false
	}
	inv := s.queue[0]
	s.queue = s.queue[1:]
	return inv, true
}

// Watch returns a channel that closes the next time Pulse is called. Per
// spec.md §5, callers must take this channel first, then re-check the
// queue (via Pop), and park on the channel only if that Pop found nothing;
// a Pulse that lands between an empty Pop and a later Watch call is not
// seen by the channel Watch returns. Watch itself does not look at the
// queue.
func (s *State) Watch() <-chan struct{} {
	return s.notify.watch()
}

// TakeInbox removes and returns the inbox registered under id. The second
// return is false if no inbox is registered — the "unknown id" case in
// spec.md §4.4/§4.5, which callers surface as a protocol error without
// touching any other inflight dispatch.
func (s *State) TakeInbox(id uuid.UUID) (Inbox, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inbox, ok := s.inboxes[id]
	if ok {
		delete(s.inboxes, id)
	}
	return inbox, ok
}

// RemoveInbox deletes the inbox entry for id if present. It is idempotent —
// removing an already-absent entry (because the reply path already took it)
// is not an error, satisfying invariant 4.
func (s *State) RemoveInbox(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inboxes, id)
	s.mu.Unlock()
}

// Snapshot reports the current queue depth and inflight (registered inbox)
// count for the status/debug surface. It takes the same lock as the
// mutating methods and never blocks on anything else.
func (s *State) Snapshot() (queued, inflight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), len(s.inboxes)
}

// Shutdown resolves every inbox still registered with ErrShuttingDown and
// clears the correlation map. It never blocks: inboxes are always buffered
// with capacity 1. Call this once, after every collaborator goroutine
// (HTTP server, forwarder, MCP transport) has stopped touching State.
func (s *State) Shutdown() {
	s.mu.Lock()
	pending := s.inboxes
	s.inboxes = make(map[uuid.UUID]Inbox)
	s.mu.Unlock()

	for _, inbox := range pending {
		inbox <- Outcome{Err: ErrShuttingDown}
	}
}

// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package status tracks small in-memory counters for the bridge's
// /debug/state surface (SPEC_FULL.md §4.10). Nothing here is exercised by
// the plugin protocol; it exists purely so an operator (or the test suite)
// can see queue depth, inflight count, and poll/response outcomes without
// attaching a debugger.
package status

import (
	"sync"

	"github.com/hackall360/studio-mcp-bridge/internal/dispatch"
)

// Counters is a mutex-guarded set of running tallies. The zero value is
// ready to use.
type Counters struct {
	mu sync.Mutex

	role string

	pollsOK      uint64
	pollsTimeout uint64

	responsesOK      uint64
	responsesUnknown uint64
}

// New returns an empty Counters with role left unset.
func New() *Counters { return &Counters{} }

// SetRole records whether this process is acting as "primary" or
// "secondary". Set once at startup, read by the snapshot.
func (c *Counters) SetRole(role string) {
	c.mu.Lock()
	c.role = role
	c.mu.Unlock()
}

// RecordPoll tallies one /request resolution: timedOut true means the long
// poll returned 423, false means it returned 200 with an invocation.
func (c *Counters) RecordPoll(timedOut bool) {
	c.mu.Lock()
	if timedOut {
		c.pollsTimeout++
	} else {
		c.pollsOK++
	}
	c.mu.Unlock()
}

// RecordResponse tallies one /response resolution: unknown true means the
// correlation id had no registered inbox. /proxy round trips are not
// counted here.
func (c *Counters) RecordResponse(unknown bool) {
	c.mu.Lock()
	if unknown {
		c.responsesUnknown++
	} else {
		c.responsesOK++
	}
	c.mu.Unlock()
}

// Snapshot is the JSON-serializable view served at /debug/state.
type Snapshot struct {
	Role             string `json:"role"`
	QueueDepth       int    `json:"queueDepth"`
	Inflight         int    `json:"inflight"`
	PollsOK          uint64 `json:"pollsOk"`
	PollsTimeout     uint64 `json:"pollsTimeout"`
	ResponsesOK      uint64 `json:"responsesOk"`
	ResponsesUnknown uint64 `json:"responsesUnknown"`
}

// Snapshot reads the current counters plus a queue/inbox depth from state.
func (c *Counters) Snapshot(state *dispatch.State) Snapshot {
	queued, inflight := state.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Role:             c.role,
		QueueDepth:       queued,
		Inflight:         inflight,
		PollsOK:          c.pollsOK,
		PollsTimeout:     c.pollsTimeout,
		ResponsesOK:      c.responsesOK,
		ResponsesUnknown: c.responsesUnknown,
	}
}

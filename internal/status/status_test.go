package status

import (
	"testing"

	"github.com/google/uuid"

	"github.com/hackall360/studio-mcp-bridge/internal/dispatch"
	"github.com/hackall360/studio-mcp-bridge/internal/proto"
)

func TestSnapshotReflectsRecordedCounters(t *testing.T) {
	c := New()
	c.SetRole("primary")
	c.RecordPoll(false)
	c.RecordPoll(false)
	c.RecordPoll(true)
	c.RecordResponse(false)
	c.RecordResponse(true)
	c.RecordResponse(true)

	state := dispatch.New()
	snap := c.Snapshot(state)

	if snap.Role != "primary" {
		t.Fatalf("Role = %q, want %q", snap.Role, "primary")
	}
	if snap.PollsOK != 2 || snap.PollsTimeout != 1 {
		t.Fatalf("polls = %d/%d, want 2/1", snap.PollsOK, snap.PollsTimeout)
	}
	if snap.ResponsesOK != 1 || snap.ResponsesUnknown != 2 {
		t.Fatalf("responses = %d/%d, want 1/2", snap.ResponsesOK, snap.ResponsesUnknown)
	}
	if snap.QueueDepth != 0 || snap.Inflight != 0 {
		t.Fatalf("expected empty state, got queueDepth=%d inflight=%d", snap.QueueDepth, snap.Inflight)
	}
}

func TestSnapshotReadsQueueAndInflightDepthFromState(t *testing.T) {
	c := New()
	state := dispatch.New()

	id := uuid.New()
	inv := proto.Invocation{
		Args: proto.ToolArgumentValues{Tool: proto.ToolRunCode, RunCode: &proto.RunCode{Command: "x"}},
		ID:   &id,
	}
	state.Enqueue(inv, make(dispatch.Inbox, 1))

	snap := c.Snapshot(state)
	if snap.QueueDepth != 1 {
		t.Fatalf("QueueDepth = %d, want 1", snap.QueueDepth)
	}
	if snap.Inflight != 1 {
		t.Fatalf("Inflight = %d, want 1", snap.Inflight)
	}
}

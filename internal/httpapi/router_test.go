package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackall360/studio-mcp-bridge/internal/dispatch"
	"github.com/hackall360/studio-mcp-bridge/internal/proto"
	"github.com/hackall360/studio-mcp-bridge/internal/status"
)

func testRouter(pollTimeout time.Duration) (*Router, *dispatch.State) {
	state := dispatch.New()
	r := New(state, pollTimeout, status.New(), zerolog.Nop())
	return r, state
}

func TestRequestTimesOutAfterDeadlineWithEmptyQueue(t *testing.T) {
	r, _ := testRouter(30 * time.Millisecond)
	req := httptest.NewRequest(http.MethodGet, "/request", nil)
	w := httptest.NewRecorder()

	start := time.Now()
	r.handleRequest(w, req)
	elapsed := time.Since(start)

	if w.Code != http.StatusLocked {
		t.Fatalf("got status %d, want 423", w.Code)
	}
	if elapsed < 30*time.Millisecond {
		t.Fatalf("returned before the deadline elapsed: %v", elapsed)
	}
}

func TestRequestUnblocksOnEnqueue(t *testing.T) {
	r, state := testRouter(2 * time.Second)

	id := uuid.New()
	inv := proto.Invocation{Args: proto.ToolArgumentValues{Tool: proto.ToolRunCode, RunCode: &proto.RunCode{Command: "return 1"}}, ID: &id}

	go func() {
		time.Sleep(20 * time.Millisecond)
		state.Enqueue(inv, make(dispatch.Inbox, 1))
		state.Pulse()
	}()

	req := httptest.NewRequest(http.MethodGet, "/request", nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.handleRequest(w, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("handleRequest did not return within 1s of the enqueue")
	}

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	var got proto.Invocation
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if *got.ID != id {
		t.Fatalf("got id %s, want %s", *got.ID, id)
	}
}

func TestResponseUnknownIDIsRejectedWithoutSideEffects(t *testing.T) {
	r, state := testRouter(time.Second)

	id := uuid.New()
	inv := proto.Invocation{Args: proto.ToolArgumentValues{Tool: proto.ToolRunCode, RunCode: &proto.RunCode{Command: "cmd"}}, ID: &id}
	inbox := make(dispatch.Inbox, 1)
	state.Enqueue(inv, inbox)

	unknownReply := proto.Reply{Response: "ignored", ID: uuid.New()}
	body, _ := json.Marshal(unknownReply)
	req := httptest.NewRequest(http.MethodPost, "/response", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.handleResponse(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}

	// The legitimate dispatch must still be completable afterwards.
	legitReply := proto.Reply{Response: "real answer", ID: id}
	body, _ = json.Marshal(legitReply)
	req = httptest.NewRequest(http.MethodPost, "/response", bytes.NewReader(body))
	w = httptest.NewRecorder()
	r.handleResponse(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	select {
	case out := <-inbox:
		if out.Text != "real answer" {
			t.Fatalf("got %q", out.Text)
		}
	default:
		t.Fatalf("expected the inbox to be resolved")
	}
}

func TestProxyRoundTrip(t *testing.T) {
	r, state := testRouter(time.Second)

	id := uuid.New()
	inv := proto.Invocation{Args: proto.ToolArgumentValues{Tool: proto.ToolRunCode, RunCode: &proto.RunCode{Command: "cmd"}}, ID: &id}
	body, _ := json.Marshal(inv)
	req := httptest.NewRequest(http.MethodPost, "/proxy", bytes.NewReader(body))
	w := httptest.NewRecorder()

	go func() {
		time.Sleep(10 * time.Millisecond)
		inbox, ok := state.TakeInbox(id)
		if !ok {
			t.Errorf("expected the proxy handler to have registered an inbox")
			return
		}
		inbox <- dispatch.Outcome{Text: "from plugin"}
	}()

	r.handleProxy(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", w.Code, w.Body.String())
	}
	var got proto.Reply
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Response != "from plugin" || got.ID != id {
		t.Fatalf("got %+v", got)
	}
}

func TestProxyRequiresNonNilID(t *testing.T) {
	r, _ := testRouter(time.Second)
	inv := proto.Invocation{Args: proto.ToolArgumentValues{Tool: proto.ToolRunCode, RunCode: &proto.RunCode{Command: "cmd"}}, ID: nil}
	body, _ := json.Marshal(inv)
	req := httptest.NewRequest(http.MethodPost, "/proxy", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.handleProxy(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

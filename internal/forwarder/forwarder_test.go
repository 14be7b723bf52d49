package forwarder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackall360/studio-mcp-bridge/internal/dispatch"
	"github.com/hackall360/studio-mcp-bridge/internal/proto"
)

func newInvocation(command string) (proto.Invocation, uuid.UUID) {
	id := uuid.New()
	return proto.Invocation{
		Args: proto.ToolArgumentValues{Tool: proto.ToolRunCode, RunCode: &proto.RunCode{Command: command}},
		ID:   &id,
	}, id
}

func TestForwardSucceedsOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var inv proto.Invocation
		json.NewDecoder(r.Body).Decode(&inv)
		_ = json.NewEncoder(w).Encode(proto.Reply{Response: "ok", ID: *inv.ID})
	}))
	defer srv.Close()

	state := dispatch.New()
	f := New(state, srv.URL, zerolog.Nop())

	inv, id := newInvocation("cmd")
	inbox := make(dispatch.Inbox, 1)
	state.Enqueue(inv, inbox)

	f.forward(context.Background(), inv)

	select {
	case out := <-inbox:
		if out.Err != nil || out.Text != "ok" {
			t.Fatalf("got %+v", out)
		}
	default:
		t.Fatalf("expected the inbox to be resolved")
	}
	_ = id
}

func TestForwardRetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	state := dispatch.New()
	f := New(state, srv.URL, zerolog.Nop())

	inv, _ := newInvocation("cmd")
	inbox := make(dispatch.Inbox, 1)
	state.Enqueue(inv, inbox)

	start := time.Now()
	f.forward(context.Background(), inv)
	elapsed := time.Since(start)

	if got := atomic.LoadInt32(&calls); got != maxAttempts {
		t.Fatalf("got %d attempts, want %d", got, maxAttempts)
	}
	if elapsed < 2*retryBackoff {
		t.Fatalf("expected at least two backoff delays between three attempts, took %v", elapsed)
	}

	select {
	case out := <-inbox:
		if out.Err == nil {
			t.Fatalf("expected a synthesized error after exhausting retries")
		}
	default:
		t.Fatalf("expected the inbox to be resolved with an error")
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	state := dispatch.New()
	f := New(state, "http://127.0.0.1:0", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected Run to return the cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}

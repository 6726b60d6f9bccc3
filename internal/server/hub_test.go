package server

import (
	"strings"
	"testing"
)

func TestHubReplayPreservesOrder(t *testing.T) {
	h := newDebateHub()
	h.Chunk("hello ")
	h.Heartbeat()
	h.Chunk("world")
	h.Event("run-finished", map[string]any{"status": "completed"})

	replay, live := h.Subscribe()
	defer h.Unsubscribe(live)

	if len(replay) != 4 {
		t.Fatalf("replay length = %d, want 4", len(replay))
	}
	if replay[0].Event != "chunk" || !strings.Contains(replay[0].Data, "hello ") {
		t.Fatalf("first frame = %+v, want chunk hello", replay[0])
	}
	if replay[1].Comment != "keep-alive" {
		t.Fatalf("second frame = %+v, want keep-alive comment", replay[1])
	}
	if replay[3].Event != "run-finished" {
		t.Fatalf("last frame event = %q, want run-finished", replay[3].Event)
	}
}

func TestHubDeliversLiveFrames(t *testing.T) {
	h := newDebateHub()
	_, live := h.Subscribe()

	h.Chunk("streamed")
	f := <-live
	if f.Event != "chunk" || !strings.Contains(f.Data, "streamed") {
		t.Fatalf("live frame = %+v", f)
	}

	h.Close()
	if _, ok := <-live; ok {
		t.Fatal("channel should be closed after Close")
	}
}

func TestHubCloseStopsPublishing(t *testing.T) {
	h := newDebateHub()
	h.Chunk("before")
	h.Close()
	h.Chunk("after")
	h.Heartbeat()

	replay, live := h.Subscribe()
	if len(replay) != 1 {
		t.Fatalf("replay length = %d, want 1 (nothing published after close)", len(replay))
	}
	if _, ok := <-live; ok {
		t.Fatal("subscribing to a closed hub should yield a closed channel")
	}
}

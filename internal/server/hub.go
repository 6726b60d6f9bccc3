package server

import (
	"encoding/json"
	"sync"
)

// frame is one server-sent-events message. Comment-only frames carry
// keep-alives; otherwise Event names the SSE event and Data its payload.
type frame struct {
	Event   string
	Data    string
	Comment string
}

// debateHub fans a running debate's output out to any number of SSE
// subscribers. Frames are buffered so a subscriber that connects late
// replays the debate from the beginning.
type debateHub struct {
	mu     sync.Mutex
	frames []frame
	subs   map[chan frame]struct{}
	closed bool
}

func newDebateHub() *debateHub {
	return &debateHub{subs: make(map[chan frame]struct{})}
}

func (h *debateHub) publish(f frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.frames = append(h.frames, f)
	for ch := range h.subs {
		select {
		case ch <- f:
		default:
			// slow subscriber; it still has the replay buffer
		}
	}
}

// Subscribe returns the frames published so far plus a channel for new
// ones. The channel is closed when the debate finishes.
func (h *debateHub) Subscribe() ([]frame, chan frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	replay := make([]frame, len(h.frames))
	copy(replay, h.frames)
	ch := make(chan frame, 64)
	if h.closed {
		close(ch)
		return replay, ch
	}
	h.subs[ch] = struct{}{}
	return replay, ch
}

func (h *debateHub) Unsubscribe(ch chan frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Close ends the stream for every subscriber. No frame is delivered
// after Close returns.
func (h *debateHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}

// Chunk implements council.Sink.
func (h *debateHub) Chunk(text string) {
	b, _ := json.Marshal(map[string]string{"text": text})
	h.publish(frame{Event: "chunk", Data: string(b)})
}

// Heartbeat implements council.Sink.
func (h *debateHub) Heartbeat() {
	h.publish(frame{Comment: "keep-alive"})
}

// Event implements council.Sink.
func (h *debateHub) Event(name string, payload any) {
	b, _ := json.Marshal(payload)
	h.publish(frame{Event: name, Data: string(b)})
}

package council

import (
	"strings"
	"sync"
)

// Sink receives ordered run output for a live consumer. Chunk carries
// model text and tool markers in generation order; Heartbeat is an
// out-of-band keep-alive that may interleave anywhere; Event carries
// structured status transitions.
type Sink interface {
	Chunk(text string)
	Heartbeat()
	Event(name string, payload any)
}

// NopSink discards everything. Useful for scheduled background runs.
type NopSink struct{}

func (NopSink) Chunk(string)      {}
func (NopSink) Heartbeat()        {}
func (NopSink) Event(string, any) {}

// BufferSink accumulates chunks in memory and counts heartbeats.
// It is safe for concurrent use.
type BufferSink struct {
	mu     sync.Mutex
	buf    strings.Builder
	beats  int
	events []string
}

func (b *BufferSink) Chunk(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.WriteString(text)
}

func (b *BufferSink) Heartbeat() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beats++
}

func (b *BufferSink) Event(name string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, name)
}

// Text returns everything written so far.
func (b *BufferSink) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Heartbeats returns the number of keep-alive signals received.
func (b *BufferSink) Heartbeats() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.beats
}

// Events returns the event names received, in order.
func (b *BufferSink) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	copy(out, b.events)
	return out
}

package council

import (
	"time"
)

// heartbeat keeps a Sink alive while a task blocks on model generation or
// a tool call. It runs on its own goroutine so no amount of blocking in
// the executor can starve it. Every beat emits a keep-alive signal; every
// visibleEvery-th beat also emits a visible progress event with the
// elapsed time. Stop blocks until the goroutine has exited, so no signal
// is ever emitted after a task reaches a terminal status.
type heartbeat struct {
	stop chan struct{}
	done chan struct{}
}

func startHeartbeat(sink Sink, interval time.Duration, visibleEvery int, taskName string) *heartbeat {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if visibleEvery <= 0 {
		visibleEvery = 3
	}
	h := &heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	started := time.Now()
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		beats := 0
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				beats++
				sink.Heartbeat()
				if beats%visibleEvery == 0 {
					sink.Event("progress", map[string]any{
						"task":    taskName,
						"elapsed": time.Since(started).Round(time.Second).String(),
					})
				}
			}
		}
	}()
	return h
}

func (h *heartbeat) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	<-h.done
}

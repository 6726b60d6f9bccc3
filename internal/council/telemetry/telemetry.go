// Package telemetry records council run metrics: task outcomes, tool
// calls, heartbeats and stream activity. Counters are exported through
// the default prometheus registry and scraped at /metrics.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellbeing",
		Subsystem: "council",
		Name:      "tasks_total",
		Help:      "Tasks executed, by terminal status.",
	}, []string{"status"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wellbeing",
		Subsystem: "council",
		Name:      "task_duration_seconds",
		Help:      "Wall-clock task duration.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 240, 480},
	}, []string{"category"})

	toolTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellbeing",
		Subsystem: "council",
		Name:      "tool_calls_total",
		Help:      "Tool invocations, by tool and outcome.",
	}, []string{"tool", "outcome"})

	toolLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wellbeing",
		Subsystem: "council",
		Name:      "tool_latency_seconds",
		Help:      "Tool invocation latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	}, []string{"tool"})

	heartbeatsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wellbeing",
		Subsystem: "council",
		Name:      "heartbeats_total",
		Help:      "Keep-alive signals emitted during task execution.",
	})

	streamRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wellbeing",
		Subsystem: "council",
		Name:      "stream_retries_total",
		Help:      "Generation streams abandoned for stalling and retried.",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellbeing",
		Subsystem: "council",
		Name:      "runs_total",
		Help:      "Full council runs, by terminal status.",
	}, []string{"status"})
)

// Telemetry aggregates counters for one process plus an in-memory summary
// that handlers can expose as JSON.
type Telemetry struct {
	mu        sync.Mutex
	taskCount map[string]int
	toolCount map[string]int
	beats     int64
}

func New() *Telemetry {
	return &Telemetry{
		taskCount: map[string]int{},
		toolCount: map[string]int{},
	}
}

// RecordTask registers a finished task.
func (t *Telemetry) RecordTask(category, status string, d time.Duration) {
	taskTotal.WithLabelValues(status).Inc()
	taskDuration.WithLabelValues(category).Observe(d.Seconds())
	t.mu.Lock()
	t.taskCount[status]++
	t.mu.Unlock()
}

// RecordToolCall registers one tool invocation.
func (t *Telemetry) RecordToolCall(tool string, success bool, latency time.Duration) {
	outcome := "error"
	if success {
		outcome = "ok"
	}
	toolTotal.WithLabelValues(tool, outcome).Inc()
	toolLatency.WithLabelValues(tool).Observe(latency.Seconds())
	t.mu.Lock()
	t.toolCount[tool]++
	t.mu.Unlock()
}

// RecordHeartbeat registers one keep-alive signal.
func (t *Telemetry) RecordHeartbeat() {
	heartbeatsTotal.Inc()
	t.mu.Lock()
	t.beats++
	t.mu.Unlock()
}

// RecordStreamRetry registers one stalled-stream retry.
func (t *Telemetry) RecordStreamRetry() { streamRetries.Inc() }

// RecordRun registers a finished council run.
func (t *Telemetry) RecordRun(status string) { runsTotal.WithLabelValues(status).Inc() }

// Summary is a point-in-time snapshot for debugging endpoints.
type Summary struct {
	Tasks      map[string]int `json:"tasks"`
	ToolCalls  map[string]int `json:"tool_calls"`
	Heartbeats int64          `json:"heartbeats"`
}

func (t *Telemetry) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Summary{
		Tasks:      make(map[string]int, len(t.taskCount)),
		ToolCalls:  make(map[string]int, len(t.toolCount)),
		Heartbeats: t.beats,
	}
	for k, v := range t.taskCount {
		s.Tasks[k] = v
	}
	for k, v := range t.toolCount {
		s.ToolCalls[k] = v
	}
	return s
}

package council

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/albarami/wellbeing/config"
	"github.com/albarami/wellbeing/internal/council/telemetry"
	"github.com/albarami/wellbeing/internal/provider"
)

const toolPayloadMaxRunes = 4000

// TaskExecutor drives generation against the model, dispatches embedded
// tool directives through the registry, and restarts generation with the
// tool output folded in, up to the iteration cap. A heartbeat goroutine
// keeps the sink alive for the whole task and is stopped before the
// terminal status is reported. Execute is safe for concurrent use; all
// per-task state lives in a session created per call.
type TaskExecutor struct {
	provider  provider.Provider
	registry  *Registry
	consumer  *StreamConsumer
	cfg       config.CouncilConfig
	telemetry *telemetry.Telemetry
	logger    *log.Logger
	tracer    trace.Tracer
}

// taskSession holds the mutable state of one Execute call: the stored
// output and the tool-call log. Stream deltas go to the sink as they
// arrive, but only the surviving attempt's text is kept, so a stalled
// and retried generation does not leave its fragment in the output.
type taskSession struct {
	out     strings.Builder
	sink    Sink
	toolLog []ToolCall
}

// emit streams text and keeps it in the stored output.
func (s *taskSession) emit(text string) {
	s.out.WriteString(text)
	s.sink.Chunk(text)
}

// stream forwards text to the live sink only.
func (s *taskSession) stream(text string) { s.sink.Chunk(text) }

// keep stores text the sink has already seen.
func (s *taskSession) keep(text string) { s.out.WriteString(text) }

func NewTaskExecutor(p provider.Provider, reg *Registry, cfg config.CouncilConfig, tel *telemetry.Telemetry, logger *log.Logger) *TaskExecutor {
	if logger == nil {
		logger = log.New(log.Writer(), "[EXEC] ", log.LstdFlags)
	}
	consumer := NewStreamConsumer(p, cfg.StreamStallWaits, logger)
	if tel != nil {
		consumer.OnStall = tel.RecordStreamRetry
	}
	return &TaskExecutor{
		provider:  p,
		registry:  reg,
		consumer:  consumer,
		cfg:       cfg,
		telemetry: tel,
		logger:    logger,
		tracer:    otel.Tracer("council.executor"),
	}
}

// Execute runs the task to a terminal status. It never returns an error:
// failures are folded into the TaskResult so the pipeline can continue
// with the remaining tasks.
func (e *TaskExecutor) Execute(ctx context.Context, task Task, persona Persona, topic string, history []string, sink Sink) TaskResult {
	ctx, span := e.tracer.Start(ctx, "task.execute", trace.WithAttributes(
		attribute.Int("task.id", task.ID),
		attribute.String("task.name", task.Name),
		attribute.String("task.persona", persona.Name),
	))
	defer span.End()

	started := time.Now()
	res := TaskResult{
		TaskID:       task.ID,
		TaskName:     task.Name,
		Persona:      persona.Name,
		PersonaTitle: persona.DisplayName,
		Pillar:       persona.Pillar,
		Category:     task.Category,
		StartedAt:    started,
	}

	sink.Event("task-started", map[string]any{
		"task":    task.Name,
		"persona": persona.DisplayName,
	})

	if e.telemetry != nil {
		sink = meteredSink{Sink: sink, tel: e.telemetry}
	}
	hb := startHeartbeat(sink, e.cfg.HeartbeatInterval, e.cfg.VisibleBeatEvery, task.Name)

	taskCtx, cancel := context.WithTimeout(ctx, e.cfg.TaskTimeout)
	defer cancel()

	sess := &taskSession{sink: sink}
	status, iterations := e.generate(taskCtx, task, persona, topic, history, sess)

	// Heartbeats must stop before the terminal status becomes visible.
	hb.Stop()

	res.Status = status
	res.Iterations = iterations
	res.Output = sess.out.String()
	res.ToolLog = sess.toolLog
	res.Duration = time.Since(started)

	if e.telemetry != nil {
		e.telemetry.RecordTask(string(task.Category), string(status), res.Duration)
	}
	switch status {
	case StatusCompleted:
		span.SetStatus(codes.Ok, "")
	default:
		span.SetStatus(codes.Error, string(status))
	}
	e.logger.Printf("task %d (%s) finished: status=%s iterations=%d duration=%s tools=%d",
		task.ID, task.Name, status, iterations, res.Duration.Round(time.Millisecond), len(res.ToolLog))

	sink.Event("task-finished", map[string]any{
		"task":     task.Name,
		"status":   string(status),
		"duration": res.Duration.Round(time.Second).String(),
	})
	return res
}

// generate runs the stream/tool loop until a terminal condition.
func (e *TaskExecutor) generate(ctx context.Context, task Task, persona Persona, topic string, history []string, sess *taskSession) (Status, int) {
	system := buildSystemPrompt(persona, e.registry)
	prompt := buildUserPrompt(task, topic, history, e.cfg.ContextWindow, e.cfg.ContextMaxRunes)
	iterations := 0

	// A directive only interrupts generation when the persona permits the
	// tool AND the registry knows it; anything else stays in the prose.
	permitted := func(name string) bool {
		return persona.Permits(name) && e.registry.Has(name)
	}

	for {
		req := provider.Request{
			Model:       persona.Model,
			System:      system,
			Prompt:      prompt,
			Temperature: persona.Temperature,
		}
		streamRes, err := e.consumer.Consume(ctx, req, permitted, sess.stream, func(d Directive) {
			e.logger.Printf("task %d: tool %s not available to persona %s, directive left as text", task.ID, d.Tool, persona.Name)
		})
		sess.keep(streamRes.Text)
		if err != nil {
			return e.failureStatus(ctx, err, sess.emit), iterations
		}
		if streamRes.Directive == nil {
			return StatusCompleted, iterations
		}

		d := *streamRes.Directive
		if iterations >= e.cfg.MaxToolIterations {
			e.logger.Printf("task %d: tool iteration cap (%d) reached, finalizing", task.ID, e.cfg.MaxToolIterations)
			sess.emit("\n\n*(tool iteration limit reached; concluding with the evidence gathered so far)*\n")
			return StatusCompleted, iterations
		}

		sess.emit(fmt.Sprintf("\n\n---\n**Verifying with** `%s`\n", d.Raw))
		start := time.Now()
		tr := e.registry.Invoke(ctx, d.Tool, d.Args)
		latency := time.Since(start)
		e.recordToolCall(sess, d, tr, latency)
		sess.emit(fmt.Sprintf("\n%s\n---\n\n", truncateRunes(tr.Payload, toolPayloadMaxRunes)))

		if ctx.Err() != nil {
			return e.failureStatus(ctx, ctx.Err(), sess.emit), iterations
		}

		iterations++
		prompt = continuationPrompt(prompt, streamRes.Text, d, tr)
	}
}

func (e *TaskExecutor) failureStatus(ctx context.Context, err error, emit func(string)) Status {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		emit("\n\n*(analysis cut short by the task time limit)*\n")
		return StatusTimedOut
	}
	emit(fmt.Sprintf("\n\n*(analysis could not be completed: %v)*\n", err))
	return StatusErrored
}

func (e *TaskExecutor) recordToolCall(sess *taskSession, d Directive, tr ToolResult, latency time.Duration) {
	sess.toolLog = append(sess.toolLog, ToolCall{Tool: d.Tool, Args: d.Args, Result: tr, Latency: latency})
	if e.telemetry != nil {
		e.telemetry.RecordToolCall(d.Tool, tr.Success, latency)
	}
}

// meteredSink counts heartbeats without changing delivery.
type meteredSink struct {
	Sink
	tel *telemetry.Telemetry
}

func (m meteredSink) Heartbeat() {
	m.tel.RecordHeartbeat()
	m.Sink.Heartbeat()
}

func buildSystemPrompt(persona Persona, reg *Registry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, %s.\n\n", persona.DisplayName, persona.Role)
	fmt.Fprintf(&sb, "Goal: %s\n\nBackstory: %s\n", persona.Goal, strings.TrimSpace(persona.Backstory))
	if len(persona.Tools) == 0 {
		sb.WriteString("\nYou have no verification tools. Work only from the debate material you are given.\n")
		return sb.String()
	}
	sb.WriteString("\nYou may verify facts with the following tools. To call one, write a line of exactly this form and nothing else on it:\n\n")
	sb.WriteString("TOOL: tool_name(\"text argument\", 5)\n\n")
	sb.WriteString("Arguments are double-quoted strings or whole numbers. Available tools:\n")
	for _, name := range persona.Tools {
		if reg != nil && !reg.Has(name) {
			continue
		}
		fmt.Fprintf(&sb, "- %s\n", name)
	}
	sb.WriteString("\nCall a tool only when a claim genuinely needs verification. After the tool result arrives you will be asked to continue your analysis.\n")
	return sb.String()
}

func buildUserPrompt(task Task, topic string, history []string, window, maxRunes int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Debate topic: %s\n\n", topic)
	if n := len(history); n > 0 && window > 0 {
		start := n - window
		if start < 0 {
			start = 0
		}
		sb.WriteString("Previous contributions (most recent last):\n\n")
		for _, h := range history[start:] {
			fmt.Fprintf(&sb, "%s\n\n", truncateRunes(h, maxRunes))
		}
	}
	fmt.Fprintf(&sb, "Your task: %s", strings.TrimSpace(task.Prompt))
	return sb.String()
}

func continuationPrompt(prompt, generated string, d Directive, tr ToolResult) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n--- Your analysis so far ---\n")
	sb.WriteString(generated)
	fmt.Fprintf(&sb, "\n\n--- Result of %s ---\n", d.Raw)
	sb.WriteString(truncateRunes(tr.Payload, toolPayloadMaxRunes))
	if tr.Success {
		sb.WriteString("\n\nContinue your analysis using this verified data. Do not repeat text you have already written.")
	} else {
		sb.WriteString("\n\nThe tool failed. Continue your analysis without it, noting the claim could not be verified. Do not repeat text you have already written.")
	}
	return sb.String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

package council

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/albarami/wellbeing/config"
	"github.com/albarami/wellbeing/internal/council/telemetry"
	"github.com/albarami/wellbeing/internal/provider"
)

// Pipeline runs the full council debate: every task in declaration order,
// each isolated from the failures of the others. A task that times out or
// errors contributes whatever partial output it produced to the shared
// context and the run moves on.
type Pipeline struct {
	roster    *config.CouncilRoster
	executor  *TaskExecutor
	cfg       config.CouncilConfig
	telemetry *telemetry.Telemetry
	logger    *log.Logger
	tracer    trace.Tracer
}

func NewPipeline(p provider.Provider, reg *Registry, roster *config.CouncilRoster, cfg config.CouncilConfig, tel *telemetry.Telemetry, logger *log.Logger) (*Pipeline, error) {
	if err := roster.Validate(); err != nil {
		return nil, fmt.Errorf("invalid council roster: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[COUNCIL] ", log.LstdFlags)
	}
	return &Pipeline{
		roster:    roster,
		executor:  NewTaskExecutor(p, reg, cfg, tel, logger),
		cfg:       cfg,
		telemetry: tel,
		logger:    logger,
		tracer:    otel.Tracer("council.pipeline"),
	}, nil
}

// TaskCount returns the number of tasks a run will execute.
func (p *Pipeline) TaskCount() int { return len(p.roster.Tasks) }

// Run executes the debate for one topic. The returned error covers only
// run-fatal conditions detected before the first task; per-task failures
// are carried inside the result.
func (p *Pipeline) Run(ctx context.Context, topic, language string, sink Sink, onProgress func(done, total int, res TaskResult)) (RunResult, error) {
	ctx, span := p.tracer.Start(ctx, "council.run", trace.WithAttributes(
		attribute.String("topic", topic),
		attribute.Int("tasks", len(p.roster.Tasks)),
	))
	defer span.End()

	started := time.Now()
	run := RunResult{Topic: topic, Language: language, StartedAt: started}

	// resolve personas up front so a broken roster fails before any task
	personas := make([]Persona, len(p.roster.Tasks))
	for i, t := range p.roster.Tasks {
		pc, ok := p.roster.Persona(t.Persona)
		if !ok {
			err := fmt.Errorf("task %q references unknown persona %q", t.Name, t.Persona)
			span.SetStatus(codes.Error, err.Error())
			return run, err
		}
		personas[i] = personaFromConfig(pc)
	}

	sink.Event("run-started", map[string]any{
		"topic": topic,
		"tasks": len(p.roster.Tasks),
	})
	p.logger.Printf("council run started: topic=%q tasks=%d", topic, len(p.roster.Tasks))

	var history []string
	total := len(p.roster.Tasks)
	for i, tc := range p.roster.Tasks {
		if ctx.Err() != nil {
			p.logger.Printf("council run cancelled after %d/%d tasks", i, total)
			break
		}
		task := taskFromConfig(tc)
		res := p.executor.Execute(ctx, task, personas[i], topic, history, sink)
		run.Results = append(run.Results, res)

		entry := fmt.Sprintf("## %s (%s)\n\n%s", personas[i].DisplayName, task.Name, res.Output)
		history = append(history, truncateRunes(entry, p.cfg.ContextMaxRunes))

		if onProgress != nil {
			onProgress(i+1, total, res)
		}
	}

	run.Report = BuildReport(topic, run.Results, time.Since(started))
	run.Duration = time.Since(started)

	status := "completed"
	if run.Completed() == 0 {
		status = "failed"
	} else if run.Completed() < total {
		status = "partial"
	}
	if p.telemetry != nil {
		p.telemetry.RecordRun(status)
	}
	span.SetAttributes(attribute.Int("tasks.completed", run.Completed()))
	span.SetStatus(codes.Ok, "")

	sink.Event("run-finished", map[string]any{
		"status":    status,
		"completed": run.Completed(),
		"total":     total,
		"duration":  run.Duration.Round(time.Second).String(),
	})
	p.logger.Printf("council run finished: status=%s completed=%d/%d duration=%s",
		status, run.Completed(), total, run.Duration.Round(time.Second))
	return run, nil
}

func personaFromConfig(pc config.PersonaConfig) Persona {
	return Persona{
		Name:        pc.Name,
		DisplayName: pc.DisplayName,
		Pillar:      pc.Pillar,
		Role:        pc.Role,
		Goal:        pc.Goal,
		Backstory:   pc.Backstory,
		Model:       pc.Model,
		Temperature: pc.Temperature,
		Tools:       pc.Tools,
	}
}

func taskFromConfig(tc config.TaskConfig) Task {
	return Task{
		ID:       tc.ID,
		Name:     tc.Name,
		Persona:  tc.Persona,
		Category: Category(tc.Category),
		Prompt:   tc.Prompt,
	}
}

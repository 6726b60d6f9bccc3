package council

import (
	"time"
)

// Category orders the debate phases. Tasks run strictly in declaration
// order; the category only affects report grouping and prompt framing.
type Category string

const (
	CategoryRound1     Category = "round1"
	CategoryModeration Category = "moderation"
	CategoryRound2     Category = "round2"
	CategorySynthesis  Category = "synthesis"
)

// Status is the lifecycle state of a generation session or task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusTimedOut  Status = "timed_out"
	StatusErrored   Status = "errored"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool { return s != StatusRunning }

// Persona is one council member: a role prompt plus an allow-list of tools.
type Persona struct {
	Name        string
	DisplayName string
	Pillar      string
	Role        string
	Goal        string
	Backstory   string
	Model       string
	Temperature float64
	Tools       []string
}

// Permits reports whether the persona may invoke the named tool.
func (p Persona) Permits(tool string) bool {
	for _, t := range p.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// Task is one unit of debate work bound to a persona.
type Task struct {
	ID       int
	Name     string
	Persona  string
	Category Category
	Prompt   string
}

// ErrKind classifies tool failures for callers that branch on cause.
type ErrKind string

const (
	ErrKindNone     ErrKind = ""
	ErrKindNetwork  ErrKind = "network"
	ErrKindTimeout  ErrKind = "timeout"
	ErrKindParse    ErrKind = "parse"
	ErrKindNotFound ErrKind = "not_found"
	ErrKindRejected ErrKind = "rejected"
)

// ToolError carries an explicit failure classification from a tool. Tools
// that return plain errors are classified by the registry instead.
type ToolError struct {
	Kind ErrKind
	Err  error
}

func (e *ToolError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *ToolError) Unwrap() error { return e.Err }

// ToolResult is the structured outcome of one tool invocation. A failed
// invocation still yields a payload the model can read.
type ToolResult struct {
	Tool    string
	Success bool
	Payload string
	ErrKind ErrKind
}

// ToolCall is one logged invocation inside a generation session.
type ToolCall struct {
	Tool    string
	Args    []any
	Result  ToolResult
	Latency time.Duration
}

// TaskResult is the finalized outcome of one executed task.
type TaskResult struct {
	TaskID       int
	TaskName     string
	Persona      string
	PersonaTitle string
	Pillar       string
	Category     Category
	Output       string
	Status       Status
	Iterations   int
	ToolLog      []ToolCall
	StartedAt    time.Time
	Duration     time.Duration
}

// RunResult is the outcome of a full council run.
type RunResult struct {
	Topic     string
	Language  string
	Results   []TaskResult
	Report    string
	StartedAt time.Time
	Duration  time.Duration
}

// Completed counts tasks that reached a usable output.
func (r RunResult) Completed() int {
	n := 0
	for _, t := range r.Results {
		if t.Status == StatusCompleted {
			n++
		}
	}
	return n
}

package council

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"sort"
	"sync"
	"time"
)

// ToolFunc executes one verification tool. The returned string is the
// payload handed back to the model; errors are classified by the registry.
type ToolFunc func(ctx context.Context, args []any) (string, error)

// Registry maps tool names to implementations and mediates every
// invocation: unknown names are rejected, each call gets its own deadline,
// and panics inside a tool become failed results instead of taking the
// task down.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]ToolFunc
	timeout time.Duration
	logger  *log.Logger
}

func NewRegistry(timeout time.Duration, logger *log.Logger) *Registry {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[TOOLS] ", log.LstdFlags)
	}
	return &Registry{tools: map[string]ToolFunc{}, timeout: timeout, logger: logger}
}

// Register adds a tool under the given name, replacing any previous entry.
func (r *Registry) Register(name string, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

// Names lists the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a tool is registered under the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Invoke runs the named tool with the registry's per-call deadline.
// It never returns an error: failure is expressed in the result so the
// generation loop can hand the model something to read either way.
func (r *Registry) Invoke(ctx context.Context, name string, args []any) ToolResult {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		r.logger.Printf("rejected call to unknown tool %q", name)
		return ToolResult{
			Tool:    name,
			ErrKind: ErrKindRejected,
			Payload: fmt.Sprintf("Tool %q is not available.", name),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		payload string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", name, p)}
			}
		}()
		payload, err := fn(callCtx, args)
		done <- outcome{payload: payload, err: err}
	}()

	start := time.Now()
	var out outcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		out = outcome{err: callCtx.Err()}
	}
	elapsed := time.Since(start)

	if out.err != nil {
		kind := classifyToolError(out.err)
		r.logger.Printf("tool %s failed after %s: %v", name, elapsed.Round(time.Millisecond), out.err)
		return ToolResult{
			Tool:    name,
			ErrKind: kind,
			Payload: fmt.Sprintf("Tool %s failed (%s): %v", name, kind, out.err),
		}
	}
	r.logger.Printf("tool %s ok in %s (args=%s)", name, elapsed.Round(time.Millisecond), formatArgs(args))
	return ToolResult{Tool: name, Success: true, Payload: out.payload}
}

func classifyToolError(err error) ErrKind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return ErrKindTimeout
		}
		return ErrKindNetwork
	}
	var se *json.SyntaxError
	var ue *json.UnmarshalTypeError
	if errors.As(err, &se) || errors.As(err, &ue) {
		return ErrKindParse
	}
	return ErrKindNetwork
}

func formatArgs(args []any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}

package council

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/albarami/wellbeing/config"
	"github.com/albarami/wellbeing/internal/provider"
)

func testCouncilCfg() config.CouncilConfig {
	return config.CouncilConfig{
		MaxToolIterations: 3,
		TaskTimeout:       5 * time.Second,
		ToolTimeout:       time.Second,
		StreamStallWaits:  []time.Duration{2 * time.Second},
		HeartbeatInterval: 10 * time.Millisecond,
		VisibleBeatEvery:  3,
		ContextWindow:     3,
		ContextMaxRunes:   2000,
	}
}

func spiritualPersona() Persona {
	return Persona{
		Name:        "sheikh_dr_ibrahim_al_tazkiyah",
		DisplayName: "Sheikh Dr. Ibrahim Al-Tazkiyah",
		Pillar:      "spiritual",
		Model:       "test-model",
		Tools:       []string{"search_hadith_standalone", "get_quran_verse_standalone"},
	}
}

func analysisTask() Task {
	return Task{ID: 1, Name: "spiritual_analysis_round1", Persona: "sheikh_dr_ibrahim_al_tazkiyah", Category: CategoryRound1, Prompt: "Analyze."}
}

func TestExecuteTextOnlyTask(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.Delta{
		deltas("A balanced life ", "rests on five pillars."),
	}}
	exec := NewTaskExecutor(p, NewRegistry(time.Second, testLogger()), testCouncilCfg(), nil, testLogger())

	sink := &BufferSink{}
	res := exec.Execute(context.Background(), analysisTask(), spiritualPersona(), "screen time for children", nil, sink)

	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if res.Iterations != 0 {
		t.Fatalf("iterations = %d, want 0", res.Iterations)
	}
	if !strings.Contains(res.Output, "five pillars") {
		t.Fatalf("output = %q", res.Output)
	}
	if len(res.ToolLog) != 0 {
		t.Fatalf("tool log = %+v", res.ToolLog)
	}
}

func TestExecuteToolRoundTrip(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.Delta{
		deltas("Let me check the sources.\n", `TOOL: search_hadith_standalone("patience", 5)`, "\n"),
		deltas("The hadith confirms the value of patience."),
	}}
	reg := NewRegistry(time.Second, testLogger())
	var gotArgs []any
	reg.Register("search_hadith_standalone", func(_ context.Context, args []any) (string, error) {
		gotArgs = args
		return "Sahih al-Bukhari 6114: The strong is not the one who overcomes...", nil
	})
	exec := NewTaskExecutor(p, reg, testCouncilCfg(), nil, testLogger())

	sink := &BufferSink{}
	res := exec.Execute(context.Background(), analysisTask(), spiritualPersona(), "patience", nil, sink)

	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, output %q", res.Status, res.Output)
	}
	if res.Iterations != 1 {
		t.Fatalf("iterations = %d, want 1", res.Iterations)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "patience" || gotArgs[1] != 5 {
		t.Fatalf("tool args = %#v", gotArgs)
	}
	if len(res.ToolLog) != 1 || !res.ToolLog[0].Result.Success {
		t.Fatalf("tool log = %+v", res.ToolLog)
	}
	out := res.Output
	iDirective := strings.Index(out, "search_hadith_standalone")
	iResult := strings.Index(out, "Sahih al-Bukhari 6114")
	iAfter := strings.Index(out, "confirms the value")
	if iDirective < 0 || iResult < 0 || iAfter < 0 || !(iDirective < iResult && iResult < iAfter) {
		t.Fatalf("output ordering wrong:\n%s", out)
	}
}

func TestExecuteToolFailureContinues(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.Delta{
		deltas(`TOOL: search_hadith_standalone("x", 1)` + "\n"),
		deltas("Proceeding without the source."),
	}}
	reg := NewRegistry(50*time.Millisecond, testLogger())
	reg.Register("search_hadith_standalone", func(ctx context.Context, _ []any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	exec := NewTaskExecutor(p, reg, testCouncilCfg(), nil, testLogger())

	res := exec.Execute(context.Background(), analysisTask(), spiritualPersona(), "t", nil, &BufferSink{})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if len(res.ToolLog) != 1 || res.ToolLog[0].Result.ErrKind != ErrKindTimeout {
		t.Fatalf("tool log = %+v", res.ToolLog)
	}
	if !strings.Contains(res.Output, "Proceeding without the source.") {
		t.Fatalf("generation should have resumed after tool failure, got %q", res.Output)
	}
}

func TestExecuteIterationCap(t *testing.T) {
	directive := deltas(`TOOL: search_hadith_standalone("more", 1)` + "\n")
	p := &scriptedProvider{scripts: [][]provider.Delta{
		directive, directive, directive, directive, directive,
	}}
	reg := NewRegistry(time.Second, testLogger())
	calls := 0
	reg.Register("search_hadith_standalone", func(context.Context, []any) (string, error) {
		calls++
		return "a result", nil
	})
	exec := NewTaskExecutor(p, reg, testCouncilCfg(), nil, testLogger())

	res := exec.Execute(context.Background(), analysisTask(), spiritualPersona(), "t", nil, &BufferSink{})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if res.Iterations > 3 {
		t.Fatalf("iterations = %d, cap not enforced", res.Iterations)
	}
	if calls != 3 {
		t.Fatalf("tool calls = %d, want exactly the cap", calls)
	}
	if !strings.Contains(res.Output, "iteration limit") {
		t.Fatalf("output should note the cap, got %q", res.Output)
	}
}

func TestExecuteTaskTimeout(t *testing.T) {
	slow := &stallingProvider{firstDelta: "partial analysis "}
	cfg := testCouncilCfg()
	cfg.TaskTimeout = 80 * time.Millisecond
	cfg.StreamStallWaits = []time.Duration{time.Second}
	exec := NewTaskExecutor(slow, NewRegistry(time.Second, testLogger()), cfg, nil, testLogger())

	start := time.Now()
	res := exec.Execute(context.Background(), analysisTask(), spiritualPersona(), "t", nil, &BufferSink{})
	if res.Status != StatusTimedOut {
		t.Fatalf("status = %s, want timed_out", res.Status)
	}
	if !strings.Contains(res.Output, "partial analysis") {
		t.Fatalf("partial output lost: %q", res.Output)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("task ran %s past its deadline", elapsed)
	}
}

func TestHeartbeatsDuringBlockingToolCall(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.Delta{
		deltas(`TOOL: search_hadith_standalone("x", 1)` + "\n"),
		deltas("Done."),
	}}
	reg := NewRegistry(time.Second, testLogger())
	reg.Register("search_hadith_standalone", func(context.Context, []any) (string, error) {
		time.Sleep(300 * time.Millisecond) // deliberately blocking
		return "ok", nil
	})
	cfg := testCouncilCfg()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	exec := NewTaskExecutor(p, reg, cfg, nil, testLogger())

	sink := &BufferSink{}
	res := exec.Execute(context.Background(), analysisTask(), spiritualPersona(), "t", nil, sink)
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	beats := sink.Heartbeats()
	if beats < 5 {
		t.Fatalf("only %d heartbeats during a 300ms blocking tool call", beats)
	}
	// no beats may arrive after the task finished
	time.Sleep(100 * time.Millisecond)
	if after := sink.Heartbeats(); after != beats {
		t.Fatalf("heartbeats continued after terminal status: %d -> %d", beats, after)
	}
}

func TestExecuteRejectedDirectiveNeverInvokes(t *testing.T) {
	line := `TOOL: brave_search_standalone("anything")`
	p := &scriptedProvider{scripts: [][]provider.Delta{
		deltas("Thinking.\n", line+"\n", "Concluding."),
	}}
	reg := NewRegistry(time.Second, testLogger())
	invoked := false
	reg.Register("brave_search_standalone", func(context.Context, []any) (string, error) {
		invoked = true
		return "should not happen", nil
	})
	exec := NewTaskExecutor(p, reg, testCouncilCfg(), nil, testLogger())

	// persona does not permit brave_search_standalone
	res := exec.Execute(context.Background(), analysisTask(), spiritualPersona(), "t", nil, &BufferSink{})
	if invoked {
		t.Fatal("non-permitted tool was invoked")
	}
	if res.Iterations != 0 {
		t.Fatalf("iterations = %d, want 0", res.Iterations)
	}
	if !strings.Contains(res.Output, line) {
		t.Fatalf("rejected directive must stay verbatim in output: %q", res.Output)
	}
}

func TestExecuteUnknownToolDirectivePassesThrough(t *testing.T) {
	// the persona permits this tool, but the registry has never heard of it
	line := `TOOL: search_hadith_standalone("x", 1)`
	p := &scriptedProvider{scripts: [][]provider.Delta{
		deltas("Sources first.\n", line+"\n", "Concluding anyway."),
	}}
	exec := NewTaskExecutor(p, NewRegistry(time.Second, testLogger()), testCouncilCfg(), nil, testLogger())

	res := exec.Execute(context.Background(), analysisTask(), spiritualPersona(), "t", nil, &BufferSink{})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if res.Iterations != 0 {
		t.Fatalf("iterations = %d, want 0", res.Iterations)
	}
	if len(res.ToolLog) != 0 {
		t.Fatalf("unknown tool must not be dispatched, log = %+v", res.ToolLog)
	}
	if !strings.Contains(res.Output, line) {
		t.Fatalf("unknown-tool directive must stay verbatim in output: %q", res.Output)
	}
	if !strings.Contains(res.Output, "Concluding anyway.") {
		t.Fatalf("generation should not have been interrupted, got %q", res.Output)
	}
}

func TestExecuteConcurrentTasksKeepSeparateToolLogs(t *testing.T) {
	reg := NewRegistry(time.Second, testLogger())
	reg.Register("search_hadith_standalone", func(_ context.Context, args []any) (string, error) {
		return fmt.Sprintf("evidence for %v", args[0]), nil
	})
	exec := NewTaskExecutor(promptKeyedProvider{}, reg, testCouncilCfg(), nil, testLogger())

	const runs = 8
	results := make([]TaskResult, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			topic := fmt.Sprintf("topic-%d", i)
			results[i] = exec.Execute(context.Background(), analysisTask(), spiritualPersona(), topic, nil, NopSink{})
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		want := fmt.Sprintf("topic-%d", i)
		if res.Status != StatusCompleted {
			t.Fatalf("run %d: status = %s", i, res.Status)
		}
		if len(res.ToolLog) != 1 {
			t.Fatalf("run %d: tool log has %d entries, want 1 (logs leaked between runs)", i, len(res.ToolLog))
		}
		if got := res.ToolLog[0].Args[0]; got != want {
			t.Fatalf("run %d: tool log carries %v, want %q (logs swapped between runs)", i, got, want)
		}
	}
}

// promptKeyedProvider answers each prompt deterministically from its
// content: the first generation of a task calls a tool with the debate
// topic as argument, the continuation concludes in plain text.
type promptKeyedProvider struct{}

func (promptKeyedProvider) Name() string { return "prompt-keyed" }

func (promptKeyedProvider) Stream(_ context.Context, req provider.Request) (<-chan provider.Delta, error) {
	out := make(chan provider.Delta, 1)
	if strings.Contains(req.Prompt, "--- Result of") {
		out <- provider.Delta{Text: "Concluding."}
	} else {
		topic := req.Prompt
		if i := strings.Index(topic, "Debate topic: "); i >= 0 {
			topic = topic[i+len("Debate topic: "):]
		}
		if i := strings.IndexByte(topic, '\n'); i >= 0 {
			topic = topic[:i]
		}
		out <- provider.Delta{Text: fmt.Sprintf("TOOL: search_hadith_standalone(%q)\n", topic)}
	}
	close(out)
	return out, nil
}

func TestExecuteStalledAttemptNotInStoredOutput(t *testing.T) {
	cfg := testCouncilCfg()
	cfg.StreamStallWaits = []time.Duration{30 * time.Millisecond, time.Second}
	exec := NewTaskExecutor(&stallOnceProvider{}, NewRegistry(time.Second, testLogger()), cfg, nil, testLogger())

	sink := &BufferSink{}
	res := exec.Execute(context.Background(), analysisTask(), spiritualPersona(), "t", nil, sink)
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if strings.Contains(res.Output, "doomed fragment") {
		t.Fatalf("stored output kept the abandoned attempt: %q", res.Output)
	}
	if !strings.Contains(res.Output, "clean full answer.") {
		t.Fatalf("retry output missing: %q", res.Output)
	}
	// the live stream did see the fragment, so viewers get a restart marker
	live := sink.Text()
	if !strings.Contains(live, "doomed fragment") || !strings.Contains(live, "restarting this passage") {
		t.Fatalf("live stream should mark the restart, got %q", live)
	}
}

// stallOnceProvider hangs mid-sentence on its first stream and answers
// fully on the second.
type stallOnceProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *stallOnceProvider) Name() string { return "stall-once" }

func (p *stallOnceProvider) Stream(ctx context.Context, _ provider.Request) (<-chan provider.Delta, error) {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()

	out := make(chan provider.Delta)
	go func() {
		defer close(out)
		if first {
			select {
			case out <- provider.Delta{Text: "doomed fragment "}:
			case <-ctx.Done():
				return
			}
			<-ctx.Done()
			return
		}
		select {
		case out <- provider.Delta{Text: "clean full answer."}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func TestExecuteProviderAuthFailure(t *testing.T) {
	p := &failingProvider{}
	exec := NewTaskExecutor(p, NewRegistry(time.Second, testLogger()), testCouncilCfg(), nil, testLogger())
	res := exec.Execute(context.Background(), analysisTask(), spiritualPersona(), "t", nil, &BufferSink{})
	if res.Status != StatusErrored {
		t.Fatalf("status = %s, want errored", res.Status)
	}
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Stream(context.Context, provider.Request) (<-chan provider.Delta, error) {
	return nil, errors.New("anthropic 401 Unauthorized: authentication_error")
}

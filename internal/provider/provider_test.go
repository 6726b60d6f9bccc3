package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/albarami/wellbeing/config"
)

func collect(t *testing.T, ch <-chan Delta) string {
	t.Helper()
	var sb strings.Builder
	for d := range ch {
		if d.Err != nil {
			t.Fatalf("unexpected stream error: %v", d.Err)
		}
		sb.WriteString(d.Text)
	}
	return sb.String()
}

func TestAnthropicStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		if r.Header.Get("anthropic-version") == "" {
			http.Error(w, "missing version", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`event: message_start` + "\n" + `data: {"type":"message_start"}`,
			`event: content_block_delta` + "\n" + `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"In the name "}}`,
			`event: content_block_delta` + "\n" + `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"of balance."}}`,
			`event: message_stop` + "\n" + `data: {"type":"message_stop"}`,
		}
		for _, f := range frames {
			_, _ = w.Write([]byte(f + "\n\n"))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	p := NewAnthropic("anthropic", config.LLMProviderConfig{APIKey: "test-key", BaseURL: srv.URL})
	ch, err := p.Stream(context.Background(), Request{Model: "claude-sonnet-4-20250514", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got := collect(t, ch); got != "In the name of balance." {
		t.Fatalf("got %q", got)
	}
}

func TestAnthropicAuthFailureIsSynchronous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"authentication_error"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewAnthropic("anthropic", config.LLMProviderConfig{APIKey: "bad", BaseURL: srv.URL})
	if _, err := p.Stream(context.Background(), Request{Model: "m", Prompt: "x"}); err == nil {
		t.Fatal("expected an error for 401")
	}
}

func TestOpenAIStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, "missing bearer", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`data: {"choices":[{"delta":{"content":"five "}}]}`,
			`data: {"choices":[{"delta":{"content":"pillars"}}]}`,
			`data: [DONE]`,
		}
		for _, f := range frames {
			_, _ = w.Write([]byte(f + "\n\n"))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	p := NewOpenAI("openai", config.LLMProviderConfig{APIKey: "k", BaseURL: srv.URL})
	ch, err := p.Stream(context.Background(), Request{Model: "gpt-4o", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got := collect(t, ch); got != "five pillars" {
		t.Fatalf("got %q", got)
	}
}

func TestStreamCancelAbandonsConnection(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"start"}}]}` + "\n\n"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	p := NewOpenAI("openai", config.LLMProviderConfig{APIKey: "k", BaseURL: srv.URL})
	ch, err := p.Stream(ctx, Request{Model: "m", Prompt: "x"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	<-ch // first delta
	cancel()

	select {
	case _, open := <-ch:
		if open {
			// drain until closed
			for range ch {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

// Package provider implements streaming text generation against hosted
// LLM APIs. Implementations deliver incremental deltas on a channel so
// callers can watch for embedded tool directives and abandon a stream
// mid-flight by cancelling the context.
package provider

import (
	"context"
	"fmt"

	"github.com/albarami/wellbeing/config"
)

// Request is one generation request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Delta is one streamed increment. A non-nil Err reports a mid-stream
// failure; the channel is closed after a terminal delta either way.
type Delta struct {
	Text string
	Err  error
}

// Provider streams completions. Stream returns an error synchronously for
// request construction and non-2xx responses (bad credentials included);
// after that, failures arrive as a Delta with Err set. Cancelling ctx
// abandons the stream and releases the connection.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (<-chan Delta, error)
}

// New builds the configured provider.
func New(name string, pc config.LLMProviderConfig) (Provider, error) {
	switch pc.Type {
	case "anthropic":
		return NewAnthropic(name, pc), nil
	case "openai":
		return NewOpenAI(name, pc), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/albarami/wellbeing/config"
)

// OpenAI streams chat completions with stream=true. It also serves any
// OpenAI-compatible endpoint (Perplexity among them) via BaseURL.
type OpenAI struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	maxTok  int
}

func NewOpenAI(name string, pc config.LLMProviderConfig) *OpenAI {
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	base := strings.TrimRight(pc.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	maxTok := pc.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}
	return &OpenAI{
		name:    name,
		apiKey:  pc.APIKey,
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
		maxTok:  maxTok,
	}
}

func (o *OpenAI) Name() string { return o.name }

type openaiRequest struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream"`
	Messages    []openaiMessage `json:"messages"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAI) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	maxTok := req.MaxTokens
	if maxTok <= 0 {
		maxTok = o.maxTok
	}
	msgs := []openaiMessage{}
	if req.System != "" {
		msgs = append(msgs, openaiMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, openaiMessage{Role: "user", Content: req.Prompt})

	b, err := json.Marshal(openaiRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   maxTok,
		Stream:      true,
		Messages:    msgs,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("openai %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	out := make(chan Delta)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" || payload == "[DONE]" {
				if payload == "[DONE]" {
					return
				}
				continue
			}
			var chunk openaiChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case out <- Delta{Text: choice.Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case out <- Delta{Err: fmt.Errorf("reading openai stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

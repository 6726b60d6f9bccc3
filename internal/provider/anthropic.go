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

const anthropicVersion = "2023-06-01"

// Anthropic streams completions from the Messages API with stream=true.
type Anthropic struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	maxTok  int
}

func NewAnthropic(name string, pc config.LLMProviderConfig) *Anthropic {
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	base := strings.TrimRight(pc.BaseURL, "/")
	if base == "" {
		base = "https://api.anthropic.com"
	}
	maxTok := pc.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}
	return &Anthropic{
		name:    name,
		apiKey:  pc.APIKey,
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
		maxTok:  maxTok,
	}
}

func (a *Anthropic) Name() string { return a.name }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Stream      bool               `json:"stream"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Anthropic) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	maxTok := req.MaxTokens
	if maxTok <= 0 {
		maxTok = a.maxTok
	}
	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTok,
		Temperature: req.Temperature,
		System:      req.System,
		Stream:      true,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("anthropic %s: %s", resp.Status, strings.TrimSpace(string(msg)))
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
			if payload == "" {
				continue
			}
			var ev anthropicEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				continue // unknown event shape, skip
			}
			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
					select {
					case out <- Delta{Text: ev.Delta.Text}:
					case <-ctx.Done():
						return
					}
				}
			case "error":
				select {
				case out <- Delta{Err: fmt.Errorf("anthropic stream error: %s: %s", ev.Error.Type, ev.Error.Message)}:
				case <-ctx.Done():
				}
				return
			case "message_stop":
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case out <- Delta{Err: fmt.Errorf("reading anthropic stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/albarami/wellbeing/internal/council"
)

const defaultPerplexityBaseURL = "https://api.perplexity.ai"

// PerplexityClient fact-checks a claim with Perplexity's online model,
// which answers with current sources. Usage:
// perplexity_fact_check_standalone("claim").
type PerplexityClient struct {
	HTTP    *HTTPClient
	APIKey  string
	BaseURL string
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (c *PerplexityClient) Tool() council.ToolFunc {
	return func(ctx context.Context, args []any) (string, error) {
		claim, err := requireStr(args, 0, "claim")
		if err != nil {
			return "", err
		}
		if c.APIKey == "" {
			return "", missingKey("Perplexity", "https://www.perplexity.ai/settings/api")
		}
		base := c.BaseURL
		if base == "" {
			base = defaultPerplexityBaseURL
		}

		payload := map[string]any{
			"model": "sonar",
			"messages": []map[string]string{
				{"role": "system", "content": "You are a strict fact checker. State whether the claim is supported, contested or unsupported, and cite sources."},
				{"role": "user", "content": "Fact-check this claim: " + claim},
			},
			"max_tokens": 600,
		}
		headers := map[string]string{"Authorization": "Bearer " + c.APIKey}

		var resp perplexityResponse
		if err := c.HTTP.PostJSON(ctx, base+"/chat/completions", headers, payload, &resp); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", &council.ToolError{Kind: council.ErrKindParse, Err: fmt.Errorf("perplexity returned no choices")}
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Fact check for %q:\n\n%s\n", claim, strings.TrimSpace(resp.Choices[0].Message.Content))
		if len(resp.Citations) > 0 {
			sb.WriteString("\nSources:\n")
			for i, u := range resp.Citations {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, u)
			}
		}
		return sb.String(), nil
	}
}

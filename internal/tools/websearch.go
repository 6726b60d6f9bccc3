package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/albarami/wellbeing/internal/council"
)

const defaultBraveBaseURL = "https://api.search.brave.com/res/v1"

// BraveClient performs general web search through the Brave Search API.
// Usage: brave_search_standalone("query", max_results).
type BraveClient struct {
	HTTP    *HTTPClient
	APIKey  string
	BaseURL string
}

type braveSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (c *BraveClient) Tool() council.ToolFunc {
	return func(ctx context.Context, args []any) (string, error) {
		query, err := requireStr(args, 0, "query")
		if err != nil {
			return "", err
		}
		limit := intArg(args, 1, 5)
		if limit < 1 || limit > 10 {
			limit = 5
		}
		if c.APIKey == "" {
			return "", missingKey("Brave Search", "https://brave.com/search/api/")
		}
		base := c.BaseURL
		if base == "" {
			base = defaultBraveBaseURL
		}
		u := fmt.Sprintf("%s/web/search?q=%s&count=%d", base, url.QueryEscape(query), limit)

		var resp braveSearchResponse
		headers := map[string]string{"X-Subscription-Token": c.APIKey}
		if err := c.HTTP.GetJSON(ctx, u, headers, &resp); err != nil {
			return "", err
		}
		if len(resp.Web.Results) == 0 {
			return fmt.Sprintf("No web results for %q.", query), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Web search results for %q:\n\n", query)
		for i, r := range resp.Web.Results {
			if i >= limit {
				break
			}
			fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n\n", i+1, r.Title, r.URL, truncate(strings.TrimSpace(r.Description), 300))
		}
		return sb.String(), nil
	}
}

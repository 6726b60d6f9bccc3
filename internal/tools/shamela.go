package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/albarami/wellbeing/internal/council"
)

const defaultShamelaBaseURL = "https://shamela.ws"

// ShamelaClient searches the Shamela digital library of classical Arabic
// texts. The site renders some results client-side, so a headless-browser
// fallback can be enabled for pages that come back empty. Usage:
// search_shamela_standalone("query", max_results).
type ShamelaClient struct {
	HTTP     *HTTPClient
	BaseURL  string
	Headless bool
}

func (c *ShamelaClient) Tool() council.ToolFunc {
	return func(ctx context.Context, args []any) (string, error) {
		query, err := requireStr(args, 0, "query")
		if err != nil {
			return "", err
		}
		limit := intArg(args, 1, 5)
		if limit < 1 || limit > 10 {
			limit = 5
		}
		base := c.BaseURL
		if base == "" {
			base = defaultShamelaBaseURL
		}
		searchURL := fmt.Sprintf("%s/search?q=%s", base, url.QueryEscape(query))

		html, err := c.HTTP.GetHTML(ctx, searchURL)
		if err == nil {
			if text, terr := extractText(html, searchURL); terr == nil && strings.TrimSpace(text) != "" {
				return shamelaPayload(query, text, searchURL), nil
			}
		}
		if c.Headless {
			rendered, herr := fetchRendered(ctx, searchURL)
			if herr == nil {
				if text, terr := extractText(rendered, searchURL); terr == nil && strings.TrimSpace(text) != "" {
					return shamelaPayload(query, text, searchURL), nil
				}
			}
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("No Shamela results for %q. Search manually: %s", query, searchURL), nil
	}
}

func shamelaPayload(query, text, source string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Shamela library results for %q:\n\n%s\n\nSource: %s\n", query, truncate(text, 2500), source)
	return sb.String()
}

// fetchRendered loads a page in headless Chrome and returns the rendered
// HTML, for sites that build their results in the browser.
func fetchRendered(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", &council.ToolError{Kind: council.ErrKindNetwork, Err: fmt.Errorf("rendering %s: %w", pageURL, err)}
	}
	return html, nil
}

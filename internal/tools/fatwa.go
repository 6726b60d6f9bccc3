package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/albarami/wellbeing/internal/council"
)

// madhabSources maps each school of jurisprudence to its searchable
// fatwa archive.
var madhabSources = map[string]string{
	"hanafi":  "https://islamqa.org/hanafi/search",
	"maliki":  "https://islamqa.org/maliki/search",
	"shafii":  "https://islamqa.org/shafii/search",
	"hanbali": "https://islamqa.org/hanbali/search",
}

// FatwaClient searches madhab-specific fatwa archives and extracts the
// readable text of the results page. Usage:
// search_madhab_fatwa_standalone("query", "hanafi").
type FatwaClient struct {
	HTTP     *HTTPClient
	BaseURL  string // overrides madhab source roots when set (tests)
	Headless bool
}

func (c *FatwaClient) Tool() council.ToolFunc {
	return func(ctx context.Context, args []any) (string, error) {
		query, err := requireStr(args, 0, "query")
		if err != nil {
			return "", err
		}
		madhab := strings.ToLower(strings.TrimSpace(strArg(args, 1, "hanbali")))
		root, ok := madhabSources[madhab]
		if !ok {
			return "", &council.ToolError{
				Kind: council.ErrKindRejected,
				Err:  fmt.Errorf("unknown madhab %q; expected hanafi, maliki, shafii or hanbali", madhab),
			}
		}
		if c.BaseURL != "" {
			root = c.BaseURL + "/" + madhab + "/search"
		}
		searchURL := root + "?q=" + url.QueryEscape(query)

		text, err := c.readable(ctx, searchURL)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Sprintf("No %s fatwa found for %q.\nConsult a qualified scholar, or search manually:\n- %s?q=%s",
				madhab, query, root, url.QueryEscape(query)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Fatwa search (%s school) for %q:\n\n%s\n\nSource: %s\n", madhab, query, truncate(text, 2500), searchURL)
		sb.WriteString("\nNote: rulings summarize the cited archive; verify specifics with a scholar.\n")
		return sb.String(), nil
	}
}

func (c *FatwaClient) readable(ctx context.Context, pageURL string) (string, error) {
	html, err := c.HTTP.GetHTML(ctx, pageURL)
	if err != nil && c.Headless {
		html, err = fetchRendered(ctx, pageURL)
	}
	if err != nil {
		return "", err
	}
	return extractText(html, pageURL)
}

// extractText runs readability over raw HTML and returns the article text.
func extractText(html, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return "", &council.ToolError{Kind: council.ErrKindParse, Err: fmt.Errorf("extracting text from %s: %w", pageURL, err)}
	}
	return strings.TrimSpace(article.TextContent), nil
}

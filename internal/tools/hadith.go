package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/albarami/wellbeing/internal/council"
)

const defaultHadithBaseURL = "https://hadithapi.com/api"

// HadithClient searches authenticated hadith collections through
// hadithapi.com. Usage: search_hadith_standalone("query", max_results).
type HadithClient struct {
	HTTP    *HTTPClient
	APIKey  string
	BaseURL string
}

type hadithSearchResponse struct {
	Hadiths struct {
		Data []struct {
			HadithNumber    string `json:"hadithNumber"`
			HadithEnglish   string `json:"hadithEnglish"`
			EnglishNarrator string `json:"englishNarrator"`
			Status          string `json:"status"`
			Book            struct {
				BookName string `json:"bookName"`
			} `json:"book"`
			Chapter struct {
				ChapterEnglish string `json:"chapterEnglish"`
			} `json:"chapter"`
		} `json:"data"`
	} `json:"hadiths"`
}

func (c *HadithClient) Tool() council.ToolFunc {
	return func(ctx context.Context, args []any) (string, error) {
		query, err := requireStr(args, 0, "query")
		if err != nil {
			return "", err
		}
		limit := intArg(args, 1, 5)
		if limit < 1 || limit > 20 {
			limit = 5
		}
		if c.APIKey == "" {
			return "", missingKey("hadithapi.com", "https://hadithapi.com/")
		}
		base := c.BaseURL
		if base == "" {
			base = defaultHadithBaseURL
		}
		u := fmt.Sprintf("%s/hadiths?apiKey=%s&hadithEnglish=%s&paginate=%d",
			base, url.QueryEscape(c.APIKey), url.QueryEscape(query), limit)

		var resp hadithSearchResponse
		if err := c.HTTP.GetJSON(ctx, u, nil, &resp); err != nil {
			return "", err
		}
		if len(resp.Hadiths.Data) == 0 {
			return fmt.Sprintf("No hadith found for %q. Try different keywords.", query), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Hadith search results for %q:\n\n", query)
		for i, h := range resp.Hadiths.Data {
			if i >= limit {
				break
			}
			fmt.Fprintf(&sb, "%d. %s %s", i+1, h.Book.BookName, h.HadithNumber)
			if h.Status != "" {
				fmt.Fprintf(&sb, " (%s)", h.Status)
			}
			sb.WriteString("\n")
			if h.Chapter.ChapterEnglish != "" {
				fmt.Fprintf(&sb, "   Chapter: %s\n", h.Chapter.ChapterEnglish)
			}
			if h.EnglishNarrator != "" {
				fmt.Fprintf(&sb, "   %s\n", h.EnglishNarrator)
			}
			fmt.Fprintf(&sb, "   %s\n\n", truncate(strings.TrimSpace(h.HadithEnglish), 600))
		}
		return sb.String(), nil
	}
}

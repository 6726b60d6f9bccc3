package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/albarami/wellbeing/internal/council"
)

const defaultSemanticScholarBaseURL = "https://api.semanticscholar.org/graph/v1"

// CitationClient verifies that a cited academic work actually exists, via
// the Semantic Scholar graph API. Usage:
// verify_citation_standalone("paper title or claim").
type CitationClient struct {
	HTTP    *HTTPClient
	BaseURL string
}

type semanticScholarResponse struct {
	Total int `json:"total"`
	Data  []struct {
		Title         string `json:"title"`
		Year          int    `json:"year"`
		CitationCount int    `json:"citationCount"`
		ExternalIDs   struct {
			DOI string `json:"DOI"`
		} `json:"externalIds"`
		Authors []struct {
			Name string `json:"name"`
		} `json:"authors"`
		Venue string `json:"venue"`
	} `json:"data"`
}

func (c *CitationClient) Tool() council.ToolFunc {
	return func(ctx context.Context, args []any) (string, error) {
		query, err := requireStr(args, 0, "citation")
		if err != nil {
			return "", err
		}
		base := c.BaseURL
		if base == "" {
			base = defaultSemanticScholarBaseURL
		}
		u := fmt.Sprintf("%s/paper/search/bulk?query=%s&fields=title,year,authors,venue,citationCount,externalIds&limit=5",
			base, url.QueryEscape(query))

		var resp semanticScholarResponse
		if err := c.HTTP.GetJSON(ctx, u, nil, &resp); err != nil {
			return "", err
		}
		if len(resp.Data) == 0 {
			return fmt.Sprintf("CITATION NOT VERIFIED: no indexed publication matches %q. "+
				"Treat this citation as unconfirmed.", query), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Citation check for %q — %d candidate(s):\n\n", query, len(resp.Data))
		for i, p := range resp.Data {
			var authors []string
			for _, a := range p.Authors {
				authors = append(authors, a.Name)
			}
			if len(authors) > 3 {
				authors = append(authors[:3], "et al.")
			}
			fmt.Fprintf(&sb, "%d. %s (%d)\n   %s", i+1, p.Title, p.Year, strings.Join(authors, ", "))
			if p.Venue != "" {
				fmt.Fprintf(&sb, " — %s", p.Venue)
			}
			fmt.Fprintf(&sb, "\n   Citations: %d", p.CitationCount)
			if p.ExternalIDs.DOI != "" {
				fmt.Fprintf(&sb, ", DOI: %s", p.ExternalIDs.DOI)
			}
			sb.WriteString("\n\n")
		}
		return sb.String(), nil
	}
}

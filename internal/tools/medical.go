package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/albarami/wellbeing/internal/council"
)

const defaultPubMedBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// MedicalClient checks a medical claim against PubMed: an esearch for
// matching publications followed by an esummary for their metadata.
// Usage: verify_medical_claim_standalone("claim").
type MedicalClient struct {
	HTTP    *HTTPClient
	BaseURL string
}

type pubmedSearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type pubmedSummaryResponse struct {
	Result map[string]any `json:"result"`
}

func (c *MedicalClient) Tool() council.ToolFunc {
	return func(ctx context.Context, args []any) (string, error) {
		claim, err := requireStr(args, 0, "claim")
		if err != nil {
			return "", err
		}
		base := c.BaseURL
		if base == "" {
			base = defaultPubMedBaseURL
		}

		searchURL := fmt.Sprintf("%s/esearch.fcgi?db=pubmed&retmode=json&retmax=5&sort=relevance&term=%s",
			base, url.QueryEscape(claim))
		var search pubmedSearchResponse
		if err := c.HTTP.GetJSON(ctx, searchURL, nil, &search); err != nil {
			return "", err
		}
		ids := search.ESearchResult.IDList
		if len(ids) == 0 {
			return fmt.Sprintf("MEDICAL CLAIM NOT SUPPORTED: PubMed has no publications matching %q. "+
				"Do not present this claim as established.", claim), nil
		}

		summaryURL := fmt.Sprintf("%s/esummary.fcgi?db=pubmed&retmode=json&id=%s",
			base, strings.Join(ids, ","))
		var summary pubmedSummaryResponse
		if err := c.HTTP.GetJSON(ctx, summaryURL, nil, &summary); err != nil {
			return "", err
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "PubMed evidence for %q (%s total matches):\n\n", claim, search.ESearchResult.Count)
		n := 0
		for _, id := range ids {
			entry, ok := summary.Result[id].(map[string]any)
			if !ok {
				continue
			}
			n++
			title, _ := entry["title"].(string)
			pubdate, _ := entry["pubdate"].(string)
			source, _ := entry["source"].(string)
			fmt.Fprintf(&sb, "%d. %s\n   %s, %s\n   https://pubmed.ncbi.nlm.nih.gov/%s/\n\n",
				n, strings.TrimSpace(title), source, pubdate, id)
		}
		if n == 0 {
			return "", &council.ToolError{
				Kind: council.ErrKindParse,
				Err:  fmt.Errorf("pubmed summary for %q held no readable entries", claim),
			}
		}
		sb.WriteString("Publications existing does not itself prove the claim; weigh study quality.\n")
		return sb.String(), nil
	}
}

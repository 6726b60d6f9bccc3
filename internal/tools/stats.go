package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/albarami/wellbeing/internal/council"
)

const defaultWorldBankBaseURL = "https://api.worldbank.org/v2"

// statsIndicators maps topic keywords to World Bank indicator codes for
// Qatar. The first matching group is queried.
var statsIndicators = []struct {
	keywords []string
	code     string
	label    string
}{
	{[]string{"population", "youth", "demograph"}, "SP.POP.TOTL", "Population, total"},
	{[]string{"life", "health", "expectancy"}, "SP.DYN.LE00.IN", "Life expectancy at birth (years)"},
	{[]string{"internet", "digital", "screen", "online"}, "IT.NET.USER.ZS", "Individuals using the Internet (% of population)"},
	{[]string{"education", "school", "literacy"}, "SE.ADT.LITR.ZS", "Adult literacy rate (%)"},
	{[]string{"gdp", "economy", "income"}, "NY.GDP.PCAP.CD", "GDP per capita (current US$)"},
	{[]string{"employment", "labor", "work"}, "SL.TLF.CACT.ZS", "Labor force participation rate (%)"},
}

// StatsClient retrieves national statistics for Qatar from the World Bank
// open data API. Usage: get_qatar_stats_standalone("topic").
type StatsClient struct {
	HTTP    *HTTPClient
	BaseURL string
}

func (c *StatsClient) Tool() council.ToolFunc {
	return func(ctx context.Context, args []any) (string, error) {
		topic, err := requireStr(args, 0, "topic")
		if err != nil {
			return "", err
		}
		base := c.BaseURL
		if base == "" {
			base = defaultWorldBankBaseURL
		}

		code, label := matchIndicator(topic)
		u := fmt.Sprintf("%s/country/QAT/indicator/%s?format=json&per_page=5&mrnev=5", base, code)

		// world bank responses are a two-element array: metadata, then rows
		var raw []json.RawMessage
		if err := c.HTTP.GetJSON(ctx, u, nil, &raw); err != nil {
			return "", err
		}
		if len(raw) < 2 {
			return "", &council.ToolError{Kind: council.ErrKindParse, Err: fmt.Errorf("unexpected world bank response shape")}
		}
		var rows []struct {
			Date  string   `json:"date"`
			Value *float64 `json:"value"`
		}
		if err := json.Unmarshal(raw[1], &rows); err != nil {
			return "", &council.ToolError{Kind: council.ErrKindParse, Err: err}
		}
		if len(rows) == 0 {
			return fmt.Sprintf("No Qatar statistics found for %q (indicator %s).", topic, code), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Qatar — %s (World Bank, indicator %s):\n\n", label, code)
		for _, r := range rows {
			if r.Value == nil {
				continue
			}
			fmt.Fprintf(&sb, "- %s: %.2f\n", r.Date, *r.Value)
		}
		fmt.Fprintf(&sb, "\nSource: https://data.worldbank.org/country/qatar\n")
		return sb.String(), nil
	}
}

func matchIndicator(topic string) (code, label string) {
	t := strings.ToLower(topic)
	for _, ind := range statsIndicators {
		for _, kw := range ind.keywords {
			if strings.Contains(t, kw) {
				return ind.code, ind.label
			}
		}
	}
	return "SP.POP.TOTL", "Population, total"
}

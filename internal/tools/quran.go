package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/albarami/wellbeing/internal/council"
)

const defaultQuranBaseURL = "https://api.quran.com/api/v4"

// QuranClient retrieves a single verse with its English translation from
// the quran.com v4 API. Usage: get_quran_verse_standalone(surah, ayah).
type QuranClient struct {
	HTTP    *HTTPClient
	BaseURL string
}

type quranVerseResponse struct {
	Verse struct {
		VerseKey     string `json:"verse_key"`
		TextUthmani  string `json:"text_uthmani"`
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	} `json:"verse"`
}

func (c *QuranClient) Tool() council.ToolFunc {
	return func(ctx context.Context, args []any) (string, error) {
		surah := intArg(args, 0, 0)
		ayah := intArg(args, 1, 0)
		if surah < 1 || surah > 114 || ayah < 1 {
			return "", &council.ToolError{
				Kind: council.ErrKindRejected,
				Err:  fmt.Errorf("invalid verse reference %d:%d", surah, ayah),
			}
		}
		base := c.BaseURL
		if base == "" {
			base = defaultQuranBaseURL
		}
		url := fmt.Sprintf("%s/verses/by_key/%d:%d?translations=131&fields=text_uthmani", base, surah, ayah)

		var resp quranVerseResponse
		if err := c.HTTP.GetJSON(ctx, url, nil, &resp); err != nil {
			return "", err
		}
		if resp.Verse.VerseKey == "" {
			return "", &council.ToolError{
				Kind: council.ErrKindNotFound,
				Err:  fmt.Errorf("verse %d:%d not found", surah, ayah),
			}
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Quran %s\n\n", resp.Verse.VerseKey)
		if resp.Verse.TextUthmani != "" {
			fmt.Fprintf(&sb, "%s\n\n", resp.Verse.TextUthmani)
		}
		for _, tr := range resp.Verse.Translations {
			fmt.Fprintf(&sb, "Translation: %s\n", stripFootnotes(tr.Text))
		}
		return sb.String(), nil
	}
}

// stripFootnotes removes the inline <sup>..</sup> markers the API embeds.
func stripFootnotes(s string) string {
	for {
		i := strings.Index(s, "<sup")
		if i < 0 {
			return s
		}
		j := strings.Index(s[i:], "</sup>")
		if j < 0 {
			return s[:i]
		}
		s = s[:i] + s[i+j+len("</sup>"):]
	}
}

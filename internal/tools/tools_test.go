package tools

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/albarami/wellbeing/config"
	"github.com/albarami/wellbeing/internal/council"
)

func testHTTP() *HTTPClient {
	return NewHTTPClient(2*time.Second, 0, time.Millisecond, "wellbeing-test/1.0")
}

func TestQuranClientFetchesVerse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/verses/by_key/2:255") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"verse":{"verse_key":"2:255","text_uthmani":"ٱللَّهُ لَآ إِلَـٰهَ إِلَّا هُوَ","translations":[{"text":"Allah - there is no deity except Him<sup foot_note=1>1</sup>"}]}}`))
	}))
	defer srv.Close()

	c := &QuranClient{HTTP: testHTTP(), BaseURL: srv.URL}
	out, err := c.Tool()(context.Background(), []any{2, 255})
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	if !strings.Contains(out, "Quran 2:255") || !strings.Contains(out, "no deity except Him") {
		t.Fatalf("payload = %q", out)
	}
	if strings.Contains(out, "<sup") {
		t.Fatal("footnote markup not stripped")
	}
}

func TestQuranClientRejectsBadReference(t *testing.T) {
	c := &QuranClient{HTTP: testHTTP()}
	_, err := c.Tool()(context.Background(), []any{115, 1})
	var te *council.ToolError
	if !errors.As(err, &te) || te.Kind != council.ErrKindRejected {
		t.Fatalf("err = %v", err)
	}
}

func TestQuranClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := &QuranClient{HTTP: testHTTP(), BaseURL: srv.URL}
	_, err := c.Tool()(context.Background(), []any{2, 999})
	var te *council.ToolError
	if !errors.As(err, &te) || te.Kind != council.ErrKindNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestHadithClientRequiresKey(t *testing.T) {
	c := &HadithClient{HTTP: testHTTP()}
	_, err := c.Tool()(context.Background(), []any{"patience", 3})
	var te *council.ToolError
	if !errors.As(err, &te) || te.Kind != council.ErrKindRejected {
		t.Fatalf("err = %v, want rejected for missing key", err)
	}
}

func TestHadithClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != "k" {
			http.Error(w, "no key", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"hadiths":{"data":[{"hadithNumber":"6114","hadithEnglish":"The strong man is not the good wrestler...","status":"Sahih","book":{"bookName":"Sahih Bukhari"},"chapter":{"chapterEnglish":"Good Manners"}}]}}`))
	}))
	defer srv.Close()

	c := &HadithClient{HTTP: testHTTP(), APIKey: "k", BaseURL: srv.URL}
	out, err := c.Tool()(context.Background(), []any{"anger", 3})
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	for _, want := range []string{"Sahih Bukhari 6114", "(Sahih)", "strong man"} {
		if !strings.Contains(out, want) {
			t.Fatalf("payload missing %q:\n%s", want, out)
		}
	}
}

func TestCitationClientUnverified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":0,"data":[]}`))
	}))
	defer srv.Close()

	c := &CitationClient{HTTP: testHTTP(), BaseURL: srv.URL}
	out, err := c.Tool()(context.Background(), []any{"fabricated 2019 study"})
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	if !strings.Contains(out, "NOT VERIFIED") {
		t.Fatalf("payload = %q", out)
	}
}

func TestCitationClientVerified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":1,"data":[{"title":"Screen time and sleep","year":2021,"citationCount":120,"venue":"Sleep Medicine","externalIds":{"DOI":"10.1000/x"},"authors":[{"name":"A. Author"}]}]}`))
	}))
	defer srv.Close()

	c := &CitationClient{HTTP: testHTTP(), BaseURL: srv.URL}
	out, err := c.Tool()(context.Background(), []any{"screen time sleep"})
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	for _, want := range []string{"Screen time and sleep", "2021", "DOI: 10.1000/x"} {
		if !strings.Contains(out, want) {
			t.Fatalf("payload missing %q:\n%s", want, out)
		}
	}
}

func TestMedicalClientTwoStepLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "esearch"):
			_, _ = w.Write([]byte(`{"esearchresult":{"count":"2","idlist":["111","222"]}}`))
		case strings.Contains(r.URL.Path, "esummary"):
			_, _ = w.Write([]byte(`{"result":{"111":{"title":"Sleep and memory","source":"J Sleep Res","pubdate":"2020"},"222":{"title":"Sleep loss effects","source":"Lancet","pubdate":"2019"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &MedicalClient{HTTP: testHTTP(), BaseURL: srv.URL}
	out, err := c.Tool()(context.Background(), []any{"sleep improves memory"})
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	for _, want := range []string{"Sleep and memory", "pubmed.ncbi.nlm.nih.gov/111", "Lancet"} {
		if !strings.Contains(out, want) {
			t.Fatalf("payload missing %q:\n%s", want, out)
		}
	}
}

func TestStatsClientIndicator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "IT.NET.USER.ZS") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"page":1},[{"date":"2022","value":99.7},{"date":"2021","value":99.6}]]`))
	}))
	defer srv.Close()

	c := &StatsClient{HTTP: testHTTP(), BaseURL: srv.URL}
	out, err := c.Tool()(context.Background(), []any{"internet usage among teens"})
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	if !strings.Contains(out, "2022: 99.70") {
		t.Fatalf("payload = %q", out)
	}
}

func TestBraveClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "b" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"Result one","url":"https://example.com/1","description":"first"}]}}`))
	}))
	defer srv.Close()

	c := &BraveClient{HTTP: testHTTP(), APIKey: "b", BaseURL: srv.URL}
	out, err := c.Tool()(context.Background(), []any{"wellbeing", 3})
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	if !strings.Contains(out, "Result one") || !strings.Contains(out, "https://example.com/1") {
		t.Fatalf("payload = %q", out)
	}
}

func TestPerplexityClientFactCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Supported. Multiple studies confirm this."}}],"citations":["https://example.org/study"]}`))
	}))
	defer srv.Close()

	c := &PerplexityClient{HTTP: testHTTP(), APIKey: "p", BaseURL: srv.URL}
	out, err := c.Tool()(context.Background(), []any{"fasting improves focus"})
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	if !strings.Contains(out, "Supported.") || !strings.Contains(out, "https://example.org/study") {
		t.Fatalf("payload = %q", out)
	}
}

func TestRegisterAllWiresEveryTool(t *testing.T) {
	reg := council.NewRegistry(time.Second, log.New(io.Discard, "", 0))
	RegisterAll(reg, config.ToolsConfig{Timeout: time.Second}, log.New(io.Discard, "", 0))
	want := []string{
		"brave_search_standalone",
		"get_qatar_stats_standalone",
		"get_quran_verse_standalone",
		"perplexity_fact_check_standalone",
		"search_hadith_standalone",
		"search_madhab_fatwa_standalone",
		"search_shamela_standalone",
		"verify_citation_standalone",
		"verify_medical_claim_standalone",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("registered %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("registered %v, want %v", got, want)
		}
	}
}

func TestFatwaClientUnknownMadhab(t *testing.T) {
	c := &FatwaClient{HTTP: testHTTP()}
	_, err := c.Tool()(context.Background(), []any{"prayer times", "zahiri"})
	var te *council.ToolError
	if !errors.As(err, &te) || te.Kind != council.ErrKindRejected {
		t.Fatalf("err = %v, want rejected", err)
	}
}

func TestFatwaClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Search</title></head><body><article><h1>Fatwa on fasting</h1><p>Fasting six days of Shawwal is recommended according to the school.</p></article></body></html>`))
	}))
	defer srv.Close()

	c := &FatwaClient{HTTP: testHTTP(), BaseURL: srv.URL}
	out, err := c.Tool()(context.Background(), []any{"fasting shawwal", "shafii"})
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	if !strings.Contains(out, "shafii school") || !strings.Contains(out, "Shawwal") {
		t.Fatalf("payload = %q", out)
	}
}

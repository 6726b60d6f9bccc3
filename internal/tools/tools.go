// Package tools implements the council's verification tools: Islamic
// primary-source lookups, citation and medical-claim verification,
// national statistics and general web search. Every tool is a thin HTTP
// client returning a plain-text payload the model can read, with failures
// classified for the registry.
package tools

import (
	"fmt"
	"log"

	"github.com/albarami/wellbeing/config"
	"github.com/albarami/wellbeing/internal/council"
)

// RegisterAll wires every verification tool into the registry under its
// canonical name. Tools missing required credentials are still registered
// and report the missing configuration at call time, so a persona asking
// for them gets an explanation instead of a rejection.
func RegisterAll(reg *council.Registry, cfg config.ToolsConfig, logger *log.Logger) {
	if logger == nil {
		logger = log.New(log.Writer(), "[TOOLS] ", log.LstdFlags)
	}
	hc := NewHTTPClient(cfg.Timeout, cfg.Retries, 0, cfg.UserAgent)

	quran := &QuranClient{HTTP: hc}
	hadith := &HadithClient{HTTP: hc, APIKey: cfg.HadithAPIKey}
	fatwa := &FatwaClient{HTTP: hc, Headless: cfg.HeadlessFallback}
	shamela := &ShamelaClient{HTTP: hc, Headless: cfg.HeadlessFallback}
	citations := &CitationClient{HTTP: hc}
	medical := &MedicalClient{HTTP: hc}
	stats := &StatsClient{HTTP: hc}
	brave := &BraveClient{HTTP: hc, APIKey: cfg.BraveAPIKey}
	perplexity := &PerplexityClient{HTTP: hc, APIKey: cfg.PerplexityAPIKey}

	reg.Register("get_quran_verse_standalone", quran.Tool())
	reg.Register("search_hadith_standalone", hadith.Tool())
	reg.Register("search_madhab_fatwa_standalone", fatwa.Tool())
	reg.Register("search_shamela_standalone", shamela.Tool())
	reg.Register("verify_citation_standalone", citations.Tool())
	reg.Register("verify_medical_claim_standalone", medical.Tool())
	reg.Register("get_qatar_stats_standalone", stats.Tool())
	reg.Register("brave_search_standalone", brave.Tool())
	reg.Register("perplexity_fact_check_standalone", perplexity.Tool())

	logger.Printf("registered %d verification tools", len(reg.Names()))
}

// strArg reads args[i] as a string, with a fallback.
func strArg(args []any, i int, fallback string) string {
	if i < len(args) {
		if s, ok := args[i].(string); ok {
			return s
		}
	}
	return fallback
}

// intArg reads args[i] as an int, with a fallback.
func intArg(args []any, i, fallback int) int {
	if i < len(args) {
		if n, ok := args[i].(int); ok {
			return n
		}
	}
	return fallback
}

// requireStr reads args[i] as a non-empty string.
func requireStr(args []any, i int, name string) (string, error) {
	s := strArg(args, i, "")
	if s == "" {
		return "", &council.ToolError{Kind: council.ErrKindRejected, Err: fmt.Errorf("argument %q is required", name)}
	}
	return s, nil
}

func missingKey(service, from string) error {
	return &council.ToolError{
		Kind: council.ErrKindRejected,
		Err:  fmt.Errorf("%s API key is not configured; get one from %s", service, from),
	}
}

package council

import (
	"fmt"
	"strings"
	"time"
)

var categoryOrder = []Category{CategoryRound1, CategoryModeration, CategoryRound2, CategorySynthesis}

var categoryTitles = map[Category]string{
	CategoryRound1:     "Round 1 — Pillar Analyses",
	CategoryModeration: "Moderation",
	CategoryRound2:     "Round 2 — Rebuttals",
	CategorySynthesis:  "Final Synthesis",
}

// BuildReport renders the debate transcript as a markdown document,
// grouped by phase in debate order, with per-task attribution and a
// closing summary of what completed and what did not.
func BuildReport(topic string, results []TaskResult, total time.Duration) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Wellbeing Council Report\n\n**Topic:** %s\n\n", topic)
	fmt.Fprintf(&sb, "_Generated %s, total deliberation %s._\n\n", time.Now().Format("2006-01-02 15:04"), total.Round(time.Second))

	for _, cat := range categoryOrder {
		section := resultsIn(results, cat)
		if len(section) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n", categoryTitles[cat])
		for _, r := range section {
			fmt.Fprintf(&sb, "### %s\n\n", r.PersonaTitle)
			switch r.Status {
			case StatusCompleted:
				sb.WriteString(strings.TrimSpace(r.Output))
			case StatusTimedOut:
				fmt.Fprintf(&sb, "_This contribution was cut short by the time limit._\n\n%s", strings.TrimSpace(r.Output))
			default:
				fmt.Fprintf(&sb, "_This contribution failed._\n\n%s", strings.TrimSpace(r.Output))
			}
			fmt.Fprintf(&sb, "\n\n_%s in %s", statusLabel(r.Status), r.Duration.Round(time.Second))
			if len(r.ToolLog) > 0 {
				fmt.Fprintf(&sb, ", %d tool call(s)", len(r.ToolLog))
			}
			sb.WriteString("._\n\n")
		}
	}

	completed := 0
	words := 0
	for _, r := range results {
		if r.Status == StatusCompleted {
			completed++
		}
		words += len(strings.Fields(r.Output))
	}
	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "**Completion:** %d of %d tasks completed, %d words produced.\n", completed, len(results), words)
	if completed < len(results) {
		sb.WriteString("\nIncomplete tasks:\n")
		for _, r := range results {
			if r.Status != StatusCompleted {
				fmt.Fprintf(&sb, "- %s (%s): %s\n", r.TaskName, r.PersonaTitle, statusLabel(r.Status))
			}
		}
	}
	return sb.String()
}

func resultsIn(results []TaskResult, cat Category) []TaskResult {
	var out []TaskResult
	for _, r := range results {
		if r.Category == cat {
			out = append(out, r)
		}
	}
	return out
}

func statusLabel(s Status) string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusTimedOut:
		return "Timed out"
	case StatusErrored:
		return "Failed"
	default:
		return string(s)
	}
}

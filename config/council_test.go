package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRosterDefault(t *testing.T) {
	r, err := LoadRoster("")
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}
	if len(r.Personas) != 7 {
		t.Fatalf("default roster has %d personas, want 7", len(r.Personas))
	}
	if len(r.Tasks) != 12 {
		t.Fatalf("default roster has %d tasks, want 12", len(r.Tasks))
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("default roster invalid: %v", err)
	}

	// moderator and synthesizer reason without tools
	for _, name := range []string{"dr_yusuf_al_mudeer", "dr_amira_al_tawhid"} {
		p, ok := r.Persona(name)
		if !ok {
			t.Fatalf("persona %s missing", name)
		}
		if len(p.Tools) != 0 {
			t.Errorf("%s should have no tools, has %v", name, p.Tools)
		}
	}

	counts := map[string]int{}
	for _, task := range r.Tasks {
		counts[task.Category]++
	}
	if counts["round1"] != 5 || counts["moderation"] != 1 || counts["round2"] != 5 || counts["synthesis"] != 1 {
		t.Fatalf("category counts = %v", counts)
	}

	// tasks run in declared order: synthesis must be last
	last := r.Tasks[len(r.Tasks)-1]
	if last.Category != "synthesis" {
		t.Fatalf("last task category = %q, want synthesis", last.Category)
	}
}

func TestLoadRosterFromFile(t *testing.T) {
	yaml := `
personas:
  - name: solo
    display_name: Solo Advisor
    pillar: emotional
    role: advisor
    goal: advise
    backstory: one-person council
tasks:
  - id: 1
    name: Only Task
    persona: solo
    category: round1
    prompt: "Advise on {topic}."
`
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadRoster(path)
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}
	if len(r.Personas) != 1 || r.Personas[0].Name != "solo" {
		t.Fatalf("personas = %+v", r.Personas)
	}
	if len(r.Tasks) != 1 || r.Tasks[0].Persona != "solo" {
		t.Fatalf("tasks = %+v", r.Tasks)
	}
}

func TestRosterValidate(t *testing.T) {
	base := func() *CouncilRoster {
		return &CouncilRoster{
			Personas: []PersonaConfig{{Name: "a"}, {Name: "b"}},
			Tasks: []TaskConfig{
				{ID: 1, Name: "one", Persona: "a", Category: "round1"},
				{ID: 2, Name: "two", Persona: "b", Category: "synthesis"},
			},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid roster rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CouncilRoster)
		want   string
	}{
		{"no personas", func(r *CouncilRoster) { r.Personas = nil }, "no personas"},
		{"no tasks", func(r *CouncilRoster) { r.Tasks = nil }, "no tasks"},
		{"duplicate persona", func(r *CouncilRoster) { r.Personas[1].Name = "a" }, "duplicate persona"},
		{"unknown persona", func(r *CouncilRoster) { r.Tasks[0].Persona = "ghost" }, "unknown persona"},
		{"duplicate task id", func(r *CouncilRoster) { r.Tasks[1].ID = 1 }, "duplicate task id"},
		{"bad category", func(r *CouncilRoster) { r.Tasks[0].Category = "round9" }, "unknown category"},
	}
	for _, tc := range cases {
		r := base()
		tc.mutate(r)
		err := r.Validate()
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

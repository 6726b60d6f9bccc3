package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// PersonaConfig describes one council member.
type PersonaConfig struct {
	Name        string   `mapstructure:"name"`
	DisplayName string   `mapstructure:"display_name"`
	Pillar      string   `mapstructure:"pillar"`
	Role        string   `mapstructure:"role"`
	Goal        string   `mapstructure:"goal"`
	Backstory   string   `mapstructure:"backstory"`
	Model       string   `mapstructure:"model"`
	Temperature float64  `mapstructure:"temperature"`
	Tools       []string `mapstructure:"tools"`
}

// TaskConfig describes one debate task, executed in declaration order.
type TaskConfig struct {
	ID       int    `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Persona  string `mapstructure:"persona"`
	Category string `mapstructure:"category"` // round1 | moderation | round2 | synthesis
	Prompt   string `mapstructure:"prompt"`
}

// CouncilRoster is the full persona/task declaration for a debate run.
type CouncilRoster struct {
	Personas []PersonaConfig `mapstructure:"personas"`
	Tasks    []TaskConfig    `mapstructure:"tasks"`
}

// Persona returns the named persona, if declared.
func (r *CouncilRoster) Persona(name string) (PersonaConfig, bool) {
	for _, p := range r.Personas {
		if p.Name == name {
			return p, true
		}
	}
	return PersonaConfig{}, false
}

// Validate checks cross references between tasks and personas.
func (r *CouncilRoster) Validate() error {
	if len(r.Personas) == 0 {
		return fmt.Errorf("council roster declares no personas")
	}
	if len(r.Tasks) == 0 {
		return fmt.Errorf("council roster declares no tasks")
	}
	seen := map[string]bool{}
	for _, p := range r.Personas {
		if p.Name == "" {
			return fmt.Errorf("persona with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate persona %q", p.Name)
		}
		seen[p.Name] = true
	}
	ids := map[int]bool{}
	for _, t := range r.Tasks {
		if !seen[t.Persona] {
			return fmt.Errorf("task %q references unknown persona %q", t.Name, t.Persona)
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate task id %d", t.ID)
		}
		ids[t.ID] = true
		switch t.Category {
		case "round1", "moderation", "round2", "synthesis":
		default:
			return fmt.Errorf("task %q has unknown category %q", t.Name, t.Category)
		}
	}
	return nil
}

// LoadRoster loads the council roster from the given YAML file, falling back
// to the built-in seven-persona roster when path is empty.
func LoadRoster(path string) (*CouncilRoster, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening council roster %s: %w", path, err)
		}
		defer f.Close()
		if err := v.ReadConfig(f); err != nil {
			return nil, fmt.Errorf("reading council roster %s: %w", path, err)
		}
	} else {
		if err := v.ReadConfig(bytes.NewReader([]byte(defaultRosterYAML))); err != nil {
			return nil, fmt.Errorf("reading built-in council roster: %w", err)
		}
	}
	var r CouncilRoster
	if err := v.Unmarshal(&r); err != nil {
		return nil, fmt.Errorf("unmarshalling council roster: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// defaultRosterYAML is the built-in council: five pillar specialists, a
// moderator and a synthesizer, debating across twelve ordered tasks.
const defaultRosterYAML = `
personas:
  - name: sheikh_dr_ibrahim_al_tazkiyah
    display_name: "Sheikh Dr. Ibrahim Al-Tazkiyah"
    pillar: spiritual
    role: "Islamic Spirituality and Tazkiyah Scholar"
    goal: "Ground every recommendation in authentic Quran, Sunnah and classical scholarship"
    backstory: >
      A scholar of tazkiyat al-nafs trained in Qatar and Al-Azhar, known for
      citing primary sources precisely and refusing unverified attributions.
    model: claude-sonnet-4-20250514
    temperature: 0.7
    tools:
      - get_quran_verse_standalone
      - search_hadith_standalone
      - search_madhab_fatwa_standalone
      - search_shamela_standalone
  - name: dr_layla_al_qalb
    display_name: "Dr. Layla Al-Qalb"
    pillar: emotional
    role: "Clinical Psychologist for Emotional Wellbeing"
    goal: "Assess the emotional-health dimension with evidence-based psychology"
    backstory: >
      A practicing clinical psychologist in Doha who insists that every claimed
      study be verifiable before it enters her analysis.
    model: claude-sonnet-4-20250514
    temperature: 0.7
    tools:
      - verify_citation_standalone
      - verify_medical_claim_standalone
  - name: dr_hassan_al_hikmah
    display_name: "Dr. Hassan Al-Hikmah"
    pillar: intellectual
    role: "Cognitive Science and Education Researcher"
    goal: "Evaluate intellectual growth and cognitive-load implications"
    backstory: >
      A cognitive scientist who cross-checks contested claims against current
      literature before taking a position.
    model: claude-sonnet-4-20250514
    temperature: 0.7
    tools:
      - verify_citation_standalone
      - perplexity_fact_check_standalone
  - name: dr_fatima_al_jism
    display_name: "Dr. Fatima Al-Jism"
    pillar: physical
    role: "Physician for Physical Health and Lifestyle Medicine"
    goal: "Judge the physical-health impact using verified medical evidence"
    backstory: >
      A lifestyle-medicine physician who validates medical claims against
      indexed publications and national health statistics.
    model: claude-sonnet-4-20250514
    temperature: 0.7
    tools:
      - verify_citation_standalone
      - verify_medical_claim_standalone
      - get_qatar_stats_standalone
  - name: dr_aisha_al_mujtama
    display_name: "Dr. Aisha Al-Mujtama"
    pillar: social
    role: "Sociologist of Family and Community Life"
    goal: "Weigh community, family and societal effects with current data"
    backstory: >
      A sociologist studying Gulf family structures, quick to pull official
      statistics rather than argue from anecdote.
    model: claude-sonnet-4-20250514
    temperature: 0.7
    tools:
      - get_qatar_stats_standalone
      - verify_citation_standalone
      - perplexity_fact_check_standalone
      - brave_search_standalone
  - name: dr_yusuf_al_mudeer
    display_name: "Dr. Yusuf Al-Mudeer"
    pillar: moderation
    role: "Debate Moderator"
    goal: "Surface tensions between the five pillar analyses and pose sharp follow-ups"
    backstory: >
      An experienced panel chair who synthesizes nothing himself, instead
      forcing the specialists to confront each other's strongest points.
    model: claude-sonnet-4-20250514
    temperature: 0.6
    tools: []
  - name: dr_amira_al_tawhid
    display_name: "Dr. Amira Al-Tawhid"
    pillar: synthesis
    role: "Integrative Wellbeing Synthesizer"
    goal: "Produce one coherent, actionable verdict from the full debate"
    backstory: >
      A policy advisor practiced at reconciling expert disagreement into a
      single defensible recommendation.
    model: claude-sonnet-4-20250514
    temperature: 0.5
    tools: []

tasks:
  - id: 1
    name: spiritual_analysis_round1
    persona: sheikh_dr_ibrahim_al_tazkiyah
    category: round1
    prompt: >
      Analyze the topic from the spiritual pillar: Quranic guidance, authentic
      hadith, and the rulings of the four madhabs where relevant. Cite sources
      you have verified with your tools.
  - id: 2
    name: emotional_analysis_round1
    persona: dr_layla_al_qalb
    category: round1
    prompt: >
      Analyze the emotional-wellbeing dimension of the topic. Anchor claims in
      studies you can verify, and flag popular beliefs that lack evidence.
  - id: 3
    name: intellectual_analysis_round1
    persona: dr_hassan_al_hikmah
    category: round1
    prompt: >
      Analyze the intellectual-development dimension of the topic, including
      learning, attention and cognitive-load effects, with verified citations.
  - id: 4
    name: physical_analysis_round1
    persona: dr_fatima_al_jism
    category: round1
    prompt: >
      Analyze the physical-health dimension of the topic. Verify medical claims
      before relying on them and bring in national statistics where useful.
  - id: 5
    name: social_analysis_round1
    persona: dr_aisha_al_mujtama
    category: round1
    prompt: >
      Analyze the family, community and societal dimension of the topic,
      grounded in current statistics and verifiable research.
  - id: 6
    name: moderation_crossfire
    persona: dr_yusuf_al_mudeer
    category: moderation
    prompt: >
      Review the five first-round analyses. Identify the sharpest points of
      agreement and conflict, and pose one pointed follow-up question to each
      specialist for the second round.
  - id: 7
    name: emotional_rebuttal_round2
    persona: dr_layla_al_qalb
    category: round2
    prompt: >
      Respond to the moderator's question and to the other specialists' claims
      that touch emotional wellbeing. Defend or revise your position.
  - id: 8
    name: intellectual_rebuttal_round2
    persona: dr_hassan_al_hikmah
    category: round2
    prompt: >
      Respond to the moderator's question and engage the strongest opposing
      arguments on the intellectual dimension.
  - id: 9
    name: physical_rebuttal_round2
    persona: dr_fatima_al_jism
    category: round2
    prompt: >
      Respond to the moderator's question, reconciling your medical evidence
      with the other pillars' concerns.
  - id: 10
    name: social_rebuttal_round2
    persona: dr_aisha_al_mujtama
    category: round2
    prompt: >
      Respond to the moderator's question and address how the social dimension
      interacts with the other pillars' findings.
  - id: 11
    name: spiritual_rebuttal_round2
    persona: sheikh_dr_ibrahim_al_tazkiyah
    category: round2
    prompt: >
      Respond to the moderator's question and weigh the other specialists'
      evidence against the scholarly tradition, citing verified sources.
  - id: 12
    name: final_synthesis
    persona: dr_amira_al_tawhid
    category: synthesis
    prompt: >
      Integrate the full debate into a single verdict: a clear recommendation,
      the conditions under which it holds, and concrete practices for each of
      the five pillars.
`

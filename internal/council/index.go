package council

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"
)

// transcriptDoc is the indexed shape of one task contribution.
type transcriptDoc struct {
	DebateID string `json:"debate_id"`
	Topic    string `json:"topic"`
	Task     string `json:"task"`
	Persona  string `json:"persona"`
	Pillar   string `json:"pillar"`
	Output   string `json:"output"`
}

// TranscriptHit is one search match across indexed debates.
type TranscriptHit struct {
	DebateID string  `json:"debate_id"`
	Topic    string  `json:"topic"`
	Task     string  `json:"task"`
	Persona  string  `json:"persona"`
	Score    float64 `json:"score"`
	Fragment string  `json:"fragment,omitempty"`
}

// TranscriptIndex is an in-memory full-text index over finished debate
// contributions, for the transcript search endpoint.
type TranscriptIndex struct {
	mu  sync.Mutex
	idx bleve.Index
}

func NewTranscriptIndex() (*TranscriptIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating transcript index: %w", err)
	}
	return &TranscriptIndex{idx: idx}, nil
}

// IndexRun adds every contribution of a finished run.
func (t *TranscriptIndex) IndexRun(debateID string, run RunResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	batch := t.idx.NewBatch()
	for _, r := range run.Results {
		id := fmt.Sprintf("%s/%d", debateID, r.TaskID)
		doc := transcriptDoc{
			DebateID: debateID,
			Topic:    run.Topic,
			Task:     r.TaskName,
			Persona:  r.PersonaTitle,
			Pillar:   r.Pillar,
			Output:   r.Output,
		}
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("indexing %s: %w", id, err)
		}
	}
	return t.idx.Batch(batch)
}

// Search runs a query-string search and returns up to limit hits.
func (t *TranscriptIndex) Search(query string, limit int) ([]TranscriptHit, error) {
	if limit <= 0 {
		limit = 10
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, 0, false)
	req.Fields = []string{"debate_id", "topic", "task", "persona"}
	req.Highlight = bleve.NewHighlightWithStyle("html")
	res, err := t.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching transcripts: %w", err)
	}

	hits := make([]TranscriptHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := TranscriptHit{Score: h.Score}
		if v, ok := h.Fields["debate_id"].(string); ok {
			hit.DebateID = v
		}
		if v, ok := h.Fields["topic"].(string); ok {
			hit.Topic = v
		}
		if v, ok := h.Fields["task"].(string); ok {
			hit.Task = v
		}
		if v, ok := h.Fields["persona"].(string); ok {
			hit.Persona = v
		}
		if frags, ok := h.Fragments["output"]; ok && len(frags) > 0 {
			hit.Fragment = frags[0]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the index.
func (t *TranscriptIndex) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idx.Close()
}

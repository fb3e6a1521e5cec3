package learningpath

import (
	"encoding/json"
	"strings"

	"github.com/gitguide/gitguide-backend/internal/apperr"
)

// GeneratedPath is the JSON shape produced by the content generator.
type GeneratedPath struct {
	ProjectOverview string             `json:"project_overview"`
	Concepts        []GeneratedConcept `json:"concepts"`
}

type GeneratedConcept struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Subtopics   []GeneratedSubtopic `json:"subtopics"`
}

type GeneratedSubtopic struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tasks       []GeneratedTask `json:"tasks"`
}

type GeneratedTask struct {
	Title        string   `json:"title"`
	Name         string   `json:"name"` // older generator payloads use "name"
	Description  string   `json:"description"`
	Difficulty   string   `json:"difficulty"`
	FilesToStudy []string `json:"files_to_study"`
}

// EffectiveTitle prefers the schema's "title" field and falls back to "name".
func (t GeneratedTask) EffectiveTitle() string {
	if s := strings.TrimSpace(t.Title); s != "" {
		return s
	}
	return strings.TrimSpace(t.Name)
}

// Parse decodes a generated learning path payload. The payload must contain at
// least one concept; per-field defects are repaired later by Materialize.
func Parse(raw []byte) (*GeneratedPath, error) {
	var g GeneratedPath
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "generated content is not valid JSON", err)
	}
	g.ProjectOverview = strings.TrimSpace(g.ProjectOverview)
	if len(g.Concepts) == 0 {
		return nil, apperr.New(apperr.CodeGeneration, "generated content has no concepts")
	}
	return &g, nil
}

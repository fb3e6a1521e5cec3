package learningpath

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/types"
)

// Materialize turns a generated path into the Concept/Subtopic/Task entity
// tree. Order follows input array position. External ids are positional:
// concept-{i}, subtopic-{i}-{j}, task-{i}-{j}-{k}. Exactly the order-0 entry
// of every sibling group is unlocked; ancestor lock state is deliberately not
// cascaded into children.
//
// Entries with an empty name/title are skipped rather than failing the batch;
// an invalid or missing difficulty falls back to medium, and a missing file
// list becomes an empty array. Database ids are not assigned here.
func Materialize(g *GeneratedPath) ([]*types.Concept, error) {
	if g == nil || len(g.Concepts) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "no concepts to materialize")
	}

	concepts := make([]*types.Concept, 0, len(g.Concepts))
	for _, gc := range g.Concepts {
		name := strings.TrimSpace(gc.Name)
		if name == "" {
			continue
		}
		i := len(concepts)
		concept := &types.Concept{
			ExternalID:  fmt.Sprintf("concept-%d", i),
			Name:        name,
			Description: strings.TrimSpace(gc.Description),
			Order:       i,
			IsUnlocked:  i == 0,
		}

		for _, gs := range gc.Subtopics {
			subName := strings.TrimSpace(gs.Name)
			if subName == "" {
				continue
			}
			j := len(concept.Subtopics)
			subtopic := &types.Subtopic{
				ExternalID:  fmt.Sprintf("subtopic-%d-%d", i, j),
				Name:        subName,
				Description: strings.TrimSpace(gs.Description),
				Order:       j,
				IsUnlocked:  j == 0,
			}

			for _, gt := range gs.Tasks {
				title := gt.EffectiveTitle()
				if title == "" {
					continue
				}
				k := len(subtopic.Tasks)
				subtopic.Tasks = append(subtopic.Tasks, &types.Task{
					ExternalID:   fmt.Sprintf("task-%d-%d-%d", i, j, k),
					Title:        title,
					Description:  strings.TrimSpace(gt.Description),
					Difficulty:   normalizeDifficulty(gt.Difficulty),
					FilesToStudy: marshalFileList(gt.FilesToStudy),
					Order:        k,
					IsUnlocked:   k == 0,
					Status:       types.TaskStatusNotStarted,
				})
			}

			concept.Subtopics = append(concept.Subtopics, subtopic)
		}

		concepts = append(concepts, concept)
	}

	if len(concepts) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "generated content has no usable concepts")
	}
	return concepts, nil
}

func normalizeDifficulty(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case types.TaskDifficultyEasy:
		return types.TaskDifficultyEasy
	case types.TaskDifficultyHard:
		return types.TaskDifficultyHard
	case types.TaskDifficultyMedium:
		return types.TaskDifficultyMedium
	default:
		return types.TaskDifficultyMedium
	}
}

func marshalFileList(files []string) datatypes.JSON {
	if files == nil {
		files = []string{}
	}
	raw, err := json.Marshal(files)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

// FileList decodes a task's files_to_study column.
func FileList(t *types.Task) []string {
	if t == nil || len(t.FilesToStudy) == 0 {
		return nil
	}
	var files []string
	if err := json.Unmarshal(t.FilesToStudy, &files); err != nil {
		return nil
	}
	return files
}

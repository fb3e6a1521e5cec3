package learningpath

import (
	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/types"
)

// UnlockDelta reports every entity whose flags changed during a task
// completion, so the caller can persist exactly those rows.
type UnlockDelta struct {
	Completed         *types.Task
	UnlockedTasks     []*types.Task
	UnlockedSubtopics []*types.Subtopic
	UnlockedConcepts  []*types.Concept
	PathComplete      bool
}

// Changed reports whether anything beyond the completed task itself flipped.
func (d *UnlockDelta) Changed() bool {
	return len(d.UnlockedTasks) > 0 || len(d.UnlockedSubtopics) > 0 || len(d.UnlockedConcepts) > 0
}

// CompleteTask marks the task identified by external id as completed and
// advances the unlock pointer: next task in the subtopic, else first task of
// the next subtopic, else first task of the next concept. Entering a new
// subtopic or concept also unlocks that container. Pure in-memory transition;
// the concepts slice must be ordered with ordered children.
func CompleteTask(concepts []*types.Concept, taskExternalID string) (*UnlockDelta, error) {
	ci, si, ti := findTask(concepts, taskExternalID)
	if ci < 0 {
		return nil, apperr.Newf(apperr.CodeNotFound, "task %q not found", taskExternalID)
	}

	task := concepts[ci].Subtopics[si].Tasks[ti]
	if !task.IsUnlocked {
		return nil, apperr.Newf(apperr.CodePrecondition, "task %q is locked", taskExternalID)
	}
	if task.Status == types.TaskStatusCompleted {
		return nil, apperr.Newf(apperr.CodePrecondition, "task %q is already completed", taskExternalID)
	}

	task.Status = types.TaskStatusCompleted
	delta := &UnlockDelta{Completed: task}

	subtopic := concepts[ci].Subtopics[si]
	if ti+1 < len(subtopic.Tasks) {
		unlockTask(delta, subtopic.Tasks[ti+1])
		return delta, nil
	}

	// Subtopic exhausted: move to the next subtopic in the same concept.
	if si+1 < len(concepts[ci].Subtopics) {
		enterSubtopic(delta, concepts[ci].Subtopics[si+1])
		return delta, nil
	}

	// Concept exhausted: move to the next concept's first subtopic.
	if ci+1 < len(concepts) {
		next := concepts[ci+1]
		if !next.IsUnlocked {
			next.IsUnlocked = true
			delta.UnlockedConcepts = append(delta.UnlockedConcepts, next)
		}
		if len(next.Subtopics) > 0 {
			enterSubtopic(delta, next.Subtopics[0])
		}
		return delta, nil
	}

	delta.PathComplete = true
	return delta, nil
}

// CurrentTask returns the first unlocked, not-completed task in global tree
// order, or nil when the path is finished or empty.
func CurrentTask(concepts []*types.Concept) *types.Task {
	for _, c := range concepts {
		for _, s := range c.Subtopics {
			for _, t := range s.Tasks {
				if t.IsUnlocked && t.Status != types.TaskStatusCompleted {
					return t
				}
			}
		}
	}
	return nil
}

// CountUnlocked returns the number of unlocked entities across all levels.
func CountUnlocked(concepts []*types.Concept) int {
	n := 0
	for _, c := range concepts {
		if c.IsUnlocked {
			n++
		}
		for _, s := range c.Subtopics {
			if s.IsUnlocked {
				n++
			}
			for _, t := range s.Tasks {
				if t.IsUnlocked {
					n++
				}
			}
		}
	}
	return n
}

func findTask(concepts []*types.Concept, externalID string) (ci, si, ti int) {
	for i, c := range concepts {
		for j, s := range c.Subtopics {
			for k, t := range s.Tasks {
				if t.ExternalID == externalID {
					return i, j, k
				}
			}
		}
	}
	return -1, -1, -1
}

func unlockTask(delta *UnlockDelta, t *types.Task) {
	if t.IsUnlocked {
		return
	}
	t.IsUnlocked = true
	delta.UnlockedTasks = append(delta.UnlockedTasks, t)
}

func enterSubtopic(delta *UnlockDelta, s *types.Subtopic) {
	if !s.IsUnlocked {
		s.IsUnlocked = true
		delta.UnlockedSubtopics = append(delta.UnlockedSubtopics, s)
	}
	if len(s.Tasks) > 0 {
		unlockTask(delta, s.Tasks[0])
	}
}

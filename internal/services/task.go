package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/learningpath"
	"github.com/gitguide/gitguide-backend/internal/locks"
	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/repos"
	"github.com/gitguide/gitguide-backend/internal/types"
)

// CompleteTaskResult reports the state change from finishing one task.
type CompleteTaskResult struct {
	CompletedTaskID   string   `json:"completed_task_id"`
	UnlockedTasks     []string `json:"unlocked_tasks"`
	UnlockedSubtopics []string `json:"unlocked_subtopics"`
	UnlockedConcepts  []string `json:"unlocked_concepts"`
	PathComplete      bool     `json:"path_complete"`
}

// Progress is the per-project completion summary. Subtopic and concept
// completion is derived from their tasks, not stored.
type Progress struct {
	ProjectID          uuid.UUID `json:"project_id"`
	TotalConcepts      int       `json:"total_concepts"`
	CompletedConcepts  int       `json:"completed_concepts"`
	TotalSubtopics     int       `json:"total_subtopics"`
	CompletedSubtopics int       `json:"completed_subtopics"`
	TotalTasks         int64     `json:"total_tasks"`
	CompletedTasks     int64     `json:"completed_tasks"`
	Percent            float64   `json:"percent"`
}

type TaskService interface {
	// Complete marks a task done and unlocks whatever follows it. taskRef is
	// either the task's database id or its positional external id.
	Complete(ctx context.Context, userID, projectID uuid.UUID, taskRef string) (*CompleteTaskResult, error)
	GetProgress(ctx context.Context, userID, projectID uuid.UUID) (*Progress, error)
}

type taskService struct {
	db          *gorm.DB
	log         *logger.Logger
	projects    ProjectService
	conceptRepo repos.ConceptRepo
	taskRepo    repos.TaskRepo
	subRepo     repos.SubtopicRepo
	locker      locks.ProjectLocker
}

func NewTaskService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projects ProjectService,
	conceptRepo repos.ConceptRepo,
	taskRepo repos.TaskRepo,
	subRepo repos.SubtopicRepo,
	locker locks.ProjectLocker,
) TaskService {
	return &taskService{
		db:          db,
		log:         baseLog.With("service", "TaskService"),
		projects:    projects,
		conceptRepo: conceptRepo,
		taskRepo:    taskRepo,
		subRepo:     subRepo,
		locker:      locker,
	}
}

func (s *taskService) Complete(ctx context.Context, userID, projectID uuid.UUID, taskRef string) (*CompleteTaskResult, error) {
	project, err := s.projects.GetOwned(ctx, nil, userID, projectID)
	if err != nil {
		return nil, err
	}

	// Two concurrent completions on the same project would both read the
	// pre-completion tree and unlock inconsistent entities.
	release, err := s.locker.Acquire(ctx, "project-tasks:"+project.ID.String(), 30*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	externalID, err := s.resolveTaskRef(ctx, project.ID, taskRef)
	if err != nil {
		return nil, err
	}

	concepts, err := s.conceptRepo.GetTreeByProjectID(ctx, nil, project.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to load learning path", err)
	}
	if len(concepts) == 0 {
		return nil, apperr.New(apperr.CodePrecondition, "project has no learning path yet")
	}

	delta, err := learningpath.CompleteTask(concepts, externalID)
	if err != nil {
		return nil, err
	}

	if err := s.persistDelta(ctx, delta); err != nil {
		return nil, err
	}

	result := &CompleteTaskResult{
		CompletedTaskID:   delta.Completed.ExternalID,
		UnlockedTasks:     []string{},
		UnlockedSubtopics: []string{},
		UnlockedConcepts:  []string{},
		PathComplete:      delta.PathComplete,
	}
	for _, t := range delta.UnlockedTasks {
		result.UnlockedTasks = append(result.UnlockedTasks, t.ExternalID)
	}
	for _, st := range delta.UnlockedSubtopics {
		result.UnlockedSubtopics = append(result.UnlockedSubtopics, st.ExternalID)
	}
	for _, c := range delta.UnlockedConcepts {
		result.UnlockedConcepts = append(result.UnlockedConcepts, c.ExternalID)
	}

	s.log.Info("task completed",
		"project_id", project.ID,
		"task", delta.Completed.ExternalID,
		"unlocked_tasks", len(delta.UnlockedTasks),
		"path_complete", delta.PathComplete,
	)
	return result, nil
}

func (s *taskService) GetProgress(ctx context.Context, userID, projectID uuid.UUID) (*Progress, error) {
	project, err := s.projects.GetOwned(ctx, nil, userID, projectID)
	if err != nil {
		return nil, err
	}
	total, completed, err := s.taskRepo.CountByProjectID(ctx, nil, project.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to count tasks", err)
	}
	progress := &Progress{
		ProjectID:      project.ID,
		TotalTasks:     total,
		CompletedTasks: completed,
	}
	if total > 0 {
		progress.Percent = float64(completed) / float64(total) * 100
	}

	concepts, err := s.conceptRepo.GetTreeByProjectID(ctx, nil, project.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to load learning path", err)
	}
	for _, c := range concepts {
		progress.TotalConcepts++
		conceptDone := len(c.Subtopics) > 0
		for _, st := range c.Subtopics {
			progress.TotalSubtopics++
			if subtopicCompleted(st) {
				progress.CompletedSubtopics++
			} else {
				conceptDone = false
			}
		}
		if conceptDone {
			progress.CompletedConcepts++
		}
	}
	return progress, nil
}

func subtopicCompleted(st *types.Subtopic) bool {
	if len(st.Tasks) == 0 {
		return false
	}
	for _, t := range st.Tasks {
		if t.Status != types.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// resolveTaskRef maps a database uuid onto the task's external id; anything
// that is not a uuid is treated as an external id already.
func (s *taskService) resolveTaskRef(ctx context.Context, projectID uuid.UUID, taskRef string) (string, error) {
	id, err := uuid.Parse(taskRef)
	if err != nil {
		return taskRef, nil
	}
	task, err := s.taskRepo.GetByID(ctx, nil, id)
	if err != nil {
		return "", apperr.Wrap(apperr.CodePersistence, "failed to load task", err)
	}
	if task == nil || task.ProjectID != projectID {
		return "", apperr.New(apperr.CodeNotFound, "task not found")
	}
	return task.ExternalID, nil
}

// persistDelta writes exactly the rows the completion flipped.
func (s *taskService) persistDelta(ctx context.Context, delta *learningpath.UnlockDelta) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if uErr := s.taskRepo.UpdateFields(ctx, tx, delta.Completed.ID, map[string]interface{}{
			"status": types.TaskStatusCompleted,
		}); uErr != nil {
			return uErr
		}
		for _, t := range delta.UnlockedTasks {
			if uErr := s.taskRepo.UpdateFields(ctx, tx, t.ID, map[string]interface{}{
				"is_unlocked": true,
			}); uErr != nil {
				return uErr
			}
		}
		for _, st := range delta.UnlockedSubtopics {
			if uErr := s.subRepo.UpdateFields(ctx, tx, st.ID, map[string]interface{}{
				"is_unlocked": true,
			}); uErr != nil {
				return uErr
			}
		}
		for _, c := range delta.UnlockedConcepts {
			if uErr := s.conceptRepo.UpdateFields(ctx, tx, c.ID, map[string]interface{}{
				"is_unlocked": true,
			}); uErr != nil {
				return uErr
			}
		}
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.CodePersistence, "failed to persist task completion", err)
	}
	return nil
}

package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/learningpath"
	"github.com/gitguide/gitguide-backend/internal/locks"
	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/types"
)

type fakeProjects struct {
	project *types.Project
}

func (f *fakeProjects) Create(context.Context, uuid.UUID, CreateProjectInput) (*types.Project, bool, error) {
	panic("not used")
}
func (f *fakeProjects) List(context.Context, uuid.UUID) ([]*types.Project, error) { panic("not used") }
func (f *fakeProjects) Get(context.Context, uuid.UUID, uuid.UUID) (*ProjectDetail, error) {
	panic("not used")
}
func (f *fakeProjects) Delete(context.Context, uuid.UUID, uuid.UUID) error { panic("not used") }

func (f *fakeProjects) GetOwned(_ context.Context, _ *gorm.DB, userID, projectID uuid.UUID) (*types.Project, error) {
	if f.project == nil || f.project.ID != projectID || f.project.UserID != userID {
		return nil, apperr.New(apperr.CodeNotFound, "project not found")
	}
	return f.project, nil
}

type fakeConceptRepo struct {
	concepts []*types.Concept
	updated  []uuid.UUID
}

func (f *fakeConceptRepo) CreateTree(_ context.Context, _ *gorm.DB, concepts []*types.Concept) ([]*types.Concept, error) {
	return concepts, nil
}
func (f *fakeConceptRepo) GetTreeByProjectID(context.Context, *gorm.DB, uuid.UUID) ([]*types.Concept, error) {
	return f.concepts, nil
}
func (f *fakeConceptRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, _ map[string]interface{}) error {
	f.updated = append(f.updated, id)
	return nil
}
func (f *fakeConceptRepo) DeleteByProjectID(context.Context, *gorm.DB, uuid.UUID) error { return nil }

type fakeTaskRepo struct {
	concepts []*types.Concept
	updated  []uuid.UUID
}

func (f *fakeTaskRepo) find(match func(*types.Task) bool) *types.Task {
	for _, c := range f.concepts {
		for _, st := range c.Subtopics {
			for _, t := range st.Tasks {
				if match(t) {
					return t
				}
			}
		}
	}
	return nil
}

func (f *fakeTaskRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.Task, error) {
	return f.find(func(t *types.Task) bool { return t.ID == id }), nil
}
func (f *fakeTaskRepo) GetByExternalID(_ context.Context, _ *gorm.DB, _ uuid.UUID, externalID string) (*types.Task, error) {
	return f.find(func(t *types.Task) bool { return t.ExternalID == externalID }), nil
}
func (f *fakeTaskRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, _ map[string]interface{}) error {
	f.updated = append(f.updated, id)
	return nil
}
func (f *fakeTaskRepo) CountByProjectID(context.Context, *gorm.DB, uuid.UUID) (int64, int64, error) {
	var total, completed int64
	f.find(func(t *types.Task) bool {
		total++
		if t.Status == types.TaskStatusCompleted {
			completed++
		}
		return false
	})
	return total, completed, nil
}

type fakeSubtopicRepo struct {
	updated []uuid.UUID
}

func (f *fakeSubtopicRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, _ map[string]interface{}) error {
	f.updated = append(f.updated, id)
	return nil
}

func testTree(t *testing.T, projectID uuid.UUID) []*types.Concept {
	t.Helper()
	g := &learningpath.GeneratedPath{}
	for i := 0; i < 2; i++ {
		gc := learningpath.GeneratedConcept{Name: "concept"}
		for j := 0; j < 2; j++ {
			gs := learningpath.GeneratedSubtopic{Name: "subtopic"}
			for k := 0; k < 2; k++ {
				gs.Tasks = append(gs.Tasks, learningpath.GeneratedTask{Title: "task"})
			}
			gc.Subtopics = append(gc.Subtopics, gs)
		}
		g.Concepts = append(g.Concepts, gc)
	}
	concepts, err := learningpath.Materialize(g)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	for _, c := range concepts {
		c.ID = uuid.New()
		c.ProjectID = projectID
		for _, st := range c.Subtopics {
			st.ID = uuid.New()
			for _, task := range st.Tasks {
				task.ID = uuid.New()
				task.ProjectID = projectID
			}
		}
	}
	return concepts
}

func newTaskService(t *testing.T, project *types.Project, concepts []*types.Concept) (TaskService, *fakeConceptRepo, *fakeTaskRepo, *fakeSubtopicRepo) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	log := logger.NewNop()

	conceptRepo := &fakeConceptRepo{concepts: concepts}
	taskRepo := &fakeTaskRepo{concepts: concepts}
	subRepo := &fakeSubtopicRepo{}
	svc := NewTaskService(gdb, log, &fakeProjects{project: project}, conceptRepo, taskRepo, subRepo, locks.NewLocalLocker())
	return svc, conceptRepo, taskRepo, subRepo
}

func TestTaskServiceCompleteByExternalID(t *testing.T) {
	project := &types.Project{ID: uuid.New(), UserID: uuid.New()}
	concepts := testTree(t, project.ID)
	svc, _, taskRepo, _ := newTaskService(t, project, concepts)
	ctx := context.Background()

	result, err := svc.Complete(ctx, project.UserID, project.ID, "task-0-0-0")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.CompletedTaskID != "task-0-0-0" {
		t.Fatalf("completed id = %q", result.CompletedTaskID)
	}
	if len(result.UnlockedTasks) != 1 || result.UnlockedTasks[0] != "task-0-0-1" {
		t.Fatalf("unlocked tasks = %v", result.UnlockedTasks)
	}
	// Completed task plus the one unlocked task were persisted.
	if len(taskRepo.updated) != 2 {
		t.Fatalf("persisted task updates = %v", taskRepo.updated)
	}

	// Completing the same task again is a precondition failure.
	if _, err := svc.Complete(ctx, project.UserID, project.ID, "task-0-0-0"); !apperr.Is(err, apperr.CodePrecondition) {
		t.Fatalf("repeat completion: got %v", err)
	}
}

func TestTaskServiceCompleteByRowID(t *testing.T) {
	project := &types.Project{ID: uuid.New(), UserID: uuid.New()}
	concepts := testTree(t, project.ID)
	svc, _, _, _ := newTaskService(t, project, concepts)

	first := concepts[0].Subtopics[0].Tasks[0]
	result, err := svc.Complete(context.Background(), project.UserID, project.ID, first.ID.String())
	if err != nil {
		t.Fatalf("Complete by row id: %v", err)
	}
	if result.CompletedTaskID != first.ExternalID {
		t.Fatalf("completed id = %q, want %q", result.CompletedTaskID, first.ExternalID)
	}
}

func TestTaskServiceCompleteRejectsForeignUser(t *testing.T) {
	project := &types.Project{ID: uuid.New(), UserID: uuid.New()}
	concepts := testTree(t, project.ID)
	svc, _, _, _ := newTaskService(t, project, concepts)

	if _, err := svc.Complete(context.Background(), uuid.New(), project.ID, "task-0-0-0"); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("foreign user: got %v", err)
	}
}

func TestTaskServiceSubtopicBoundaryFlipsContainers(t *testing.T) {
	project := &types.Project{ID: uuid.New(), UserID: uuid.New()}
	concepts := testTree(t, project.ID)
	svc, _, _, subRepo := newTaskService(t, project, concepts)
	ctx := context.Background()

	if _, err := svc.Complete(ctx, project.UserID, project.ID, "task-0-0-0"); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	result, err := svc.Complete(ctx, project.UserID, project.ID, "task-0-0-1")
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if len(result.UnlockedSubtopics) != 1 || result.UnlockedSubtopics[0] != "subtopic-0-1" {
		t.Fatalf("unlocked subtopics = %v", result.UnlockedSubtopics)
	}
	if len(subRepo.updated) != 1 {
		t.Fatalf("persisted subtopic updates = %v", subRepo.updated)
	}
}

func TestTaskServiceProgressCounts(t *testing.T) {
	project := &types.Project{ID: uuid.New(), UserID: uuid.New()}
	concepts := testTree(t, project.ID)
	svc, _, _, _ := newTaskService(t, project, concepts)
	ctx := context.Background()

	for _, id := range []string{"task-0-0-0", "task-0-0-1"} {
		if _, err := svc.Complete(ctx, project.UserID, project.ID, id); err != nil {
			t.Fatalf("Complete(%s): %v", id, err)
		}
	}

	progress, err := svc.GetProgress(ctx, project.UserID, project.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if progress.TotalTasks != 8 || progress.CompletedTasks != 2 {
		t.Fatalf("task counts = (%d, %d)", progress.TotalTasks, progress.CompletedTasks)
	}
	if progress.TotalSubtopics != 4 || progress.CompletedSubtopics != 1 {
		t.Fatalf("subtopic counts = (%d, %d)", progress.TotalSubtopics, progress.CompletedSubtopics)
	}
	if progress.TotalConcepts != 2 || progress.CompletedConcepts != 0 {
		t.Fatalf("concept counts = (%d, %d)", progress.TotalConcepts, progress.CompletedConcepts)
	}
	if progress.Percent != 25 {
		t.Fatalf("percent = %v", progress.Percent)
	}
}

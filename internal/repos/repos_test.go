package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/types"
)

// newTestDB opens an in-memory sqlite database with hand-written schema.
// Postgres-only column defaults (uuid generation) don't translate, so tests
// assign ids explicitly.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	ddl := []string{
		`CREATE TABLE project (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			repo_url TEXT NOT NULL,
			skill_level TEXT NOT NULL DEFAULT '',
			domain TEXT NOT NULL DEFAULT '',
			project_overview TEXT,
			repo_name TEXT,
			tech_stack TEXT,
			is_processed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE UNIQUE INDEX unique_user_repo ON project(user_id, repo_url)`,
		`CREATE TABLE concept (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			"order" INTEGER NOT NULL DEFAULT 0,
			is_unlocked INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE TABLE subtopic (
			id TEXT PRIMARY KEY,
			concept_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			"order" INTEGER NOT NULL DEFAULT 0,
			is_unlocked INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE TABLE task (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			subtopic_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			difficulty TEXT NOT NULL DEFAULT 'medium',
			files_to_study TEXT,
			"order" INTEGER NOT NULL DEFAULT 0,
			is_unlocked INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'not_started',
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE TABLE chat_message (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE TABLE generation_run (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT NOT NULL,
			regenerate INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			last_error_at DATETIME,
			locked_at DATETIME,
			heartbeat_at DATETIME,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
	}
	for _, stmt := range ddl {
		if err := gdb.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return gdb
}

func nopLogger() *logger.Logger {
	return logger.NewNop()
}

func TestProjectRepoRoundTrip(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewProjectRepo(gdb, nopLogger())
	ctx := context.Background()

	userID := uuid.New()
	project := &types.Project{
		ID:         uuid.New(),
		UserID:     userID,
		RepoURL:    "https://github.com/acme/widgets",
		SkillLevel: types.SkillLevelBeginner,
		Domain:     "web",
	}
	if _, err := repo.Create(ctx, nil, project); err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := repo.GetByUserAndRepoURL(ctx, nil, userID, project.RepoURL)
	if err != nil {
		t.Fatalf("GetByUserAndRepoURL: %v", err)
	}
	if found == nil || found.ID != project.ID {
		t.Fatalf("lookup by user+url = %+v", found)
	}

	if found, err = repo.GetByUserAndRepoURL(ctx, nil, uuid.New(), project.RepoURL); err != nil || found != nil {
		t.Fatalf("foreign user lookup = (%+v, %v), want (nil, nil)", found, err)
	}

	if err := repo.UpdateFields(ctx, nil, project.ID, map[string]interface{}{
		"is_processed": true,
		"repo_name":    "widgets",
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	updated, err := repo.GetByID(ctx, nil, project.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !updated.IsProcessed || updated.RepoName != "widgets" {
		t.Fatalf("updates not applied: %+v", updated)
	}

	if err := repo.Delete(ctx, nil, project.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	gone, err := repo.GetByID(ctx, nil, project.ID)
	if err != nil {
		t.Fatalf("GetByID after delete: %v", err)
	}
	if gone != nil {
		t.Fatalf("deleted project still visible: %+v", gone)
	}

	// The same user can register the same repository again after deleting it;
	// the row must be gone from under the unique (user_id, repo_url) index.
	again := &types.Project{
		ID:         uuid.New(),
		UserID:     userID,
		RepoURL:    project.RepoURL,
		SkillLevel: types.SkillLevelBeginner,
		Domain:     "web",
	}
	if _, err := repo.Create(ctx, nil, again); err != nil {
		t.Fatalf("re-register after delete: %v", err)
	}
	found, err = repo.GetByUserAndRepoURL(ctx, nil, userID, project.RepoURL)
	if err != nil {
		t.Fatalf("GetByUserAndRepoURL after re-register: %v", err)
	}
	if found == nil || found.ID != again.ID {
		t.Fatalf("re-registered lookup = %+v", found)
	}
}

func TestTaskRepoCountsAndLookup(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewTaskRepo(gdb, nopLogger())
	ctx := context.Background()

	projectID := uuid.New()
	subtopicID := uuid.New()
	statuses := []string{
		types.TaskStatusCompleted,
		types.TaskStatusCompleted,
		types.TaskStatusNotStarted,
	}
	var firstID uuid.UUID
	for i, status := range statuses {
		task := &types.Task{
			ID:         uuid.New(),
			ProjectID:  projectID,
			SubtopicID: subtopicID,
			ExternalID: "task-0-0-" + string(rune('0'+i)),
			Title:      "t",
			Status:     status,
			Order:      i,
		}
		if i == 0 {
			firstID = task.ID
		}
		if err := gdb.Create(task).Error; err != nil {
			t.Fatalf("seed task: %v", err)
		}
	}

	total, completed, err := repo.CountByProjectID(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("CountByProjectID: %v", err)
	}
	if total != 3 || completed != 2 {
		t.Fatalf("counts = (%d, %d), want (3, 2)", total, completed)
	}

	task, err := repo.GetByExternalID(ctx, nil, projectID, "task-0-0-0")
	if err != nil {
		t.Fatalf("GetByExternalID: %v", err)
	}
	if task == nil || task.ID != firstID {
		t.Fatalf("external id lookup = %+v", task)
	}

	if task, err = repo.GetByExternalID(ctx, nil, uuid.New(), "task-0-0-0"); err != nil || task != nil {
		t.Fatalf("wrong project lookup = (%+v, %v), want (nil, nil)", task, err)
	}

	if err := repo.UpdateFields(ctx, nil, firstID, map[string]interface{}{
		"is_unlocked": true,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	task, err = repo.GetByID(ctx, nil, firstID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !task.IsUnlocked {
		t.Fatal("unlock flag not persisted")
	}
}

func seedTree(projectID uuid.UUID, conceptExternal string) []*types.Concept {
	concept := &types.Concept{
		ID:         uuid.New(),
		ProjectID:  projectID,
		ExternalID: conceptExternal,
		Name:       "concept",
		IsUnlocked: true,
	}
	subtopic := &types.Subtopic{
		ID:         uuid.New(),
		ExternalID: conceptExternal + "-sub",
		Name:       "subtopic",
		IsUnlocked: true,
	}
	for k := 0; k < 2; k++ {
		subtopic.Tasks = append(subtopic.Tasks, &types.Task{
			ID:         uuid.New(),
			ProjectID:  projectID,
			ExternalID: conceptExternal + "-task-" + string(rune('0'+k)),
			Title:      "task",
			Order:      k,
			IsUnlocked: k == 0,
			Status:     types.TaskStatusNotStarted,
		})
	}
	concept.Subtopics = append(concept.Subtopics, subtopic)
	return []*types.Concept{concept}
}

func TestConceptRepoTreeReplacement(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewConceptRepo(gdb, nopLogger())
	ctx := context.Background()

	projectID := uuid.New()
	if _, err := repo.CreateTree(ctx, nil, seedTree(projectID, "old")); err != nil {
		t.Fatalf("CreateTree: %v", err)
	}

	tree, err := repo.GetTreeByProjectID(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("GetTreeByProjectID: %v", err)
	}
	if len(tree) != 1 || len(tree[0].Subtopics) != 1 || len(tree[0].Subtopics[0].Tasks) != 2 {
		t.Fatalf("unexpected tree shape: %+v", tree)
	}
	if tree[0].Subtopics[0].Tasks[0].ExternalID != "old-task-0" {
		t.Fatalf("task ordering lost: %+v", tree[0].Subtopics[0].Tasks)
	}

	// Regeneration replaces the whole tree inside one transaction.
	err = gdb.Transaction(func(tx *gorm.DB) error {
		if dErr := repo.DeleteByProjectID(ctx, tx, projectID); dErr != nil {
			return dErr
		}
		_, cErr := repo.CreateTree(ctx, tx, seedTree(projectID, "new"))
		return cErr
	})
	if err != nil {
		t.Fatalf("replace tree: %v", err)
	}

	tree, err = repo.GetTreeByProjectID(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("GetTreeByProjectID after replace: %v", err)
	}
	if len(tree) != 1 || tree[0].ExternalID != "new" {
		t.Fatalf("old tree survived replacement: %+v", tree)
	}

	var taskCount int64
	if err := gdb.Model(&types.Task{}).Where("project_id = ?", projectID).Count(&taskCount).Error; err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if taskCount != 2 {
		t.Fatalf("task rows after replacement = %d, want 2", taskCount)
	}
}

func TestChatMessageRepoOrderingAndLimit(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewChatMessageRepo(gdb, nopLogger())
	ctx := context.Background()

	projectID := uuid.New()
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i, content := range []string{"first", "second", "third"} {
		msg := &types.ChatMessage{
			ID:        uuid.New(),
			ProjectID: projectID,
			UserID:    userID,
			Role:      types.ChatRoleUser,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := repo.Create(ctx, nil, []*types.ChatMessage{msg}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := repo.ListByProjectID(ctx, nil, projectID, 0)
	if err != nil {
		t.Fatalf("ListByProjectID: %v", err)
	}
	if len(all) != 3 || all[0].Content != "first" || all[2].Content != "third" {
		t.Fatalf("unexpected order: %+v", all)
	}

	limited, err := repo.ListByProjectID(ctx, nil, projectID, 2)
	if err != nil {
		t.Fatalf("ListByProjectID limited: %v", err)
	}
	if len(limited) != 2 || limited[0].Content != "first" {
		t.Fatalf("unexpected limited result: %+v", limited)
	}
}

func TestGenerationRunRepoLatestAndActive(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewGenerationRunRepo(gdb, nopLogger())
	ctx := context.Background()

	projectID := uuid.New()
	userID := uuid.New()

	older := &types.GenerationRun{
		UserID:    userID,
		ProjectID: projectID,
		Status:    types.RunStatusFailed,
		Stage:     types.RunStageGenerate,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	if _, err := repo.Create(ctx, nil, older); err != nil {
		t.Fatalf("Create older: %v", err)
	}

	active, err := repo.HasActiveRun(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("HasActiveRun: %v", err)
	}
	if active {
		t.Fatal("failed run counted as active")
	}

	newer := &types.GenerationRun{
		UserID:    userID,
		ProjectID: projectID,
		Status:    types.RunStatusQueued,
		Stage:     types.RunStageFetch,
		CreatedAt: time.Now(),
	}
	if _, err := repo.Create(ctx, nil, newer); err != nil {
		t.Fatalf("Create newer: %v", err)
	}

	latest, err := repo.GetLatestByProjectID(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("GetLatestByProjectID: %v", err)
	}
	if latest == nil || latest.ID != newer.ID {
		t.Fatalf("latest = %+v, want run %s", latest, newer.ID)
	}

	active, err = repo.HasActiveRun(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("HasActiveRun: %v", err)
	}
	if !active {
		t.Fatal("queued run not counted as active")
	}

	if err := repo.UpdateFields(ctx, nil, newer.ID, map[string]interface{}{
		"status": types.RunStatusSucceeded,
		"stage":  types.RunStageDone,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	latest, err = repo.GetByID(ctx, nil, newer.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if latest.Status != types.RunStatusSucceeded || latest.Stage != types.RunStageDone {
		t.Fatalf("updates not applied: %+v", latest)
	}
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/locks"
	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/types"
)

func TestAPIStatusMapping(t *testing.T) {
	cases := []struct {
		runStatus string
		want      string
	}{
		{types.RunStatusQueued, ProcessingPending},
		{types.RunStatusRunning, ProcessingProcessing},
		{types.RunStatusSucceeded, ProcessingDone},
		{types.RunStatusFailed, ProcessingFailed},
		{"", ProcessingNotStarted},
		{"garbage", ProcessingNotStarted},
	}
	for _, tc := range cases {
		if got := apiStatus(tc.runStatus); got != tc.want {
			t.Errorf("apiStatus(%q) = %q, want %q", tc.runStatus, got, tc.want)
		}
	}
}

type fakeRunRepo struct {
	latest  *types.GenerationRun
	created []*types.GenerationRun
}

func (f *fakeRunRepo) Create(_ context.Context, _ *gorm.DB, run *types.GenerationRun) (*types.GenerationRun, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	f.created = append(f.created, run)
	f.latest = run
	return run, nil
}
func (f *fakeRunRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.GenerationRun, error) {
	if f.latest != nil && f.latest.ID == id {
		return f.latest, nil
	}
	return nil, nil
}
func (f *fakeRunRepo) GetLatestByProjectID(context.Context, *gorm.DB, uuid.UUID) (*types.GenerationRun, error) {
	return f.latest, nil
}
func (f *fakeRunRepo) HasActiveRun(context.Context, *gorm.DB, uuid.UUID) (bool, error) {
	return f.latest != nil &&
		(f.latest.Status == types.RunStatusQueued || f.latest.Status == types.RunStatusRunning), nil
}
func (f *fakeRunRepo) ClaimNextRunnable(context.Context, *gorm.DB, int, time.Duration, time.Duration) (*types.GenerationRun, error) {
	return nil, nil
}
func (f *fakeRunRepo) UpdateFields(context.Context, *gorm.DB, uuid.UUID, map[string]interface{}) error {
	return nil
}
func (f *fakeRunRepo) Heartbeat(context.Context, *gorm.DB, uuid.UUID) error { return nil }

func newProcessingService(t *testing.T, project *types.Project, runRepo *fakeRunRepo, locker locks.ProjectLocker) ProcessingService {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return NewProcessingService(
		gdb, logger.NewNop(), runRepo, nil, nil,
		&fakeProjects{project: project}, nil, nil, locker,
	)
}

func TestProcessingEnqueueCreatesAndReusesRun(t *testing.T) {
	project := &types.Project{ID: uuid.New(), UserID: uuid.New()}
	runRepo := &fakeRunRepo{}
	svc := newProcessingService(t, project, runRepo, locks.NewLocalLocker())
	ctx := context.Background()

	run, err := svc.Enqueue(ctx, project.UserID, project.ID, false)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if run.Status != types.RunStatusQueued || run.Stage != types.RunStageFetch || run.Regenerate {
		t.Fatalf("unexpected run: %+v", run)
	}

	// A second plain trigger returns the in-flight run instead of stacking one.
	again, err := svc.Enqueue(ctx, project.UserID, project.ID, false)
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if again.ID != run.ID || len(runRepo.created) != 1 {
		t.Fatalf("in-flight run not reused: %+v (created %d)", again, len(runRepo.created))
	}

	// A forced regeneration conflicts while the run is still in flight.
	if _, err := svc.Enqueue(ctx, project.UserID, project.ID, true); !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("regenerate during run: got %v", err)
	}
}

func TestProcessingEnqueueNoopWhenProcessed(t *testing.T) {
	project := &types.Project{ID: uuid.New(), UserID: uuid.New(), IsProcessed: true}
	succeeded := &types.GenerationRun{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Status:    types.RunStatusSucceeded,
		Stage:     types.RunStageDone,
	}
	runRepo := &fakeRunRepo{latest: succeeded}
	svc := newProcessingService(t, project, runRepo, locks.NewLocalLocker())
	ctx := context.Background()

	run, err := svc.Enqueue(ctx, project.UserID, project.ID, false)
	if err != nil {
		t.Fatalf("Enqueue on processed project: %v", err)
	}
	if run.ID != succeeded.ID || len(runRepo.created) != 0 {
		t.Fatalf("plain trigger re-queued a processed project: %+v", run)
	}

	// Regeneration has to be explicit and queues a fresh flagged run.
	forced, err := svc.Enqueue(ctx, project.UserID, project.ID, true)
	if err != nil {
		t.Fatalf("forced Enqueue: %v", err)
	}
	if forced.ID == succeeded.ID || !forced.Regenerate || forced.Status != types.RunStatusQueued {
		t.Fatalf("unexpected regeneration run: %+v", forced)
	}
}

func TestProcessingEnqueueSerializedPerProject(t *testing.T) {
	project := &types.Project{ID: uuid.New(), UserID: uuid.New()}
	locker := locks.NewLocalLocker()
	svc := newProcessingService(t, project, &fakeRunRepo{}, locker)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "project-runs:"+project.ID.String(), time.Minute)
	if err != nil {
		t.Fatalf("hold lock: %v", err)
	}
	defer release()

	if _, err := svc.Enqueue(ctx, project.UserID, project.ID, false); !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("enqueue while lock held: got %v", err)
	}
}

package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	ghclient "github.com/gitguide/gitguide-backend/internal/clients/github"
	"github.com/gitguide/gitguide-backend/internal/learningpath"
	"github.com/gitguide/gitguide-backend/internal/locks"
	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/repos"
	"github.com/gitguide/gitguide-backend/internal/types"
	"github.com/gitguide/gitguide-backend/internal/utils"
)

// Processing statuses exposed by the status endpoint. Persisted run states
// map onto these; a project with no runs at all is not_started.
const (
	ProcessingNotStarted = "not_started"
	ProcessingPending    = "pending"
	ProcessingProcessing = "processing"
	ProcessingDone       = "done"
	ProcessingFailed     = "failed"
)

// ProcessingStatus is the polling payload for a project's pipeline.
type ProcessingStatus struct {
	ProjectID uuid.UUID  `json:"project_id"`
	Status    string     `json:"status"`
	Stage     string     `json:"stage,omitempty"`
	Error     string     `json:"error,omitempty"`
	Attempts  int        `json:"attempts"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type ProcessingService interface {
	// Enqueue queues a generation run for the project. With force=false an
	// already queued or running run is returned as-is; force=true requests a
	// regeneration that replaces the existing path, and conflicts while a run
	// is in flight.
	Enqueue(ctx context.Context, userID, projectID uuid.UUID, force bool) (*types.GenerationRun, error)

	Status(ctx context.Context, userID, projectID uuid.UUID) (*ProcessingStatus, error)

	// StartWorker runs the claim loop until ctx is canceled.
	StartWorker(ctx context.Context)
}

type processingService struct {
	db          *gorm.DB
	log         *logger.Logger
	runRepo     repos.GenerationRunRepo
	projectRepo repos.ProjectRepo
	conceptRepo repos.ConceptRepo
	projects    ProjectService
	gh          *ghclient.Client
	llm         LLMClient
	locker      locks.ProjectLocker

	pollInterval    time.Duration
	maxAttempts     int
	retryDelay      time.Duration
	staleRunning    time.Duration
	fetchTimeout    time.Duration
	generateTimeout time.Duration
}

func NewProcessingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	runRepo repos.GenerationRunRepo,
	projectRepo repos.ProjectRepo,
	conceptRepo repos.ConceptRepo,
	projects ProjectService,
	gh *ghclient.Client,
	llm LLMClient,
	locker locks.ProjectLocker,
) ProcessingService {
	log := baseLog.With("service", "ProcessingService")
	return &processingService{
		db:          db,
		log:         log,
		runRepo:     runRepo,
		projectRepo: projectRepo,
		conceptRepo: conceptRepo,
		projects:    projects,
		gh:          gh,
		llm:         llm,
		locker:      locker,

		pollInterval:    time.Duration(utils.GetEnvAsInt("WORKER_POLL_SECONDS", 3, log)) * time.Second,
		maxAttempts:     utils.GetEnvAsInt("WORKER_MAX_ATTEMPTS", 3, log),
		retryDelay:      time.Duration(utils.GetEnvAsInt("WORKER_RETRY_DELAY_SECONDS", 30, log)) * time.Second,
		staleRunning:    time.Duration(utils.GetEnvAsInt("WORKER_STALE_RUNNING_SECONDS", 120, log)) * time.Second,
		fetchTimeout:    time.Duration(utils.GetEnvAsInt("PIPELINE_FETCH_TIMEOUT_SECONDS", 120, log)) * time.Second,
		generateTimeout: time.Duration(utils.GetEnvAsInt("PIPELINE_GENERATE_TIMEOUT_SECONDS", 300, log)) * time.Second,
	}
}

func (s *processingService) Enqueue(ctx context.Context, userID, projectID uuid.UUID, force bool) (*types.GenerationRun, error) {
	project, err := s.projects.GetOwned(ctx, nil, userID, projectID)
	if err != nil {
		return nil, err
	}

	// Two concurrent triggers would both see no active run and enqueue twice;
	// the lock serializes the check-then-insert across instances.
	release, err := s.locker.Acquire(ctx, "project-runs:"+project.ID.String(), 10*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	var run *types.GenerationRun
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest, lErr := s.runRepo.GetLatestByProjectID(ctx, tx, project.ID)
		if lErr != nil {
			return apperr.Wrap(apperr.CodePersistence, "failed to load latest run", lErr)
		}
		if latest != nil && (latest.Status == types.RunStatusQueued || latest.Status == types.RunStatusRunning) {
			if force {
				return apperr.New(apperr.CodeConflict, "a generation run is already in progress")
			}
			run = latest
			return nil
		}
		// A plain trigger on an already-processed project is a no-op;
		// regeneration has to be explicit.
		if !force && project.IsProcessed && latest != nil && latest.Status == types.RunStatusSucceeded {
			run = latest
			return nil
		}

		created, cErr := s.runRepo.Create(ctx, tx, &types.GenerationRun{
			UserID:     userID,
			ProjectID:  project.ID,
			Status:     types.RunStatusQueued,
			Stage:      types.RunStageFetch,
			Regenerate: force,
		})
		if cErr != nil {
			return apperr.Wrap(apperr.CodePersistence, "failed to enqueue run", cErr)
		}
		run = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("generation run enqueued", "run_id", run.ID, "project_id", project.ID, "regenerate", force)
	return run, nil
}

func (s *processingService) Status(ctx context.Context, userID, projectID uuid.UUID) (*ProcessingStatus, error) {
	project, err := s.projects.GetOwned(ctx, nil, userID, projectID)
	if err != nil {
		return nil, err
	}
	run, err := s.runRepo.GetLatestByProjectID(ctx, nil, project.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to load latest run", err)
	}
	if run == nil {
		return &ProcessingStatus{ProjectID: project.ID, Status: ProcessingNotStarted}, nil
	}
	status := &ProcessingStatus{
		ProjectID: project.ID,
		Status:    apiStatus(run.Status),
		Stage:     run.Stage,
		Attempts:  run.Attempts,
		UpdatedAt: &run.UpdatedAt,
	}
	if run.Status == types.RunStatusFailed {
		status.Error = run.Error
	}
	return status, nil
}

func apiStatus(runStatus string) string {
	switch runStatus {
	case types.RunStatusQueued:
		return ProcessingPending
	case types.RunStatusRunning:
		return ProcessingProcessing
	case types.RunStatusSucceeded:
		return ProcessingDone
	case types.RunStatusFailed:
		return ProcessingFailed
	default:
		return ProcessingNotStarted
	}
}

func (s *processingService) StartWorker(ctx context.Context) {
	s.log.Info("generation worker started",
		"poll_interval", s.pollInterval.String(),
		"max_attempts", s.maxAttempts,
	)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("generation worker stopping")
			return
		case <-ticker.C:
			run, err := s.runRepo.ClaimNextRunnable(ctx, nil, s.maxAttempts, s.retryDelay, s.staleRunning)
			if err != nil {
				s.log.Error("failed to claim run", "error", err)
				continue
			}
			if run == nil {
				continue
			}
			s.processRun(ctx, run)
		}
	}
}

func (s *processingService) processRun(ctx context.Context, run *types.GenerationRun) {
	log := s.log.With("run_id", run.ID, "project_id", run.ProjectID, "attempt", run.Attempts+1)
	log.Info("processing generation run")

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go s.heartbeatLoop(hbCtx, run.ID)

	fail := func(stage string, err error) {
		log.Error("generation run failed", "stage", stage, "error", err)
		now := time.Now()
		if uErr := s.runRepo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
			"status":        types.RunStatusFailed,
			"stage":         stage,
			"error":         err.Error(),
			"last_error_at": now,
		}); uErr != nil {
			log.Error("failed to record run failure", "error", uErr)
		}
	}
	progress := func(stage string) bool {
		if err := s.runRepo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{"stage": stage}); err != nil {
			log.Error("failed to record run stage", "stage", stage, "error", err)
			return false
		}
		return true
	}

	project, err := s.projectRepo.GetByID(ctx, nil, run.ProjectID)
	if err != nil || project == nil {
		fail(types.RunStageFetch, apperr.Wrap(apperr.CodePersistence, "project vanished before processing", err))
		return
	}

	// Stage 1: fetch repository.
	if !progress(types.RunStageFetch) {
		return
	}
	fetchCtx, cancelFetch := context.WithTimeout(ctx, s.fetchTimeout)
	snapshot, err := s.gh.Fetch(fetchCtx, project.RepoURL)
	cancelFetch()
	if err != nil {
		fail(types.RunStageFetch, err)
		return
	}
	log.Info("repository fetched", "files", len(snapshot.Files), "language", snapshot.Language)

	// Stage 2: generate the learning path.
	if !progress(types.RunStageGenerate) {
		return
	}
	system, user := BuildLearningPathPrompt(snapshot, project.SkillLevel, project.Domain)
	genCtx, cancelGen := context.WithTimeout(ctx, s.generateTimeout)
	completion, err := s.llm.Chat(genCtx, system, user)
	cancelGen()
	if err != nil {
		fail(types.RunStageGenerate, apperr.Wrap(apperr.CodeGeneration, "learning path generation failed", err))
		return
	}

	generated, err := learningpath.Parse([]byte(ExtractJSONBlock(completion)))
	if err != nil {
		fail(types.RunStageGenerate, err)
		return
	}
	concepts, err := learningpath.Materialize(generated)
	if err != nil {
		fail(types.RunStageGenerate, err)
		return
	}

	// Stage 3: persist the tree and mark the project processed.
	if !progress(types.RunStageSave) {
		return
	}
	if err := s.save(ctx, project, snapshot, generated, concepts); err != nil {
		fail(types.RunStageSave, err)
		return
	}

	if err := s.runRepo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status": types.RunStatusSucceeded,
		"stage":  types.RunStageDone,
		"error":  "",
	}); err != nil {
		log.Error("failed to record run success", "error", err)
		return
	}
	log.Info("generation run succeeded", "concepts", len(concepts))
}

// save replaces any existing learning path with the freshly materialized one
// and updates project metadata, all in one transaction.
func (s *processingService) save(
	ctx context.Context,
	project *types.Project,
	snapshot *ghclient.RepoSnapshot,
	generated *learningpath.GeneratedPath,
	concepts []*types.Concept,
) error {
	for _, c := range concepts {
		c.ProjectID = project.ID
		for _, st := range c.Subtopics {
			for _, t := range st.Tasks {
				t.ProjectID = project.ID
			}
		}
	}

	techStack, err := json.Marshal(snapshot.TechStack)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "failed to encode tech stack", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := s.conceptRepo.DeleteByProjectID(ctx, tx, project.ID); dErr != nil {
			return apperr.Wrap(apperr.CodePersistence, "failed to clear previous path", dErr)
		}
		if _, cErr := s.conceptRepo.CreateTree(ctx, tx, concepts); cErr != nil {
			return apperr.Wrap(apperr.CodePersistence, "failed to persist learning path", cErr)
		}
		return s.projectRepo.UpdateFields(ctx, tx, project.ID, map[string]interface{}{
			"repo_name":        snapshot.Repo,
			"project_overview": generated.ProjectOverview,
			"tech_stack":       datatypes.JSON(techStack),
			"is_processed":     true,
		})
	})
}

func (s *processingService) heartbeatLoop(ctx context.Context, runID uuid.UUID) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runRepo.Heartbeat(ctx, nil, runID); err != nil {
				s.log.Warn("heartbeat failed", "run_id", runID, "error", err)
			}
		}
	}
}

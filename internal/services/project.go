package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	ghclient "github.com/gitguide/gitguide-backend/internal/clients/github"
	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/repos"
	"github.com/gitguide/gitguide-backend/internal/types"
)

// CreateProjectInput is the registration payload for a new repository.
type CreateProjectInput struct {
	RepoURL    string `json:"repo_url"`
	SkillLevel string `json:"skill_level"`
	Domain     string `json:"domain"`
}

// ProjectDetail is a project plus its full learning path, ordered at every
// level.
type ProjectDetail struct {
	Project  *types.Project   `json:"project"`
	Concepts []*types.Concept `json:"concepts"`
}

type ProjectService interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateProjectInput) (*types.Project, bool, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.Project, error)
	Get(ctx context.Context, userID, projectID uuid.UUID) (*ProjectDetail, error)
	Delete(ctx context.Context, userID, projectID uuid.UUID) error

	// GetOwned loads a project and enforces that userID owns it. Missing and
	// foreign projects are indistinguishable to the caller.
	GetOwned(ctx context.Context, tx *gorm.DB, userID, projectID uuid.UUID) (*types.Project, error)
}

type projectService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
	conceptRepo repos.ConceptRepo
}

func NewProjectService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	conceptRepo repos.ConceptRepo,
) ProjectService {
	return &projectService{
		db:          db,
		log:         baseLog.With("service", "ProjectService"),
		projectRepo: projectRepo,
		conceptRepo: conceptRepo,
	}
}

var validSkillLevels = map[string]bool{
	types.SkillLevelBeginner:     true,
	types.SkillLevelIntermediate: true,
	types.SkillLevelPro:          true,
}

// Create registers a repository for the user. Registering the same URL twice
// returns the existing project instead of erroring; the bool reports whether
// a new row was created.
func (s *projectService) Create(ctx context.Context, userID uuid.UUID, input CreateProjectInput) (*types.Project, bool, error) {
	repoURL := strings.TrimSpace(input.RepoURL)
	if _, _, err := ghclient.ParseRepoURL(repoURL); err != nil {
		return nil, false, err
	}
	if !validSkillLevels[input.SkillLevel] {
		return nil, false, apperr.Newf(apperr.CodeValidation, "invalid skill level %q", input.SkillLevel)
	}
	if strings.TrimSpace(input.Domain) == "" {
		return nil, false, apperr.New(apperr.CodeValidation, "domain is required")
	}

	existing, err := s.projectRepo.GetByUserAndRepoURL(ctx, nil, userID, repoURL)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.CodePersistence, "failed to check for existing project", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	project := &types.Project{
		UserID:     userID,
		RepoURL:    repoURL,
		SkillLevel: input.SkillLevel,
		Domain:     strings.TrimSpace(input.Domain),
	}
	created, err := s.projectRepo.Create(ctx, nil, project)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.CodePersistence, "failed to create project", err)
	}

	s.log.Info("project registered", "project_id", created.ID, "user_id", userID, "repo_url", repoURL)
	return created, true, nil
}

func (s *projectService) List(ctx context.Context, userID uuid.UUID) ([]*types.Project, error) {
	projects, err := s.projectRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to list projects", err)
	}
	return projects, nil
}

func (s *projectService) Get(ctx context.Context, userID, projectID uuid.UUID) (*ProjectDetail, error) {
	project, err := s.GetOwned(ctx, nil, userID, projectID)
	if err != nil {
		return nil, err
	}
	concepts, err := s.conceptRepo.GetTreeByProjectID(ctx, nil, projectID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to load learning path", err)
	}
	return &ProjectDetail{Project: project, Concepts: concepts}, nil
}

func (s *projectService) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	project, err := s.GetOwned(ctx, nil, userID, projectID)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := s.conceptRepo.DeleteByProjectID(ctx, tx, project.ID); dErr != nil {
			return apperr.Wrap(apperr.CodePersistence, "failed to delete learning path", dErr)
		}
		if dErr := s.projectRepo.Delete(ctx, tx, project.ID); dErr != nil {
			return apperr.Wrap(apperr.CodePersistence, "failed to delete project", dErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("project deleted", "project_id", projectID, "user_id", userID)
	return nil
}

func (s *projectService) GetOwned(ctx context.Context, tx *gorm.DB, userID, projectID uuid.UUID) (*types.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, tx, projectID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to load project", err)
	}
	// Ownership failures look identical to missing projects so ids cannot be
	// probed.
	if project == nil || project.UserID != userID {
		return nil, apperr.New(apperr.CodeNotFound, "project not found")
	}
	return project, nil
}

package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/types"
)

type ConceptRepo interface {
	// CreateTree persists concepts with their nested subtopics and tasks in
	// one batch, relying on gorm association creation.
	CreateTree(ctx context.Context, tx *gorm.DB, concepts []*types.Concept) ([]*types.Concept, error)

	// GetTreeByProjectID loads the full path for a project, every level
	// ordered by its order column.
	GetTreeByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Concept, error)

	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	DeleteByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error
}

type conceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return &conceptRepo{db: db, log: baseLog.With("repo", "ConceptRepo")}
}

func (r *conceptRepo) CreateTree(ctx context.Context, tx *gorm.DB, concepts []*types.Concept) ([]*types.Concept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(concepts) == 0 {
		return []*types.Concept{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&concepts).Error; err != nil {
		return nil, err
	}
	return concepts, nil
}

func (r *conceptRepo) GetTreeByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Concept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var concepts []*types.Concept
	if projectID == uuid.Nil {
		return concepts, nil
	}
	err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order(`"order" ASC`).
		Preload("Subtopics", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" ASC`)
		}).
		Preload("Subtopics.Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" ASC`)
		}).
		Find(&concepts).Error
	if err != nil {
		return nil, err
	}
	return concepts, nil
}

func (r *conceptRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Concept{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteByProjectID hard-deletes the project's whole tree, children first so
// foreign keys never dangle mid-transaction.
func (r *conceptRepo) DeleteByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if projectID == uuid.Nil {
		return nil
	}
	db := transaction.WithContext(ctx)
	if err := db.Unscoped().Where("project_id = ?", projectID).Delete(&types.Task{}).Error; err != nil {
		return err
	}
	if err := db.Unscoped().
		Where("concept_id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&types.Concept{}).Select("id").Where("project_id = ?", projectID)).
		Delete(&types.Subtopic{}).Error; err != nil {
		return err
	}
	return db.Unscoped().Where("project_id = ?", projectID).Delete(&types.Concept{}).Error
}

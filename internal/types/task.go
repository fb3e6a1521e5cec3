package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TaskStatusNotStarted = "not_started"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

const (
	TaskDifficultyEasy   = "easy"
	TaskDifficultyMedium = "medium"
	TaskDifficultyHard   = "hard"
)

type Task struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Project      *Project       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	SubtopicID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"subtopic_id"`
	Subtopic     *Subtopic      `gorm:"constraint:OnDelete:CASCADE;foreignKey:SubtopicID;references:ID" json:"subtopic,omitempty"`
	ExternalID   string         `gorm:"column:external_id;not null;index" json:"external_id"`
	Title        string         `gorm:"column:title;not null" json:"title"`
	Description  string         `gorm:"column:description;type:text" json:"description"`
	Difficulty   string         `gorm:"column:difficulty;not null;default:medium" json:"difficulty"`
	FilesToStudy datatypes.JSON `gorm:"column:files_to_study;type:jsonb" json:"files_to_study"`
	Order        int            `gorm:"column:order;not null" json:"order"`
	IsUnlocked   bool           `gorm:"column:is_unlocked;not null;default:false" json:"is_unlocked"`
	Status       string         `gorm:"column:status;not null;default:not_started" json:"status"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Task) TableName() string { return "task" }

package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Concept struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Project     *Project       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	ExternalID  string         `gorm:"column:external_id;not null;index" json:"external_id"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	Order       int            `gorm:"column:order;not null" json:"order"`
	IsUnlocked  bool           `gorm:"column:is_unlocked;not null;default:false" json:"is_unlocked"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Subtopics []*Subtopic `gorm:"foreignKey:ConceptID" json:"subtopics,omitempty"`
}

func (Concept) TableName() string { return "concept" }

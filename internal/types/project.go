package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Skill levels accepted on project registration.
const (
	SkillLevelBeginner     = "Beginner"
	SkillLevelIntermediate = "Intermediate"
	SkillLevelPro          = "Pro"
)

type Project struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:unique_user_repo" json:"user_id"`
	User            *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	RepoURL         string         `gorm:"column:repo_url;not null;uniqueIndex:unique_user_repo" json:"repo_url"`
	SkillLevel      string         `gorm:"column:skill_level;not null" json:"skill_level"`
	Domain          string         `gorm:"column:domain;not null" json:"domain"`
	ProjectOverview string         `gorm:"column:project_overview;type:text" json:"project_overview"`
	RepoName        string         `gorm:"column:repo_name" json:"repo_name"`
	TechStack       datatypes.JSON `gorm:"column:tech_stack;type:jsonb" json:"tech_stack"`
	IsProcessed     bool           `gorm:"column:is_processed;not null;default:false" json:"is_processed"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Concepts []*Concept `gorm:"foreignKey:ProjectID" json:"concepts,omitempty"`
}

func (Project) TableName() string { return "project" }

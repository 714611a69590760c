package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Unit subdivides a course. Questions and QuestionDrafts hold the ids of
// the unit's published and draft questions; an id lives in exactly one of
// the two arrays at any time.
type Unit struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	// Position defines the display and iteration sequence within the
	// course. Uniqueness per course is by convention, not enforced.
	Position int `gorm:"column:position;not null;default:0" json:"order"`

	Questions      datatypes.JSONSlice[uuid.UUID] `gorm:"column:questions;type:jsonb" json:"questions"`
	QuestionDrafts datatypes.JSONSlice[uuid.UUID] `gorm:"column:question_drafts;type:jsonb" json:"question_drafts"`

	Tags datatypes.JSONSlice[string] `gorm:"column:tags;type:jsonb" json:"tags"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Unit) TableName() string { return "unit" }

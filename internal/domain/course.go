package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Course struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID uuid.UUID `gorm:"type:uuid;not null;index" json:"creator_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	PicURL      string `gorm:"column:pic_url" json:"pic_url"`

	NumQuestions   int64 `gorm:"column:num_questions;not null;default:0" json:"num_questions"`
	NumSubscribers int64 `gorm:"column:num_subscribers;not null;default:0" json:"num_subscribers"`
	Likes          int64 `gorm:"not null;default:0" json:"likes"`
	Dislikes       int64 `gorm:"not null;default:0" json:"dislikes"`
	Views          int64 `gorm:"not null;default:0" json:"views"`

	// Dependency counts learners with a learning record for this course.
	// A course with dependency > 0 must never be physically removed.
	Dependency int64 `gorm:"not null;default:0" json:"dependency"`

	Tags         datatypes.JSONSlice[string] `gorm:"column:tags;type:jsonb" json:"tags"`
	LastModified time.Time                   `gorm:"column:last_modified;not null" json:"last_modified"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Course) TableName() string { return "course" }

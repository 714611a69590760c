package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LearningRecord is a learner's per-course study state. One row per
// (user, course); creating it increments the course's Dependency counter
// and removing it decrements it.
type LearningRecord struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	CourseID uuid.UUID `gorm:"type:uuid;primaryKey" json:"course_id"`

	// UseUnits narrows study to StudyingUnits. When false the learner
	// studies the course as a whole and StudyingUnits is ignored.
	UseUnits      bool                           `gorm:"column:use_units;not null;default:false" json:"use_units"`
	StudyingUnits datatypes.JSONSlice[uuid.UUID] `gorm:"column:studying_units;type:jsonb" json:"studying_units"`

	LikedQuestions    datatypes.JSONSlice[uuid.UUID] `gorm:"column:liked_questions;type:jsonb" json:"liked_questions"`
	DislikedQuestions datatypes.JSONSlice[uuid.UUID] `gorm:"column:disliked_questions;type:jsonb" json:"disliked_questions"`
	AnsweredQuestions datatypes.JSONSlice[uuid.UUID] `gorm:"column:answered_questions;type:jsonb" json:"answered_questions"`

	// SubscribedCourses holds course ids the learner subscribed to
	// through this course. The reverse map (subscribed -> base) is
	// derived into the cache, never stored here.
	SubscribedCourses datatypes.JSONSlice[uuid.UUID] `gorm:"column:subscribed_courses;type:jsonb" json:"subscribed_courses"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (LearningRecord) TableName() string { return "learning_record" }

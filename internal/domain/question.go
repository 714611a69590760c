package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Hint is one entry in a question's ordered hint list. Image holds the
// stored blob URL, or "" when the hint has no image.
type Hint struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Image   string `json:"image"`
}

// Answer is one choice in a question's ordered answer list.
type Answer struct {
	Key     string `json:"key"`
	Content string `json:"content"`
	Correct bool   `json:"correct"`
}

// Question is a published question. Drafts live in the parallel
// question_draft table under the same id space; promoting a draft moves
// the row between tables without changing its id.
type Question struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	UnitID   uuid.UUID `gorm:"type:uuid;not null;index" json:"unit_id"`

	Text    string                      `gorm:"column:question;type:text;not null" json:"question"`
	Hints   datatypes.JSONSlice[Hint]   `gorm:"column:hints;type:jsonb" json:"hints"`
	Answers datatypes.JSONSlice[Answer] `gorm:"column:answers;type:jsonb" json:"answers"`
	Tags    datatypes.JSONSlice[string] `gorm:"column:tags;type:jsonb" json:"tags"`

	Likes    int64 `gorm:"not null;default:0" json:"likes"`
	Dislikes int64 `gorm:"not null;default:0" json:"dislikes"`
	Views    int64 `gorm:"not null;default:0" json:"views"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Question) TableName() string { return "question" }

type QuestionDraft struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	UnitID   uuid.UUID `gorm:"type:uuid;not null;index" json:"unit_id"`

	Text    string                      `gorm:"column:question;type:text" json:"question"`
	Hints   datatypes.JSONSlice[Hint]   `gorm:"column:hints;type:jsonb" json:"hints"`
	Answers datatypes.JSONSlice[Answer] `gorm:"column:answers;type:jsonb" json:"answers"`
	Tags    datatypes.JSONSlice[string] `gorm:"column:tags;type:jsonb" json:"tags"`

	Likes    int64 `gorm:"not null;default:0" json:"likes"`
	Dislikes int64 `gorm:"not null;default:0" json:"dislikes"`
	Views    int64 `gorm:"not null;default:0" json:"views"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (QuestionDraft) TableName() string { return "question_draft" }

// PublishedCopy returns the draft's fields as a published question with
// the same id, for the draft -> published transition.
func (d *QuestionDraft) PublishedCopy() *Question {
	return &Question{
		ID:       d.ID,
		CourseID: d.CourseID,
		UnitID:   d.UnitID,
		Text:     d.Text,
		Hints:    d.Hints,
		Answers:  d.Answers,
		Tags:     d.Tags,
		Likes:    d.Likes,
		Dislikes: d.Dislikes,
		Views:    d.Views,
	}
}

// DraftCopy returns the question's fields as a draft with the same id,
// for the published -> draft transition.
func (q *Question) DraftCopy() *QuestionDraft {
	return &QuestionDraft{
		ID:       q.ID,
		CourseID: q.CourseID,
		UnitID:   q.UnitID,
		Text:     q.Text,
		Hints:    q.Hints,
		Answers:  q.Answers,
		Tags:     q.Tags,
		Likes:    q.Likes,
		Dislikes: q.Dislikes,
		Views:    q.Views,
	}
}

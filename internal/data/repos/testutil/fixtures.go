package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/studybits/studybits-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:          uuid.New(),
		Email:       email,
		Password:    "pw",
		DisplayName: "learner",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedChannel(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID) *types.Channel {
	tb.Helper()
	ch := &types.Channel{
		UserID:      userID,
		DisplayName: "channel",
		Courses:     datatypes.JSONSlice[uuid.UUID]{},
	}
	if err := tx.WithContext(ctx).Create(ch).Error; err != nil {
		tb.Fatalf("seed channel: %v", err)
	}
	return ch
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, creatorID uuid.UUID, name string) *types.Course {
	tb.Helper()
	c := &types.Course{
		ID:           uuid.New(),
		CreatorID:    creatorID,
		Name:         name,
		Description:  "about " + name,
		Tags:         datatypes.JSONSlice[string]{},
		LastModified: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedUnit(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, position int) *types.Unit {
	tb.Helper()
	u := &types.Unit{
		ID:             uuid.New(),
		CourseID:       courseID,
		Name:           "unit",
		Position:       position,
		Questions:      datatypes.JSONSlice[uuid.UUID]{},
		QuestionDrafts: datatypes.JSONSlice[uuid.UUID]{},
		Tags:           datatypes.JSONSlice[string]{},
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed unit: %v", err)
	}
	return u
}

func SeedQuestion(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID, unitID uuid.UUID, text string) *types.Question {
	tb.Helper()
	q := &types.Question{
		ID:       uuid.New(),
		CourseID: courseID,
		UnitID:   unitID,
		Text:     text,
		Hints:    datatypes.JSONSlice[types.Hint]{},
		Answers: datatypes.JSONSlice[types.Answer]{
			{Key: "a", Content: "yes", Correct: true},
			{Key: "b", Content: "no", Correct: false},
		},
		Tags: datatypes.JSONSlice[string]{},
	}
	if err := tx.WithContext(ctx).Create(q).Error; err != nil {
		tb.Fatalf("seed question: %v", err)
	}
	return q
}

func SeedQuestionDraft(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID, unitID uuid.UUID, text string) *types.QuestionDraft {
	tb.Helper()
	d := &types.QuestionDraft{
		ID:       uuid.New(),
		CourseID: courseID,
		UnitID:   unitID,
		Text:     text,
		Hints:    datatypes.JSONSlice[types.Hint]{},
		Answers: datatypes.JSONSlice[types.Answer]{
			{Key: "a", Content: "yes", Correct: true},
			{Key: "b", Content: "no", Correct: false},
		},
		Tags: datatypes.JSONSlice[string]{},
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed question draft: %v", err)
	}
	return d
}

func SeedLearningRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) *types.LearningRecord {
	tb.Helper()
	lr := &types.LearningRecord{
		UserID:            userID,
		CourseID:          courseID,
		StudyingUnits:     datatypes.JSONSlice[uuid.UUID]{},
		LikedQuestions:    datatypes.JSONSlice[uuid.UUID]{},
		DislikedQuestions: datatypes.JSONSlice[uuid.UUID]{},
		AnsweredQuestions: datatypes.JSONSlice[uuid.UUID]{},
		SubscribedCourses: datatypes.JSONSlice[uuid.UUID]{},
	}
	if err := tx.WithContext(ctx).Create(lr).Error; err != nil {
		tb.Fatalf("seed learning record: %v", err)
	}
	return lr
}

package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

// LearningRecordArray names one of the uuid arrays on a learning record for
// the generic add/remove membership operations.
type LearningRecordArray string

const (
	ArrayStudyingUnits     LearningRecordArray = "studying_units"
	ArrayLikedQuestions    LearningRecordArray = "liked_questions"
	ArrayDislikedQuestions LearningRecordArray = "disliked_questions"
	ArrayAnsweredQuestions LearningRecordArray = "answered_questions"
	ArraySubscribedCourses LearningRecordArray = "subscribed_courses"
)

type LearningRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, records []*types.LearningRecord) ([]*types.LearningRecord, error)
	Get(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.LearningRecord, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.LearningRecord, error)
	ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.LearningRecord, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID, fields map[string]interface{}) error
	AddToArray(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID, array LearningRecordArray, id uuid.UUID) error
	RemoveFromArray(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID, array LearningRecordArray, id uuid.UUID) error
	FullDelete(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) error
	FullDeleteByCourseIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) error
}

type learningRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearningRecordRepo(db *gorm.DB, baseLog *logger.Logger) LearningRecordRepo {
	return &learningRecordRepo{db: db, log: baseLog.With("repo", "LearningRecordRepo")}
}

func (r *learningRecordRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.LearningRecord) ([]*types.LearningRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(records) == 0 {
		return []*types.LearningRecord{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *learningRecordRepo) Get(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.LearningRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.LearningRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *learningRecordRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.LearningRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LearningRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *learningRecordRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.LearningRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LearningRecord
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *learningRecordRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.LearningRecord{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Updates(fields).Error
}

func (r *learningRecordRepo) AddToArray(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID, array LearningRecordArray, id uuid.UUID) error {
	return r.mutateArray(ctx, tx, userID, courseID, array, func(ids datatypes.JSONSlice[uuid.UUID]) datatypes.JSONSlice[uuid.UUID] {
		return appendUnique(ids, id)
	})
}

func (r *learningRecordRepo) RemoveFromArray(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID, array LearningRecordArray, id uuid.UUID) error {
	return r.mutateArray(ctx, tx, userID, courseID, array, func(ids datatypes.JSONSlice[uuid.UUID]) datatypes.JSONSlice[uuid.UUID] {
		return removeID(ids, id)
	})
}

func (r *learningRecordRepo) mutateArray(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID, array LearningRecordArray, mutate func(datatypes.JSONSlice[uuid.UUID]) datatypes.JSONSlice[uuid.UUID]) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.LearningRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&record).Error; err != nil {
		return err
	}

	var updated datatypes.JSONSlice[uuid.UUID]
	switch array {
	case ArrayStudyingUnits:
		updated = mutate(record.StudyingUnits)
	case ArrayLikedQuestions:
		updated = mutate(record.LikedQuestions)
	case ArrayDislikedQuestions:
		updated = mutate(record.DislikedQuestions)
	case ArrayAnsweredQuestions:
		updated = mutate(record.AnsweredQuestions)
	case ArraySubscribedCourses:
		updated = mutate(record.SubscribedCourses)
	default:
		return gorm.ErrInvalidField
	}

	return transaction.WithContext(ctx).
		Model(&types.LearningRecord{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Update(string(array), datatypes.NewJSONSlice([]uuid.UUID(updated))).Error
}

func (r *learningRecordRepo) FullDelete(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&types.LearningRecord{}).Error
}

func (r *learningRecordRepo) FullDeleteByCourseIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(courseIDs) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("course_id IN ?", courseIDs).
		Delete(&types.LearningRecord{}).Error
}

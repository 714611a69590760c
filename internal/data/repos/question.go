package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

type QuestionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) ([]*types.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.Question, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, questionID uuid.UUID, fields map[string]interface{}) error
	Increment(ctx context.Context, tx *gorm.DB, questionID uuid.UUID, column string, delta int64) error
	DecrementFloor(ctx context.Context, tx *gorm.DB, questionID uuid.UUID, column string) (bool, error)
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) error
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

func (r *questionRepo) Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) ([]*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(questions) == 0 {
		return []*types.Question{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Question
	if len(questionIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", questionIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *questionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, questionID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("id = ?", questionID).
		Updates(fields).Error
}

func (r *questionRepo) Increment(ctx context.Context, tx *gorm.DB, questionID uuid.UUID, column string, delta int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("id = ?", questionID).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

func (r *questionRepo) DecrementFloor(ctx context.Context, tx *gorm.DB, questionID uuid.UUID, column string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("id = ? AND "+column+" > 0", questionID).
		UpdateColumn(column, gorm.Expr(column+" - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *questionRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(questionIDs) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("id IN ?", questionIDs).
		Delete(&types.Question{}).Error
}

type QuestionDraftRepo interface {
	Create(ctx context.Context, tx *gorm.DB, drafts []*types.QuestionDraft) ([]*types.QuestionDraft, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, draftIDs []uuid.UUID) ([]*types.QuestionDraft, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, draftID uuid.UUID, fields map[string]interface{}) error
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, draftIDs []uuid.UUID) error
}

type questionDraftRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionDraftRepo(db *gorm.DB, baseLog *logger.Logger) QuestionDraftRepo {
	return &questionDraftRepo{db: db, log: baseLog.With("repo", "QuestionDraftRepo")}
}

func (r *questionDraftRepo) Create(ctx context.Context, tx *gorm.DB, drafts []*types.QuestionDraft) ([]*types.QuestionDraft, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(drafts) == 0 {
		return []*types.QuestionDraft{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&drafts).Error; err != nil {
		return nil, err
	}
	return drafts, nil
}

func (r *questionDraftRepo) GetByIDs(ctx context.Context, tx *gorm.DB, draftIDs []uuid.UUID) ([]*types.QuestionDraft, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.QuestionDraft
	if len(draftIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", draftIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *questionDraftRepo) UpdateFields(ctx context.Context, tx *gorm.DB, draftID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.QuestionDraft{}).
		Where("id = ?", draftID).
		Updates(fields).Error
}

func (r *questionDraftRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, draftIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(draftIDs) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("id IN ?", draftIDs).
		Delete(&types.QuestionDraft{}).Error
}

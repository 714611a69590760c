package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

type UnitRepo interface {
	Create(ctx context.Context, tx *gorm.DB, units []*types.Unit) ([]*types.Unit, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, unitIDs []uuid.UUID) ([]*types.Unit, error)
	ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Unit, error)
	Exists(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) (bool, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, fields map[string]interface{}) error
	AddQuestionID(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, questionID uuid.UUID, draft bool) error
	RemoveQuestionID(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, questionID uuid.UUID, draft bool) error
	// MoveQuestionID removes questionID from one array and appends it to the
	// other in a single row update, for promote/demote transitions.
	MoveQuestionID(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, questionID uuid.UUID, toDraft bool) error
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, unitIDs []uuid.UUID) error
	FullDeleteByCourseIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) error
}

type unitRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUnitRepo(db *gorm.DB, baseLog *logger.Logger) UnitRepo {
	return &unitRepo{db: db, log: baseLog.With("repo", "UnitRepo")}
}

func (r *unitRepo) Create(ctx context.Context, tx *gorm.DB, units []*types.Unit) ([]*types.Unit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(units) == 0 {
		return []*types.Unit{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *unitRepo) GetByIDs(ctx context.Context, tx *gorm.DB, unitIDs []uuid.UUID) ([]*types.Unit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Unit
	if len(unitIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", unitIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *unitRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Unit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Unit
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *unitRepo) Exists(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Unit{}).
		Where("id = ?", unitID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *unitRepo) UpdateFields(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.Unit{}).
		Where("id = ?", unitID).
		Updates(fields).Error
}

func (r *unitRepo) AddQuestionID(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, questionID uuid.UUID, draft bool) error {
	return r.mutateArrays(ctx, tx, unitID, func(u *types.Unit) {
		if draft {
			u.QuestionDrafts = appendUnique(u.QuestionDrafts, questionID)
		} else {
			u.Questions = appendUnique(u.Questions, questionID)
		}
	})
}

func (r *unitRepo) RemoveQuestionID(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, questionID uuid.UUID, draft bool) error {
	return r.mutateArrays(ctx, tx, unitID, func(u *types.Unit) {
		if draft {
			u.QuestionDrafts = removeID(u.QuestionDrafts, questionID)
		} else {
			u.Questions = removeID(u.Questions, questionID)
		}
	})
}

func (r *unitRepo) MoveQuestionID(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, questionID uuid.UUID, toDraft bool) error {
	return r.mutateArrays(ctx, tx, unitID, func(u *types.Unit) {
		if toDraft {
			u.Questions = removeID(u.Questions, questionID)
			u.QuestionDrafts = appendUnique(u.QuestionDrafts, questionID)
		} else {
			u.QuestionDrafts = removeID(u.QuestionDrafts, questionID)
			u.Questions = appendUnique(u.Questions, questionID)
		}
	})
}

func (r *unitRepo) mutateArrays(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, mutate func(*types.Unit)) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx)
	// sqlite has no FOR UPDATE; its single-writer lock covers the
	// read-modify-write on its own.
	if transaction.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var unit types.Unit
	if err := q.
		Where("id = ?", unitID).
		First(&unit).Error; err != nil {
		return err
	}

	mutate(&unit)

	return transaction.WithContext(ctx).
		Model(&types.Unit{}).
		Where("id = ?", unitID).
		Updates(map[string]interface{}{
			"questions":       datatypes.NewJSONSlice([]uuid.UUID(unit.Questions)),
			"question_drafts": datatypes.NewJSONSlice([]uuid.UUID(unit.QuestionDrafts)),
		}).Error
}

func (r *unitRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, unitIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(unitIDs) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("id IN ?", unitIDs).
		Delete(&types.Unit{}).Error
}

func (r *unitRepo) FullDeleteByCourseIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(courseIDs) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("course_id IN ?", courseIDs).
		Delete(&types.Unit{}).Error
}

func appendUnique(ids datatypes.JSONSlice[uuid.UUID], id uuid.UUID) datatypes.JSONSlice[uuid.UUID] {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids datatypes.JSONSlice[uuid.UUID], id uuid.UUID) datatypes.JSONSlice[uuid.UUID] {
	out := make(datatypes.JSONSlice[uuid.UUID], 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

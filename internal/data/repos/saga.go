package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

type SagaRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, runs []*types.SagaRun) ([]*types.SagaRun, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, runIDs []uuid.UUID) ([]*types.SagaRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, runID uuid.UUID, fields map[string]interface{}) error
}

type sagaRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSagaRunRepo(db *gorm.DB, baseLog *logger.Logger) SagaRunRepo {
	return &sagaRunRepo{db: db, log: baseLog.With("repo", "SagaRunRepo")}
}

func (r *sagaRunRepo) Create(ctx context.Context, tx *gorm.DB, runs []*types.SagaRun) ([]*types.SagaRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(runs) == 0 {
		return []*types.SagaRun{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *sagaRunRepo) GetByIDs(ctx context.Context, tx *gorm.DB, runIDs []uuid.UUID) ([]*types.SagaRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.SagaRun
	if len(runIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", runIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *sagaRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, runID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.SagaRun{}).
		Where("id = ?", runID).
		Updates(fields).Error
}

type SagaActionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, actions []*types.SagaAction) ([]*types.SagaAction, error)
	GetMaxSeq(ctx context.Context, tx *gorm.DB, sagaID uuid.UUID) (int, error)
	ListPending(ctx context.Context, tx *gorm.DB, sagaID uuid.UUID) ([]*types.SagaAction, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, actionID uuid.UUID, fields map[string]interface{}) error
}

type sagaActionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSagaActionRepo(db *gorm.DB, baseLog *logger.Logger) SagaActionRepo {
	return &sagaActionRepo{db: db, log: baseLog.With("repo", "SagaActionRepo")}
}

func (r *sagaActionRepo) Create(ctx context.Context, tx *gorm.DB, actions []*types.SagaAction) ([]*types.SagaAction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(actions) == 0 {
		return []*types.SagaAction{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *sagaActionRepo) GetMaxSeq(ctx context.Context, tx *gorm.DB, sagaID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var maxSeq *int
	if err := transaction.WithContext(ctx).
		Model(&types.SagaAction{}).
		Where("saga_id = ?", sagaID).
		Select("MAX(seq)").
		Scan(&maxSeq).Error; err != nil {
		return 0, err
	}
	if maxSeq == nil {
		return 0, nil
	}
	return *maxSeq, nil
}

func (r *sagaActionRepo) ListPending(ctx context.Context, tx *gorm.DB, sagaID uuid.UUID) ([]*types.SagaAction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.SagaAction
	if err := transaction.WithContext(ctx).
		Where("saga_id = ? AND status = ?", sagaID, types.SagaActionStatusPending).
		Order("seq ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *sagaActionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, actionID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.SagaAction{}).
		Where("id = ?", actionID).
		Updates(fields).Error
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studybits/studybits-backend/internal/clients/redis"
	"github.com/studybits/studybits-backend/internal/data/repos"
	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/apierr"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

// LearningService owns learning records: the per-(user, course) study
// state that the rotation selector reads. Creating and removing a
// record moves the course's dependency counter in the same transaction.
type LearningService interface {
	AddCourse(ctx context.Context, userID, courseID uuid.UUID) (*types.LearningRecord, error)
	RemoveCourse(ctx context.Context, userID, courseID uuid.UUID) error
	GetRecord(ctx context.Context, userID, courseID uuid.UUID) (*types.LearningRecord, error)
	ListRecords(ctx context.Context, userID uuid.UUID) ([]*types.LearningRecord, error)

	SetUseUnits(ctx context.Context, userID, courseID uuid.UUID, useUnits bool) (*types.LearningRecord, error)
	ToggleStudyingUnit(ctx context.Context, userID, courseID, unitID uuid.UUID) (*types.LearningRecord, error)

	// ReconcileRecord prunes studying-unit entries whose units no
	// longer exist, and drops the unit focus when nothing is left.
	ReconcileRecord(ctx context.Context, userID, courseID uuid.UUID) (*types.LearningRecord, error)

	// CourseInteraction summarizes the learner's standing with a course.
	// Unlike GetRecord it answers for any course: a missing record comes
	// back as IsStudied=false. Studying units are reconciled on the way
	// out so the answer never names a deleted unit.
	CourseInteraction(ctx context.Context, userID, courseID uuid.UUID) (*CourseInteraction, error)
}

// CourseInteraction is the learner-facing view of one learning record.
type CourseInteraction struct {
	IsStudied     bool        `json:"is_studied"`
	UseUnits      bool        `json:"use_units"`
	StudyingUnits []uuid.UUID `json:"studying_units"`
}

type learningService struct {
	db           *gorm.DB
	log          *logger.Logger
	learningRepo repos.LearningRecordRepo
	courseRepo   repos.CourseRepo
	unitRepo     repos.UnitRepo
	cache        redis.DocumentCache
}

func NewLearningService(
	db *gorm.DB,
	baseLog *logger.Logger,
	learningRepo repos.LearningRecordRepo,
	courseRepo repos.CourseRepo,
	unitRepo repos.UnitRepo,
	cache redis.DocumentCache,
) LearningService {
	return &learningService{
		db:           db,
		log:          baseLog.With("service", "LearningService"),
		learningRepo: learningRepo,
		courseRepo:   courseRepo,
		unitRepo:     unitRepo,
		cache:        cache,
	}
}

func (ls *learningService) AddCourse(ctx context.Context, userID, courseID uuid.UUID) (*types.LearningRecord, error) {
	existing, err := ls.learningRepo.Get(ctx, nil, userID, courseID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load learning record: %w", err)
	}

	record := &types.LearningRecord{
		UserID:   userID,
		CourseID: courseID,
	}
	err = ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := ls.courseRepo.Exists(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if !exists {
			return apierr.New(http.StatusNotFound, "course_not_found", fmt.Errorf("course %s not found", courseID))
		}
		if _, err := ls.learningRepo.Create(ctx, tx, []*types.LearningRecord{record}); err != nil {
			return fmt.Errorf("create learning record: %w", err)
		}
		return ls.courseRepo.Increment(ctx, tx, courseID, "dependency", 1)
	})
	if err != nil {
		return nil, err
	}

	// The cached course document carries the dependency counter.
	if err := ls.cache.InvalidateCourse(ctx, courseID); err != nil {
		ls.log.Warn("invalidate course cache failed", "course_id", courseID.String(), "error", err)
	}
	return record, nil
}

// RemoveCourse drops the record, releases the dependency, and walks the
// record's subscriptions back so subscriber counts stay honest.
func (ls *learningService) RemoveCourse(ctx context.Context, userID, courseID uuid.UUID) error {
	record, err := ls.learningRepo.Get(ctx, nil, userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load learning record: %w", err)
	}

	err = ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, subscribed := range record.SubscribedCourses {
			if _, err := ls.courseRepo.DecrementFloor(ctx, tx, subscribed, "num_subscribers"); err != nil {
				return err
			}
		}
		if err := ls.learningRepo.FullDelete(ctx, tx, userID, courseID); err != nil {
			return fmt.Errorf("delete learning record: %w", err)
		}
		_, err := ls.courseRepo.DecrementFloor(ctx, tx, courseID, "dependency")
		return err
	})
	if err != nil {
		return err
	}

	for _, subscribed := range record.SubscribedCourses {
		if err := ls.cache.RemoveSubscriptionSource(ctx, userID, subscribed); err != nil {
			ls.log.Warn("subscription index cleanup failed", "error", err)
		}
		if err := ls.cache.InvalidateCourse(ctx, subscribed); err != nil {
			ls.log.Warn("invalidate course cache failed", "course_id", subscribed.String(), "error", err)
		}
	}
	if err := ls.cache.InvalidateCourse(ctx, courseID); err != nil {
		ls.log.Warn("invalidate course cache failed", "course_id", courseID.String(), "error", err)
	}
	return nil
}

func (ls *learningService) GetRecord(ctx context.Context, userID, courseID uuid.UUID) (*types.LearningRecord, error) {
	record, err := ls.learningRepo.Get(ctx, nil, userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(http.StatusNotFound, "learning_record_not_found", fmt.Errorf("user is not studying course %s", courseID))
		}
		return nil, fmt.Errorf("load learning record: %w", err)
	}
	return record, nil
}

func (ls *learningService) ListRecords(ctx context.Context, userID uuid.UUID) ([]*types.LearningRecord, error) {
	return ls.learningRepo.ListByUserID(ctx, nil, userID)
}

func (ls *learningService) SetUseUnits(ctx context.Context, userID, courseID uuid.UUID, useUnits bool) (*types.LearningRecord, error) {
	if _, err := ls.GetRecord(ctx, userID, courseID); err != nil {
		return nil, err
	}
	if err := ls.learningRepo.UpdateFields(ctx, nil, userID, courseID, map[string]interface{}{
		"use_units": useUnits,
	}); err != nil {
		return nil, fmt.Errorf("update use_units: %w", err)
	}
	return ls.GetRecord(ctx, userID, courseID)
}

func (ls *learningService) ToggleStudyingUnit(ctx context.Context, userID, courseID, unitID uuid.UUID) (*types.LearningRecord, error) {
	record, err := ls.GetRecord(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	if containsUUID(record.StudyingUnits, unitID) {
		if err := ls.learningRepo.RemoveFromArray(ctx, nil, userID, courseID, repos.ArrayStudyingUnits, unitID); err != nil {
			return nil, fmt.Errorf("remove studying unit: %w", err)
		}
		return ls.GetRecord(ctx, userID, courseID)
	}

	units, err := ls.unitRepo.GetByIDs(ctx, nil, []uuid.UUID{unitID})
	if err != nil {
		return nil, fmt.Errorf("load unit: %w", err)
	}
	if len(units) == 0 || units[0].CourseID != courseID {
		return nil, apierr.New(http.StatusNotFound, "unit_not_found", fmt.Errorf("unit %s not found in course %s", unitID, courseID))
	}
	if err := ls.learningRepo.AddToArray(ctx, nil, userID, courseID, repos.ArrayStudyingUnits, unitID); err != nil {
		return nil, fmt.Errorf("add studying unit: %w", err)
	}
	return ls.GetRecord(ctx, userID, courseID)
}

func (ls *learningService) ReconcileRecord(ctx context.Context, userID, courseID uuid.UUID) (*types.LearningRecord, error) {
	record, err := ls.GetRecord(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if len(record.StudyingUnits) == 0 {
		return record, nil
	}

	units, err := ls.unitRepo.GetByIDs(ctx, nil, record.StudyingUnits)
	if err != nil {
		return nil, fmt.Errorf("load studying units: %w", err)
	}
	alive := make(map[uuid.UUID]struct{}, len(units))
	for _, u := range units {
		if u.CourseID == courseID {
			alive[u.ID] = struct{}{}
		}
	}
	if len(alive) == len(record.StudyingUnits) {
		return record, nil
	}

	err = ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, unitID := range record.StudyingUnits {
			if _, ok := alive[unitID]; ok {
				continue
			}
			if err := ls.learningRepo.RemoveFromArray(ctx, tx, userID, courseID, repos.ArrayStudyingUnits, unitID); err != nil {
				return err
			}
		}
		if len(alive) == 0 && record.UseUnits {
			return ls.learningRepo.UpdateFields(ctx, tx, userID, courseID, map[string]interface{}{
				"use_units": false,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ls.GetRecord(ctx, userID, courseID)
}

func (ls *learningService) CourseInteraction(ctx context.Context, userID, courseID uuid.UUID) (*CourseInteraction, error) {
	record, err := ls.ReconcileRecord(ctx, userID, courseID)
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) && apiErr.Code == "learning_record_not_found" {
			return &CourseInteraction{StudyingUnits: []uuid.UUID{}}, nil
		}
		return nil, err
	}
	return &CourseInteraction{
		IsStudied:     true,
		UseUnits:      record.UseUnits,
		StudyingUnits: append([]uuid.UUID{}, record.StudyingUnits...),
	}, nil
}

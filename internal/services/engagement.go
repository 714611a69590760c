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

// EngagementService tracks learner reactions. Like and dislike are a
// tri-state per question: liking a liked question clears the like,
// liking a disliked question flips it, counters follow the arrays.
type EngagementService interface {
	ToggleLike(ctx context.Context, userID, courseID, questionID uuid.UUID) (*types.LearningRecord, error)
	ToggleDislike(ctx context.Context, userID, courseID, questionID uuid.UUID) (*types.LearningRecord, error)
	MarkAnswered(ctx context.Context, userID, courseID, questionID uuid.UUID) error
	RecordQuestionView(ctx context.Context, questionID uuid.UUID) error
	RecordCourseView(ctx context.Context, courseID uuid.UUID) error

	// Subscribe records that the learner, while studying baseCourseID,
	// subscribed to targetCourseID. The redis reverse map keeps
	// target -> base so unsubscribing doesn't scan every record.
	Subscribe(ctx context.Context, userID, baseCourseID, targetCourseID uuid.UUID) error
	Unsubscribe(ctx context.Context, userID, targetCourseID uuid.UUID) error
	RebuildSubscriptionIndex(ctx context.Context, userID uuid.UUID) error

	// LikeState reports the learner's current reaction to a question:
	// LikeStateLiked, LikeStateDisliked or LikeStateNone.
	LikeState(ctx context.Context, userID, courseID, questionID uuid.UUID) (string, error)
	IsSubscribed(ctx context.Context, userID, targetCourseID uuid.UUID) (bool, error)
	// SubscribedCoursesThrough lists the courses the learner subscribed
	// to while studying baseCourseID.
	SubscribedCoursesThrough(ctx context.Context, userID, baseCourseID uuid.UUID) ([]uuid.UUID, error)
}

const (
	LikeStateLiked    = "liked"
	LikeStateDisliked = "disliked"
	LikeStateNone     = "none"
)

type engagementService struct {
	db           *gorm.DB
	log          *logger.Logger
	learningRepo repos.LearningRecordRepo
	questionRepo repos.QuestionRepo
	courseRepo   repos.CourseRepo
	cache        redis.DocumentCache
}

func NewEngagementService(
	db *gorm.DB,
	baseLog *logger.Logger,
	learningRepo repos.LearningRecordRepo,
	questionRepo repos.QuestionRepo,
	courseRepo repos.CourseRepo,
	cache redis.DocumentCache,
) EngagementService {
	return &engagementService{
		db:           db,
		log:          baseLog.With("service", "EngagementService"),
		learningRepo: learningRepo,
		questionRepo: questionRepo,
		courseRepo:   courseRepo,
		cache:        cache,
	}
}

func (es *engagementService) ToggleLike(ctx context.Context, userID, courseID, questionID uuid.UUID) (*types.LearningRecord, error) {
	return es.toggleReaction(ctx, userID, courseID, questionID, repos.ArrayLikedQuestions, repos.ArrayDislikedQuestions, "likes", "dislikes")
}

func (es *engagementService) ToggleDislike(ctx context.Context, userID, courseID, questionID uuid.UUID) (*types.LearningRecord, error) {
	return es.toggleReaction(ctx, userID, courseID, questionID, repos.ArrayDislikedQuestions, repos.ArrayLikedQuestions, "dislikes", "likes")
}

func (es *engagementService) toggleReaction(
	ctx context.Context,
	userID, courseID, questionID uuid.UUID,
	targetArray, oppositeArray repos.LearningRecordArray,
	targetColumn, oppositeColumn string,
) (*types.LearningRecord, error) {
	err := es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := es.loadRecord(ctx, tx, userID, courseID)
		if err != nil {
			return err
		}

		inTarget := containsUUID(recordArray(record, targetArray), questionID)
		inOpposite := containsUUID(recordArray(record, oppositeArray), questionID)

		if inTarget {
			// Second tap clears the reaction.
			if err := es.learningRepo.RemoveFromArray(ctx, tx, userID, courseID, targetArray, questionID); err != nil {
				return err
			}
			if _, err := es.questionRepo.DecrementFloor(ctx, tx, questionID, targetColumn); err != nil {
				return err
			}
			_, err := es.courseRepo.DecrementFloor(ctx, tx, courseID, targetColumn)
			return err
		}

		if inOpposite {
			if err := es.learningRepo.RemoveFromArray(ctx, tx, userID, courseID, oppositeArray, questionID); err != nil {
				return err
			}
			if _, err := es.questionRepo.DecrementFloor(ctx, tx, questionID, oppositeColumn); err != nil {
				return err
			}
			if _, err := es.courseRepo.DecrementFloor(ctx, tx, courseID, oppositeColumn); err != nil {
				return err
			}
		}

		if err := es.learningRepo.AddToArray(ctx, tx, userID, courseID, targetArray, questionID); err != nil {
			return err
		}
		if err := es.questionRepo.Increment(ctx, tx, questionID, targetColumn, 1); err != nil {
			return err
		}
		return es.courseRepo.Increment(ctx, tx, courseID, targetColumn, 1)
	})
	if err != nil {
		return nil, err
	}
	es.invalidateCourseDoc(ctx, courseID)
	return es.learningRepo.Get(ctx, nil, userID, courseID)
}

func (es *engagementService) MarkAnswered(ctx context.Context, userID, courseID, questionID uuid.UUID) error {
	return es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := es.loadRecord(ctx, tx, userID, courseID); err != nil {
			return err
		}
		return es.learningRepo.AddToArray(ctx, tx, userID, courseID, repos.ArrayAnsweredQuestions, questionID)
	})
}

func (es *engagementService) RecordQuestionView(ctx context.Context, questionID uuid.UUID) error {
	return es.questionRepo.Increment(ctx, nil, questionID, "views", 1)
}

func (es *engagementService) RecordCourseView(ctx context.Context, courseID uuid.UUID) error {
	if err := es.courseRepo.Increment(ctx, nil, courseID, "views", 1); err != nil {
		return err
	}
	es.invalidateCourseDoc(ctx, courseID)
	return nil
}

func (es *engagementService) Subscribe(ctx context.Context, userID, baseCourseID, targetCourseID uuid.UUID) error {
	if baseCourseID == targetCourseID {
		return apierr.New(http.StatusBadRequest, "self_subscription", fmt.Errorf("cannot subscribe a course to itself"))
	}

	err := es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := es.loadRecord(ctx, tx, userID, baseCourseID)
		if err != nil {
			return err
		}
		if containsUUID(record.SubscribedCourses, targetCourseID) {
			return nil
		}

		exists, err := es.courseRepo.Exists(ctx, tx, targetCourseID)
		if err != nil {
			return err
		}
		if !exists {
			return apierr.New(http.StatusNotFound, "course_not_found", fmt.Errorf("course %s not found", targetCourseID))
		}

		if err := es.learningRepo.AddToArray(ctx, tx, userID, baseCourseID, repos.ArraySubscribedCourses, targetCourseID); err != nil {
			return err
		}
		return es.courseRepo.Increment(ctx, tx, targetCourseID, "num_subscribers", 1)
	})
	if err != nil {
		return err
	}

	if err := es.cache.SetSubscriptionSource(ctx, userID, targetCourseID, baseCourseID); err != nil {
		es.log.Warn("subscription index update failed", "error", err)
	}
	es.invalidateCourseDoc(ctx, targetCourseID)
	return nil
}

// Unsubscribe resolves the base course through the reverse map, falling
// back to a scan of the learner's records when the map is cold.
func (es *engagementService) Unsubscribe(ctx context.Context, userID, targetCourseID uuid.UUID) error {
	baseCourseID, err := es.cache.GetSubscriptionSource(ctx, userID, targetCourseID)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			es.log.Warn("subscription index lookup failed", "error", err)
		}
		baseCourseID, err = es.findSubscriptionSource(ctx, userID, targetCourseID)
		if err != nil {
			return err
		}
	}

	err = es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := es.loadRecord(ctx, tx, userID, baseCourseID)
		if err != nil {
			return err
		}
		if !containsUUID(record.SubscribedCourses, targetCourseID) {
			return nil
		}
		if err := es.learningRepo.RemoveFromArray(ctx, tx, userID, baseCourseID, repos.ArraySubscribedCourses, targetCourseID); err != nil {
			return err
		}
		_, err = es.courseRepo.DecrementFloor(ctx, tx, targetCourseID, "num_subscribers")
		return err
	})
	if err != nil {
		return err
	}

	if err := es.cache.RemoveSubscriptionSource(ctx, userID, targetCourseID); err != nil {
		es.log.Warn("subscription index update failed", "error", err)
	}
	es.invalidateCourseDoc(ctx, targetCourseID)
	return nil
}

func (es *engagementService) RebuildSubscriptionIndex(ctx context.Context, userID uuid.UUID) error {
	records, err := es.learningRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return fmt.Errorf("list learning records: %w", err)
	}

	index := map[uuid.UUID]uuid.UUID{}
	for _, record := range records {
		for _, subscribed := range record.SubscribedCourses {
			index[subscribed] = record.CourseID
		}
	}
	return es.cache.ReplaceSubscriptionIndex(ctx, userID, index)
}

// invalidateCourseDoc drops the cached course document after one of its
// counters changed.
func (es *engagementService) invalidateCourseDoc(ctx context.Context, courseID uuid.UUID) {
	if err := es.cache.InvalidateCourse(ctx, courseID); err != nil {
		es.log.Warn("invalidate course cache failed", "course_id", courseID.String(), "error", err)
	}
}

func (es *engagementService) LikeState(ctx context.Context, userID, courseID, questionID uuid.UUID) (string, error) {
	record, err := es.loadRecord(ctx, nil, userID, courseID)
	if err != nil {
		return "", err
	}
	switch {
	case containsUUID(record.LikedQuestions, questionID):
		return LikeStateLiked, nil
	case containsUUID(record.DislikedQuestions, questionID):
		return LikeStateDisliked, nil
	default:
		return LikeStateNone, nil
	}
}

func (es *engagementService) IsSubscribed(ctx context.Context, userID, targetCourseID uuid.UUID) (bool, error) {
	if _, err := es.cache.GetSubscriptionSource(ctx, userID, targetCourseID); err == nil {
		return true, nil
	} else if !errors.Is(err, redis.ErrCacheMiss) {
		es.log.Warn("subscription index lookup failed", "error", err)
	}

	// The map is a hint, not the record of truth; a miss means a scan.
	_, err := es.findSubscriptionSource(ctx, userID, targetCourseID)
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) && apiErr.Code == "subscription_not_found" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (es *engagementService) SubscribedCoursesThrough(ctx context.Context, userID, baseCourseID uuid.UUID) ([]uuid.UUID, error) {
	record, err := es.loadRecord(ctx, nil, userID, baseCourseID)
	if err != nil {
		return nil, err
	}
	return append([]uuid.UUID{}, record.SubscribedCourses...), nil
}

func (es *engagementService) findSubscriptionSource(ctx context.Context, userID, targetCourseID uuid.UUID) (uuid.UUID, error) {
	records, err := es.learningRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("list learning records: %w", err)
	}
	for _, record := range records {
		if containsUUID(record.SubscribedCourses, targetCourseID) {
			return record.CourseID, nil
		}
	}
	return uuid.Nil, apierr.New(http.StatusNotFound, "subscription_not_found", fmt.Errorf("no subscription to course %s", targetCourseID))
}

func (es *engagementService) loadRecord(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.LearningRecord, error) {
	record, err := es.learningRepo.Get(ctx, tx, userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(http.StatusNotFound, "learning_record_not_found", fmt.Errorf("user is not studying course %s", courseID))
		}
		return nil, fmt.Errorf("load learning record: %w", err)
	}
	return record, nil
}

func recordArray(record *types.LearningRecord, array repos.LearningRecordArray) []uuid.UUID {
	switch array {
	case repos.ArrayStudyingUnits:
		return record.StudyingUnits
	case repos.ArrayLikedQuestions:
		return record.LikedQuestions
	case repos.ArrayDislikedQuestions:
		return record.DislikedQuestions
	case repos.ArrayAnsweredQuestions:
		return record.AnsweredQuestions
	case repos.ArraySubscribedCourses:
		return record.SubscribedCourses
	default:
		return nil
	}
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

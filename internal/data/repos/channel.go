package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

type ChannelRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, channel *types.Channel) error
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Channel, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error
	AttachCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) error
	DetachCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) error
}

type channelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChannelRepo(db *gorm.DB, baseLog *logger.Logger) ChannelRepo {
	return &channelRepo{db: db, log: baseLog.With("repo", "ChannelRepo")}
}

// Upsert writes identity fields, preserving an existing course list.
func (r *channelRepo) Upsert(ctx context.Context, tx *gorm.DB, channel *types.Channel) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	existing, err := r.getOne(ctx, transaction, channel.UserID)
	if err != nil {
		return err
	}
	if existing == nil {
		return transaction.WithContext(ctx).Create(channel).Error
	}

	return transaction.WithContext(ctx).
		Model(&types.Channel{}).
		Where("user_id = ?", channel.UserID).
		Updates(map[string]interface{}{
			"display_name":    channel.DisplayName,
			"banner_url":      channel.BannerURL,
			"profile_pic_url": channel.ProfilePicURL,
		}).Error
}

func (r *channelRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.Channel{}).
		Where("user_id = ?", userID).
		Updates(fields).Error
}

func (r *channelRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Channel, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Channel
	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// AttachCourse appends the course id to the channel's ordered list.
// Callers run it inside the course-creation transaction.
func (r *channelRepo) AttachCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) error {
	return r.mutateCourses(ctx, tx, userID, func(courses []uuid.UUID) []uuid.UUID {
		for _, id := range courses {
			if id == courseID {
				return courses
			}
		}
		return append(courses, courseID)
	})
}

func (r *channelRepo) DetachCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) error {
	return r.mutateCourses(ctx, tx, userID, func(courses []uuid.UUID) []uuid.UUID {
		out := courses[:0]
		for _, id := range courses {
			if id != courseID {
				out = append(out, id)
			}
		}
		return out
	})
}

func (r *channelRepo) mutateCourses(ctx context.Context, tx *gorm.DB, userID uuid.UUID, mutate func([]uuid.UUID) []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	existing, err := r.getOne(ctx, transaction, userID)
	if err != nil {
		return err
	}
	if existing == nil {
		return gorm.ErrRecordNotFound
	}

	updated := mutate([]uuid.UUID(existing.Courses))
	return transaction.WithContext(ctx).
		Model(&types.Channel{}).
		Where("user_id = ?", userID).
		Update("courses", datatypes.NewJSONSlice(updated)).Error
}

func (r *channelRepo) getOne(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Channel, error) {
	var results []*types.Channel
	if err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

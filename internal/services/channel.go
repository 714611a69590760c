package services

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studybits/studybits-backend/internal/clients/gcp"
	"github.com/studybits/studybits-backend/internal/data/repos"
	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/apierr"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

// ChannelUpdate carries the optional fields of a channel edit. Nil
// means "leave unchanged".
type ChannelUpdate struct {
	DisplayName *string
	Banner      *ImageUpload
	ProfilePic  *ImageUpload
}

// ImageUpload is a raw image arriving from a multipart request.
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}

type ChannelService interface {
	GetChannel(ctx context.Context, userID uuid.UUID) (*types.Channel, error)
	// GetChannelCourses resolves the channel's course id list into full
	// course documents, preserving the channel's ordering.
	GetChannelCourses(ctx context.Context, userID uuid.UUID) ([]*types.Course, error)
	UpdateChannel(ctx context.Context, userID uuid.UUID, update ChannelUpdate) (*types.Channel, error)
}

type channelService struct {
	db          *gorm.DB
	log         *logger.Logger
	channelRepo repos.ChannelRepo
	courseRepo  repos.CourseRepo
	bucket      gcp.BucketService
	saga        SagaService
}

func NewChannelService(
	db *gorm.DB,
	baseLog *logger.Logger,
	channelRepo repos.ChannelRepo,
	courseRepo repos.CourseRepo,
	bucket gcp.BucketService,
	saga SagaService,
) ChannelService {
	return &channelService{
		db:          db,
		log:         baseLog.With("service", "ChannelService"),
		channelRepo: channelRepo,
		courseRepo:  courseRepo,
		bucket:      bucket,
		saga:        saga,
	}
}

func (cs *channelService) GetChannel(ctx context.Context, userID uuid.UUID) (*types.Channel, error) {
	channels, err := cs.channelRepo.GetByUserIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("load channel: %w", err)
	}
	if len(channels) == 0 {
		return nil, apierr.New(http.StatusNotFound, "channel_not_found", fmt.Errorf("no channel for user"))
	}
	return channels[0], nil
}

func (cs *channelService) GetChannelCourses(ctx context.Context, userID uuid.UUID) ([]*types.Course, error) {
	channel, err := cs.GetChannel(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(channel.Courses) == 0 {
		return []*types.Course{}, nil
	}

	courses, err := cs.courseRepo.GetByIDs(ctx, nil, channel.Courses)
	if err != nil {
		return nil, fmt.Errorf("load channel courses: %w", err)
	}

	byID := make(map[uuid.UUID]*types.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	ordered := make([]*types.Course, 0, len(channel.Courses))
	for _, id := range channel.Courses {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// UpdateChannel uploads replacement images before the transaction and
// compensates them if it fails; replaced images are deleted only after
// commit so readers never see a channel pointing at a missing blob.
func (cs *channelService) UpdateChannel(ctx context.Context, userID uuid.UUID, update ChannelUpdate) (*types.Channel, error) {
	channel, err := cs.GetChannel(ctx, userID)
	if err != nil {
		return nil, err
	}

	sagaID, err := cs.saga.CreateSaga(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create saga: %w", err)
	}

	fields := map[string]interface{}{}
	var replacedURLs []string

	if update.DisplayName != nil {
		fields["display_name"] = *update.DisplayName
	}
	if update.Banner != nil {
		url, err := cs.bucket.Upload(ctx, gcp.BucketCategoryBanner, update.Banner.Filename, update.Banner.Reader)
		if err != nil {
			cs.abort(ctx, sagaID)
			return nil, fmt.Errorf("upload banner: %w", err)
		}
		if err := cs.saga.AppendDeleteOnAbort(ctx, sagaID, url); err != nil {
			cs.abort(ctx, sagaID)
			return nil, fmt.Errorf("record banner upload: %w", err)
		}
		fields["banner_url"] = url
		if channel.BannerURL != "" {
			replacedURLs = append(replacedURLs, channel.BannerURL)
		}
	}
	if update.ProfilePic != nil {
		url, err := cs.bucket.Upload(ctx, gcp.BucketCategoryProfilePic, update.ProfilePic.Filename, update.ProfilePic.Reader)
		if err != nil {
			cs.abort(ctx, sagaID)
			return nil, fmt.Errorf("upload profile pic: %w", err)
		}
		if err := cs.saga.AppendDeleteOnAbort(ctx, sagaID, url); err != nil {
			cs.abort(ctx, sagaID)
			return nil, fmt.Errorf("record profile pic upload: %w", err)
		}
		fields["profile_pic_url"] = url
		if channel.ProfilePicURL != "" {
			replacedURLs = append(replacedURLs, channel.ProfilePicURL)
		}
	}

	if len(fields) == 0 {
		return channel, nil
	}

	err = cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, old := range replacedURLs {
			if err := cs.saga.AppendDeleteOnCommit(ctx, tx, sagaID, old); err != nil {
				return fmt.Errorf("record replaced image: %w", err)
			}
		}
		return cs.channelRepo.UpdateFields(ctx, tx, userID, fields)
	})
	if err != nil {
		cs.abort(ctx, sagaID)
		return nil, err
	}

	if err := cs.saga.Finish(ctx, sagaID); err != nil {
		cs.log.Warn("saga finish failed", "saga_id", sagaID.String(), "error", err)
	}

	return cs.GetChannel(ctx, userID)
}

func (cs *channelService) abort(ctx context.Context, sagaID uuid.UUID) {
	if err := cs.saga.Abort(ctx, sagaID); err != nil {
		cs.log.Warn("saga abort failed", "saga_id", sagaID.String(), "error", err)
	}
}

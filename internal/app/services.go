package app

import (
	"gorm.io/gorm"

	"github.com/studybits/studybits-backend/internal/clients/gcp"
	"github.com/studybits/studybits-backend/internal/clients/redis"
	"github.com/studybits/studybits-backend/internal/clients/similarity"
	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/services"
	"github.com/studybits/studybits-backend/internal/study"
)

type Services struct {
	Saga       services.SagaService
	Auth       services.AuthService
	Channel    services.ChannelService
	Catalog    services.CatalogService
	Question   services.QuestionService
	Engagement services.EngagementService
	Learning   services.LearningService
	Sessions   *study.SessionRegistry
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg *Config,
	r *Repos,
	bucket gcp.BucketService,
	cache redis.DocumentCache,
	simClient similarity.Client,
) *Services {
	saga := services.NewSagaService(db, log, r.SagaRun, r.SagaAction, bucket)

	return &Services{
		Saga:    saga,
		Auth:    services.NewAuthService(db, log, r.User, r.UserToken, r.Channel, cfg.JWTSecretKey, cfg.AccessTTL, cfg.RefreshTTL),
		Channel: services.NewChannelService(db, log, r.Channel, r.Course, bucket, saga),
		Catalog: services.NewCatalogService(
			db, log,
			r.Course, r.Unit, r.Question, r.QuestionDraft, r.Channel,
			cache, bucket, saga, simClient,
			cfg.ArchiveUserID,
		),
		Question:   services.NewQuestionService(db, log, r.Course, r.Unit, r.Question, r.QuestionDraft, cache, bucket, saga, simClient),
		Engagement: services.NewEngagementService(db, log, r.Learning, r.Question, r.Course, cache),
		Learning:   services.NewLearningService(db, log, r.Learning, r.Course, r.Unit, cache),
		Sessions: study.NewSessionRegistry(
			log,
			r.Learning,
			r.Course,
			r.Question,
			study.NewRepoChecker(r.Course, r.Unit),
			study.NewSimilarityAdapter(simClient),
		),
	}
}

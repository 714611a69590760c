package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/studybits/studybits-backend/internal/clients/gcp"
	"github.com/studybits/studybits-backend/internal/clients/redis"
	"github.com/studybits/studybits-backend/internal/clients/similarity"
	"github.com/studybits/studybits-backend/internal/db"
	"github.com/studybits/studybits-backend/internal/handlers"
	"github.com/studybits/studybits-backend/internal/middleware"
	"github.com/studybits/studybits-backend/internal/observability"
	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/server"
	"github.com/studybits/studybits-backend/internal/utils"
)

type App struct {
	Log    *logger.Logger
	Config *Config
	Router *gin.Engine

	cache        redis.DocumentCache
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	mode := utils.GetEnv("APP_MODE", "dev", nil)
	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := LoadConfig(log)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Mode == "prod" || cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "studybits",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return nil, fmt.Errorf("init bucket: %w", err)
	}
	cache, err := redis.NewDocumentCache(log)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	simClient, err := similarity.NewClient(log)
	if err != nil {
		return nil, fmt.Errorf("init similarity client: %w", err)
	}

	gormDB := pg.DB()
	r := wireRepos(gormDB, log)
	svc := wireServices(gormDB, log, cfg, r, bucket, cache, simClient)

	authMiddleware := middleware.NewAuthMiddleware(log, svc.Auth)
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:       handlers.NewAuthHandler(log, svc.Auth),
		ChannelHandler:    handlers.NewChannelHandler(log, svc.Channel),
		CourseHandler:     handlers.NewCourseHandler(log, svc.Catalog),
		UnitHandler:       handlers.NewUnitHandler(log, svc.Catalog),
		QuestionHandler:   handlers.NewQuestionHandler(log, svc.Question),
		EngagementHandler: handlers.NewEngagementHandler(log, svc.Engagement),
		LearningHandler:   handlers.NewLearningHandler(log, svc.Learning),
		StudyHandler:      handlers.NewStudyHandler(log, svc.Sessions, svc.Engagement),
		AuthMiddleware:    authMiddleware,
		AllowedOrigins:    cfg.AllowedOrigins,
	})

	return &App{
		Log:          log,
		Config:       cfg,
		Router:       router,
		cache:        cache,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Run() error {
	a.Log.Info("Starting server", "port", a.Config.Port)
	return a.Router.Run(":" + a.Config.Port)
}

func (a *App) Close(ctx context.Context) {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Log.Warn("cache close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}

package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/studybits/studybits-backend/internal/handlers"
	"github.com/studybits/studybits-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler       *handlers.AuthHandler
	ChannelHandler    *handlers.ChannelHandler
	CourseHandler     *handlers.CourseHandler
	UnitHandler       *handlers.UnitHandler
	QuestionHandler   *handlers.QuestionHandler
	EngagementHandler *handlers.EngagementHandler
	LearningHandler   *handlers.LearningHandler
	StudyHandler      *handlers.StudyHandler
	AuthMiddleware    *middleware.AuthMiddleware
	AllowedOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware("studybits"))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.POST("/register", cfg.AuthHandler.Register)
	api.POST("/login", cfg.AuthHandler.Login)
	api.POST("/refresh", cfg.AuthHandler.Refresh)

	// Catalog reads are public; everything that writes or depends on the
	// caller's identity sits behind auth below.
	api.GET("/courses/search", cfg.CourseHandler.SearchCourses)
	api.GET("/courses/:course_id", cfg.CourseHandler.GetCourse)
	api.GET("/courses/:course_id/units", cfg.UnitHandler.ListUnits)
	api.GET("/courses/:course_id/units/:unit_id", cfg.UnitHandler.GetUnit)
	api.GET("/courses/:course_id/questions", cfg.QuestionHandler.ListQuestions)
	api.GET("/questions/:question_id", cfg.QuestionHandler.GetQuestion)

	protected := api.Group("")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	protected.POST("/logout", cfg.AuthHandler.Logout)

	protected.GET("/channel", cfg.ChannelHandler.GetChannel)
	protected.GET("/channel/:user_id", cfg.ChannelHandler.GetChannel)
	protected.GET("/channel/:user_id/courses", cfg.ChannelHandler.GetChannelCourses)
	protected.PATCH("/channel", cfg.ChannelHandler.UpdateChannel)
	protected.POST("/channel/prime-cache", cfg.CourseHandler.PrimeChannelCache)

	protected.POST("/courses", cfg.CourseHandler.CreateCourse)
	protected.PATCH("/courses/:course_id", cfg.CourseHandler.UpdateCourse)
	protected.DELETE("/courses/:course_id", cfg.CourseHandler.DeleteCourse)
	protected.POST("/courses/:course_id/view", cfg.EngagementHandler.RecordCourseView)

	protected.POST("/courses/:course_id/units", cfg.UnitHandler.CreateUnit)
	protected.PATCH("/courses/:course_id/units/:unit_id", cfg.UnitHandler.UpdateUnit)
	protected.DELETE("/courses/:course_id/units/:unit_id", cfg.UnitHandler.DeleteUnit)

	protected.GET("/courses/:course_id/drafts", cfg.QuestionHandler.ListDrafts)
	protected.GET("/drafts/:question_id", cfg.QuestionHandler.GetDraft)
	protected.POST("/courses/:course_id/units/:unit_id/questions", cfg.QuestionHandler.CreateQuestion)
	protected.POST("/courses/:course_id/units/:unit_id/drafts", cfg.QuestionHandler.CreateDraft)
	protected.PATCH("/courses/:course_id/units/:unit_id/drafts/:question_id", cfg.QuestionHandler.EditDraft)
	protected.DELETE("/courses/:course_id/units/:unit_id/drafts/:question_id", cfg.QuestionHandler.DeleteDraft)
	protected.POST("/courses/:course_id/units/:unit_id/drafts/:question_id/promote", cfg.QuestionHandler.Promote)
	protected.PATCH("/courses/:course_id/units/:unit_id/questions/:question_id", cfg.QuestionHandler.EditQuestion)
	protected.DELETE("/courses/:course_id/units/:unit_id/questions/:question_id", cfg.QuestionHandler.DeleteQuestion)
	protected.POST("/courses/:course_id/units/:unit_id/questions/:question_id/demote", cfg.QuestionHandler.Demote)
	protected.POST("/questions/:question_id/view", cfg.EngagementHandler.RecordQuestionView)

	protected.POST("/engagement/like", cfg.EngagementHandler.ToggleLike)
	protected.POST("/engagement/dislike", cfg.EngagementHandler.ToggleDislike)
	protected.POST("/engagement/answered", cfg.EngagementHandler.MarkAnswered)
	protected.POST("/engagement/subscribe", cfg.EngagementHandler.Subscribe)
	protected.POST("/engagement/unsubscribe", cfg.EngagementHandler.Unsubscribe)
	protected.POST("/engagement/subscription-index/rebuild", cfg.EngagementHandler.RebuildSubscriptionIndex)
	protected.GET("/engagement/like-state/:question_id", cfg.EngagementHandler.GetLikeState)
	protected.GET("/engagement/subscriptions", cfg.EngagementHandler.ListSubscriptions)
	protected.GET("/engagement/subscriptions/:course_id", cfg.EngagementHandler.GetSubscription)

	protected.GET("/learning", cfg.LearningHandler.ListRecords)
	protected.POST("/learning/:course_id", cfg.LearningHandler.AddCourse)
	protected.GET("/learning/:course_id", cfg.LearningHandler.GetRecord)
	protected.DELETE("/learning/:course_id", cfg.LearningHandler.RemoveCourse)
	protected.PATCH("/learning/:course_id/use-units", cfg.LearningHandler.SetUseUnits)
	protected.POST("/learning/:course_id/units/:unit_id/toggle", cfg.LearningHandler.ToggleStudyingUnit)
	protected.POST("/learning/:course_id/reconcile", cfg.LearningHandler.ReconcileRecord)
	protected.GET("/learning/:course_id/interaction", cfg.LearningHandler.GetCourseInteraction)

	protected.POST("/study/session", cfg.StudyHandler.StartSession)
	protected.DELETE("/study/session", cfg.StudyHandler.EndSession)
	protected.POST("/study/session/reset", cfg.StudyHandler.ResetSession)
	protected.POST("/study/next", cfg.StudyHandler.NextBatch)
	protected.POST("/study/answer", cfg.StudyHandler.Answer)
	protected.GET("/study/combo/:course_id", cfg.StudyHandler.PickCombo)

	return router
}

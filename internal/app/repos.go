package app

import (
	"gorm.io/gorm"

	"github.com/studybits/studybits-backend/internal/data/repos"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

type Repos struct {
	User          repos.UserRepo
	UserToken     repos.UserTokenRepo
	Channel       repos.ChannelRepo
	Course        repos.CourseRepo
	Unit          repos.UnitRepo
	Question      repos.QuestionRepo
	QuestionDraft repos.QuestionDraftRepo
	Learning      repos.LearningRecordRepo
	SagaRun       repos.SagaRunRepo
	SagaAction    repos.SagaActionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) *Repos {
	return &Repos{
		User:          repos.NewUserRepo(db, log),
		UserToken:     repos.NewUserTokenRepo(db, log),
		Channel:       repos.NewChannelRepo(db, log),
		Course:        repos.NewCourseRepo(db, log),
		Unit:          repos.NewUnitRepo(db, log),
		Question:      repos.NewQuestionRepo(db, log),
		QuestionDraft: repos.NewQuestionDraftRepo(db, log),
		Learning:      repos.NewLearningRecordRepo(db, log),
		SagaRun:       repos.NewSagaRunRepo(db, log),
		SagaAction:    repos.NewSagaActionRepo(db, log),
	}
}

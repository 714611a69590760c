package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studybits/studybits-backend/internal/data/repos"
	"github.com/studybits/studybits-backend/internal/data/repos/testutil"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

// testEnv wires every service over a per-test transaction, with in-memory
// fakes for the bucket, cache and similarity clients.
type testEnv struct {
	tx  *gorm.DB
	log *logger.Logger

	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	channelRepo   repos.ChannelRepo
	courseRepo    repos.CourseRepo
	unitRepo      repos.UnitRepo
	questionRepo  repos.QuestionRepo
	draftRepo     repos.QuestionDraftRepo
	learningRepo  repos.LearningRecordRepo

	bucket     *fakeBucket
	cache      *fakeCache
	classifier *fakeClassifier

	archiveUserID uuid.UUID

	saga       SagaService
	auth       AuthService
	channel    ChannelService
	catalog    CatalogService
	question   QuestionService
	engagement EngagementService
	learning   LearningService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)

	env := &testEnv{
		tx:  tx,
		log: log,

		userRepo:      repos.NewUserRepo(tx, log),
		userTokenRepo: repos.NewUserTokenRepo(tx, log),
		channelRepo:   repos.NewChannelRepo(tx, log),
		courseRepo:    repos.NewCourseRepo(tx, log),
		unitRepo:      repos.NewUnitRepo(tx, log),
		questionRepo:  repos.NewQuestionRepo(tx, log),
		draftRepo:     repos.NewQuestionDraftRepo(tx, log),
		learningRepo:  repos.NewLearningRecordRepo(tx, log),

		bucket:     &fakeBucket{},
		cache:      newFakeCache(),
		classifier: &fakeClassifier{tags: []string{"math"}},

		archiveUserID: uuid.New(),
	}

	env.saga = NewSagaService(tx, log, repos.NewSagaRunRepo(tx, log), repos.NewSagaActionRepo(tx, log), env.bucket)
	env.auth = NewAuthService(tx, log, env.userRepo, env.userTokenRepo, env.channelRepo, "test-secret", 15*time.Minute, 24*time.Hour)
	env.channel = NewChannelService(tx, log, env.channelRepo, env.courseRepo, env.bucket, env.saga)
	env.catalog = NewCatalogService(
		tx, log,
		env.courseRepo, env.unitRepo, env.questionRepo, env.draftRepo, env.channelRepo,
		env.cache, env.bucket, env.saga, env.classifier,
		env.archiveUserID,
	)
	env.question = NewQuestionService(tx, log, env.courseRepo, env.unitRepo, env.questionRepo, env.draftRepo, env.cache, env.bucket, env.saga, env.classifier)
	env.engagement = NewEngagementService(tx, log, env.learningRepo, env.questionRepo, env.courseRepo, env.cache)
	env.learning = NewLearningService(tx, log, env.learningRepo, env.courseRepo, env.unitRepo, env.cache)
	return env
}

package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/data/repos/testutil"
	types "github.com/studybits/studybits-backend/internal/domain"
)

type engagementFixture struct {
	learnerID  uuid.UUID
	course     *types.Course
	questionID uuid.UUID
}

func seedEngagement(t *testing.T, ctx context.Context, env *testEnv) engagementFixture {
	t.Helper()
	creator := testutil.SeedUser(t, ctx, env.tx, "eng-creator@studybits.dev")
	learner := testutil.SeedUser(t, ctx, env.tx, "eng-learner@studybits.dev")
	course := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "engagement")
	unit := testutil.SeedUnit(t, ctx, env.tx, course.ID, 0)
	question := testutil.SeedQuestion(t, ctx, env.tx, course.ID, unit.ID, "q")
	testutil.SeedLearningRecord(t, ctx, env.tx, learner.ID, course.ID)
	return engagementFixture{learnerID: learner.ID, course: course, questionID: question.ID}
}

func (env *testEnv) questionCounters(t *testing.T, ctx context.Context, questionID uuid.UUID) (int64, int64) {
	t.Helper()
	rows, err := env.questionRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("load question: %v (len=%d)", err, len(rows))
	}
	return rows[0].Likes, rows[0].Dislikes
}

func TestToggleLikeTriState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)

	// First tap likes.
	record, err := env.engagement.ToggleLike(ctx, fx.learnerID, fx.course.ID, fx.questionID)
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if len(record.LikedQuestions) != 1 || record.LikedQuestions[0] != fx.questionID {
		t.Fatalf("liked_questions: want=[%s] got=%v", fx.questionID, record.LikedQuestions)
	}
	likes, dislikes := env.questionCounters(t, ctx, fx.questionID)
	if likes != 1 || dislikes != 0 {
		t.Fatalf("counters after like: want=1/0 got=%d/%d", likes, dislikes)
	}

	// Second tap clears.
	record, err = env.engagement.ToggleLike(ctx, fx.learnerID, fx.course.ID, fx.questionID)
	if err != nil {
		t.Fatalf("ToggleLike clear: %v", err)
	}
	if len(record.LikedQuestions) != 0 {
		t.Fatalf("liked_questions after clear: want empty got=%v", record.LikedQuestions)
	}
	likes, dislikes = env.questionCounters(t, ctx, fx.questionID)
	if likes != 0 || dislikes != 0 {
		t.Fatalf("counters after clear: want=0/0 got=%d/%d", likes, dislikes)
	}
}

func TestToggleDislikeFlipsLike(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)

	if _, err := env.engagement.ToggleLike(ctx, fx.learnerID, fx.course.ID, fx.questionID); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	record, err := env.engagement.ToggleDislike(ctx, fx.learnerID, fx.course.ID, fx.questionID)
	if err != nil {
		t.Fatalf("ToggleDislike: %v", err)
	}
	if len(record.LikedQuestions) != 0 {
		t.Fatalf("liked_questions after flip: want empty got=%v", record.LikedQuestions)
	}
	if len(record.DislikedQuestions) != 1 || record.DislikedQuestions[0] != fx.questionID {
		t.Fatalf("disliked_questions after flip: want=[%s] got=%v", fx.questionID, record.DislikedQuestions)
	}
	likes, dislikes := env.questionCounters(t, ctx, fx.questionID)
	if likes != 0 || dislikes != 1 {
		t.Fatalf("counters after flip: want=0/1 got=%d/%d", likes, dislikes)
	}
}

func (env *testEnv) courseCounters(t *testing.T, ctx context.Context, courseID uuid.UUID) (int64, int64) {
	t.Helper()
	rows, err := env.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{courseID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("load course: %v (len=%d)", err, len(rows))
	}
	return rows[0].Likes, rows[0].Dislikes
}

func TestToggleReactionTracksCourseCounters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)

	if _, err := env.engagement.ToggleLike(ctx, fx.learnerID, fx.course.ID, fx.questionID); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	likes, dislikes := env.courseCounters(t, ctx, fx.course.ID)
	if likes != 1 || dislikes != 0 {
		t.Fatalf("course counters after like: want=1/0 got=%d/%d", likes, dislikes)
	}

	// Flip moves the count across columns.
	if _, err := env.engagement.ToggleDislike(ctx, fx.learnerID, fx.course.ID, fx.questionID); err != nil {
		t.Fatalf("ToggleDislike: %v", err)
	}
	likes, dislikes = env.courseCounters(t, ctx, fx.course.ID)
	if likes != 0 || dislikes != 1 {
		t.Fatalf("course counters after flip: want=0/1 got=%d/%d", likes, dislikes)
	}

	// Clearing drops it entirely.
	if _, err := env.engagement.ToggleDislike(ctx, fx.learnerID, fx.course.ID, fx.questionID); err != nil {
		t.Fatalf("ToggleDislike clear: %v", err)
	}
	likes, dislikes = env.courseCounters(t, ctx, fx.course.ID)
	if likes != 0 || dislikes != 0 {
		t.Fatalf("course counters after clear: want=0/0 got=%d/%d", likes, dislikes)
	}
}

func TestToggleLikeWithoutLearningRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)

	_, err := env.engagement.ToggleLike(ctx, uuid.New(), fx.course.ID, fx.questionID)
	assertAPIError(t, err, 404, "learning_record_not_found")
}

func TestMarkAnsweredIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)

	for i := 0; i < 2; i++ {
		if err := env.engagement.MarkAnswered(ctx, fx.learnerID, fx.course.ID, fx.questionID); err != nil {
			t.Fatalf("MarkAnswered %d: %v", i, err)
		}
	}
	record, err := env.learningRepo.Get(ctx, nil, fx.learnerID, fx.course.ID)
	if err != nil {
		t.Fatalf("Get record: %v", err)
	}
	if len(record.AnsweredQuestions) != 1 {
		t.Fatalf("answered_questions: want=1 got=%v", record.AnsweredQuestions)
	}
}

func TestSubscribeUnsubscribeRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)
	creator := testutil.SeedUser(t, ctx, env.tx, "sub-creator@studybits.dev")
	target := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "target")

	if err := env.engagement.Subscribe(ctx, fx.learnerID, fx.course.ID, target.ID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	// Idempotent.
	if err := env.engagement.Subscribe(ctx, fx.learnerID, fx.course.ID, target.ID); err != nil {
		t.Fatalf("Subscribe repeat: %v", err)
	}

	record, err := env.learningRepo.Get(ctx, nil, fx.learnerID, fx.course.ID)
	if err != nil {
		t.Fatalf("Get record: %v", err)
	}
	if len(record.SubscribedCourses) != 1 || record.SubscribedCourses[0] != target.ID {
		t.Fatalf("subscribed_courses: want=[%s] got=%v", target.ID, record.SubscribedCourses)
	}
	courses, err := env.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{target.ID})
	if err != nil || len(courses) != 1 {
		t.Fatalf("load target: %v", err)
	}
	if courses[0].NumSubscribers != 1 {
		t.Fatalf("num_subscribers: want=1 got=%d", courses[0].NumSubscribers)
	}
	// Reverse map resolves target -> base.
	base, err := env.cache.GetSubscriptionSource(ctx, fx.learnerID, target.ID)
	if err != nil || base != fx.course.ID {
		t.Fatalf("subscription source: want=%s got=%s (%v)", fx.course.ID, base, err)
	}

	if err := env.engagement.Unsubscribe(ctx, fx.learnerID, target.ID); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	record, err = env.learningRepo.Get(ctx, nil, fx.learnerID, fx.course.ID)
	if err != nil {
		t.Fatalf("Get record after unsubscribe: %v", err)
	}
	if len(record.SubscribedCourses) != 0 {
		t.Fatalf("subscribed_courses after unsubscribe: want empty got=%v", record.SubscribedCourses)
	}
	courses, err = env.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{target.ID})
	if err != nil || len(courses) != 1 {
		t.Fatalf("reload target: %v", err)
	}
	if courses[0].NumSubscribers != 0 {
		t.Fatalf("num_subscribers after unsubscribe: want=0 got=%d", courses[0].NumSubscribers)
	}
}

func TestSubscribeRejectsSelf(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)

	err := env.engagement.Subscribe(ctx, fx.learnerID, fx.course.ID, fx.course.ID)
	assertAPIError(t, err, 400, "self_subscription")
}

func TestUnsubscribeFallsBackToRecordScan(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)
	creator := testutil.SeedUser(t, ctx, env.tx, "cold-creator@studybits.dev")
	target := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "cold")

	if err := env.engagement.Subscribe(ctx, fx.learnerID, fx.course.ID, target.ID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	// Cold cache: the reverse map entry is gone.
	if err := env.cache.RemoveSubscriptionSource(ctx, fx.learnerID, target.ID); err != nil {
		t.Fatalf("RemoveSubscriptionSource: %v", err)
	}

	if err := env.engagement.Unsubscribe(ctx, fx.learnerID, target.ID); err != nil {
		t.Fatalf("Unsubscribe with cold cache: %v", err)
	}
	record, err := env.learningRepo.Get(ctx, nil, fx.learnerID, fx.course.ID)
	if err != nil {
		t.Fatalf("Get record: %v", err)
	}
	if len(record.SubscribedCourses) != 0 {
		t.Fatalf("subscribed_courses: want empty got=%v", record.SubscribedCourses)
	}
}

func TestUnsubscribeUnknownSubscription(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)

	err := env.engagement.Unsubscribe(ctx, fx.learnerID, uuid.New())
	assertAPIError(t, err, 404, "subscription_not_found")
}

func TestRebuildSubscriptionIndex(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)
	creator := testutil.SeedUser(t, ctx, env.tx, "rebuild-creator@studybits.dev")
	target := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "rebuild")

	if err := env.engagement.Subscribe(ctx, fx.learnerID, fx.course.ID, target.ID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := env.cache.RemoveSubscriptionSource(ctx, fx.learnerID, target.ID); err != nil {
		t.Fatalf("RemoveSubscriptionSource: %v", err)
	}

	if err := env.engagement.RebuildSubscriptionIndex(ctx, fx.learnerID); err != nil {
		t.Fatalf("RebuildSubscriptionIndex: %v", err)
	}
	base, err := env.cache.GetSubscriptionSource(ctx, fx.learnerID, target.ID)
	if err != nil || base != fx.course.ID {
		t.Fatalf("rebuilt source: want=%s got=%s (%v)", fx.course.ID, base, err)
	}
}

func TestLikeStateFollowsReactions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)

	state, err := env.engagement.LikeState(ctx, fx.learnerID, fx.course.ID, fx.questionID)
	if err != nil || state != LikeStateNone {
		t.Fatalf("initial state: want=%s got=%s err=%v", LikeStateNone, state, err)
	}

	if _, err := env.engagement.ToggleLike(ctx, fx.learnerID, fx.course.ID, fx.questionID); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	state, err = env.engagement.LikeState(ctx, fx.learnerID, fx.course.ID, fx.questionID)
	if err != nil || state != LikeStateLiked {
		t.Fatalf("after like: want=%s got=%s err=%v", LikeStateLiked, state, err)
	}

	if _, err := env.engagement.ToggleDislike(ctx, fx.learnerID, fx.course.ID, fx.questionID); err != nil {
		t.Fatalf("ToggleDislike: %v", err)
	}
	state, err = env.engagement.LikeState(ctx, fx.learnerID, fx.course.ID, fx.questionID)
	if err != nil || state != LikeStateDisliked {
		t.Fatalf("after dislike: want=%s got=%s err=%v", LikeStateDisliked, state, err)
	}
}

func TestIsSubscribedSurvivesColdIndex(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fx := seedEngagement(t, ctx, env)
	creator := testutil.SeedUser(t, ctx, env.tx, "eng-other-creator@studybits.dev")
	target := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "target course")

	subscribed, err := env.engagement.IsSubscribed(ctx, fx.learnerID, target.ID)
	if err != nil || subscribed {
		t.Fatalf("before subscribe: subscribed=%v err=%v", subscribed, err)
	}

	if err := env.engagement.Subscribe(ctx, fx.learnerID, fx.course.ID, target.ID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	subscribed, err = env.engagement.IsSubscribed(ctx, fx.learnerID, target.ID)
	if err != nil || !subscribed {
		t.Fatalf("after subscribe: subscribed=%v err=%v", subscribed, err)
	}

	// A lost index entry only degrades to a record scan.
	if err := env.cache.RemoveSubscriptionSource(ctx, fx.learnerID, target.ID); err != nil {
		t.Fatalf("RemoveSubscriptionSource: %v", err)
	}
	subscribed, err = env.engagement.IsSubscribed(ctx, fx.learnerID, target.ID)
	if err != nil || !subscribed {
		t.Fatalf("cold index: subscribed=%v err=%v", subscribed, err)
	}

	through, err := env.engagement.SubscribedCoursesThrough(ctx, fx.learnerID, fx.course.ID)
	if err != nil || len(through) != 1 || through[0] != target.ID {
		t.Fatalf("subscriptions through base: got=%v err=%v", through, err)
	}
}

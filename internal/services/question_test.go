package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/data/repos/testutil"
	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/apierr"
)

func validInput(text string) QuestionInput {
	return QuestionInput{
		Text: text,
		Answers: []types.Answer{
			{Key: "a", Content: "right", Correct: true},
			{Key: "b", Content: "wrong"},
		},
	}
}

func assertAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *apierr.Error got %v", err)
	}
	if apiErr.Status != status || apiErr.Code != code {
		t.Fatalf("api error: want=%d/%s got=%d/%s", status, code, apiErr.Status, apiErr.Code)
	}
}

func (env *testEnv) course(t *testing.T, ctx context.Context, email, name string) (uuid.UUID, *types.Course, *types.Unit) {
	t.Helper()
	creator := testutil.SeedUser(t, ctx, env.tx, email)
	course := testutil.SeedCourse(t, ctx, env.tx, creator.ID, name)
	unit := testutil.SeedUnit(t, ctx, env.tx, course.ID, 0)
	return creator.ID, course, unit
}

func (env *testEnv) courseCounter(t *testing.T, ctx context.Context, courseID uuid.UUID) int64 {
	t.Helper()
	courses, err := env.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{courseID})
	if err != nil || len(courses) != 1 {
		t.Fatalf("load course: %v (len=%d)", err, len(courses))
	}
	return courses[0].NumQuestions
}

func (env *testEnv) unitArrays(t *testing.T, ctx context.Context, unitID uuid.UUID) ([]uuid.UUID, []uuid.UUID) {
	t.Helper()
	units, err := env.unitRepo.GetByIDs(ctx, nil, []uuid.UUID{unitID})
	if err != nil || len(units) != 1 {
		t.Fatalf("load unit: %v (len=%d)", err, len(units))
	}
	return units[0].Questions, units[0].QuestionDrafts
}

func TestQuestionLifecyclePromoteDemotePreservesID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID, course, unit := env.course(t, ctx, "lifecycle@studybits.dev", "lifecycle")

	draft, err := env.question.CreateDraft(ctx, ownerID, course.ID, unit.ID, validInput("What is 2+2?"))
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if env.courseCounter(t, ctx, course.ID) != 0 {
		t.Fatalf("num_questions after draft: want=0")
	}
	published, drafts := env.unitArrays(t, ctx, unit.ID)
	if len(published) != 0 || len(drafts) != 1 || drafts[0] != draft.ID {
		t.Fatalf("unit arrays after draft: published=%v drafts=%v", published, drafts)
	}

	question, err := env.question.Promote(ctx, ownerID, course.ID, unit.ID, draft.ID)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if question.ID != draft.ID {
		t.Fatalf("promote changed id: want=%s got=%s", draft.ID, question.ID)
	}
	if got := env.courseCounter(t, ctx, course.ID); got != 1 {
		t.Fatalf("num_questions after promote: want=1 got=%d", got)
	}
	published, drafts = env.unitArrays(t, ctx, unit.ID)
	if len(published) != 1 || published[0] != draft.ID || len(drafts) != 0 {
		t.Fatalf("unit arrays after promote: published=%v drafts=%v", published, drafts)
	}
	// The draft row is gone.
	if rows, err := env.draftRepo.GetByIDs(ctx, nil, []uuid.UUID{draft.ID}); err != nil || len(rows) != 0 {
		t.Fatalf("draft row after promote: err=%v len=%d", err, len(rows))
	}

	demoted, err := env.question.Demote(ctx, ownerID, course.ID, unit.ID, question.ID)
	if err != nil {
		t.Fatalf("Demote: %v", err)
	}
	if demoted.ID != draft.ID {
		t.Fatalf("demote changed id: want=%s got=%s", draft.ID, demoted.ID)
	}
	if got := env.courseCounter(t, ctx, course.ID); got != 0 {
		t.Fatalf("num_questions after demote: want=0 got=%d", got)
	}
	published, drafts = env.unitArrays(t, ctx, unit.ID)
	if len(published) != 0 || len(drafts) != 1 || drafts[0] != draft.ID {
		t.Fatalf("unit arrays after demote: published=%v drafts=%v", published, drafts)
	}
}

func TestCreateDraftValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID, course, unit := env.course(t, ctx, "validation@studybits.dev", "validation")

	cases := []struct {
		name  string
		input QuestionInput
		code  string
	}{
		{"missing text", validInput("   "), "missing_question_text"},
		{"one answer", QuestionInput{Text: "q", Answers: []types.Answer{{Key: "a", Content: "x", Correct: true}}}, "too_few_answers"},
		{"empty answer", QuestionInput{Text: "q", Answers: []types.Answer{{Key: "a", Content: " "}, {Key: "b", Content: "x", Correct: true}}}, "empty_answer"},
		{"no correct answer", QuestionInput{Text: "q", Answers: []types.Answer{{Key: "a", Content: "x"}, {Key: "b", Content: "y"}}}, "no_correct_answer"},
	}
	for _, tc := range cases {
		_, err := env.question.CreateDraft(ctx, ownerID, course.ID, unit.ID, tc.input)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		assertAPIError(t, err, 400, tc.code)
	}
}

func TestCreateDraftRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, course, unit := env.course(t, ctx, "owner@studybits.dev", "owned")
	stranger := testutil.SeedUser(t, ctx, env.tx, "stranger@studybits.dev")

	_, err := env.question.CreateDraft(ctx, stranger.ID, course.ID, unit.ID, validInput("q"))
	assertAPIError(t, err, 403, "not_course_owner")
}

func TestDeleteQuestionDecrementsCounterAndSchedulesImageDeletes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID, course, unit := env.course(t, ctx, "delete@studybits.dev", "delete")

	input := validInput("with image")
	input.Hints = []HintInput{{
		Key:      "h1",
		Title:    "hint",
		Content:  "look closer",
		NewImage: &ImageUpload{Filename: "hint.png", Reader: strings.NewReader("png")},
	}}
	draft, err := env.question.CreateDraft(ctx, ownerID, course.ID, unit.ID, input)
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if len(env.bucket.uploads) != 1 {
		t.Fatalf("uploads: want=1 got=%d", len(env.bucket.uploads))
	}
	imageURL := env.bucket.uploads[0]
	if draft.Hints[0].Image != imageURL {
		t.Fatalf("hint image: want=%s got=%s", imageURL, draft.Hints[0].Image)
	}

	if _, err := env.question.Promote(ctx, ownerID, course.ID, unit.ID, draft.ID); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	if err := env.question.DeleteQuestion(ctx, ownerID, course.ID, unit.ID, draft.ID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if got := env.courseCounter(t, ctx, course.ID); got != 0 {
		t.Fatalf("num_questions after delete: want=0 got=%d", got)
	}
	published, drafts := env.unitArrays(t, ctx, unit.ID)
	if len(published) != 0 || len(drafts) != 0 {
		t.Fatalf("unit arrays after delete: published=%v drafts=%v", published, drafts)
	}
	// The stored hint image was removed after commit.
	if !env.bucket.deleted(imageURL) {
		t.Fatalf("hint image %s was not deleted", imageURL)
	}
}

func TestEditDraftReplacingImageDeletesOrphan(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID, course, unit := env.course(t, ctx, "edit@studybits.dev", "edit")

	input := validInput("first")
	input.Hints = []HintInput{{
		Key:      "h1",
		NewImage: &ImageUpload{Filename: "old.png", Reader: strings.NewReader("old")},
	}}
	draft, err := env.question.CreateDraft(ctx, ownerID, course.ID, unit.ID, input)
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	oldURL := draft.Hints[0].Image

	edit := validInput("second")
	edit.Hints = []HintInput{{
		Key:      "h1",
		NewImage: &ImageUpload{Filename: "new.png", Reader: strings.NewReader("new")},
	}}
	updated, err := env.question.EditDraft(ctx, ownerID, course.ID, unit.ID, draft.ID, edit)
	if err != nil {
		t.Fatalf("EditDraft: %v", err)
	}
	if updated.Text != "second" {
		t.Fatalf("text: want=%q got=%q", "second", updated.Text)
	}
	if updated.Hints[0].Image == oldURL {
		t.Fatalf("image was not replaced")
	}
	if !env.bucket.deleted(oldURL) {
		t.Fatalf("replaced image %s was not deleted", oldURL)
	}
}

func TestCreateQuestionPublishesDirectly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID, course, unit := env.course(t, ctx, "direct@studybits.dev", "direct")

	question, err := env.question.CreateQuestion(ctx, ownerID, course.ID, unit.ID, validInput("straight to published"))
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	if got := env.courseCounter(t, ctx, course.ID); got != 1 {
		t.Fatalf("num_questions: want=1 got=%d", got)
	}
	published, drafts := env.unitArrays(t, ctx, unit.ID)
	if len(published) != 1 || published[0] != question.ID || len(drafts) != 0 {
		t.Fatalf("unit arrays: published=%v drafts=%v", published, drafts)
	}
	// No draft row was involved.
	if rows, err := env.draftRepo.GetByIDs(ctx, nil, []uuid.UUID{question.ID}); err != nil || len(rows) != 0 {
		t.Fatalf("draft row: err=%v len=%d", err, len(rows))
	}

	_, err = env.question.CreateQuestion(ctx, ownerID, course.ID, unit.ID, validInput("   "))
	assertAPIError(t, err, 400, "missing_question_text")
}

func TestEditQuestionReassignsUnit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID, course, unitA := env.course(t, ctx, "reassign@studybits.dev", "reassign")
	unitB := testutil.SeedUnit(t, ctx, env.tx, course.ID, 1)

	question, err := env.question.CreateQuestion(ctx, ownerID, course.ID, unitA.ID, validInput("movable"))
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	moved, err := env.question.EditQuestion(ctx, ownerID, course.ID, unitB.ID, question.ID, validInput("moved"))
	if err != nil {
		t.Fatalf("EditQuestion: %v", err)
	}
	if moved.UnitID != unitB.ID {
		t.Fatalf("unit_id after move: want=%s got=%s", unitB.ID, moved.UnitID)
	}
	publishedA, _ := env.unitArrays(t, ctx, unitA.ID)
	publishedB, _ := env.unitArrays(t, ctx, unitB.ID)
	if len(publishedA) != 0 {
		t.Fatalf("old unit still lists question: %v", publishedA)
	}
	if len(publishedB) != 1 || publishedB[0] != question.ID {
		t.Fatalf("new unit arrays: want=[%s] got=%v", question.ID, publishedB)
	}
	// Same course, counter untouched.
	if got := env.courseCounter(t, ctx, course.ID); got != 1 {
		t.Fatalf("num_questions after in-course move: want=1 got=%d", got)
	}
}

func TestEditQuestionReassignsAcrossCourses(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID, courseA, unitA := env.course(t, ctx, "cross@studybits.dev", "cross-a")
	courseB := testutil.SeedCourse(t, ctx, env.tx, ownerID, "cross-b")
	unitB := testutil.SeedUnit(t, ctx, env.tx, courseB.ID, 0)

	question, err := env.question.CreateQuestion(ctx, ownerID, courseA.ID, unitA.ID, validInput("migrant"))
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	moved, err := env.question.EditQuestion(ctx, ownerID, courseB.ID, unitB.ID, question.ID, validInput("migrated"))
	if err != nil {
		t.Fatalf("EditQuestion: %v", err)
	}
	if moved.CourseID != courseB.ID || moved.UnitID != unitB.ID {
		t.Fatalf("location after move: got course=%s unit=%s", moved.CourseID, moved.UnitID)
	}
	if got := env.courseCounter(t, ctx, courseA.ID); got != 0 {
		t.Fatalf("num_questions on source course: want=0 got=%d", got)
	}
	if got := env.courseCounter(t, ctx, courseB.ID); got != 1 {
		t.Fatalf("num_questions on target course: want=1 got=%d", got)
	}
}

func TestEditDraftReassignsUnit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID, course, unitA := env.course(t, ctx, "draft-move@studybits.dev", "draft-move")
	unitB := testutil.SeedUnit(t, ctx, env.tx, course.ID, 1)

	draft, err := env.question.CreateDraft(ctx, ownerID, course.ID, unitA.ID, validInput("draft"))
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}

	moved, err := env.question.EditDraft(ctx, ownerID, course.ID, unitB.ID, draft.ID, validInput("draft moved"))
	if err != nil {
		t.Fatalf("EditDraft: %v", err)
	}
	if moved.UnitID != unitB.ID {
		t.Fatalf("unit_id after move: want=%s got=%s", unitB.ID, moved.UnitID)
	}
	_, draftsA := env.unitArrays(t, ctx, unitA.ID)
	_, draftsB := env.unitArrays(t, ctx, unitB.ID)
	if len(draftsA) != 0 {
		t.Fatalf("old unit still lists draft: %v", draftsA)
	}
	if len(draftsB) != 1 || draftsB[0] != draft.ID {
		t.Fatalf("new unit drafts: want=[%s] got=%v", draft.ID, draftsB)
	}
	// Drafts never count toward num_questions.
	if got := env.courseCounter(t, ctx, course.ID); got != 0 {
		t.Fatalf("num_questions: want=0 got=%d", got)
	}
}

func TestDraftReadsAreOwnerOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID, course, unitA := env.course(t, ctx, "draft-reads@studybits.dev", "draft-reads")
	unitB := testutil.SeedUnit(t, ctx, env.tx, course.ID, 1)
	stranger := testutil.SeedUser(t, ctx, env.tx, "draft-snoop@studybits.dev")

	draftA, err := env.question.CreateDraft(ctx, ownerID, course.ID, unitA.ID, validInput("a"))
	if err != nil {
		t.Fatalf("CreateDraft a: %v", err)
	}
	draftB, err := env.question.CreateDraft(ctx, ownerID, course.ID, unitB.ID, validInput("b"))
	if err != nil {
		t.Fatalf("CreateDraft b: %v", err)
	}

	got, err := env.question.GetDraft(ctx, ownerID, draftA.ID)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.ID != draftA.ID {
		t.Fatalf("GetDraft: want=%s got=%s", draftA.ID, got.ID)
	}
	_, err = env.question.GetDraft(ctx, stranger.ID, draftA.ID)
	assertAPIError(t, err, 403, "not_course_owner")
	_, err = env.question.GetDraft(ctx, ownerID, uuid.New())
	assertAPIError(t, err, 404, "question_not_found")

	scoped, err := env.question.DraftsForCourseUnit(ctx, ownerID, course.ID, unitA.ID)
	if err != nil {
		t.Fatalf("DraftsForCourseUnit unit: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != draftA.ID {
		t.Fatalf("unit scope: want=[%s] got=%+v", draftA.ID, scoped)
	}
	all, err := env.question.DraftsForCourseUnit(ctx, ownerID, course.ID, uuid.Nil)
	if err != nil {
		t.Fatalf("DraftsForCourseUnit course: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("course scope: want=2 got=%d", len(all))
	}
	if all[0].ID != draftB.ID && all[1].ID != draftB.ID {
		t.Fatalf("course scope missing %s: %+v", draftB.ID, all)
	}
	_, err = env.question.DraftsForCourseUnit(ctx, stranger.ID, course.ID, uuid.Nil)
	assertAPIError(t, err, 403, "not_course_owner")
}

func TestQuestionsForCourseUnitScoping(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ownerID, course, unitA := env.course(t, ctx, "scope@studybits.dev", "scope")
	unitB := testutil.SeedUnit(t, ctx, env.tx, course.ID, 1)

	draftA, err := env.question.CreateDraft(ctx, ownerID, course.ID, unitA.ID, validInput("in unit a"))
	if err != nil {
		t.Fatalf("CreateDraft a: %v", err)
	}
	draftB, err := env.question.CreateDraft(ctx, ownerID, course.ID, unitB.ID, validInput("in unit b"))
	if err != nil {
		t.Fatalf("CreateDraft b: %v", err)
	}
	if _, err := env.question.Promote(ctx, ownerID, course.ID, unitA.ID, draftA.ID); err != nil {
		t.Fatalf("Promote a: %v", err)
	}
	if _, err := env.question.Promote(ctx, ownerID, course.ID, unitB.ID, draftB.ID); err != nil {
		t.Fatalf("Promote b: %v", err)
	}

	scoped, err := env.question.QuestionsForCourseUnit(ctx, course.ID, unitA.ID)
	if err != nil {
		t.Fatalf("QuestionsForCourseUnit unit: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != draftA.ID {
		t.Fatalf("unit scope: want=[%s] got=%+v", draftA.ID, scoped)
	}

	all, err := env.question.QuestionsForCourseUnit(ctx, course.ID, uuid.Nil)
	if err != nil {
		t.Fatalf("QuestionsForCourseUnit course: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("course scope: want=2 got=%d", len(all))
	}
}

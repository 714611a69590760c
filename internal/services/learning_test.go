package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/data/repos/testutil"
)

func (env *testEnv) dependency(t *testing.T, ctx context.Context, courseID uuid.UUID) int64 {
	t.Helper()
	courses, err := env.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{courseID})
	if err != nil || len(courses) != 1 {
		t.Fatalf("load course: %v (len=%d)", err, len(courses))
	}
	return courses[0].Dependency
}

func TestAddCourseCreatesRecordAndDependency(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	creator := testutil.SeedUser(t, ctx, env.tx, "add-creator@studybits.dev")
	learner := testutil.SeedUser(t, ctx, env.tx, "add-learner@studybits.dev")
	course := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "add")

	record, err := env.learning.AddCourse(ctx, learner.ID, course.ID)
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	if record.UserID != learner.ID || record.CourseID != course.ID {
		t.Fatalf("record keys: got=%+v", record)
	}
	if got := env.dependency(t, ctx, course.ID); got != 1 {
		t.Fatalf("dependency: want=1 got=%d", got)
	}

	// Idempotent: the second call returns the existing record without
	// moving the counter.
	if _, err := env.learning.AddCourse(ctx, learner.ID, course.ID); err != nil {
		t.Fatalf("AddCourse repeat: %v", err)
	}
	if got := env.dependency(t, ctx, course.ID); got != 1 {
		t.Fatalf("dependency after repeat: want=1 got=%d", got)
	}
}

func TestAddCourseUnknownCourse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	learner := testutil.SeedUser(t, ctx, env.tx, "unknown-learner@studybits.dev")

	_, err := env.learning.AddCourse(ctx, learner.ID, uuid.New())
	assertAPIError(t, err, 404, "course_not_found")
}

func TestRemoveCourseReleasesDependencyAndSubscriptions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	creator := testutil.SeedUser(t, ctx, env.tx, "rm-creator@studybits.dev")
	learner := testutil.SeedUser(t, ctx, env.tx, "rm-learner@studybits.dev")
	course := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "rm-base")
	target := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "rm-target")

	if _, err := env.learning.AddCourse(ctx, learner.ID, course.ID); err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	if err := env.engagement.Subscribe(ctx, learner.ID, course.ID, target.ID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := env.learning.RemoveCourse(ctx, learner.ID, course.ID); err != nil {
		t.Fatalf("RemoveCourse: %v", err)
	}
	if got := env.dependency(t, ctx, course.ID); got != 0 {
		t.Fatalf("dependency after remove: want=0 got=%d", got)
	}
	courses, err := env.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{target.ID})
	if err != nil || len(courses) != 1 {
		t.Fatalf("load target: %v", err)
	}
	if courses[0].NumSubscribers != 0 {
		t.Fatalf("target num_subscribers: want=0 got=%d", courses[0].NumSubscribers)
	}

	// Removing an absent record is a no-op.
	if err := env.learning.RemoveCourse(ctx, learner.ID, course.ID); err != nil {
		t.Fatalf("RemoveCourse repeat: %v", err)
	}
}

func TestToggleStudyingUnit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	creator := testutil.SeedUser(t, ctx, env.tx, "toggle-creator@studybits.dev")
	learner := testutil.SeedUser(t, ctx, env.tx, "toggle-learner@studybits.dev")
	course := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "toggle")
	unit := testutil.SeedUnit(t, ctx, env.tx, course.ID, 0)

	if _, err := env.learning.AddCourse(ctx, learner.ID, course.ID); err != nil {
		t.Fatalf("AddCourse: %v", err)
	}

	record, err := env.learning.ToggleStudyingUnit(ctx, learner.ID, course.ID, unit.ID)
	if err != nil {
		t.Fatalf("ToggleStudyingUnit on: %v", err)
	}
	if len(record.StudyingUnits) != 1 || record.StudyingUnits[0] != unit.ID {
		t.Fatalf("studying_units: want=[%s] got=%v", unit.ID, record.StudyingUnits)
	}

	record, err = env.learning.ToggleStudyingUnit(ctx, learner.ID, course.ID, unit.ID)
	if err != nil {
		t.Fatalf("ToggleStudyingUnit off: %v", err)
	}
	if len(record.StudyingUnits) != 0 {
		t.Fatalf("studying_units after toggle off: want empty got=%v", record.StudyingUnits)
	}

	// Units from another course don't attach.
	otherCourse := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "other")
	otherUnit := testutil.SeedUnit(t, ctx, env.tx, otherCourse.ID, 0)
	_, err = env.learning.ToggleStudyingUnit(ctx, learner.ID, course.ID, otherUnit.ID)
	assertAPIError(t, err, 404, "unit_not_found")
}

func TestReconcileRecordPrunesDeadUnits(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	creator := testutil.SeedUser(t, ctx, env.tx, "rec-creator@studybits.dev")
	learner := testutil.SeedUser(t, ctx, env.tx, "rec-learner@studybits.dev")
	course := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "reconcile")
	unitA := testutil.SeedUnit(t, ctx, env.tx, course.ID, 0)
	unitB := testutil.SeedUnit(t, ctx, env.tx, course.ID, 1)

	if _, err := env.learning.AddCourse(ctx, learner.ID, course.ID); err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	if _, err := env.learning.ToggleStudyingUnit(ctx, learner.ID, course.ID, unitA.ID); err != nil {
		t.Fatalf("ToggleStudyingUnit a: %v", err)
	}
	if _, err := env.learning.ToggleStudyingUnit(ctx, learner.ID, course.ID, unitB.ID); err != nil {
		t.Fatalf("ToggleStudyingUnit b: %v", err)
	}
	if _, err := env.learning.SetUseUnits(ctx, learner.ID, course.ID, true); err != nil {
		t.Fatalf("SetUseUnits: %v", err)
	}

	// Unit B disappears out from under the record.
	if err := env.unitRepo.FullDeleteByIDs(ctx, nil, []uuid.UUID{unitB.ID}); err != nil {
		t.Fatalf("delete unit b: %v", err)
	}

	record, err := env.learning.ReconcileRecord(ctx, learner.ID, course.ID)
	if err != nil {
		t.Fatalf("ReconcileRecord: %v", err)
	}
	if len(record.StudyingUnits) != 1 || record.StudyingUnits[0] != unitA.ID {
		t.Fatalf("studying_units: want=[%s] got=%v", unitA.ID, record.StudyingUnits)
	}
	if !record.UseUnits {
		t.Fatalf("use_units should survive while units remain")
	}

	// Last unit gone: unit focus is dropped.
	if err := env.unitRepo.FullDeleteByIDs(ctx, nil, []uuid.UUID{unitA.ID}); err != nil {
		t.Fatalf("delete unit a: %v", err)
	}
	record, err = env.learning.ReconcileRecord(ctx, learner.ID, course.ID)
	if err != nil {
		t.Fatalf("ReconcileRecord final: %v", err)
	}
	if len(record.StudyingUnits) != 0 {
		t.Fatalf("studying_units: want empty got=%v", record.StudyingUnits)
	}
	if record.UseUnits {
		t.Fatalf("use_units should drop when no units remain")
	}
}

func TestCourseInteraction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	creator := testutil.SeedUser(t, ctx, env.tx, "interaction-creator@studybits.dev")
	learner := testutil.SeedUser(t, ctx, env.tx, "interaction-learner@studybits.dev")
	course := testutil.SeedCourse(t, ctx, env.tx, creator.ID, "interaction")
	unit := testutil.SeedUnit(t, ctx, env.tx, course.ID, 0)

	// Not studying yet: a summary, not an error.
	interaction, err := env.learning.CourseInteraction(ctx, learner.ID, course.ID)
	if err != nil {
		t.Fatalf("CourseInteraction: %v", err)
	}
	if interaction.IsStudied || interaction.UseUnits || len(interaction.StudyingUnits) != 0 {
		t.Fatalf("not studied: got=%+v", interaction)
	}

	if _, err := env.learning.AddCourse(ctx, learner.ID, course.ID); err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	if _, err := env.learning.ToggleStudyingUnit(ctx, learner.ID, course.ID, unit.ID); err != nil {
		t.Fatalf("ToggleStudyingUnit: %v", err)
	}
	if _, err := env.learning.SetUseUnits(ctx, learner.ID, course.ID, true); err != nil {
		t.Fatalf("SetUseUnits: %v", err)
	}

	interaction, err = env.learning.CourseInteraction(ctx, learner.ID, course.ID)
	if err != nil {
		t.Fatalf("CourseInteraction: %v", err)
	}
	if !interaction.IsStudied || !interaction.UseUnits || len(interaction.StudyingUnits) != 1 || interaction.StudyingUnits[0] != unit.ID {
		t.Fatalf("studied: got=%+v", interaction)
	}

	// A deleted unit disappears from the summary and drops unit focus.
	if err := env.unitRepo.FullDeleteByIDs(ctx, nil, []uuid.UUID{unit.ID}); err != nil {
		t.Fatalf("delete unit: %v", err)
	}
	interaction, err = env.learning.CourseInteraction(ctx, learner.ID, course.ID)
	if err != nil {
		t.Fatalf("CourseInteraction: %v", err)
	}
	if !interaction.IsStudied || interaction.UseUnits || len(interaction.StudyingUnits) != 0 {
		t.Fatalf("after unit delete: got=%+v", interaction)
	}
}

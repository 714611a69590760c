package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studybits/studybits-backend/internal/clients/gcp"
	"github.com/studybits/studybits-backend/internal/clients/redis"
	"github.com/studybits/studybits-backend/internal/clients/similarity"
	"github.com/studybits/studybits-backend/internal/data/repos"
	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/apierr"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

// HintInput is one hint in a create or edit request. ImageURL carries a
// previously stored image to keep; NewImage replaces it. Both empty
// means no image.
type HintInput struct {
	Key      string
	Title    string
	Content  string
	ImageURL string
	NewImage *ImageUpload
}

type QuestionInput struct {
	Text    string
	Hints   []HintInput
	Answers []types.Answer
}

type QuestionService interface {
	// CreateDraft creates a question in draft state and registers it on
	// the unit's draft array.
	CreateDraft(ctx context.Context, userID, courseID, unitID uuid.UUID, input QuestionInput) (*types.QuestionDraft, error)
	// CreateQuestion creates a question directly in published state,
	// registering it on the unit's published array and bumping the
	// course question counter.
	CreateQuestion(ctx context.Context, userID, courseID, unitID uuid.UUID, input QuestionInput) (*types.Question, error)
	EditDraft(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID, input QuestionInput) (*types.QuestionDraft, error)
	EditQuestion(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID, input QuestionInput) (*types.Question, error)

	// Promote moves a draft to the published table under the same id
	// and bumps the course question counter.
	Promote(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID) (*types.Question, error)
	// Demote moves a published question back to draft.
	Demote(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID) (*types.QuestionDraft, error)

	DeleteQuestion(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID) error
	DeleteDraft(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID) error

	GetQuestion(ctx context.Context, questionID uuid.UUID) (*types.Question, error)
	// QuestionsForCourseUnit resolves the published questions of one
	// unit, or of the whole course when unitID is uuid.Nil.
	QuestionsForCourseUnit(ctx context.Context, courseID, unitID uuid.UUID) ([]*types.Question, error)

	// Draft reads are restricted to the course owner.
	GetDraft(ctx context.Context, userID, questionID uuid.UUID) (*types.QuestionDraft, error)
	DraftsForCourseUnit(ctx context.Context, userID, courseID, unitID uuid.UUID) ([]*types.QuestionDraft, error)
}

type questionService struct {
	db           *gorm.DB
	log          *logger.Logger
	courseRepo   repos.CourseRepo
	unitRepo     repos.UnitRepo
	questionRepo repos.QuestionRepo
	draftRepo    repos.QuestionDraftRepo
	cache        redis.DocumentCache
	bucket       gcp.BucketService
	saga         SagaService
	classifier   similarity.Client
}

func NewQuestionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	unitRepo repos.UnitRepo,
	questionRepo repos.QuestionRepo,
	draftRepo repos.QuestionDraftRepo,
	cache redis.DocumentCache,
	bucket gcp.BucketService,
	saga SagaService,
	classifier similarity.Client,
) QuestionService {
	return &questionService{
		db:           db,
		log:          baseLog.With("service", "QuestionService"),
		courseRepo:   courseRepo,
		unitRepo:     unitRepo,
		questionRepo: questionRepo,
		draftRepo:    draftRepo,
		cache:        cache,
		bucket:       bucket,
		saga:         saga,
		classifier:   classifier,
	}
}

func validateQuestionInput(input QuestionInput) error {
	if strings.TrimSpace(input.Text) == "" {
		return apierr.New(http.StatusBadRequest, "missing_question_text", fmt.Errorf("question text required"))
	}
	if len(input.Answers) < 2 {
		return apierr.New(http.StatusBadRequest, "too_few_answers", fmt.Errorf("a question needs at least 2 answers"))
	}
	hasCorrect := false
	for _, a := range input.Answers {
		if strings.TrimSpace(a.Content) == "" {
			return apierr.New(http.StatusBadRequest, "empty_answer", fmt.Errorf("answers cannot be empty"))
		}
		if a.Correct {
			hasCorrect = true
		}
	}
	if !hasCorrect {
		return apierr.New(http.StatusBadRequest, "no_correct_answer", fmt.Errorf("a question needs at least one correct answer"))
	}
	return nil
}

func (qs *questionService) CreateDraft(ctx context.Context, userID, courseID, unitID uuid.UUID, input QuestionInput) (*types.QuestionDraft, error) {
	if err := validateQuestionInput(input); err != nil {
		return nil, err
	}
	unit, err := qs.ownedUnit(ctx, userID, courseID, unitID)
	if err != nil {
		return nil, err
	}

	sagaID, err := qs.saga.CreateSaga(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create saga: %w", err)
	}

	hints, err := qs.resolveHints(ctx, sagaID, input.Hints)
	if err != nil {
		qs.abortSaga(ctx, sagaID)
		return nil, err
	}

	tags := qs.classifyTags(ctx, input.Text)

	draft := &types.QuestionDraft{
		ID:       uuid.New(),
		CourseID: courseID,
		UnitID:   unitID,
		Text:     strings.TrimSpace(input.Text),
		Hints:    datatypes.NewJSONSlice(hints),
		Answers:  datatypes.NewJSONSlice(input.Answers),
		Tags:     datatypes.NewJSONSlice(tags),
	}
	err = qs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := qs.draftRepo.Create(ctx, tx, []*types.QuestionDraft{draft}); err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
		if err := qs.unitRepo.AddQuestionID(ctx, tx, unitID, draft.ID, true); err != nil {
			return fmt.Errorf("register draft on unit: %w", err)
		}
		return qs.touchCourse(ctx, tx, courseID)
	})
	if err != nil {
		qs.abortSaga(ctx, sagaID)
		return nil, err
	}
	qs.finishSaga(ctx, sagaID)
	qs.invalidateUnitDocs(ctx, unit)
	return draft, nil
}

func (qs *questionService) CreateQuestion(ctx context.Context, userID, courseID, unitID uuid.UUID, input QuestionInput) (*types.Question, error) {
	if err := validateQuestionInput(input); err != nil {
		return nil, err
	}
	unit, err := qs.ownedUnit(ctx, userID, courseID, unitID)
	if err != nil {
		return nil, err
	}

	sagaID, err := qs.saga.CreateSaga(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create saga: %w", err)
	}

	hints, err := qs.resolveHints(ctx, sagaID, input.Hints)
	if err != nil {
		qs.abortSaga(ctx, sagaID)
		return nil, err
	}

	tags := qs.classifyTags(ctx, input.Text)

	question := &types.Question{
		ID:       uuid.New(),
		CourseID: courseID,
		UnitID:   unitID,
		Text:     strings.TrimSpace(input.Text),
		Hints:    datatypes.NewJSONSlice(hints),
		Answers:  datatypes.NewJSONSlice(input.Answers),
		Tags:     datatypes.NewJSONSlice(tags),
	}
	err = qs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := qs.questionRepo.Create(ctx, tx, []*types.Question{question}); err != nil {
			return fmt.Errorf("create question: %w", err)
		}
		if err := qs.unitRepo.AddQuestionID(ctx, tx, unitID, question.ID, false); err != nil {
			return fmt.Errorf("register question on unit: %w", err)
		}
		if err := qs.courseRepo.Increment(ctx, tx, courseID, "num_questions", 1); err != nil {
			return fmt.Errorf("increment num_questions: %w", err)
		}
		return qs.touchCourse(ctx, tx, courseID)
	})
	if err != nil {
		qs.abortSaga(ctx, sagaID)
		return nil, err
	}
	qs.finishSaga(ctx, sagaID)
	qs.invalidateUnitDocs(ctx, unit)
	return question, nil
}

func (qs *questionService) EditDraft(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID, input QuestionInput) (*types.QuestionDraft, error) {
	if err := validateQuestionInput(input); err != nil {
		return nil, err
	}
	unit, err := qs.ownedUnit(ctx, userID, courseID, unitID)
	if err != nil {
		return nil, err
	}

	drafts, err := qs.draftRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if len(drafts) == 0 {
		return nil, apierr.New(http.StatusNotFound, "question_not_found", fmt.Errorf("draft %s not found", questionID))
	}
	draft := drafts[0]

	// unitID in the path is where the draft should live after the edit;
	// a mismatch with the stored row is a reassignment.
	var sourceUnit *types.Unit
	if draft.UnitID != unitID || draft.CourseID != courseID {
		sourceUnit, err = qs.ownedUnit(ctx, userID, draft.CourseID, draft.UnitID)
		if err != nil {
			return nil, err
		}
	}

	sagaID, err := qs.saga.CreateSaga(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create saga: %w", err)
	}

	hints, err := qs.resolveHints(ctx, sagaID, input.Hints)
	if err != nil {
		qs.abortSaga(ctx, sagaID)
		return nil, err
	}

	err = qs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := qs.appendOrphanedImageDeletes(ctx, tx, sagaID, draft.Hints, hints); err != nil {
			return err
		}
		fields := map[string]interface{}{
			"question": strings.TrimSpace(input.Text),
			"hints":    datatypes.NewJSONSlice(hints),
			"answers":  datatypes.NewJSONSlice(input.Answers),
		}
		if sourceUnit != nil {
			fields["course_id"] = courseID
			fields["unit_id"] = unitID
		}
		if err := qs.draftRepo.UpdateFields(ctx, tx, questionID, fields); err != nil {
			return fmt.Errorf("update draft: %w", err)
		}
		if sourceUnit != nil {
			if err := qs.unitRepo.RemoveQuestionID(ctx, tx, sourceUnit.ID, questionID, true); err != nil {
				return fmt.Errorf("unregister draft on old unit: %w", err)
			}
			if err := qs.unitRepo.AddQuestionID(ctx, tx, unitID, questionID, true); err != nil {
				return fmt.Errorf("register draft on new unit: %w", err)
			}
			if sourceUnit.CourseID != courseID {
				if err := qs.touchCourse(ctx, tx, sourceUnit.CourseID); err != nil {
					return err
				}
			}
		}
		return qs.touchCourse(ctx, tx, courseID)
	})
	if err != nil {
		qs.abortSaga(ctx, sagaID)
		return nil, err
	}
	qs.finishSaga(ctx, sagaID)
	qs.invalidateUnitDocs(ctx, unit)
	if sourceUnit != nil {
		qs.invalidateUnitDocs(ctx, sourceUnit)
	}

	drafts, err = qs.draftRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
	if err != nil || len(drafts) == 0 {
		return nil, fmt.Errorf("reload draft: %w", err)
	}
	return drafts[0], nil
}

func (qs *questionService) EditQuestion(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID, input QuestionInput) (*types.Question, error) {
	if err := validateQuestionInput(input); err != nil {
		return nil, err
	}
	unit, err := qs.ownedUnit(ctx, userID, courseID, unitID)
	if err != nil {
		return nil, err
	}

	questions, err := qs.questionRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	if len(questions) == 0 {
		return nil, apierr.New(http.StatusNotFound, "question_not_found", fmt.Errorf("question %s not found", questionID))
	}
	question := questions[0]

	// A published question carried to another unit also moves its slot in
	// num_questions when the course changes.
	var sourceUnit *types.Unit
	if question.UnitID != unitID || question.CourseID != courseID {
		sourceUnit, err = qs.ownedUnit(ctx, userID, question.CourseID, question.UnitID)
		if err != nil {
			return nil, err
		}
	}

	sagaID, err := qs.saga.CreateSaga(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create saga: %w", err)
	}

	hints, err := qs.resolveHints(ctx, sagaID, input.Hints)
	if err != nil {
		qs.abortSaga(ctx, sagaID)
		return nil, err
	}

	err = qs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := qs.appendOrphanedImageDeletes(ctx, tx, sagaID, question.Hints, hints); err != nil {
			return err
		}
		fields := map[string]interface{}{
			"question": strings.TrimSpace(input.Text),
			"hints":    datatypes.NewJSONSlice(hints),
			"answers":  datatypes.NewJSONSlice(input.Answers),
		}
		if sourceUnit != nil {
			fields["course_id"] = courseID
			fields["unit_id"] = unitID
		}
		if err := qs.questionRepo.UpdateFields(ctx, tx, questionID, fields); err != nil {
			return fmt.Errorf("update question: %w", err)
		}
		if sourceUnit != nil {
			if err := qs.unitRepo.RemoveQuestionID(ctx, tx, sourceUnit.ID, questionID, false); err != nil {
				return fmt.Errorf("unregister question on old unit: %w", err)
			}
			if err := qs.unitRepo.AddQuestionID(ctx, tx, unitID, questionID, false); err != nil {
				return fmt.Errorf("register question on new unit: %w", err)
			}
			if sourceUnit.CourseID != courseID {
				if _, err := qs.courseRepo.DecrementFloor(ctx, tx, sourceUnit.CourseID, "num_questions"); err != nil {
					return fmt.Errorf("decrement num_questions: %w", err)
				}
				if err := qs.courseRepo.Increment(ctx, tx, courseID, "num_questions", 1); err != nil {
					return fmt.Errorf("increment num_questions: %w", err)
				}
				if err := qs.touchCourse(ctx, tx, sourceUnit.CourseID); err != nil {
					return err
				}
			}
		}
		return qs.touchCourse(ctx, tx, courseID)
	})
	if err != nil {
		qs.abortSaga(ctx, sagaID)
		return nil, err
	}
	qs.finishSaga(ctx, sagaID)
	qs.invalidateUnitDocs(ctx, unit)
	if sourceUnit != nil {
		qs.invalidateUnitDocs(ctx, sourceUnit)
	}

	questions, err = qs.questionRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
	if err != nil || len(questions) == 0 {
		return nil, fmt.Errorf("reload question: %w", err)
	}
	return questions[0], nil
}

func (qs *questionService) Promote(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID) (*types.Question, error) {
	unit, err := qs.ownedUnit(ctx, userID, courseID, unitID)
	if err != nil {
		return nil, err
	}

	drafts, err := qs.draftRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if len(drafts) == 0 {
		return nil, apierr.New(http.StatusNotFound, "question_not_found", fmt.Errorf("draft %s not found", questionID))
	}
	published := drafts[0].PublishedCopy()

	err = qs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := qs.questionRepo.Create(ctx, tx, []*types.Question{published}); err != nil {
			return fmt.Errorf("publish question: %w", err)
		}
		if err := qs.draftRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{questionID}); err != nil {
			return fmt.Errorf("remove draft: %w", err)
		}
		if err := qs.unitRepo.MoveQuestionID(ctx, tx, unitID, questionID, false); err != nil {
			return fmt.Errorf("swap unit arrays: %w", err)
		}
		if err := qs.courseRepo.Increment(ctx, tx, courseID, "num_questions", 1); err != nil {
			return fmt.Errorf("increment num_questions: %w", err)
		}
		return qs.touchCourse(ctx, tx, courseID)
	})
	if err != nil {
		return nil, err
	}
	qs.invalidateUnitDocs(ctx, unit)
	return published, nil
}

func (qs *questionService) Demote(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID) (*types.QuestionDraft, error) {
	unit, err := qs.ownedUnit(ctx, userID, courseID, unitID)
	if err != nil {
		return nil, err
	}

	questions, err := qs.questionRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	if len(questions) == 0 {
		return nil, apierr.New(http.StatusNotFound, "question_not_found", fmt.Errorf("question %s not found", questionID))
	}
	draft := questions[0].DraftCopy()

	err = qs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := qs.draftRepo.Create(ctx, tx, []*types.QuestionDraft{draft}); err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
		if err := qs.questionRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{questionID}); err != nil {
			return fmt.Errorf("remove question: %w", err)
		}
		if err := qs.unitRepo.MoveQuestionID(ctx, tx, unitID, questionID, true); err != nil {
			return fmt.Errorf("swap unit arrays: %w", err)
		}
		if _, err := qs.courseRepo.DecrementFloor(ctx, tx, courseID, "num_questions"); err != nil {
			return fmt.Errorf("decrement num_questions: %w", err)
		}
		return qs.touchCourse(ctx, tx, courseID)
	})
	if err != nil {
		return nil, err
	}
	qs.invalidateUnitDocs(ctx, unit)
	return draft, nil
}

func (qs *questionService) DeleteQuestion(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID) error {
	return qs.deleteOne(ctx, userID, courseID, unitID, questionID, false)
}

func (qs *questionService) DeleteDraft(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID) error {
	return qs.deleteOne(ctx, userID, courseID, unitID, questionID, true)
}

func (qs *questionService) deleteOne(ctx context.Context, userID, courseID, unitID, questionID uuid.UUID, draft bool) error {
	unit, err := qs.ownedUnit(ctx, userID, courseID, unitID)
	if err != nil {
		return err
	}

	var hints []types.Hint
	if draft {
		rows, err := qs.draftRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
		if err != nil {
			return fmt.Errorf("load draft: %w", err)
		}
		if len(rows) == 0 {
			return apierr.New(http.StatusNotFound, "question_not_found", fmt.Errorf("draft %s not found", questionID))
		}
		hints = rows[0].Hints
	} else {
		rows, err := qs.questionRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
		if err != nil {
			return fmt.Errorf("load question: %w", err)
		}
		if len(rows) == 0 {
			return apierr.New(http.StatusNotFound, "question_not_found", fmt.Errorf("question %s not found", questionID))
		}
		hints = rows[0].Hints
	}

	sagaID, err := qs.saga.CreateSaga(ctx, userID)
	if err != nil {
		return fmt.Errorf("create saga: %w", err)
	}

	err = qs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, h := range hints {
			if h.Image != "" {
				if err := qs.saga.AppendDeleteOnCommit(ctx, tx, sagaID, h.Image); err != nil {
					return fmt.Errorf("record hint image delete: %w", err)
				}
			}
		}
		if draft {
			if err := qs.draftRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{questionID}); err != nil {
				return fmt.Errorf("delete draft: %w", err)
			}
		} else {
			if err := qs.questionRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{questionID}); err != nil {
				return fmt.Errorf("delete question: %w", err)
			}
			if _, err := qs.courseRepo.DecrementFloor(ctx, tx, courseID, "num_questions"); err != nil {
				return fmt.Errorf("decrement num_questions: %w", err)
			}
		}
		if err := qs.unitRepo.RemoveQuestionID(ctx, tx, unitID, questionID, draft); err != nil {
			return fmt.Errorf("unregister question on unit: %w", err)
		}
		return qs.touchCourse(ctx, tx, courseID)
	})
	if err != nil {
		qs.abortSaga(ctx, sagaID)
		return err
	}
	qs.finishSaga(ctx, sagaID)
	qs.invalidateUnitDocs(ctx, unit)
	return nil
}

func (qs *questionService) GetQuestion(ctx context.Context, questionID uuid.UUID) (*types.Question, error) {
	questions, err := qs.questionRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	if len(questions) == 0 {
		return nil, apierr.New(http.StatusNotFound, "question_not_found", fmt.Errorf("question %s not found", questionID))
	}
	return questions[0], nil
}

func (qs *questionService) QuestionsForCourseUnit(ctx context.Context, courseID, unitID uuid.UUID) ([]*types.Question, error) {
	var ids []uuid.UUID
	if unitID != uuid.Nil {
		units, err := qs.unitRepo.GetByIDs(ctx, nil, []uuid.UUID{unitID})
		if err != nil {
			return nil, fmt.Errorf("load unit: %w", err)
		}
		if len(units) == 0 || units[0].CourseID != courseID {
			return nil, apierr.New(http.StatusNotFound, "unit_not_found", fmt.Errorf("unit %s not found in course %s", unitID, courseID))
		}
		ids = units[0].Questions
	} else {
		units, err := qs.unitRepo.ListByCourseID(ctx, nil, courseID)
		if err != nil {
			return nil, fmt.Errorf("list units: %w", err)
		}
		for _, u := range units {
			ids = append(ids, u.Questions...)
		}
	}
	return qs.questionRepo.GetByIDs(ctx, nil, ids)
}

func (qs *questionService) GetDraft(ctx context.Context, userID, questionID uuid.UUID) (*types.QuestionDraft, error) {
	drafts, err := qs.draftRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if len(drafts) == 0 {
		return nil, apierr.New(http.StatusNotFound, "question_not_found", fmt.Errorf("draft %s not found", questionID))
	}
	if _, err := qs.ownedCourse(ctx, userID, drafts[0].CourseID); err != nil {
		return nil, err
	}
	return drafts[0], nil
}

// DraftsForCourseUnit resolves the draft questions of one unit, or of the
// whole course when unitID is uuid.Nil.
func (qs *questionService) DraftsForCourseUnit(ctx context.Context, userID, courseID, unitID uuid.UUID) ([]*types.QuestionDraft, error) {
	if _, err := qs.ownedCourse(ctx, userID, courseID); err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	if unitID != uuid.Nil {
		units, err := qs.unitRepo.GetByIDs(ctx, nil, []uuid.UUID{unitID})
		if err != nil {
			return nil, fmt.Errorf("load unit: %w", err)
		}
		if len(units) == 0 || units[0].CourseID != courseID {
			return nil, apierr.New(http.StatusNotFound, "unit_not_found", fmt.Errorf("unit %s not found in course %s", unitID, courseID))
		}
		ids = units[0].QuestionDrafts
	} else {
		units, err := qs.unitRepo.ListByCourseID(ctx, nil, courseID)
		if err != nil {
			return nil, fmt.Errorf("list units: %w", err)
		}
		for _, u := range units {
			ids = append(ids, u.QuestionDrafts...)
		}
	}
	return qs.draftRepo.GetByIDs(ctx, nil, ids)
}

// resolveHints uploads new hint images and returns the final hint list.
// Fresh uploads are registered on the saga for compensation.
func (qs *questionService) resolveHints(ctx context.Context, sagaID uuid.UUID, inputs []HintInput) ([]types.Hint, error) {
	hints := make([]types.Hint, 0, len(inputs))
	for _, in := range inputs {
		image := strings.TrimSpace(in.ImageURL)
		if in.NewImage != nil {
			url, err := qs.bucket.Upload(ctx, gcp.BucketCategoryHintImage, in.NewImage.Filename, in.NewImage.Reader)
			if err != nil {
				return nil, fmt.Errorf("upload hint image: %w", err)
			}
			if err := qs.saga.AppendDeleteOnAbort(ctx, sagaID, url); err != nil {
				return nil, fmt.Errorf("record hint image upload: %w", err)
			}
			image = url
		}
		hints = append(hints, types.Hint{
			Key:     in.Key,
			Title:   strings.TrimSpace(in.Title),
			Content: strings.TrimSpace(in.Content),
			Image:   image,
		})
	}
	return hints, nil
}

// appendOrphanedImageDeletes schedules post-commit deletes for images
// the edit no longer references.
func (qs *questionService) appendOrphanedImageDeletes(ctx context.Context, tx *gorm.DB, sagaID uuid.UUID, old, next []types.Hint) error {
	kept := make(map[string]struct{}, len(next))
	for _, h := range next {
		if h.Image != "" {
			kept[h.Image] = struct{}{}
		}
	}
	for _, h := range old {
		if h.Image == "" {
			continue
		}
		if _, ok := kept[h.Image]; ok {
			continue
		}
		if err := qs.saga.AppendDeleteOnCommit(ctx, tx, sagaID, h.Image); err != nil {
			return fmt.Errorf("record orphaned hint image: %w", err)
		}
	}
	return nil
}

func (qs *questionService) ownedCourse(ctx context.Context, userID, courseID uuid.UUID) (*types.Course, error) {
	courses, err := qs.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{courseID})
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if len(courses) == 0 {
		return nil, apierr.New(http.StatusNotFound, "course_not_found", fmt.Errorf("course %s not found", courseID))
	}
	if courses[0].CreatorID != userID {
		return nil, apierr.New(http.StatusForbidden, "not_course_owner", fmt.Errorf("user does not own course"))
	}
	return courses[0], nil
}

func (qs *questionService) ownedUnit(ctx context.Context, userID, courseID, unitID uuid.UUID) (*types.Unit, error) {
	if _, err := qs.ownedCourse(ctx, userID, courseID); err != nil {
		return nil, err
	}

	units, err := qs.unitRepo.GetByIDs(ctx, nil, []uuid.UUID{unitID})
	if err != nil {
		return nil, fmt.Errorf("load unit: %w", err)
	}
	if len(units) == 0 || units[0].CourseID != courseID {
		return nil, apierr.New(http.StatusNotFound, "unit_not_found", fmt.Errorf("unit %s not found in course %s", unitID, courseID))
	}
	return units[0], nil
}

func (qs *questionService) touchCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) error {
	return qs.courseRepo.UpdateFields(ctx, tx, courseID, map[string]interface{}{
		"last_modified": time.Now().UTC(),
	})
}

func (qs *questionService) invalidateUnitDocs(ctx context.Context, unit *types.Unit) {
	if err := qs.cache.InvalidateUnit(ctx, unit.CourseID, unit.ID); err != nil {
		qs.log.Warn("invalidate unit cache failed", "unit_id", unit.ID.String(), "error", err)
	}
	if err := qs.cache.InvalidateCourse(ctx, unit.CourseID); err != nil {
		qs.log.Warn("invalidate course cache failed", "course_id", unit.CourseID.String(), "error", err)
	}
}

func (qs *questionService) classifyTags(ctx context.Context, text string) []string {
	if qs.classifier == nil || strings.TrimSpace(text) == "" {
		return []string{}
	}
	tags, err := qs.classifier.ClassifyTags(ctx, text)
	if err != nil {
		qs.log.Warn("tag classification failed", "error", err)
		return []string{}
	}
	return tags
}

func (qs *questionService) abortSaga(ctx context.Context, sagaID uuid.UUID) {
	if err := qs.saga.Abort(ctx, sagaID); err != nil {
		qs.log.Warn("saga abort failed", "saga_id", sagaID.String(), "error", err)
	}
}

func (qs *questionService) finishSaga(ctx context.Context, sagaID uuid.UUID) {
	if err := qs.saga.Finish(ctx, sagaID); err != nil {
		qs.log.Warn("saga finish failed", "saga_id", sagaID.String(), "error", err)
	}
}

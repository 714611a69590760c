package study

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/studybits/studybits-backend/internal/clients/similarity"
	"github.com/studybits/studybits-backend/internal/data/repos"
	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/apierr"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

// BatchCourse is one similar-course match resolved for the client: the
// course document, the names the similarity service matched on, and the
// match's question ids resolved to full questions. Dangling question
// ids are dropped.
type BatchCourse struct {
	Course     *types.Course     `json:"course"`
	CourseName string            `json:"course_name"`
	UnitName   string            `json:"unit_name"`
	Questions  []*types.Question `json:"questions"`
}

// Batch is one study round delivered to the client: the combo that was
// rotated to and the similar courses resolved into full documents.
// CycleComplete marks the boundary between passes; the batch carrying
// it is otherwise empty and the next call starts a fresh shuffle.
type Batch struct {
	Combo          Combo         `json:"combo"`
	SimilarCourses []BatchCourse `json:"similar_courses"`
	CycleComplete  bool          `json:"cycle_complete"`
}

// SessionRegistry keeps one live rotation selector per learner. State
// is process-local: a restart simply means the next request builds a
// fresh selector from learning records.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Selector

	log          *logger.Logger
	learningRepo repos.LearningRecordRepo
	courseRepo   repos.CourseRepo
	questionRepo repos.QuestionRepo
	checker      ExistenceChecker
	simAPI       SimilarityAPI
}

func NewSessionRegistry(
	baseLog *logger.Logger,
	learningRepo repos.LearningRecordRepo,
	courseRepo repos.CourseRepo,
	questionRepo repos.QuestionRepo,
	checker ExistenceChecker,
	simAPI SimilarityAPI,
) *SessionRegistry {
	return &SessionRegistry{
		sessions:     map[uuid.UUID]*Selector{},
		log:          baseLog.With("component", "SessionRegistry"),
		learningRepo: learningRepo,
		courseRepo:   courseRepo,
		questionRepo: questionRepo,
		checker:      checker,
		simAPI:       simAPI,
	}
}

// Start builds a fresh selector from the learner's current records,
// replacing any existing session. Returns the combo count of the new
// rotation.
func (r *SessionRegistry) Start(ctx context.Context, userID uuid.UUID) (int, error) {
	selector, err := r.build(ctx, userID)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.sessions[userID] = selector
	r.mu.Unlock()

	return len(selector.Combos()), nil
}

// Reset reshuffles the learner's current rotation without rebuilding it
// from records. A missing session is built first.
func (r *SessionRegistry) Reset(ctx context.Context, userID uuid.UUID) (int, error) {
	selector, err := r.sessionFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	selector.Reset()
	return selector.Remaining(), nil
}

// End drops the learner's session if one exists.
func (r *SessionRegistry) End(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, userID)
	r.mu.Unlock()
}

// NextBatch advances the learner's rotation one step. A session is
// created on demand. When the pass runs out the selector is reshuffled
// and the returned batch carries CycleComplete instead of courses.
func (r *SessionRegistry) NextBatch(ctx context.Context, userID uuid.UUID) (*Batch, error) {
	selector, err := r.sessionFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	result, err := selector.FetchNext(ctx)
	if err != nil {
		switch {
		case errors.Is(err, ErrExhausted):
			selector.Reset()
			return &Batch{CycleComplete: true}, nil
		case errors.Is(err, ErrNoCombinations):
			return nil, apierr.New(http.StatusNotFound, "no_combinations", fmt.Errorf("no courses to study"))
		default:
			return nil, err
		}
	}

	courses, err := r.resolveMatches(ctx, result.Matches)
	if err != nil {
		return nil, err
	}
	return &Batch{Combo: result.Combo, SimilarCourses: courses}, nil
}

// PickCombo runs a one-off lookup for an explicit combo without moving
// the learner's rotation.
func (r *SessionRegistry) PickCombo(ctx context.Context, userID, courseID, unitID uuid.UUID) (*Batch, error) {
	selector, err := r.sessionFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	matches, err := selector.FetchWithIDs(ctx, courseID, unitID)
	if err != nil {
		if errors.Is(err, ErrNoCombinations) {
			return nil, apierr.New(http.StatusNotFound, "combo_not_found", fmt.Errorf("course or unit no longer exists"))
		}
		return nil, err
	}

	courses, err := r.resolveMatches(ctx, matches)
	if err != nil {
		return nil, err
	}
	return &Batch{Combo: Combo{CourseID: courseID, UnitID: unitID}, SimilarCourses: courses}, nil
}

func (r *SessionRegistry) sessionFor(ctx context.Context, userID uuid.UUID) (*Selector, error) {
	r.mu.Lock()
	selector, ok := r.sessions[userID]
	r.mu.Unlock()
	if ok {
		return selector, nil
	}

	selector, err := r.build(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[userID] = selector
	r.mu.Unlock()
	return selector, nil
}

func (r *SessionRegistry) build(ctx context.Context, userID uuid.UUID) (*Selector, error) {
	records, err := r.learningRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load learning records: %w", err)
	}
	return NewSelector(userID, records, r.checker, r.simAPI, r.log), nil
}

// resolveMatches loads the course document and question payload for
// each match in parallel, preserving the similarity service's ranking.
// Matches whose course no longer resolves are dropped, as are any
// dangling question ids within a match.
func (r *SessionRegistry) resolveMatches(ctx context.Context, matches []similarity.CourseMatch) ([]BatchCourse, error) {
	resolved := make([]*BatchCourse, len(matches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, match := range matches {
		i, match := i, match
		g.Go(func() error {
			courses, err := r.courseRepo.GetByIDs(gctx, nil, []uuid.UUID{match.CourseID})
			if err != nil {
				return err
			}
			if len(courses) != 1 {
				return nil
			}
			entry := &BatchCourse{
				Course:     courses[0],
				CourseName: match.CourseName,
				UnitName:   match.UnitName,
				Questions:  []*types.Question{},
			}
			if len(match.QuestionIDs) > 0 {
				questions, err := r.questionRepo.GetByIDs(gctx, nil, match.QuestionIDs)
				if err != nil {
					return err
				}
				entry.Questions = questions
			}
			resolved[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]BatchCourse, 0, len(resolved))
	for _, c := range resolved {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

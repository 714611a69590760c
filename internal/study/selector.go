package study

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/clients/similarity"
	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

var (
	// ErrNoCombinations means the learner has nothing to rotate over:
	// no learning records produced a single combo.
	ErrNoCombinations = errors.New("study: no combinations")

	// ErrExhausted means every combo in the current pass has been
	// served. The caller decides when to Reset.
	ErrExhausted = errors.New("study: rotation exhausted")
)

// Combo is one stop in the rotation: a course, optionally narrowed to a
// unit. UnitID == uuid.Nil means the whole course.
type Combo struct {
	CourseID uuid.UUID `json:"course_id"`
	UnitID   uuid.UUID `json:"unit_id"`
}

// ExistenceChecker guards against combos whose course or unit was
// deleted after the selector snapshot was taken.
type ExistenceChecker interface {
	CourseExists(ctx context.Context, courseID uuid.UUID) (bool, error)
	UnitExists(ctx context.Context, courseID, unitID uuid.UUID) (bool, error)
}

// SimilarityAPI produces similar-course matches for a combo. An empty
// slice with a nil error is a valid "nothing found" answer.
type SimilarityAPI interface {
	FindSimilarCourses(ctx context.Context, userID, courseID, unitID uuid.UUID) ([]similarity.CourseMatch, error)
}

// Selector cycles through a learner's course/unit combos, asking the
// similarity service for recommendations at each stop. The combo list
// is a snapshot taken at construction; records added later appear on
// the next selector. All methods are safe for concurrent use.
type Selector struct {
	mu        sync.Mutex
	userID    uuid.UUID
	combos    []Combo
	index     int
	lastCombo *Combo

	checker ExistenceChecker
	simAPI  SimilarityAPI
	rng     *rand.Rand
	log     *logger.Logger
}

// buildCombos expands learning records into the rotation list. A record
// focused on units yields one combo per studying unit; a record without
// unit focus yields the whole-course combo. A record focused on units
// with none selected yields nothing.
func buildCombos(records []*types.LearningRecord) []Combo {
	var combos []Combo
	for _, record := range records {
		if record.UseUnits {
			for _, unitID := range record.StudyingUnits {
				combos = append(combos, Combo{CourseID: record.CourseID, UnitID: unitID})
			}
			continue
		}
		combos = append(combos, Combo{CourseID: record.CourseID})
	}
	return combos
}

func NewSelector(
	userID uuid.UUID,
	records []*types.LearningRecord,
	checker ExistenceChecker,
	simAPI SimilarityAPI,
	baseLog *logger.Logger,
) *Selector {
	s := &Selector{
		userID:  userID,
		combos:  buildCombos(records),
		checker: checker,
		simAPI:  simAPI,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     baseLog.With("component", "Selector"),
	}
	s.shuffleLocked()
	return s
}

// Result is what one rotation step produced.
type Result struct {
	Combo   Combo
	Matches []similarity.CourseMatch
}

// FetchNext serves the next combo and its similar-course matches. Combos
// whose course or unit has disappeared, and combos whose similarity
// lookup fails or comes back empty, are consumed and skipped; the pass
// never replays a combo. Returns ErrExhausted once the pass is over and
// ErrNoCombinations when there was never anything to serve.
func (s *Selector) FetchNext(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.combos) == 0 {
		return nil, ErrNoCombinations
	}

	for s.index < len(s.combos) {
		combo := s.combos[s.index]
		s.index++
		s.lastCombo = &combo

		ok, err := s.comboAlive(ctx, combo)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		matches, err := s.simAPI.FindSimilarCourses(ctx, s.userID, combo.CourseID, combo.UnitID)
		if err != nil {
			s.log.Warn("similarity lookup failed, skipping combo",
				"course_id", combo.CourseID.String(),
				"unit_id", combo.UnitID.String(),
				"error", err,
			)
			continue
		}
		if len(matches) == 0 {
			continue
		}

		return &Result{Combo: combo, Matches: matches}, nil
	}

	return nil, ErrExhausted
}

// FetchWithIDs runs a one-off similarity lookup for an explicit combo
// without touching rotation state.
func (s *Selector) FetchWithIDs(ctx context.Context, courseID, unitID uuid.UUID) ([]similarity.CourseMatch, error) {
	combo := Combo{CourseID: courseID, UnitID: unitID}
	ok, err := s.comboAlive(ctx, combo)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoCombinations
	}
	return s.simAPI.FindSimilarCourses(ctx, s.userID, courseID, unitID)
}

// Reset reshuffles the combos and starts a new pass. When the shuffle
// would replay the last served combo first, the head is swapped with
// the second entry so consecutive passes never repeat a stop
// back to back.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuffleLocked()
	s.index = 0
}

// Remaining reports how many combos the current pass has left.
func (s *Selector) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.combos) - s.index
}

// Combos returns a copy of the snapshot, for introspection endpoints.
func (s *Selector) Combos() []Combo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Combo, len(s.combos))
	copy(out, s.combos)
	return out
}

func (s *Selector) shuffleLocked() {
	s.rng.Shuffle(len(s.combos), func(i, j int) {
		s.combos[i], s.combos[j] = s.combos[j], s.combos[i]
	})
	if s.lastCombo != nil && len(s.combos) >= 2 && s.combos[0] == *s.lastCombo {
		s.combos[0], s.combos[1] = s.combos[1], s.combos[0]
	}
}

func (s *Selector) comboAlive(ctx context.Context, combo Combo) (bool, error) {
	ok, err := s.checker.CourseExists(ctx, combo.CourseID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if combo.UnitID == uuid.Nil {
		return true, nil
	}
	return s.checker.UnitExists(ctx, combo.CourseID, combo.UnitID)
}

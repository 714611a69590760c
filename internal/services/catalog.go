package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/studybits/studybits-backend/internal/clients/gcp"
	"github.com/studybits/studybits-backend/internal/clients/redis"
	"github.com/studybits/studybits-backend/internal/clients/similarity"
	"github.com/studybits/studybits-backend/internal/data/repos"
	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/apierr"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

type CourseInput struct {
	Name        string
	Description string
	Pic         *ImageUpload
}

type CourseUpdate struct {
	Name        *string
	Description *string
	Pic         *ImageUpload
}

type UnitInput struct {
	Name        string
	Description string
	Position    int
}

type UnitUpdate struct {
	Name        *string
	Description *string
	Position    *int
}

// SearchResult pairs a course with its relevance score for one query.
type SearchResult struct {
	Course *types.Course `json:"course"`
	Score  int           `json:"score"`
}

type CatalogService interface {
	CreateCourse(ctx context.Context, userID uuid.UUID, input CourseInput) (*types.Course, error)
	GetCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error)
	UpdateCourse(ctx context.Context, userID, courseID uuid.UUID, update CourseUpdate) (*types.Course, error)
	// DeleteCourse removes a course nobody depends on. A course with
	// active learners is handed to the archive owner instead so their
	// learning records stay resolvable.
	DeleteCourse(ctx context.Context, userID, courseID uuid.UUID) error

	CreateUnit(ctx context.Context, userID, courseID uuid.UUID, input UnitInput) (*types.Unit, error)
	GetUnit(ctx context.Context, courseID, unitID uuid.UUID) (*types.Unit, error)
	ListUnits(ctx context.Context, courseID uuid.UUID) ([]*types.Unit, error)
	UpdateUnit(ctx context.Context, userID, courseID, unitID uuid.UUID, update UnitUpdate) (*types.Unit, error)
	DeleteUnit(ctx context.Context, userID, courseID, unitID uuid.UUID) error

	SearchCourses(ctx context.Context, query string) ([]SearchResult, error)
	// PrimeChannelCache warms the document cache with every course and
	// unit a channel owns.
	PrimeChannelCache(ctx context.Context, userID uuid.UUID) error
}

type catalogService struct {
	db            *gorm.DB
	log           *logger.Logger
	courseRepo    repos.CourseRepo
	unitRepo      repos.UnitRepo
	questionRepo  repos.QuestionRepo
	draftRepo     repos.QuestionDraftRepo
	channelRepo   repos.ChannelRepo
	cache         redis.DocumentCache
	bucket        gcp.BucketService
	saga          SagaService
	classifier    similarity.Client
	archiveUserID uuid.UUID
}

func NewCatalogService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	unitRepo repos.UnitRepo,
	questionRepo repos.QuestionRepo,
	draftRepo repos.QuestionDraftRepo,
	channelRepo repos.ChannelRepo,
	cache redis.DocumentCache,
	bucket gcp.BucketService,
	saga SagaService,
	classifier similarity.Client,
	archiveUserID uuid.UUID,
) CatalogService {
	return &catalogService{
		db:            db,
		log:           baseLog.With("service", "CatalogService"),
		courseRepo:    courseRepo,
		unitRepo:      unitRepo,
		questionRepo:  questionRepo,
		draftRepo:     draftRepo,
		channelRepo:   channelRepo,
		cache:         cache,
		bucket:        bucket,
		saga:          saga,
		classifier:    classifier,
		archiveUserID: archiveUserID,
	}
}

func (cs *catalogService) CreateCourse(ctx context.Context, userID uuid.UUID, input CourseInput) (*types.Course, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_course_name", fmt.Errorf("course name required"))
	}

	sagaID, err := cs.saga.CreateSaga(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create saga: %w", err)
	}

	picURL := ""
	if input.Pic != nil {
		picURL, err = cs.bucket.Upload(ctx, gcp.BucketCategoryCoursePic, input.Pic.Filename, input.Pic.Reader)
		if err != nil {
			cs.abortSaga(ctx, sagaID)
			return nil, fmt.Errorf("upload course pic: %w", err)
		}
		if err := cs.saga.AppendDeleteOnAbort(ctx, sagaID, picURL); err != nil {
			cs.abortSaga(ctx, sagaID)
			return nil, fmt.Errorf("record course pic upload: %w", err)
		}
	}

	tags := cs.classifyTags(ctx, name+"\n"+strings.TrimSpace(input.Description))

	course := &types.Course{
		ID:           uuid.New(),
		CreatorID:    userID,
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		PicURL:       picURL,
		Tags:         tags,
		LastModified: time.Now().UTC(),
	}
	err = cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := cs.courseRepo.Create(ctx, tx, []*types.Course{course}); err != nil {
			return fmt.Errorf("create course: %w", err)
		}
		return cs.channelRepo.AttachCourse(ctx, tx, userID, course.ID)
	})
	if err != nil {
		cs.abortSaga(ctx, sagaID)
		return nil, err
	}
	cs.finishSaga(ctx, sagaID)

	if err := cs.cache.SetCourse(ctx, course); err != nil {
		cs.log.Warn("prime course cache failed", "course_id", course.ID.String(), "error", err)
	}
	return course, nil
}

func (cs *catalogService) GetCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	if course, err := cs.cache.GetCourse(ctx, courseID); err == nil {
		return course, nil
	}

	courses, err := cs.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{courseID})
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if len(courses) == 0 {
		return nil, apierr.New(http.StatusNotFound, "course_not_found", fmt.Errorf("course %s not found", courseID))
	}
	if err := cs.cache.SetCourse(ctx, courses[0]); err != nil {
		cs.log.Warn("prime course cache failed", "course_id", courseID.String(), "error", err)
	}
	return courses[0], nil
}

func (cs *catalogService) UpdateCourse(ctx context.Context, userID, courseID uuid.UUID, update CourseUpdate) (*types.Course, error) {
	course, err := cs.ownedCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	sagaID, err := cs.saga.CreateSaga(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create saga: %w", err)
	}

	fields := map[string]interface{}{}
	oldPicURL := ""
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apierr.New(http.StatusBadRequest, "missing_course_name", fmt.Errorf("course name required"))
		}
		fields["name"] = name
	}
	if update.Description != nil {
		fields["description"] = strings.TrimSpace(*update.Description)
	}
	if update.Pic != nil {
		url, err := cs.bucket.Upload(ctx, gcp.BucketCategoryCoursePic, update.Pic.Filename, update.Pic.Reader)
		if err != nil {
			cs.abortSaga(ctx, sagaID)
			return nil, fmt.Errorf("upload course pic: %w", err)
		}
		if err := cs.saga.AppendDeleteOnAbort(ctx, sagaID, url); err != nil {
			cs.abortSaga(ctx, sagaID)
			return nil, fmt.Errorf("record course pic upload: %w", err)
		}
		fields["pic_url"] = url
		oldPicURL = course.PicURL
	}

	if len(fields) == 0 {
		return course, nil
	}
	fields["last_modified"] = time.Now().UTC()

	err = cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if oldPicURL != "" {
			if err := cs.saga.AppendDeleteOnCommit(ctx, tx, sagaID, oldPicURL); err != nil {
				return fmt.Errorf("record replaced pic: %w", err)
			}
		}
		return cs.courseRepo.UpdateFields(ctx, tx, courseID, fields)
	})
	if err != nil {
		cs.abortSaga(ctx, sagaID)
		return nil, err
	}
	cs.finishSaga(ctx, sagaID)

	if err := cs.cache.InvalidateCourse(ctx, courseID); err != nil {
		cs.log.Warn("invalidate course cache failed", "course_id", courseID.String(), "error", err)
	}
	return cs.GetCourse(ctx, courseID)
}

func (cs *catalogService) DeleteCourse(ctx context.Context, userID, courseID uuid.UUID) error {
	course, err := cs.ownedCourse(ctx, userID, courseID)
	if err != nil {
		return err
	}

	// Learners still hold records against this course: hand it to the
	// archive owner instead of removing it.
	if course.Dependency > 0 {
		err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := cs.courseRepo.UpdateFields(ctx, tx, courseID, map[string]interface{}{
				"creator_id":    cs.archiveUserID,
				"last_modified": time.Now().UTC(),
			}); err != nil {
				return fmt.Errorf("reassign course: %w", err)
			}
			if err := cs.channelRepo.DetachCourse(ctx, tx, userID, courseID); err != nil {
				return fmt.Errorf("detach course: %w", err)
			}
			return cs.channelRepo.AttachCourse(ctx, tx, cs.archiveUserID, courseID)
		})
		if err != nil {
			return err
		}
		return cs.invalidateCourseDocs(ctx, courseID)
	}

	units, err := cs.unitRepo.ListByCourseID(ctx, nil, courseID)
	if err != nil {
		return fmt.Errorf("load units: %w", err)
	}

	sagaID, err := cs.saga.CreateSaga(ctx, userID)
	if err != nil {
		return fmt.Errorf("create saga: %w", err)
	}

	err = cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, unit := range units {
			questionIDs := append([]uuid.UUID{}, unit.Questions...)
			draftIDs := append([]uuid.UUID{}, unit.QuestionDrafts...)

			// Hint images go with their questions once the delete commits.
			urls, err := collectHintImageURLs(ctx, tx, cs.questionRepo, cs.draftRepo, questionIDs, draftIDs)
			if err != nil {
				return err
			}
			for _, u := range urls {
				if err := cs.saga.AppendDeleteOnCommit(ctx, tx, sagaID, u); err != nil {
					return fmt.Errorf("record hint image delete: %w", err)
				}
			}

			if err := cs.questionRepo.FullDeleteByIDs(ctx, tx, questionIDs); err != nil {
				return fmt.Errorf("delete questions: %w", err)
			}
			if err := cs.draftRepo.FullDeleteByIDs(ctx, tx, draftIDs); err != nil {
				return fmt.Errorf("delete drafts: %w", err)
			}
		}
		if err := cs.unitRepo.FullDeleteByCourseIDs(ctx, tx, []uuid.UUID{courseID}); err != nil {
			return fmt.Errorf("delete units: %w", err)
		}
		if course.PicURL != "" {
			if err := cs.saga.AppendDeleteOnCommit(ctx, tx, sagaID, course.PicURL); err != nil {
				return fmt.Errorf("record pic delete: %w", err)
			}
		}
		if err := cs.courseRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{courseID}); err != nil {
			return fmt.Errorf("delete course: %w", err)
		}
		return cs.channelRepo.DetachCourse(ctx, tx, userID, courseID)
	})
	if err != nil {
		cs.abortSaga(ctx, sagaID)
		return err
	}
	cs.finishSaga(ctx, sagaID)

	for _, unit := range units {
		if err := cs.cache.InvalidateUnit(ctx, courseID, unit.ID); err != nil {
			cs.log.Warn("invalidate unit cache failed", "unit_id", unit.ID.String(), "error", err)
		}
	}
	return cs.invalidateCourseDocs(ctx, courseID)
}

func (cs *catalogService) CreateUnit(ctx context.Context, userID, courseID uuid.UUID, input UnitInput) (*types.Unit, error) {
	if _, err := cs.ownedCourse(ctx, userID, courseID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_unit_name", fmt.Errorf("unit name required"))
	}

	tags := cs.classifyTags(ctx, name+"\n"+strings.TrimSpace(input.Description))

	unit := &types.Unit{
		ID:          uuid.New(),
		CourseID:    courseID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Position:    input.Position,
		Tags:        tags,
	}
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := cs.unitRepo.Create(ctx, tx, []*types.Unit{unit}); err != nil {
			return fmt.Errorf("create unit: %w", err)
		}
		return cs.courseRepo.UpdateFields(ctx, tx, courseID, map[string]interface{}{
			"last_modified": time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	if err := cs.cache.SetUnit(ctx, unit); err != nil {
		cs.log.Warn("prime unit cache failed", "unit_id", unit.ID.String(), "error", err)
	}
	_ = cs.cache.InvalidateCourse(ctx, courseID)
	return unit, nil
}

func (cs *catalogService) GetUnit(ctx context.Context, courseID, unitID uuid.UUID) (*types.Unit, error) {
	if unit, err := cs.cache.GetUnit(ctx, courseID, unitID); err == nil {
		return unit, nil
	}

	units, err := cs.unitRepo.GetByIDs(ctx, nil, []uuid.UUID{unitID})
	if err != nil {
		return nil, fmt.Errorf("load unit: %w", err)
	}
	if len(units) == 0 || units[0].CourseID != courseID {
		return nil, apierr.New(http.StatusNotFound, "unit_not_found", fmt.Errorf("unit %s not found in course %s", unitID, courseID))
	}
	if err := cs.cache.SetUnit(ctx, units[0]); err != nil {
		cs.log.Warn("prime unit cache failed", "unit_id", unitID.String(), "error", err)
	}
	return units[0], nil
}

func (cs *catalogService) ListUnits(ctx context.Context, courseID uuid.UUID) ([]*types.Unit, error) {
	units, err := cs.unitRepo.ListByCourseID(ctx, nil, courseID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

func (cs *catalogService) UpdateUnit(ctx context.Context, userID, courseID, unitID uuid.UUID, update UnitUpdate) (*types.Unit, error) {
	if _, err := cs.ownedCourse(ctx, userID, courseID); err != nil {
		return nil, err
	}
	if _, err := cs.GetUnit(ctx, courseID, unitID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apierr.New(http.StatusBadRequest, "missing_unit_name", fmt.Errorf("unit name required"))
		}
		fields["name"] = name
	}
	if update.Description != nil {
		fields["description"] = strings.TrimSpace(*update.Description)
	}
	if update.Position != nil {
		fields["position"] = *update.Position
	}
	if len(fields) == 0 {
		return cs.GetUnit(ctx, courseID, unitID)
	}

	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := cs.unitRepo.UpdateFields(ctx, tx, unitID, fields); err != nil {
			return fmt.Errorf("update unit: %w", err)
		}
		return cs.courseRepo.UpdateFields(ctx, tx, courseID, map[string]interface{}{
			"last_modified": time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	_ = cs.cache.InvalidateUnit(ctx, courseID, unitID)
	_ = cs.cache.InvalidateCourse(ctx, courseID)
	return cs.GetUnit(ctx, courseID, unitID)
}

// DeleteUnit removes the unit with its questions and drafts, and walks
// the course question counter back by the published count.
func (cs *catalogService) DeleteUnit(ctx context.Context, userID, courseID, unitID uuid.UUID) error {
	if _, err := cs.ownedCourse(ctx, userID, courseID); err != nil {
		return err
	}
	unit, err := cs.GetUnit(ctx, courseID, unitID)
	if err != nil {
		return err
	}

	sagaID, err := cs.saga.CreateSaga(ctx, userID)
	if err != nil {
		return fmt.Errorf("create saga: %w", err)
	}

	questionIDs := append([]uuid.UUID{}, unit.Questions...)
	draftIDs := append([]uuid.UUID{}, unit.QuestionDrafts...)

	err = cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		urls, err := collectHintImageURLs(ctx, tx, cs.questionRepo, cs.draftRepo, questionIDs, draftIDs)
		if err != nil {
			return err
		}
		for _, u := range urls {
			if err := cs.saga.AppendDeleteOnCommit(ctx, tx, sagaID, u); err != nil {
				return fmt.Errorf("record hint image delete: %w", err)
			}
		}

		if err := cs.questionRepo.FullDeleteByIDs(ctx, tx, questionIDs); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		if err := cs.draftRepo.FullDeleteByIDs(ctx, tx, draftIDs); err != nil {
			return fmt.Errorf("delete drafts: %w", err)
		}
		if err := cs.unitRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{unitID}); err != nil {
			return fmt.Errorf("delete unit: %w", err)
		}
		if len(questionIDs) > 0 {
			if err := cs.courseRepo.Increment(ctx, tx, courseID, "num_questions", -int64(len(questionIDs))); err != nil {
				return fmt.Errorf("decrement num_questions: %w", err)
			}
		}
		return cs.courseRepo.UpdateFields(ctx, tx, courseID, map[string]interface{}{
			"last_modified": time.Now().UTC(),
		})
	})
	if err != nil {
		cs.abortSaga(ctx, sagaID)
		return err
	}
	cs.finishSaga(ctx, sagaID)

	_ = cs.cache.InvalidateUnit(ctx, courseID, unitID)
	return cs.invalidateCourseDocs(ctx, courseID)
}

// SearchCourses scores every course against the query: a name hit
// counts double a description hit. Zero-score courses are dropped and
// results come back best first.
func (cs *catalogService) SearchCourses(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []SearchResult{}, nil
	}

	courses, err := cs.courseRepo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	terms := strings.Fields(query)
	results := make([]SearchResult, 0, len(courses))
	for _, course := range courses {
		name := strings.ToLower(course.Name)
		desc := strings.ToLower(course.Description)
		score := 0
		for _, term := range terms {
			if strings.Contains(name, term) {
				score += 2
			}
			if strings.Contains(desc, term) {
				score++
			}
		}
		if score > 0 {
			results = append(results, SearchResult{Course: course, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Course.Name < results[j].Course.Name
	})
	return results, nil
}

func (cs *catalogService) PrimeChannelCache(ctx context.Context, userID uuid.UUID) error {
	channels, err := cs.channelRepo.GetByUserIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return fmt.Errorf("load channel: %w", err)
	}
	if len(channels) == 0 || len(channels[0].Courses) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, courseID := range channels[0].Courses {
		courseID := courseID
		g.Go(func() error {
			courses, err := cs.courseRepo.GetByIDs(gctx, nil, []uuid.UUID{courseID})
			if err != nil {
				return err
			}
			if len(courses) == 0 {
				return nil
			}
			if err := cs.cache.SetCourse(gctx, courses[0]); err != nil {
				return err
			}
			units, err := cs.unitRepo.ListByCourseID(gctx, nil, courseID)
			if err != nil {
				return err
			}
			for _, unit := range units {
				if err := cs.cache.SetUnit(gctx, unit); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (cs *catalogService) ownedCourse(ctx context.Context, userID, courseID uuid.UUID) (*types.Course, error) {
	course, err := cs.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.CreatorID != userID {
		return nil, apierr.New(http.StatusForbidden, "not_course_owner", fmt.Errorf("user does not own course"))
	}
	return course, nil
}

func (cs *catalogService) invalidateCourseDocs(ctx context.Context, courseID uuid.UUID) error {
	if err := cs.cache.InvalidateCourse(ctx, courseID); err != nil {
		cs.log.Warn("invalidate course cache failed", "course_id", courseID.String(), "error", err)
	}
	return nil
}

func (cs *catalogService) classifyTags(ctx context.Context, text string) []string {
	if cs.classifier == nil || strings.TrimSpace(text) == "" {
		return []string{}
	}
	tags, err := cs.classifier.ClassifyTags(ctx, text)
	if err != nil {
		cs.log.Warn("tag classification failed", "error", err)
		return []string{}
	}
	return tags
}

func (cs *catalogService) abortSaga(ctx context.Context, sagaID uuid.UUID) {
	if err := cs.saga.Abort(ctx, sagaID); err != nil {
		cs.log.Warn("saga abort failed", "saga_id", sagaID.String(), "error", err)
	}
}

func (cs *catalogService) finishSaga(ctx context.Context, sagaID uuid.UUID) {
	if err := cs.saga.Finish(ctx, sagaID); err != nil {
		cs.log.Warn("saga finish failed", "saga_id", sagaID.String(), "error", err)
	}
}

// collectHintImageURLs gathers every stored hint image URL across the
// given published and draft questions.
func collectHintImageURLs(
	ctx context.Context,
	tx *gorm.DB,
	questionRepo repos.QuestionRepo,
	draftRepo repos.QuestionDraftRepo,
	questionIDs, draftIDs []uuid.UUID,
) ([]string, error) {
	var urls []string

	questions, err := questionRepo.GetByIDs(ctx, tx, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	for _, q := range questions {
		for _, h := range q.Hints {
			if h.Image != "" {
				urls = append(urls, h.Image)
			}
		}
	}

	drafts, err := draftRepo.GetByIDs(ctx, tx, draftIDs)
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	for _, d := range drafts {
		for _, h := range d.Hints {
			if h.Image != "" {
				urls = append(urls, h.Image)
			}
		}
	}
	return urls, nil
}

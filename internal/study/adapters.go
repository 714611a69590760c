package study

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/clients/similarity"
	"github.com/studybits/studybits-backend/internal/data/repos"
)

// repoChecker answers existence questions straight from the repos.
type repoChecker struct {
	courseRepo repos.CourseRepo
	unitRepo   repos.UnitRepo
}

func NewRepoChecker(courseRepo repos.CourseRepo, unitRepo repos.UnitRepo) ExistenceChecker {
	return &repoChecker{courseRepo: courseRepo, unitRepo: unitRepo}
}

func (c *repoChecker) CourseExists(ctx context.Context, courseID uuid.UUID) (bool, error) {
	return c.courseRepo.Exists(ctx, nil, courseID)
}

func (c *repoChecker) UnitExists(ctx context.Context, courseID, unitID uuid.UUID) (bool, error) {
	units, err := c.unitRepo.GetByIDs(ctx, nil, []uuid.UUID{unitID})
	if err != nil {
		return false, err
	}
	return len(units) == 1 && units[0].CourseID == courseID, nil
}

// similarityAdapter folds the client's "no results" error into an empty
// answer so the selector only sees real failures as errors.
type similarityAdapter struct {
	client similarity.Client
}

func NewSimilarityAdapter(client similarity.Client) SimilarityAPI {
	return &similarityAdapter{client: client}
}

func (a *similarityAdapter) FindSimilarCourses(ctx context.Context, userID, courseID, unitID uuid.UUID) ([]similarity.CourseMatch, error) {
	matches, err := a.client.FindSimilarCourses(ctx, userID, courseID, unitID)
	if err != nil {
		if errors.Is(err, similarity.ErrNoResults) {
			return nil, nil
		}
		return nil, err
	}
	return matches, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/clients/gcp"
	"github.com/studybits/studybits-backend/internal/clients/redis"
	"github.com/studybits/studybits-backend/internal/clients/similarity"
	types "github.com/studybits/studybits-backend/internal/domain"
)

var errUploadRefused = errors.New("upload refused")

// fakeBucket records uploads and deletes in memory.
type fakeBucket struct {
	mu        sync.Mutex
	seq       int
	uploads   []string
	deletes   []string
	uploadErr error
}

func (b *fakeBucket) Upload(ctx context.Context, category gcp.BucketCategory, filename string, file io.Reader) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	b.seq++
	url := fmt.Sprintf("https://cdn.test/%s/%d-%s", category, b.seq, filename)
	b.uploads = append(b.uploads, url)
	return url, nil
}

func (b *fakeBucket) DeleteByURL(ctx context.Context, publicURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, publicURL)
	return nil
}

func (b *fakeBucket) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (b *fakeBucket) deleted(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.deletes {
		if d == url {
			return true
		}
	}
	return false
}

// fakeCache is an in-memory stand-in for the redis document cache.
type fakeCache struct {
	mu            sync.Mutex
	courses       map[uuid.UUID]*types.Course
	units         map[string]*types.Unit
	subscriptions map[string]uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		courses:       map[uuid.UUID]*types.Course{},
		units:         map[string]*types.Unit{},
		subscriptions: map[string]uuid.UUID{},
	}
}

func unitKey(courseID, unitID uuid.UUID) string {
	return courseID.String() + "/" + unitID.String()
}

func subKey(userID, subscribedCourseID uuid.UUID) string {
	return userID.String() + "/" + subscribedCourseID.String()
}

func (c *fakeCache) GetCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if course, ok := c.courses[courseID]; ok {
		return course, nil
	}
	return nil, redis.ErrCacheMiss
}

func (c *fakeCache) SetCourse(ctx context.Context, course *types.Course) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses[course.ID] = course
	return nil
}

func (c *fakeCache) InvalidateCourse(ctx context.Context, courseID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.courses, courseID)
	return nil
}

func (c *fakeCache) GetUnit(ctx context.Context, courseID, unitID uuid.UUID) (*types.Unit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if unit, ok := c.units[unitKey(courseID, unitID)]; ok {
		return unit, nil
	}
	return nil, redis.ErrCacheMiss
}

func (c *fakeCache) SetUnit(ctx context.Context, unit *types.Unit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units[unitKey(unit.CourseID, unit.ID)] = unit
	return nil
}

func (c *fakeCache) InvalidateUnit(ctx context.Context, courseID, unitID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.units, unitKey(courseID, unitID))
	return nil
}

func (c *fakeCache) GetSubscriptionSource(ctx context.Context, userID, subscribedCourseID uuid.UUID) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if base, ok := c.subscriptions[subKey(userID, subscribedCourseID)]; ok {
		return base, nil
	}
	return uuid.Nil, redis.ErrCacheMiss
}

func (c *fakeCache) SetSubscriptionSource(ctx context.Context, userID, subscribedCourseID, baseCourseID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[subKey(userID, subscribedCourseID)] = baseCourseID
	return nil
}

func (c *fakeCache) RemoveSubscriptionSource(ctx context.Context, userID, subscribedCourseID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, subKey(userID, subscribedCourseID))
	return nil
}

func (c *fakeCache) ReplaceSubscriptionIndex(ctx context.Context, userID uuid.UUID, index map[uuid.UUID]uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.subscriptions {
		if len(key) > 36 && key[:36] == userID.String() {
			delete(c.subscriptions, key)
		}
	}
	for subscribed, base := range index {
		c.subscriptions[subKey(userID, subscribed)] = base
	}
	return nil
}

func (c *fakeCache) Close() error { return nil }

// fakeClassifier answers similarity calls with canned data.
type fakeClassifier struct {
	mu          sync.Mutex
	tags        []string
	classifyErr error
	similar     []similarity.CourseMatch
}

func (f *fakeClassifier) FindSimilarCourses(ctx context.Context, userID, courseID, unitID uuid.UUID) ([]similarity.CourseMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.similar) == 0 {
		return nil, similarity.ErrNoResults
	}
	return f.similar, nil
}

func (f *fakeClassifier) ClassifyTags(ctx context.Context, text string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	return f.tags, nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/utils"
)

// ErrCacheMiss is returned when the requested document is not cached.
var ErrCacheMiss = errors.New("cache miss")

// DocumentCache keeps channel-facing course and unit documents warm so
// channel page loads don't refetch from postgres. Keys mirror the
// documents they cache:
//
//	channel-course-{courseID}
//	channel-unit-{courseID}-{unitID}
//
// A subscription index hash per user maps subscribed course id -> the
// base course id the subscription was made from.
type DocumentCache interface {
	GetCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error)
	SetCourse(ctx context.Context, course *types.Course) error
	InvalidateCourse(ctx context.Context, courseID uuid.UUID) error

	GetUnit(ctx context.Context, courseID, unitID uuid.UUID) (*types.Unit, error)
	SetUnit(ctx context.Context, unit *types.Unit) error
	InvalidateUnit(ctx context.Context, courseID, unitID uuid.UUID) error

	GetSubscriptionSource(ctx context.Context, userID, subscribedCourseID uuid.UUID) (uuid.UUID, error)
	SetSubscriptionSource(ctx context.Context, userID, subscribedCourseID, baseCourseID uuid.UUID) error
	RemoveSubscriptionSource(ctx context.Context, userID, subscribedCourseID uuid.UUID) error
	ReplaceSubscriptionIndex(ctx context.Context, userID uuid.UUID, index map[uuid.UUID]uuid.UUID) error

	Close() error
}

type documentCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewDocumentCache connects to redis, or returns a disabled cache when
// CACHE_ENABLED=false or REDIS_ADDR is unset. A disabled cache misses
// every read and swallows every write, so callers fall through to the
// store without special-casing.
func NewDocumentCache(log *logger.Logger) (DocumentCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if !utils.GetEnvAsBool("CACHE_ENABLED", true, log) || addr == "" {
		log.Warn("document cache disabled, every read falls through to the store")
		return &documentCache{log: log.With("service", "DocumentCache")}, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &documentCache{
		log: log.With("service", "DocumentCache"),
		rdb: rdb,
		ttl: 24 * time.Hour,
	}, nil
}

func courseKey(courseID uuid.UUID) string {
	return fmt.Sprintf("channel-course-%s", courseID)
}

func unitKey(courseID, unitID uuid.UUID) string {
	return fmt.Sprintf("channel-unit-%s-%s", courseID, unitID)
}

func subscriptionKey(userID uuid.UUID) string {
	return fmt.Sprintf("subscription-index-%s", userID)
}

func (c *documentCache) GetCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	var course types.Course
	if err := c.getJSON(ctx, courseKey(courseID), &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *documentCache) SetCourse(ctx context.Context, course *types.Course) error {
	return c.setJSON(ctx, courseKey(course.ID), course)
}

func (c *documentCache) InvalidateCourse(ctx context.Context, courseID uuid.UUID) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, courseKey(courseID)).Err()
}

func (c *documentCache) GetUnit(ctx context.Context, courseID, unitID uuid.UUID) (*types.Unit, error) {
	var unit types.Unit
	if err := c.getJSON(ctx, unitKey(courseID, unitID), &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (c *documentCache) SetUnit(ctx context.Context, unit *types.Unit) error {
	return c.setJSON(ctx, unitKey(unit.CourseID, unit.ID), unit)
}

func (c *documentCache) InvalidateUnit(ctx context.Context, courseID, unitID uuid.UUID) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, unitKey(courseID, unitID)).Err()
}

func (c *documentCache) GetSubscriptionSource(ctx context.Context, userID, subscribedCourseID uuid.UUID) (uuid.UUID, error) {
	if c.rdb == nil {
		return uuid.Nil, ErrCacheMiss
	}
	raw, err := c.rdb.HGet(ctx, subscriptionKey(userID), subscribedCourseID.String()).Result()
	if errors.Is(err, goredis.Nil) {
		return uuid.Nil, ErrCacheMiss
	}
	if err != nil {
		return uuid.Nil, err
	}
	baseID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt subscription index entry %q: %w", raw, err)
	}
	return baseID, nil
}

func (c *documentCache) SetSubscriptionSource(ctx context.Context, userID, subscribedCourseID, baseCourseID uuid.UUID) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.HSet(ctx, subscriptionKey(userID), subscribedCourseID.String(), baseCourseID.String()).Err()
}

func (c *documentCache) RemoveSubscriptionSource(ctx context.Context, userID, subscribedCourseID uuid.UUID) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.HDel(ctx, subscriptionKey(userID), subscribedCourseID.String()).Err()
}

// ReplaceSubscriptionIndex rewrites a user's whole reverse map, used when
// rebuilding the index from learning records.
func (c *documentCache) ReplaceSubscriptionIndex(ctx context.Context, userID uuid.UUID, index map[uuid.UUID]uuid.UUID) error {
	if c.rdb == nil {
		return nil
	}
	key := subscriptionKey(userID)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(index) > 0 {
		fields := make(map[string]interface{}, len(index))
		for subscribed, base := range index {
			fields[subscribed.String()] = base.String()
		}
		pipe.HSet(ctx, key, fields)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *documentCache) getJSON(ctx context.Context, key string, out interface{}) error {
	if c.rdb == nil {
		return ErrCacheMiss
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *documentCache) setJSON(ctx context.Context, key string, value interface{}) error {
	if c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

func (c *documentCache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

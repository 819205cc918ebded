package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "knowmap:quiz:questions:"
	defaultCacheTTL = 10 * time.Minute
	cacheOpTimeout  = 500 * time.Millisecond
)

// redisClient is the subset of redis.Cmdable the cache needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedStore puts a Redis read-through cache in front of a Store's question
// sets. Cache failures never fail a lookup; they are logged and the inner
// store is used.
type CachedStore struct {
	inner  Store
	client redisClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps inner with a question-set cache. A zero ttl uses the
// default of ten minutes.
func NewCachedStore(inner Store, client redisClient, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachedStore) GetQuiz(ctx context.Context, id string) (*Quiz, error) {
	return c.inner.GetQuiz(ctx, id)
}

// SaveQuiz saves through to the inner store and drops the cached set.
func (c *CachedStore) SaveQuiz(ctx context.Context, q Quiz) error {
	if err := c.inner.SaveQuiz(ctx, q); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.client.Del(opCtx, cacheKey(q.ID)).Err(); err != nil {
		c.logger.Warn("failed to invalidate cached question set", "quiz_id", q.ID, "error", err)
	}
	return nil
}

func (c *CachedStore) Questions(ctx context.Context, quizID string) (Set, error) {
	if set, ok := c.lookup(ctx, quizID); ok {
		return set, nil
	}

	set, err := c.inner.Questions(ctx, quizID)
	if err != nil {
		return Set{}, err
	}
	c.store(ctx, set)
	return set, nil
}

func (c *CachedStore) lookup(ctx context.Context, quizID string) (Set, bool) {
	opCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	data, err := c.client.Get(opCtx, cacheKey(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("question cache read failed", "quiz_id", quizID, "error", err)
		}
		return Set{}, false
	}

	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		c.logger.Warn("discarding undecodable cached question set", "quiz_id", quizID, "error", err)
		return Set{}, false
	}
	if len(set.Questions) == 0 {
		return Set{}, false
	}
	return set, true
}

func (c *CachedStore) store(ctx context.Context, set Set) {
	data, err := json.Marshal(set)
	if err != nil {
		c.logger.Warn("failed to encode question set for cache", "quiz_id", set.QuizID, "error", err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.client.Set(opCtx, cacheKey(set.QuizID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("question cache write failed", "quiz_id", set.QuizID, "error", err)
	}
}

func cacheKey(quizID string) string {
	return cacheKeyPrefix + quizID
}

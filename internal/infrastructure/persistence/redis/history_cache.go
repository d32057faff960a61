package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alem-hub/pace-notifier/internal/domain/notification"
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/pkg/logger"
)

// HistoryLoader is the authoritative message history store.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, studentID string, course progress.CourseID) ([]notification.HistoryEntry, error)
}

// jsonStore is the subset of Cache the history cache uses.
type jsonStore interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// HistoryCache is a read-through cache in front of a HistoryLoader.
// Redis failures fall through to the loader; they never fail an evaluation.
type HistoryCache struct {
	source HistoryLoader
	store  jsonStore
	ttl    time.Duration
	log    *slog.Logger
}

// NewHistoryCache creates a new HistoryCache. A nil cache disables caching.
func NewHistoryCache(source HistoryLoader, cache *Cache, ttl time.Duration, log *slog.Logger) *HistoryCache {
	var store jsonStore
	if cache != nil {
		store = cache
	}
	return newHistoryCache(source, store, ttl, log)
}

func newHistoryCache(source HistoryLoader, store jsonStore, ttl time.Duration, log *slog.Logger) *HistoryCache {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &HistoryCache{
		source: source,
		store:  store,
		ttl:    ttl,
		log:    log.With(logger.Component("history_cache")),
	}
}

// LoadHistory returns cached history or loads and caches it.
func (c *HistoryCache) LoadHistory(ctx context.Context, studentID string, course progress.CourseID) ([]notification.HistoryEntry, error) {
	if c.store == nil {
		return c.source.LoadHistory(ctx, studentID, course)
	}

	key := HistoryKey(studentID, course.Short())
	var cached []notification.HistoryEntry
	err := c.store.Get(ctx, key, &cached)
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, ErrCacheMiss):
		c.log.Warn("history cache read failed", logger.StudentID(studentID), logger.Err(err))
	}

	entries, err := c.source.LoadHistory(ctx, studentID, course)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []notification.HistoryEntry{}
	}
	if err := c.store.Set(ctx, key, entries, c.ttl); err != nil {
		c.log.Warn("history cache write failed", logger.StudentID(studentID), logger.Err(err))
	}
	return entries, nil
}

// Invalidate drops the cached history of one registration.
func (c *HistoryCache) Invalidate(ctx context.Context, studentID string, course progress.CourseID) error {
	if c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, HistoryKey(studentID, course.Short()))
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// BookmarkStats tracks bookmark lookups.
type BookmarkStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

type bookmarkCounters struct {
	mu sync.Mutex
	BookmarkStats
}

func (c *bookmarkCounters) hit()  { c.mu.Lock(); c.Hits++; c.mu.Unlock() }
func (c *bookmarkCounters) miss() { c.mu.Lock(); c.Misses++; c.mu.Unlock() }
func (c *bookmarkCounters) set()  { c.mu.Lock(); c.Sets++; c.mu.Unlock() }

func (c *bookmarkCounters) snapshot() BookmarkStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.BookmarkStats
}

// bookmarkKey identifies a cursor position within one dataset generation.
// Cursors without a generation share the generation-0 namespace.
func bookmarkKey(cursor models.ReplayCursor) string {
	return fmt.Sprintf("%d:%d:%d:%d",
		cursor.Generation,
		cursor.Window.Start.UTC().UnixNano(),
		cursor.Window.End.UTC().UnixNano(),
		cursor.Offset,
	)
}

// RedisBookmarkStore keeps replay bookmarks in Redis so they survive restarts
// and are shared between replicas.
type RedisBookmarkStore struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger *logrus.Logger
	stats  bookmarkCounters
}

var _ interfaces.BookmarkStore = (*RedisBookmarkStore)(nil)

// NewRedisBookmarkStore creates a Redis-backed bookmark store.
func NewRedisBookmarkStore(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisBookmarkStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisBookmarkStore{
		redis:  redisClient,
		ttl:    ttl,
		prefix: "replay_bookmark:",
		logger: logger,
	}
}

// Get returns the record key found at cursor, if remembered.
func (s *RedisBookmarkStore) Get(ctx context.Context, cursor models.ReplayCursor) (models.RecordKey, bool) {
	data, err := s.redis.Get(ctx, s.prefix+bookmarkKey(cursor)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.stats.miss()
		return models.RecordKey{}, false
	}
	if err != nil {
		s.logger.WithError(err).Warn("Redis error reading replay bookmark")
		s.stats.miss()
		return models.RecordKey{}, false
	}

	var key models.RecordKey
	if err := json.Unmarshal(data, &key); err != nil {
		s.logger.WithError(err).Warn("Discarding malformed replay bookmark")
		s.stats.miss()
		return models.RecordKey{}, false
	}

	s.stats.hit()
	return key, true
}

// Set remembers the record key found at cursor.
func (s *RedisBookmarkStore) Set(ctx context.Context, cursor models.ReplayCursor, key models.RecordKey) {
	data, err := json.Marshal(key)
	if err != nil {
		s.logger.WithError(err).Warn("Error serializing replay bookmark")
		return
	}
	if err := s.redis.Set(ctx, s.prefix+bookmarkKey(cursor), data, s.ttl).Err(); err != nil {
		s.logger.WithError(err).Warn("Redis error writing replay bookmark")
		return
	}
	s.stats.set()
}

// Stats returns lookup counters.
func (s *RedisBookmarkStore) Stats() BookmarkStats {
	return s.stats.snapshot()
}

// Clear removes every stored bookmark.
func (s *RedisBookmarkStore) Clear(ctx context.Context) error {
	var keys []string
	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning bookmark keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing bookmarks: %w", err)
	}
	return nil
}

type bookmarkEntry struct {
	key       models.RecordKey
	expiresAt time.Time
}

// LRUBookmarkStore keeps a bounded number of bookmarks in process.
type LRUBookmarkStore struct {
	cache *lru.Cache[string, bookmarkEntry]
	ttl   time.Duration
	now   func() time.Time
	stats bookmarkCounters
}

var _ interfaces.BookmarkStore = (*LRUBookmarkStore)(nil)

// NewLRUBookmarkStore creates an in-process bookmark store holding at most
// size entries. A zero ttl keeps entries until evicted.
func NewLRUBookmarkStore(size int, ttl time.Duration) (*LRUBookmarkStore, error) {
	cache, err := lru.New[string, bookmarkEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRUBookmarkStore{cache: cache, ttl: ttl, now: time.Now}, nil
}

func (s *LRUBookmarkStore) Get(ctx context.Context, cursor models.ReplayCursor) (models.RecordKey, bool) {
	k := bookmarkKey(cursor)
	entry, ok := s.cache.Get(k)
	if !ok {
		s.stats.miss()
		return models.RecordKey{}, false
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.cache.Remove(k)
		s.stats.miss()
		return models.RecordKey{}, false
	}
	s.stats.hit()
	return entry.key, true
}

func (s *LRUBookmarkStore) Set(ctx context.Context, cursor models.ReplayCursor, key models.RecordKey) {
	entry := bookmarkEntry{key: key}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.cache.Add(bookmarkKey(cursor), entry)
	s.stats.set()
}

// Len returns the number of stored bookmarks.
func (s *LRUBookmarkStore) Len() int {
	return s.cache.Len()
}

// Stats returns lookup counters.
func (s *LRUBookmarkStore) Stats() BookmarkStats {
	return s.stats.snapshot()
}


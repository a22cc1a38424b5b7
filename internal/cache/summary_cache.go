package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/irfndi/intelliinspect-go/internal/models"
)

// SummaryCache keeps the summary of the last committed ingestion.
type SummaryCache interface {
	Get(ctx context.Context) (*models.DatasetSummary, bool, error)
	Set(ctx context.Context, summary *models.DatasetSummary) error
}

// RedisSummaryCache stores the summary as a JSON blob.
type RedisSummaryCache struct {
	redis *redis.Client
	key   string
	ttl   time.Duration
}

// NewRedisSummaryCache creates a Redis-backed summary cache. A zero ttl keeps the entry.
func NewRedisSummaryCache(redisClient *redis.Client, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{
		redis: redisClient,
		key:   "dataset_summary:latest",
		ttl:   ttl,
	}
}

func (c *RedisSummaryCache) Get(ctx context.Context) (*models.DatasetSummary, bool, error) {
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read dataset summary: %w", err)
	}

	var summary models.DatasetSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, false, fmt.Errorf("failed to decode dataset summary: %w", err)
	}
	return &summary, true, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, summary *models.DatasetSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode dataset summary: %w", err)
	}
	if err := c.redis.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store dataset summary: %w", err)
	}
	return nil
}

// MemorySummaryCache keeps the summary in process.
type MemorySummaryCache struct {
	mu      sync.RWMutex
	summary *models.DatasetSummary
}

func NewMemorySummaryCache() *MemorySummaryCache {
	return &MemorySummaryCache{}
}

func (c *MemorySummaryCache) Get(ctx context.Context) (*models.DatasetSummary, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.summary == nil {
		return nil, false, nil
	}
	copied := *c.summary
	return &copied, true, nil
}

func (c *MemorySummaryCache) Set(ctx context.Context, summary *models.DatasetSummary) error {
	if summary == nil {
		return errors.New("summary is nil")
	}
	copied := *summary
	c.mu.Lock()
	c.summary = &copied
	c.mu.Unlock()
	return nil
}

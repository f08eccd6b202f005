package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caredirectory/reviews/internal/domain"
	apperrors "github.com/caredirectory/reviews/pkg/errors"
)

const keyPrefix = "review:aggregate:"

// AggregateCache implements repository.AggregateCache using Redis.
type AggregateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAggregateCache creates a Redis-backed aggregate snapshot cache.
func NewAggregateCache(client *redis.Client, ttl time.Duration) *AggregateCache {
	return &AggregateCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a provider's cached aggregate snapshot.
func (c *AggregateCache) Get(ctx context.Context, subjectID string) (*domain.AggregateSnapshot, error) {
	data, err := c.client.Get(ctx, keyPrefix+subjectID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("aggregate", subjectID)
		}
		return nil, fmt.Errorf("redis get aggregate: %w", err)
	}

	var snap domain.AggregateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal aggregate: %w", err)
	}
	return &snap, nil
}

// Set stores a snapshot with the configured TTL.
func (c *AggregateCache) Set(ctx context.Context, snapshot domain.AggregateSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal aggregate: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+snapshot.SubjectID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set aggregate: %w", err)
	}
	return nil
}

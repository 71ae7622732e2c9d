package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/monquest-api/internal/dto"
	"github.com/noah-isme/monquest-api/internal/observability"
)

const bountyListCacheKey = "monquest:bounties:all"

// BountyCache stores the public bounty listing in redis. A nil client turns every
// call into a miss or no-op.
type BountyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewBountyCache builds a cache for the bounty listing.
func NewBountyCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *BountyCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &BountyCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "bounty_cache").Logger(),
	}
}

// Get returns the cached listing if present.
func (c *BountyCache) Get(ctx context.Context) ([]dto.BountyResponse, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	cached, err := c.client.Get(ctx, bountyListCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read bounty cache")
		}
		observability.CacheLookups().WithLabelValues("bounties", "miss").Inc()
		return nil, false
	}

	var bounties []dto.BountyResponse
	if err := json.Unmarshal(cached, &bounties); err != nil {
		c.logger.Warn().Err(err).Msg("discarding corrupt bounty cache entry")
		observability.CacheLookups().WithLabelValues("bounties", "miss").Inc()
		return nil, false
	}

	observability.CacheLookups().WithLabelValues("bounties", "hit").Inc()
	return bounties, true
}

// Set stores the listing.
func (c *BountyCache) Set(ctx context.Context, bounties []dto.BountyResponse) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(bounties)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, bountyListCacheKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store bounty cache")
	}
}

// Invalidate drops the listing so the next read goes to the database.
func (c *BountyCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, bountyListCacheKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate bounty cache")
	}
}

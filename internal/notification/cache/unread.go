// Package cache provides the Redis-backed unread badge cache.
//
// Counts are stored under a per-tenant generation: invalidation bumps the
// generation instead of deleting keys, so a tenant-wide notification (which
// changes every actor's badge at once) invalidates in O(1). Stale-generation
// keys simply expire.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "beacon/pkg/domain"
)

const defaultTTL = 5 * time.Minute

// UnreadCache caches unread counts per (tenant, actor).
type UnreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Option configures the cache.
type Option func(*UnreadCache)

// WithTTL overrides the count entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *UnreadCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// New constructs the unread cache over a connected Redis client.
func New(client *redis.Client, opts ...Option) *UnreadCache {
	c := &UnreadCache{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached count for (tenant, actor) at the tenant's current
// generation. ok=false signals a miss.
func (c *UnreadCache) Get(ctx context.Context, tenantID id.TenantID, actorID id.ActorID) (int, bool, error) {
	gen, err := c.generation(ctx, tenantID)
	if err != nil {
		return 0, false, err
	}
	value, err := c.client.Get(ctx, countKey(tenantID, gen, actorID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get unread count: %w", err)
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse cached unread count: %w", err)
	}
	return count, true, nil
}

// Set stores the count for (tenant, actor) at the tenant's current generation.
func (c *UnreadCache) Set(ctx context.Context, tenantID id.TenantID, actorID id.ActorID, count int) error {
	gen, err := c.generation(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, countKey(tenantID, gen, actorID), count, c.ttl).Err(); err != nil {
		return fmt.Errorf("set unread count: %w", err)
	}
	return nil
}

// Invalidate bumps the tenant generation, orphaning every cached count for
// the tenant in one write.
func (c *UnreadCache) Invalidate(ctx context.Context, tenantID id.TenantID) error {
	if err := c.client.Incr(ctx, genKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("bump unread generation: %w", err)
	}
	return nil
}

func (c *UnreadCache) generation(ctx context.Context, tenantID id.TenantID) (string, error) {
	gen, err := c.client.Get(ctx, genKey(tenantID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("get unread generation: %w", err)
	}
	return gen, nil
}

func genKey(tenantID id.TenantID) string {
	return "beacon:unread:gen:" + tenantID.String()
}

func countKey(tenantID id.TenantID, gen string, actorID id.ActorID) string {
	return "beacon:unread:" + tenantID.String() + ":" + gen + ":" + actorID.String()
}

//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"beacon/internal/notification/cache"
	id "beacon/pkg/domain"
	"beacon/pkg/testutil/containers"
)

type UnreadCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.UnreadCache
}

func TestUnreadCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(UnreadCacheSuite))
}

func (s *UnreadCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = cache.New(s.redis.Client, cache.WithTTL(time.Minute))
}

func (s *UnreadCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *UnreadCacheSuite) TestSetGet() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	actorID := id.NewActorID()

	_, ok, err := s.cache.Get(ctx, tenantID, actorID)
	s.Require().NoError(err)
	s.False(ok, "fresh cache misses")

	s.Require().NoError(s.cache.Set(ctx, tenantID, actorID, 7))

	count, ok, err := s.cache.Get(ctx, tenantID, actorID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(7, count)
}

func (s *UnreadCacheSuite) TestInvalidateIsTenantGranular() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	otherTenant := id.NewTenantID()
	actorA := id.NewActorID()
	actorB := id.NewActorID()

	s.Require().NoError(s.cache.Set(ctx, tenantID, actorA, 1))
	s.Require().NoError(s.cache.Set(ctx, tenantID, actorB, 2))
	s.Require().NoError(s.cache.Set(ctx, otherTenant, actorA, 3))

	// A tenant-wide notification changes every actor's badge at once.
	s.Require().NoError(s.cache.Invalidate(ctx, tenantID))

	_, ok, err := s.cache.Get(ctx, tenantID, actorA)
	s.Require().NoError(err)
	s.False(ok)
	_, ok, err = s.cache.Get(ctx, tenantID, actorB)
	s.Require().NoError(err)
	s.False(ok)

	// The other tenant's entries survive.
	count, ok, err := s.cache.Get(ctx, otherTenant, actorA)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(3, count)
}

func (s *UnreadCacheSuite) TestSetAfterInvalidateUsesNewGeneration() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	actorID := id.NewActorID()

	s.Require().NoError(s.cache.Set(ctx, tenantID, actorID, 1))
	s.Require().NoError(s.cache.Invalidate(ctx, tenantID))
	s.Require().NoError(s.cache.Set(ctx, tenantID, actorID, 2))

	count, ok, err := s.cache.Get(ctx, tenantID, actorID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(2, count)
}

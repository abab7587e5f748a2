//go:build integration

package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/desmedtandreas/companions-app-backend/internal/financials/worker"
	platformredis "github.com/desmedtandreas/companions-app-backend/internal/platform/redis"
	"github.com/desmedtandreas/companions-app-backend/pkg/testutil/containers"
)

type RedisLockerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *worker.RedisLocker
}

func TestRedisLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockerSuite))
}

func (s *RedisLockerSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.locker = worker.NewRedisLocker(&platformredis.Client{Client: s.redis.Client})
}

func (s *RedisLockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockerSuite) TestLeaseIsExclusive() {
	ctx := context.Background()

	acquired, err := s.locker.Acquire(ctx, "reconcile:0123456789", time.Minute)
	s.Require().NoError(err)
	s.True(acquired)

	again, err := s.locker.Acquire(ctx, "reconcile:0123456789", time.Minute)
	s.Require().NoError(err)
	s.False(again, "held lease must not be granted twice")

	other, err := s.locker.Acquire(ctx, "reconcile:0999999999", time.Minute)
	s.Require().NoError(err)
	s.True(other, "leases are per company")
}

func (s *RedisLockerSuite) TestReleaseFreesTheLease() {
	ctx := context.Background()

	acquired, err := s.locker.Acquire(ctx, "reconcile:0123456789", time.Minute)
	s.Require().NoError(err)
	s.True(acquired)

	s.locker.Release(ctx, "reconcile:0123456789")

	again, err := s.locker.Acquire(ctx, "reconcile:0123456789", time.Minute)
	s.Require().NoError(err)
	s.True(again)
}

func (s *RedisLockerSuite) TestLeaseExpires() {
	ctx := context.Background()

	acquired, err := s.locker.Acquire(ctx, "reconcile:0123456789", 500*time.Millisecond)
	s.Require().NoError(err)
	s.True(acquired)

	s.Eventually(func() bool {
		again, err := s.locker.Acquire(ctx, "reconcile:0123456789", time.Minute)
		return err == nil && again
	}, 5*time.Second, 100*time.Millisecond, "crashed holder frees the lease via TTL")
}

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"beacon/internal/notification"
	"beacon/internal/notification/store/postgres"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "notifications")
	s.Require().NoError(err)
}

func newTestNotification(tenantID id.TenantID, audience notification.Audience, epoch string) *notification.Notification {
	return &notification.Notification{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Audience:    audience,
		Kind:        notification.KindEntityEnteredState,
		SubjectType: "installment",
		SubjectID:   uuid.New(),
		Message:     "installment entered status \"overdue\"",
		DeepLink:    "/installment/abc",
		EpochToken:  epoch,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateRoundTrip() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	n := newTestNotification(tenantID, notification.TenantWide(), "epoch-rt")
	row, created, err := s.store.Create(ctx, n)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(n.ID, row.ID)
	s.True(row.Audience.IsTenantWide())
	s.False(row.IsRead)
	s.Nil(row.ReadAt)
}

// TestConcurrentCreateSameEpoch verifies the unique index arbitrates racing
// creators: one insert, everyone else gets the canonical row back.
func (s *PostgresStoreSuite) TestConcurrentCreateSameEpoch() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	subjectID := uuid.New()
	const goroutines = 20

	var wg sync.WaitGroup
	var createdCount atomic.Int32
	ids := make(chan uuid.UUID, goroutines)

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := newTestNotification(tenantID, notification.TenantWide(), "epoch-race")
			n.SubjectID = subjectID
			row, created, err := s.store.Create(ctx, n)
			if !s.NoError(err) {
				return
			}
			if created {
				createdCount.Add(1)
			}
			ids <- row.ID
		}()
	}
	wg.Wait()
	close(ids)

	s.Equal(int32(1), createdCount.Load(), "exactly one create should insert")

	// Every caller got the same canonical row.
	var first uuid.UUID
	for rowID := range ids {
		if first == uuid.Nil {
			first = rowID
			continue
		}
		s.Equal(first, rowID)
	}
}

func (s *PostgresStoreSuite) TestMarkRead() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	actorID := id.NewActorID()
	readAt := time.Now().UTC().Truncate(time.Microsecond)

	row, _, err := s.store.Create(ctx, newTestNotification(tenantID, notification.TenantWide(), "epoch-read"))
	s.Require().NoError(err)

	read, err := s.store.MarkRead(ctx, tenantID, actorID, row.ID, readAt)
	s.Require().NoError(err)
	s.True(read.IsRead)
	s.Require().NotNil(read.ReadAt)
	s.Equal(readAt, read.ReadAt.UTC())

	s.Run("idempotent keeps first read time", func() {
		again, err := s.store.MarkRead(ctx, tenantID, actorID, row.ID, readAt.Add(time.Hour))
		s.Require().NoError(err)
		s.Equal(readAt, again.ReadAt.UTC())
	})

	s.Run("cross tenant is not found", func() {
		_, err := s.store.MarkRead(ctx, id.NewTenantID(), actorID, row.ID, readAt)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.MarkRead(ctx, tenantID, actorID, uuid.New(), readAt)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *PostgresStoreSuite) TestMarkReadAudience() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	target := id.NewActorID()
	other := id.NewActorID()
	readAt := time.Now().UTC()

	row, _, err := s.store.Create(ctx, newTestNotification(tenantID, notification.ForActor(target), "epoch-aud"))
	s.Require().NoError(err)

	_, err = s.store.MarkRead(ctx, tenantID, other, row.ID, readAt)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	read, err := s.store.MarkRead(ctx, tenantID, target, row.ID, readAt)
	s.Require().NoError(err)
	s.True(read.IsRead)
}

func (s *PostgresStoreSuite) TestListAndUnreadCount() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	actorID := id.NewActorID()

	// Three visible (two tenant-wide, one targeted) plus one for someone else.
	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, audience := range []notification.Audience{
		notification.TenantWide(),
		notification.TenantWide(),
		notification.ForActor(actorID),
		notification.ForActor(id.NewActorID()),
	} {
		n := newTestNotification(tenantID, audience, uuid.NewString())
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, _, err := s.store.Create(ctx, n)
		s.Require().NoError(err)
	}

	rows, total, err := s.store.List(ctx, tenantID, actorID, notification.Filter{}, notification.PageRequest{Limit: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(rows, 2)
	s.True(rows[0].CreatedAt.After(rows[1].CreatedAt), "newest first")

	count, err := s.store.UnreadCount(ctx, tenantID, actorID)
	s.Require().NoError(err)
	s.Equal(3, count)

	_, err = s.store.MarkRead(ctx, tenantID, actorID, rows[0].ID, time.Now().UTC())
	s.Require().NoError(err)

	unread := false
	rows, total, err = s.store.List(ctx, tenantID, actorID, notification.Filter{IsRead: &unread}, notification.PageRequest{Limit: 10})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(rows, 2)
}

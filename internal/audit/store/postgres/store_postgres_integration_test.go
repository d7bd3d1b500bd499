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
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"beacon/internal/audit"
	"beacon/internal/audit/store/postgres"
	id "beacon/pkg/domain"
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
	err := s.postgres.TruncateTables(context.Background(), "audit_entries", "audit_stream_offsets")
	s.Require().NoError(err)
}

func newTestEntry(tenantID id.TenantID, action audit.Action, epoch string) *audit.Entry {
	return &audit.Entry{
		ID:          uuid.New(),
		TenantID:    tenantID,
		SubjectType: "installment",
		SubjectID:   uuid.New(),
		Action:      action,
		AfterState:  []byte(`{"status":"overdue"}`),
		EpochToken:  epoch,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestAppendAndQuery() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	entry := newTestEntry(tenantID, audit.ActionStatusTransition, "epoch-abc")
	inserted, err := s.store.Append(ctx, entry)
	s.Require().NoError(err)
	s.True(inserted)
	s.Positive(entry.Seq)

	page, err := s.store.Query(ctx, tenantID, audit.Filter{}, "", 10)
	s.Require().NoError(err)
	s.Require().Len(page.Entries, 1)

	got := page.Entries[0]
	s.Equal(entry.ID, got.ID)
	s.Equal(tenantID, got.TenantID)
	s.Nil(got.ActorID)
	s.Equal("epoch-abc", got.EpochToken)
	s.JSONEq(`{"status":"overdue"}`, string(got.AfterState))
}

// TestConcurrentEpochDedup verifies that racing detector runs writing the
// same transition epoch produce exactly one row.
func (s *PostgresStoreSuite) TestConcurrentEpochDedup() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	subjectID := uuid.New()
	const goroutines = 20

	var wg sync.WaitGroup
	var insertedCount atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := newTestEntry(tenantID, audit.ActionStatusTransition, "epoch-race")
			entry.SubjectID = subjectID
			inserted, err := s.store.Append(ctx, entry)
			s.NoError(err)
			if inserted {
				insertedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), insertedCount.Load(), "exactly one append should insert")

	page, err := s.store.Query(ctx, tenantID, audit.Filter{}, "", 100)
	s.Require().NoError(err)
	s.Len(page.Entries, 1)
}

func (s *PostgresStoreSuite) TestActorEntriesNeverDedup() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	actorID := id.NewActorID()
	subjectID := uuid.New()

	for range 3 {
		entry := newTestEntry(tenantID, audit.ActionUpdate, "")
		entry.SubjectID = subjectID
		entry.ActorID = &actorID
		inserted, err := s.store.Append(ctx, entry)
		s.Require().NoError(err)
		s.True(inserted)
	}

	page, err := s.store.Query(ctx, tenantID, audit.Filter{}, "", 10)
	s.Require().NoError(err)
	s.Len(page.Entries, 3)
}

// TestImmutabilityTrigger verifies the schema itself rejects mutation, so
// append-only does not depend on this codebase being the only writer.
func (s *PostgresStoreSuite) TestImmutabilityTrigger() {
	ctx := context.Background()
	entry := newTestEntry(id.NewTenantID(), audit.ActionCreate, "")
	_, err := s.store.Append(ctx, entry)
	s.Require().NoError(err)

	assertBlocked := func(query string, args ...any) {
		_, err := s.postgres.DB.ExecContext(ctx, query, args...)
		s.Require().Error(err)
		var pqErr *pq.Error
		s.Require().True(errors.As(err, &pqErr))
		s.Equal(pq.ErrorCode("23001"), pqErr.Code)
	}

	assertBlocked(`UPDATE audit_entries SET action = 'tampered' WHERE id = $1`, entry.ID)
	assertBlocked(`DELETE FROM audit_entries WHERE id = $1`, entry.ID)

	// The row is untouched.
	page, err := s.store.Query(ctx, entry.TenantID, audit.Filter{}, "", 10)
	s.Require().NoError(err)
	s.Require().Len(page.Entries, 1)
	s.Equal(audit.ActionCreate, page.Entries[0].Action)
}

func (s *PostgresStoreSuite) TestQuerySeqOrderAndCursor() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	for range 5 {
		_, err := s.store.Append(ctx, newTestEntry(tenantID, audit.ActionUpdate, ""))
		s.Require().NoError(err)
	}

	first, err := s.store.Query(ctx, tenantID, audit.Filter{}, "", 3)
	s.Require().NoError(err)
	s.Require().Len(first.Entries, 3)
	s.Require().NotEmpty(first.NextCursor)

	second, err := s.store.Query(ctx, tenantID, audit.Filter{}, first.NextCursor, 3)
	s.Require().NoError(err)
	s.Require().Len(second.Entries, 2)
	s.Empty(second.NextCursor)

	all := append(first.Entries, second.Entries...)
	for i := 1; i < len(all); i++ {
		s.Greater(all[i].Seq, all[i-1].Seq)
	}
}

func (s *PostgresStoreSuite) TestTenantIsolation() {
	ctx := context.Background()
	tenantA := id.NewTenantID()
	tenantB := id.NewTenantID()

	_, err := s.store.Append(ctx, newTestEntry(tenantA, audit.ActionUpdate, ""))
	s.Require().NoError(err)

	page, err := s.store.Query(ctx, tenantB, audit.Filter{}, "", 10)
	s.Require().NoError(err)
	s.Empty(page.Entries)
}

func (s *PostgresStoreSuite) TestStreamOffsets() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	var lastSeq int64
	for range 3 {
		entry := newTestEntry(tenantID, audit.ActionUpdate, "")
		_, err := s.store.Append(ctx, entry)
		s.Require().NoError(err)
		lastSeq = entry.Seq
	}

	offset, err := s.store.StreamOffset(ctx, "relay-test")
	s.Require().NoError(err)
	s.Zero(offset)

	entries, err := s.store.ListAfterSeq(ctx, 0, 10)
	s.Require().NoError(err)
	s.Len(entries, 3)

	s.Require().NoError(s.store.SetStreamOffset(ctx, "relay-test", lastSeq))
	offset, err = s.store.StreamOffset(ctx, "relay-test")
	s.Require().NoError(err)
	s.Equal(lastSeq, offset)

	rest, err := s.store.ListAfterSeq(ctx, offset, 10)
	s.Require().NoError(err)
	s.Empty(rest)
}

package audit_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"beacon/internal/audit"
	"beacon/internal/audit/store/memory"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/requestcontext"
	"beacon/pkg/scope"
)

type LedgerSuite struct {
	suite.Suite
	store  *memory.InMemoryStore
	ledger *audit.Ledger

	tenantID id.TenantID
	actorID  id.ActorID
	scope    scope.Scope
	now      time.Time
	ctx      context.Context
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.ledger = audit.NewLedger(s.store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s.tenantID = id.NewTenantID()
	s.actorID = id.NewActorID()
	var err error
	s.scope, err = scope.New(s.tenantID, s.actorID)
	s.Require().NoError(err)

	s.now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *LedgerSuite) entry(action audit.Action) audit.Entry {
	return audit.Entry{
		TenantID:    s.tenantID,
		SubjectType: "installment",
		SubjectID:   uuid.New(),
		ActorID:     &s.actorID,
		Action:      action,
		AfterState:  []byte(`{"status":"overdue"}`),
	}
}

func (s *LedgerSuite) TestAppend() {
	s.Run("fills id and timestamp", func() {
		entryID, inserted, err := s.ledger.Append(s.ctx, s.entry(audit.ActionUpdate))
		s.Require().NoError(err)
		s.True(inserted)
		s.NotEqual(uuid.Nil, entryID)

		page, err := s.ledger.Query(s.ctx, s.scope, audit.Filter{}, "", 10)
		s.Require().NoError(err)
		s.Require().Len(page.Entries, 1)
		s.Equal(entryID, page.Entries[0].ID)
		s.Equal(s.now, page.Entries[0].CreatedAt)
	})

	s.Run("rejects missing tenant", func() {
		entry := s.entry(audit.ActionUpdate)
		entry.TenantID = id.TenantID{}
		_, _, err := s.ledger.Append(s.ctx, entry)
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("rejects missing subject", func() {
		entry := s.entry(audit.ActionUpdate)
		entry.SubjectID = uuid.Nil
		_, _, err := s.ledger.Append(s.ctx, entry)
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("rejects missing action", func() {
		entry := s.entry("")
		_, _, err := s.ledger.Append(s.ctx, entry)
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})
}

func (s *LedgerSuite) TestAppendEpochIdempotency() {
	entry := s.entry(audit.ActionStatusTransition)
	entry.ActorID = nil
	entry.EpochToken = "0a1b2c3d4e5f60718293a4b5c6d7e8f9"

	_, inserted, err := s.ledger.Append(s.ctx, entry)
	s.Require().NoError(err)
	s.True(inserted)

	// A replayed detector run writes the identical epoch and must no-op.
	_, inserted, err = s.ledger.Append(s.ctx, entry)
	s.Require().NoError(err)
	s.False(inserted)

	page, err := s.ledger.Query(s.ctx, s.scope, audit.Filter{}, "", 10)
	s.Require().NoError(err)
	s.Len(page.Entries, 1)

	s.Run("actor entries never deduplicate", func() {
		actorEntry := s.entry(audit.ActionUpdate)
		for range 2 {
			_, inserted, err := s.ledger.Append(s.ctx, actorEntry)
			s.Require().NoError(err)
			s.True(inserted)
		}
	})
}

func (s *LedgerSuite) TestQueryOrderingAndPagination() {
	subjectID := uuid.New()
	for range 5 {
		entry := s.entry(audit.ActionUpdate)
		entry.SubjectID = subjectID
		_, _, err := s.ledger.Append(s.ctx, entry)
		s.Require().NoError(err)
	}

	page, err := s.ledger.Query(s.ctx, s.scope, audit.Filter{}, "", 3)
	s.Require().NoError(err)
	s.Require().Len(page.Entries, 3)
	s.NotEmpty(page.NextCursor)

	rest, err := s.ledger.Query(s.ctx, s.scope, audit.Filter{}, page.NextCursor, 3)
	s.Require().NoError(err)
	s.Require().Len(rest.Entries, 2)
	s.Empty(rest.NextCursor)

	// Write order is total: every entry's seq strictly increases.
	all := append(page.Entries, rest.Entries...)
	for i := 1; i < len(all); i++ {
		s.Greater(all[i].Seq, all[i-1].Seq)
	}
}

func (s *LedgerSuite) TestQueryFilters() {
	installment := s.entry(audit.ActionUpdate)
	_, _, err := s.ledger.Append(s.ctx, installment)
	s.Require().NoError(err)

	invoice := s.entry(audit.ActionCreate)
	invoice.SubjectType = "invoice"
	_, _, err = s.ledger.Append(s.ctx, invoice)
	s.Require().NoError(err)

	s.Run("by subject type", func() {
		page, err := s.ledger.Query(s.ctx, s.scope, audit.Filter{SubjectType: "invoice"}, "", 10)
		s.Require().NoError(err)
		s.Require().Len(page.Entries, 1)
		s.Equal("invoice", page.Entries[0].SubjectType)
	})

	s.Run("by subject id", func() {
		page, err := s.ledger.Query(s.ctx, s.scope, audit.Filter{SubjectID: &installment.SubjectID}, "", 10)
		s.Require().NoError(err)
		s.Require().Len(page.Entries, 1)
		s.Equal(installment.SubjectID, page.Entries[0].SubjectID)
	})

	s.Run("by action", func() {
		page, err := s.ledger.Query(s.ctx, s.scope, audit.Filter{Action: audit.ActionCreate}, "", 10)
		s.Require().NoError(err)
		s.Len(page.Entries, 1)
	})

	s.Run("by time range excludes everything outside it", func() {
		from := s.now.Add(time.Hour)
		page, err := s.ledger.Query(s.ctx, s.scope, audit.Filter{From: &from}, "", 10)
		s.Require().NoError(err)
		s.Empty(page.Entries)
	})
}

func (s *LedgerSuite) TestQueryTenantIsolation() {
	_, _, err := s.ledger.Append(s.ctx, s.entry(audit.ActionUpdate))
	s.Require().NoError(err)

	otherScope, err := scope.New(id.NewTenantID(), id.NewActorID())
	s.Require().NoError(err)

	page, err := s.ledger.Query(s.ctx, otherScope, audit.Filter{}, "", 10)
	s.Require().NoError(err)
	s.Empty(page.Entries)
}

func (s *LedgerSuite) TestQueryRequiresScope() {
	_, err := s.ledger.Query(s.ctx, scope.Scope{}, audit.Filter{}, "", 10)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

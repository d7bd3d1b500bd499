package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"beacon/internal/audit"
	"beacon/internal/audit/store/memory"
	id "beacon/pkg/domain"
	"beacon/pkg/requestcontext"
	"beacon/pkg/scope"
)

type HandlerSuite struct {
	suite.Suite
	ledger  *audit.Ledger
	handler *Handler
	router  chi.Router

	tenantID id.TenantID
	actorID  id.ActorID
	scope    scope.Scope
	now      time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ledger = audit.NewLedger(memory.NewInMemoryStore(), logger)
	s.handler = New(s.ledger, logger, nil)

	s.router = chi.NewRouter()
	s.router.Get("/api/audit", s.handler.handleQuery)

	s.tenantID = id.NewTenantID()
	s.actorID = id.NewActorID()
	var err error
	s.scope, err = scope.New(s.tenantID, s.actorID)
	s.Require().NoError(err)

	s.now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func (s *HandlerSuite) request(target string, callerScope scope.Scope) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := requestcontext.WithScope(req.Context(), callerScope)
	ctx = requestcontext.WithTime(ctx, s.now)
	return req.WithContext(ctx)
}

func (s *HandlerSuite) seed(subjectType string, action audit.Action) audit.Entry {
	entry := audit.Entry{
		TenantID:    s.tenantID,
		SubjectType: subjectType,
		SubjectID:   uuid.New(),
		ActorID:     &s.actorID,
		Action:      action,
		AfterState:  []byte(`{"status":"overdue"}`),
	}
	ctx := requestcontext.WithTime(context.Background(), s.now)
	entryID, _, err := s.ledger.Append(ctx, entry)
	s.Require().NoError(err)
	entry.ID = entryID
	return entry
}

func (s *HandlerSuite) TestQuery() {
	s.seed("installment", audit.ActionUpdate)
	s.seed("invoice", audit.ActionCreate)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.request("/api/audit", s.scope))

	s.Require().Equal(http.StatusOK, w.Code)
	var resp struct {
		Entries []map[string]any `json:"entries"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Require().Len(resp.Entries, 2)
	// Snapshots round-trip verbatim.
	s.Equal(map[string]any{"status": "overdue"}, resp.Entries[0]["after_state"])
}

func (s *HandlerSuite) TestQueryFilters() {
	s.seed("installment", audit.ActionUpdate)
	target := s.seed("invoice", audit.ActionCreate)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.request("/api/audit?subject_type=invoice&action=create", s.scope))

	s.Require().Equal(http.StatusOK, w.Code)
	var resp struct {
		Entries []map[string]any `json:"entries"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Require().Len(resp.Entries, 1)
	s.Equal(target.SubjectID.String(), resp.Entries[0]["subject_id"])
}

func (s *HandlerSuite) TestQueryPagination() {
	for range 3 {
		s.seed("installment", audit.ActionUpdate)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.request("/api/audit?limit=2", s.scope))

	s.Require().Equal(http.StatusOK, w.Code)
	var resp struct {
		Entries    []map[string]any `json:"entries"`
		NextCursor string           `json:"next_cursor"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Len(resp.Entries, 2)
	s.Require().NotEmpty(resp.NextCursor)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, s.request("/api/audit?limit=2&cursor="+resp.NextCursor, s.scope))
	s.Require().Equal(http.StatusOK, w.Code)
	resp.Entries, resp.NextCursor = nil, ""
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Len(resp.Entries, 1)
	s.Empty(resp.NextCursor)
}

func (s *HandlerSuite) TestQueryBadInputs() {
	s.Run("bad subject id", func() {
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, s.request("/api/audit?subject_id=nope", s.scope))
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("bad time bound", func() {
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, s.request("/api/audit?from=yesterday", s.scope))
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("bad limit", func() {
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, s.request("/api/audit?limit=ten", s.scope))
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestQueryTenantIsolation() {
	s.seed("installment", audit.ActionUpdate)

	otherScope, err := scope.New(id.NewTenantID(), s.actorID)
	s.Require().NoError(err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.request("/api/audit", otherScope))

	s.Require().Equal(http.StatusOK, w.Code)
	var resp struct {
		Entries []map[string]any `json:"entries"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Empty(resp.Entries)
}

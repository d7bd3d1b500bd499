// Package handler exposes the tenant audit ledger over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"beacon/internal/audit"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/platform/middleware/auth"
	"beacon/pkg/platform/middleware/request"
	"beacon/pkg/requestcontext"
	"beacon/pkg/scope"
)

// Service defines the ledger operations the handler needs.
type Service interface {
	Query(ctx context.Context, callerScope scope.Scope, filter audit.Filter, cursor string, limit int) (audit.Page, error)
}

// Handler handles the audit query endpoint.
type Handler struct {
	logger    *slog.Logger
	ledger    Service
	validator auth.TokenValidator
}

// New creates the audit Handler.
func New(ledger Service, logger *slog.Logger, validator auth.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		ledger:    ledger,
		validator: validator,
	}
}

// Register mounts the audit routes behind the scope middleware.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(trail chi.Router) {
		trail.Use(auth.RequireScope(h.validator, h.logger))
		trail.Get("/api/audit", h.handleQuery)
	})
}

type entryResponse struct {
	ID          string          `json:"id"`
	SubjectType string          `json:"subject_type"`
	SubjectID   string          `json:"subject_id"`
	ActorID     *string         `json:"actor_id,omitempty"`
	Action      string          `json:"action"`
	BeforeState jsonStateOrNull `json:"before_state,omitempty"`
	AfterState  jsonStateOrNull `json:"after_state,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// jsonStateOrNull re-emits a stored snapshot verbatim without a decode
// round-trip.
type jsonStateOrNull []byte

func (s jsonStateOrNull) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return s, nil
}

type queryResponse struct {
	Entries    []entryResponse `json:"entries"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	callerScope, ok := requestcontext.Scope(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "scope missing from context despite auth middleware",
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
	}

	page, err := h.ledger.Query(ctx, callerScope, filter, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to query audit ledger",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := queryResponse{
		Entries:    make([]entryResponse, 0, len(page.Entries)),
		NextCursor: page.NextCursor,
	}
	for _, entry := range page.Entries {
		resp.Entries = append(resp.Entries, toEntryResponse(entry))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		SubjectType: q.Get("subject_type"),
		Action:      audit.Action(q.Get("action")),
	}

	if raw := q.Get("subject_id"); raw != "" {
		subjectID, err := uuid.Parse(raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid subject id")
		}
		filter.SubjectID = &subjectID
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest, "from must be RFC 3339")
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest, "to must be RFC 3339")
		}
		filter.To = &to
	}
	return filter, nil
}

func toEntryResponse(entry audit.Entry) entryResponse {
	resp := entryResponse{
		ID:          entry.ID.String(),
		SubjectType: entry.SubjectType,
		SubjectID:   entry.SubjectID.String(),
		Action:      string(entry.Action),
		BeforeState: jsonStateOrNull(entry.BeforeState),
		AfterState:  jsonStateOrNull(entry.AfterState),
		CreatedAt:   entry.CreatedAt,
	}
	if entry.ActorID != nil {
		s := entry.ActorID.String()
		resp.ActorID = &s
	}
	return resp
}

// Package handler exposes the notification feed over HTTP. It is a thin
// layer: scope comes from middleware, decisions come from the service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"beacon/internal/notification"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/platform/middleware/auth"
	"beacon/pkg/platform/middleware/request"
	"beacon/pkg/requestcontext"
	"beacon/pkg/scope"
)

// Service defines the notification operations the handler needs.
type Service interface {
	List(ctx context.Context, callerScope scope.Scope, filter notification.Filter, page notification.PageRequest) (notification.Page, error)
	MarkRead(ctx context.Context, callerScope scope.Scope, notificationID uuid.UUID) (*notification.Notification, error)
	UnreadCount(ctx context.Context, callerScope scope.Scope) (int, error)
}

// Handler handles the notification feed endpoints.
type Handler struct {
	logger        *slog.Logger
	notifications Service
	validator     auth.TokenValidator
}

// New creates the notification Handler.
func New(notifications Service, logger *slog.Logger, validator auth.TokenValidator) *Handler {
	return &Handler{
		logger:        logger,
		notifications: notifications,
		validator:     validator,
	}
}

// Register mounts the feed routes behind the scope middleware.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(feed chi.Router) {
		feed.Use(auth.RequireScope(h.validator, h.logger))
		feed.Get("/api/notifications", h.handleList)
		feed.Get("/api/notifications/unread-count", h.handleUnreadCount)
		feed.Patch("/api/notifications/{notificationID}/read", h.handleMarkRead)
	})
}

type notificationResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	SubjectType string     `json:"subject_type"`
	SubjectID   string     `json:"subject_id"`
	Message     string     `json:"message"`
	DeepLink    string     `json:"deep_link,omitempty"`
	IsRead      bool       `json:"is_read"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

type listResponse struct {
	Notifications []notificationResponse `json:"notifications"`
	Total         int                    `json:"total"`
	UnreadCount   int                    `json:"unread_count"`
	Offset        int                    `json:"offset"`
	Limit         int                    `json:"limit"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	callerScope, ok := requestcontext.Scope(ctx)
	if !ok {
		h.scopeMissing(w, ctx)
		return
	}

	var filter notification.Filter
	if raw := r.URL.Query().Get("is_read"); raw != "" {
		isRead, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "is_read must be true or false"))
			return
		}
		filter.IsRead = &isRead
	}

	page := notification.PageRequest{
		Offset: queryInt(r, "offset"),
		Limit:  queryInt(r, "limit"),
	}

	result, err := h.notifications.List(ctx, callerScope, filter, page)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list notifications",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := listResponse{
		Notifications: make([]notificationResponse, 0, len(result.Notifications)),
		Total:         result.Total,
		UnreadCount:   result.UnreadCount,
		Offset:        page.Offset,
		Limit:         page.Limit,
	}
	for _, n := range result.Notifications {
		resp.Notifications = append(resp.Notifications, toNotificationResponse(n))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	callerScope, ok := requestcontext.Scope(ctx)
	if !ok {
		h.scopeMissing(w, ctx)
		return
	}

	count, err := h.notifications.UnreadCount(ctx, callerScope)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count unread notifications",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	callerScope, ok := requestcontext.Scope(ctx)
	if !ok {
		h.scopeMissing(w, ctx)
		return
	}

	notificationID, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid notification id"))
		return
	}

	row, err := h.notifications.MarkRead(ctx, callerScope, notificationID)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to mark notification read",
				"request_id", request.GetRequestID(ctx),
				"notification_id", notificationID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toNotificationResponse(*row))
}

func (h *Handler) scopeMissing(w http.ResponseWriter, ctx context.Context) {
	// Reaching here means the auth middleware is miswired, not a caller bug.
	h.logger.ErrorContext(ctx, "scope missing from context despite auth middleware",
		"request_id", request.GetRequestID(ctx),
	)
	httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
}

func toNotificationResponse(n notification.Notification) notificationResponse {
	return notificationResponse{
		ID:          n.ID.String(),
		Kind:        string(n.Kind),
		SubjectType: n.SubjectType,
		SubjectID:   n.SubjectID.String(),
		Message:     n.Message,
		DeepLink:    n.DeepLink,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
		ReadAt:      n.ReadAt,
	}
}

func queryInt(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

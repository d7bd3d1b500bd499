// Package handler exposes the on-demand detector run to operators.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"beacon/internal/detector"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/platform/middleware/admin"
	"beacon/pkg/platform/middleware/request"
)

// Service defines the detector operation the handler needs.
type Service interface {
	Run(ctx context.Context, req detector.RunRequest) (detector.RunSummary, error)
}

// Handler handles the operator-only detector endpoints.
type Handler struct {
	logger     *slog.Logger
	detector   Service
	adminToken string
}

// New creates the detector Handler.
func New(detectorService Service, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		detector:   detectorService,
		adminToken: adminToken,
	}
}

// Register mounts the admin routes behind the admin token guard.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(ops chi.Router) {
		ops.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		ops.Post("/admin/detector/run", h.handleRun)
	})
}

type runRequest struct {
	TenantID string `json:"tenant_id,omitempty"`
	Since    string `json:"since,omitempty"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	req := detector.RunRequest{}
	if body.TenantID != "" {
		tenantID, err := id.ParseTenantID(body.TenantID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
			return
		}
		req.TenantID = &tenantID
	}
	if body.Since != "" {
		since, err := time.Parse(time.RFC3339, body.Since)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "since must be RFC 3339"))
			return
		}
		req.Since = &since
	}

	summary, err := h.detector.Run(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "detector run failed",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "detector run failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

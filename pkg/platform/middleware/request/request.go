// Package request stamps every request with an ID for log correlation.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"beacon/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// RequestID attaches a request ID from the inbound header, or mints one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

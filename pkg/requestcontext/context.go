// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Values are set by middleware and consumed by services. Keeping this package
// free of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	callerScope, ok := requestcontext.Scope(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithScope(ctx, callerScope)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests and workers (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"beacon/pkg/scope"
)

type (
	scopeKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Scope retrieves the caller's authorization scope from the context.
// The second return is false when no authenticated scope was attached.
func Scope(ctx context.Context) (scope.Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(scope.Scope)
	if !ok || s.IsZero() {
		return scope.Scope{}, false
	}
	return s, true
}

// WithScope injects an authorization scope into the context.
func WithScope(ctx context.Context, s scope.Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests without injection).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests and for workers that need a consistent time within a batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Package auth verifies bearer tokens and attaches the caller's scope.
//
// Token validation and scope construction are the only two steps; everything
// downstream reads the scope from the context and never re-derives tenant or
// actor from the request.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "beacon/pkg/domain"
	"beacon/pkg/platform/middleware/request"
	"beacon/pkg/requestcontext"
	"beacon/pkg/scope"
)

// Claims are the identity claims a validated token yields.
type Claims struct {
	TenantID string
	ActorID  string
}

// TokenValidator validates a raw bearer token into identity claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// HMACValidator validates HS256 tokens carrying the tenant in a "tid" claim
// and the actor in the subject.
type HMACValidator struct {
	secret []byte
	issuer string
}

func NewHMACValidator(secret []byte, issuer string) *HMACValidator {
	return &HMACValidator{secret: secret, issuer: issuer}
}

func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	tenantID, _ := mapClaims["tid"].(string)
	if tenantID == "" {
		return nil, fmt.Errorf("token missing tid claim")
	}
	actorID, err := mapClaims.GetSubject()
	if err != nil || actorID == "" {
		return nil, fmt.Errorf("token missing subject")
	}
	return &Claims{TenantID: tenantID, ActorID: actorID}, nil
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireScope rejects requests without a valid bearer token and attaches
// the resulting scope to the context.
func RequireScope(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			callerScope, err := buildScope(claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed identity claims",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid identity claims")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithScope(ctx, callerScope)))
		})
	}
}

func buildScope(claims *Claims) (scope.Scope, error) {
	tenantID, err := id.ParseTenantID(claims.TenantID)
	if err != nil {
		return scope.Scope{}, err
	}
	actorID, err := id.ParseActorID(claims.ActorID)
	if err != nil {
		return scope.Scope{}, err
	}
	return scope.New(tenantID, actorID)
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cognefi/agentgate/internal/ctxkey"
	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/google/uuid"
)

// RequestIDKey is the context key for the request ID.
// Uses shared key type from ctxkey package so the decision trail can read
// the correlation id without importing this package.
var RequestIDKey = ctxkey.RequestIDKey{}

// LoggerKey is the context key for the enriched logger.
// Uses shared key type from ctxkey package to allow cross-package access without import cycles.
var LoggerKey = ctxkey.LoggerKey{}

// principalContextKey is the type for the resolved principal context key.
type principalContextKey struct{}

// PrincipalKey is the context key for the authenticated principal.
var PrincipalKey = principalContextKey{}

// RequestIDMiddleware extracts or generates a request ID and enriches the logger.
// The request ID is stored in context using RequestIDKey.
// An enriched logger with request_id field is stored using LoggerKey.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enrichedLogger := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, enrichedLogger)

			// Set response header for correlation
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// PrincipalFromContext retrieves the authenticated principal from context.
// Returns nil if the request did not pass the auth middleware.
func PrincipalFromContext(ctx context.Context) *authz.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*authz.Principal); ok {
		return p
	}
	return nil
}

// KeyResolver maps a raw API key to a user ID.
type KeyResolver interface {
	Resolve(ctx context.Context, rawKey string) (string, error)
}

// authMiddleware resolves the caller's identity into a policy principal and
// stores it in the request context. Identity comes from either an
// "Authorization: Bearer <key>" header resolved through the key directory,
// or (in dev mode) a bare X-User-Id header.
//
// Requests without a resolvable identity are rejected with 401 before any
// handler runs. Every downstream policy check receives the principal built
// here, so a disabled user or suspended tenant is visible to the decision
// point on the very next request.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := h.identify(ctx, r)
		if err != nil {
			h.metrics.AuthzFailures.WithLabelValues("unauthenticated").Inc()
			h.respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		principal, err := h.authz.ResolvePrincipal(ctx, userID)
		if err != nil {
			h.metrics.AuthzFailures.WithLabelValues("unauthenticated").Inc()
			h.respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx = context.WithValue(ctx, PrincipalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identify extracts the caller's user ID from request credentials.
func (h *Handler) identify(ctx context.Context, r *http.Request) (string, error) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		rawKey := strings.TrimPrefix(auth, "Bearer ")
		return h.keys.Resolve(ctx, rawKey)
	}
	if h.allowHeaderIdentity {
		if userID := r.Header.Get("X-User-Id"); userID != "" {
			return userID, nil
		}
	}
	return "", authz.ErrUnauthenticated
}

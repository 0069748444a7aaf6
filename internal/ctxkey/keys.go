// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

import "context"

// LoggerKey is the context key type for the enriched logger.
// Used by HTTP middleware to store and retrieve the logger with request_id/tenant_id fields.
type LoggerKey struct{}

// RequestIDKey is the context key type for the request correlation id.
// Stored by HTTP middleware and read by the decision trail.
type RequestIDKey struct{}

// RequestIDFromContext returns the request id stored in ctx, or empty.
func RequestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return s
	}
	return ""
}

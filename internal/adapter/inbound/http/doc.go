// Package http is the inbound REST adapter. It exposes tenant, user, and
// agent administration plus the execution gate over JSON, resolves the
// caller's identity into a policy principal exactly once per request, and
// maps service errors onto HTTP status codes.
//
// Layout:
//
//   - transport.go: Server lifecycle, Prometheus registry, middleware chain
//   - middleware.go: request ID, enriched logger, identity resolution
//   - handler.go: route table, JSON helpers, error-to-status mapping
//   - tenant_handlers.go / user_handlers.go / agent_handlers.go /
//     run_handlers.go: per-resource endpoints and response DTOs
//   - health.go: component health probe behind /health
//   - metrics.go: metric definitions, recorded by the middleware and the
//     run endpoints
//
// Authorization itself lives in the service layer; this package never
// decides access, it only carries the principal and renders the verdict.
// Policy denials and decision-point failures both surface as a generic 403
// so responses never reveal whether a resource exists.
package http

// Package service contains application services.
package service

import "errors"

// Service errors shared across services. Domain packages own their own
// not-found and conflict errors; these cover the cross-cutting cases.
var (
	// ErrInvalidInput is returned when a request fails validation. The
	// wrapped message names the offending field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable is returned when the model provider cannot
	// serve an execution request.
	ErrUpstreamUnavailable = errors.New("model provider unavailable")

	// ErrAgentDisabled is returned when a run targets a disabled agent.
	ErrAgentDisabled = errors.New("agent is disabled")
)

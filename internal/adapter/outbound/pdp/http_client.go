// Package pdp provides the HTTP client adapter for the external policy
// decision point.
package pdp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/port/outbound"
)

const (
	// checkPath is the decision endpoint on the PDP.
	checkPath = "/api/check/resources"

	// effectAllow is the only verdict that permits an action. Anything
	// else, including verdicts we don't recognize, is a denial.
	effectAllow = "EFFECT_ALLOW"

	// DefaultTimeout bounds one decision round trip. A timed-out check
	// resolves to a denial, never stays ambiguous.
	DefaultTimeout = 2 * time.Second

	// maxResponseBodySize caps the decision response we will read.
	// A misbehaving PDP must not be able to exhaust memory here.
	maxResponseBodySize = 1 * 1024 * 1024 // 1MB
)

// checkRequest is the wire format of one decision request.
type checkRequest struct {
	RequestID string          `json:"requestId"`
	Principal *authz.Principal `json:"principal"`
	Resources []resourceEntry `json:"resources"`
}

type resourceEntry struct {
	Resource authz.Resource `json:"resource"`
	Actions  []string       `json:"actions"`
}

// checkResponse is the wire format of the PDP's reply. Each result carries a
// per-action verdict.
type checkResponse struct {
	RequestID string `json:"requestId"`
	Results   []struct {
		Resource struct {
			Kind string `json:"kind"`
			ID   string `json:"id"`
		} `json:"resource"`
		Actions map[string]string `json:"actions"`
	} `json:"results"`
}

// ClientOption is a functional option for configuring HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-check timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// HTTPClient asks an external policy decision point for verdicts over HTTP.
// It implements the outbound.DecisionClient interface.
//
// One HTTPClient holds one shared *http.Client with a pooled transport and
// is safe for concurrent use. Every failure mode on the decision path
// (transport error, non-200 status, malformed body, missing verdict,
// timeout) resolves to authz.EffectError, never to an allow.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer

	checks   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewHTTPClient creates a decision client for the given PDP base URL.
func NewHTTPClient(endpoint string, logger *slog.Logger, opts ...ClientOption) *HTTPClient {
	meter := otel.Meter("agentgate/pdp")
	checks, err := meter.Int64Counter("pdp.checks",
		metric.WithDescription("Decision checks by effect"))
	if err != nil {
		otel.Handle(err)
	}
	duration, err := meter.Float64Histogram("pdp.check.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Decision check round-trip time"))
	if err != nil {
		otel.Handle(err)
	}

	c := &HTTPClient{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
		logger:   logger,
		tracer:   otel.Tracer("agentgate/pdp"),
		checks:   checks,
		duration: duration,
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check issues one decision request for a single (resource, action) pair and
// reads back the per-action verdict.
func (c *HTTPClient) Check(ctx context.Context, principal *authz.Principal, resource authz.Resource, action string) authz.Decision {
	ctx, span := c.tracer.Start(ctx, "pdp.check", trace.WithAttributes(
		attribute.String("authz.resource_kind", resource.Kind),
		attribute.String("authz.action", action),
	))
	defer span.End()

	start := time.Now()
	d := c.check(ctx, principal, resource, action)
	span.SetAttributes(attribute.String("authz.effect", d.Effect.String()))

	effect := attribute.String("authz.effect", d.Effect.String())
	c.checks.Add(ctx, 1, metric.WithAttributes(effect))
	c.duration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond),
		metric.WithAttributes(effect))
	if d.Effect == authz.EffectError {
		c.logger.Warn("policy decision point unavailable, failing closed",
			"action", action, "resource_kind", resource.Kind, "reason", d.Reason)
	}
	return d
}

func (c *HTTPClient) check(ctx context.Context, principal *authz.Principal, resource authz.Resource, action string) authz.Decision {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := checkRequest{
		RequestID: uuid.NewString(),
		Principal: principal,
		Resources: []resourceEntry{{Resource: resource, Actions: []string{action}}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return authz.Error(fmt.Sprintf("encode decision request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+checkPath, bytes.NewReader(payload))
	if err != nil {
		return authz.Error(fmt.Sprintf("build decision request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return authz.Error(fmt.Sprintf("decision transport: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return authz.Error(fmt.Sprintf("decision point returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return authz.Error(fmt.Sprintf("read decision response: %v", err))
	}

	var parsed checkResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return authz.Error(fmt.Sprintf("malformed decision response: %v", err))
	}

	if len(parsed.Results) == 0 {
		return authz.Error("decision response carries no results")
	}
	verdict, ok := parsed.Results[0].Actions[action]
	if !ok {
		return authz.Error(fmt.Sprintf("decision response carries no verdict for action %q", action))
	}

	if verdict != effectAllow {
		return authz.Deny(fmt.Sprintf("policy denied %s on %s", action, resource.Kind))
	}
	return authz.Allow()
}

// Close releases idle connections in the shared transport.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Compile-time interface verification.
var _ outbound.DecisionClient = (*HTTPClient)(nil)

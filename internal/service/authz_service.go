package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cognefi/agentgate/internal/ctxkey"
	"github.com/cognefi/agentgate/internal/domain/audit"
	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/domain/user"
	"github.com/cognefi/agentgate/internal/port/outbound"
)

// AuthzService resolves request identities into policy principals and runs
// every access check through the policy decision point.
//
// The fold happens here: a decision of EffectError is surfaced to callers
// as the same ErrForbidden an explicit deny produces. No caller ever sees
// an allow on a failed check.
type AuthzService struct {
	users     user.UserStore
	tenants   tenant.TenantStore
	decisions outbound.DecisionClient
	trail     audit.Trail
	logger    *slog.Logger
}

// NewAuthzService creates a new AuthzService.
func NewAuthzService(
	users user.UserStore,
	tenants tenant.TenantStore,
	decisions outbound.DecisionClient,
	logger *slog.Logger,
) *AuthzService {
	return &AuthzService{
		users:     users,
		tenants:   tenants,
		decisions: decisions,
		logger:    logger,
	}
}

// ResolvePrincipal loads the stored profile for userID and builds the
// policy principal from it. Lifecycle attributes (user and tenant status)
// travel on the principal so the policy enforces them uniformly; no status
// checks happen here.
// Returns authz.ErrUnauthenticated when no profile exists.
func (s *AuthzService) ResolvePrincipal(ctx context.Context, userID string) (*authz.Principal, error) {
	p, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, authz.ErrUnauthenticated
		}
		return nil, fmt.Errorf("resolve principal: %w", err)
	}

	tenantStatus := ""
	if p.TenantID != "" {
		t, err := s.tenants.Get(ctx, p.TenantID)
		if err != nil {
			if !errors.Is(err, tenant.ErrTenantNotFound) {
				return nil, fmt.Errorf("resolve principal tenant: %w", err)
			}
			// A dangling tenant reference leaves the status empty; the
			// policy's lifecycle gate treats empty as no tenant.
		} else {
			tenantStatus = string(t.Status)
		}
	}

	return &authz.Principal{
		ID:    p.ID,
		Roles: []string{p.Role.PolicyName()},
		Attr: map[string]any{
			"tenant_id":     p.TenantID,
			"user_status":   string(p.Status),
			"tenant_status": tenantStatus,
		},
	}, nil
}

// SetTrail attaches a decision trail. Every Authorize outcome is recorded
// as enforced; a nil trail disables recording.
func (s *AuthzService) SetTrail(t audit.Trail) {
	s.trail = t
}

// Authorize checks principal against resource and action. Any outcome
// other than an explicit allow, including decision-point errors, returns
// authz.ErrForbidden.
func (s *AuthzService) Authorize(ctx context.Context, principal *authz.Principal, resource authz.Resource, action string) error {
	start := time.Now()
	d := s.decisions.Check(ctx, principal, resource, action)
	s.record(ctx, principal, resource, action, d, time.Since(start))
	switch d.Effect {
	case authz.EffectAllow:
		return nil
	case authz.EffectError:
		s.logger.Error("policy check failed, denying",
			"principal", principal.ID, "resource_kind", resource.Kind,
			"resource_id", resource.ID, "action", action, "reason", d.Reason)
		return fmt.Errorf("%w: policy check unavailable", authz.ErrForbidden)
	default:
		s.logger.Info("access denied",
			"principal", principal.ID, "resource_kind", resource.Kind,
			"resource_id", resource.ID, "action", action, "reason", d.Reason)
		return authz.ErrForbidden
	}
}

// record appends the decision to the trail. Trail failures are logged,
// never surfaced; enforcement already happened.
func (s *AuthzService) record(ctx context.Context, principal *authz.Principal, resource authz.Resource, action string, d authz.Decision, elapsed time.Duration) {
	if s.trail == nil {
		return
	}
	rec := audit.Record{
		Timestamp:     time.Now().UTC(),
		RequestID:     ctxkey.RequestIDFromContext(ctx),
		PrincipalID:   principal.ID,
		TenantID:      principal.TenantID(),
		ResourceKind:  resource.Kind,
		ResourceID:    resource.ID,
		Action:        action,
		Effect:        d.Effect.String(),
		Reason:        d.Reason,
		LatencyMicros: elapsed.Microseconds(),
	}
	if err := s.trail.Append(ctx, rec); err != nil {
		s.logger.Error("decision trail append failed", "error", err)
	}
}

package authz

import (
	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/domain/tenant"
)

// ResourceKind values submitted to the decision point.
const (
	KindAgent  = "agent"
	KindTenant = "tenant"
	KindUser   = "user"
)

// AgentResource builds the policy resource for an agent. Pure: no lookups,
// no role logic. requesterTenantID is the tenant making the request, empty
// for platform-level actors. isSubscribed must be resolved by the caller
// before building.
func AgentResource(a *agent.Agent, requesterTenantID string, isSubscribed bool) Resource {
	var owner any
	if a.OwnerTenantID != "" {
		owner = a.OwnerTenantID
	}
	var requester any
	if requesterTenantID != "" {
		requester = requesterTenantID
	}
	return Resource{
		Kind: KindAgent,
		ID:   a.ID,
		Attr: map[string]any{
			"tenant_id":       requester,
			"owner_tenant_id": owner,
			"visibility":      string(a.AccessType),
			"is_global":       a.AccessType == agent.AccessGlobal,
			"is_public":       a.IsPublic,
			"is_subscribed":   isSubscribed,
		},
	}
}

// NewAgentResource builds the policy resource for an agent that doesn't
// exist yet (the create action). The id is a placeholder; the decision point
// evaluates ownership from the attributes alone.
func NewAgentResource(accessType agent.AccessType, ownerTenantID, requesterTenantID string) Resource {
	a := agent.Agent{
		ID:            "new",
		OwnerTenantID: ownerTenantID,
		AccessType:    accessType,
	}
	return AgentResource(&a, requesterTenantID, false)
}

// TenantResource builds the policy resource for a tenant. isGlobal marks the
// platform tenant itself.
func TenantResource(t *tenant.Tenant, isGlobal bool) Resource {
	return Resource{
		Kind: KindTenant,
		ID:   t.ID,
		Attr: map[string]any{
			"tenant_id": t.ID,
			"status":    string(t.Status),
			"is_global": isGlobal,
		},
	}
}

// TenantCollectionResource builds the policy resource for tenant-collection
// actions (list, create) where no concrete tenant exists.
func TenantCollectionResource() Resource {
	return Resource{
		Kind: KindTenant,
		ID:   "all",
		Attr: map[string]any{"is_global": false},
	}
}

// UserResource builds the policy resource for a user. principalUserID is the
// id of the acting principal; the is_self comparison is explicit here so the
// policy never needs identity lookups.
func UserResource(targetUserID, targetTenantID, principalUserID string, targetIsSuperAdmin bool) Resource {
	return Resource{
		Kind: KindUser,
		ID:   targetUserID,
		Attr: map[string]any{
			"tenant_id":      targetTenantID,
			"is_self":        targetUserID == principalUserID,
			"is_super_admin": targetIsSuperAdmin,
		},
	}
}

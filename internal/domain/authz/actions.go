package authz

// Agent actions. Semantics are owned by the decision point's policy.
const (
	ActionListMarketplace = "list_marketplace"
	ActionCreate          = "create"
	ActionSubscribe       = "subscribe"
	ActionRun             = "run"
	ActionUpdate          = "update"
	ActionDelete          = "delete"
	ActionUnsubscribe     = "unsubscribe"
	ActionListMyAgents    = "list_my_agents"
)

// Tenant actions.
const (
	ActionList         = "list"
	ActionUpdateStatus = "update_status"
)

// User actions.
const (
	ActionUpdateRole = "update_role"
)

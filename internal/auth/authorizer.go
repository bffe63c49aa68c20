package auth

import (
	"context"
	"strings"

	"societyhub/internal/model"
)

// Action names a guarded operation, e.g. "listings.approve".
type Action string

const (
	ActionCreateListing   Action = "listings.create"
	ActionCreateComplaint Action = "complaints.create"
	ActionIssueBill       Action = "bills.issue"
	ActionPayBill         Action = "bills.pay"
	ActionResolve         Action = "complaints.resolve"
	ActionGateEntry       Action = "gate.entry"
	ActionGateExit        Action = "gate.exit"
	ActionGateRead        Action = "gate.read"
	ActionUsersRead       Action = "users.read"
	ActionUsersWrite      Action = "users.write"
)

// Moderation verbs combined with a kind by ActionFor.
const (
	VerbApprove = "approve"
	VerbReject  = "reject"
	VerbReview  = "review"
	VerbResolve = "resolve"
	VerbPay     = "pay"
)

// ActionFor builds the action guarding verb on resources of kind.
func ActionFor(kind model.Kind, verb string) Action {
	return Action(string(kind) + "." + verb)
}

// Authorizer answers policy checks. The policy itself is defined outside
// the services that call it.
type Authorizer interface {
	IsAuthorized(ctx context.Context, p Principal, action Action) bool
}

// Policy maps each role to the actions it may perform. "*" grants everything.
type Policy map[model.Role][]Action

// DefaultPolicy lets admins moderate and bill, guards run the gate, and
// residents create their own listings and complaints.
func DefaultPolicy() Policy {
	return Policy{
		model.RoleAdmin: {"*"},
		model.RoleGuard: {ActionGateEntry, ActionGateExit, ActionGateRead},
		model.RoleResident: {
			ActionCreateListing,
			ActionCreateComplaint,
		},
	}
}

// ParsePolicy applies overrides keyed by role, each value a "|" separated
// action list. Roles not present keep their default grants.
func ParsePolicy(overrides map[string]string) Policy {
	p := DefaultPolicy()
	for role, list := range overrides {
		var actions []Action
		for _, a := range strings.Split(list, "|") {
			if a = strings.TrimSpace(a); a != "" {
				actions = append(actions, Action(a))
			}
		}
		p[model.Role(strings.TrimSpace(role))] = actions
	}
	return p
}

// RoleAuthorizer grants actions by the principal's role.
type RoleAuthorizer struct {
	grants map[model.Role]map[Action]struct{}
}

// NewRoleAuthorizer creates an authorizer enforcing policy.
func NewRoleAuthorizer(policy Policy) *RoleAuthorizer {
	grants := make(map[model.Role]map[Action]struct{}, len(policy))
	for role, actions := range policy {
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		grants[role] = set
	}
	return &RoleAuthorizer{grants: grants}
}

func (a *RoleAuthorizer) IsAuthorized(_ context.Context, p Principal, action Action) bool {
	if p.ID == "" {
		return false
	}
	set := a.grants[p.Role]
	if _, ok := set["*"]; ok {
		return true
	}
	_, ok := set[action]
	return ok
}

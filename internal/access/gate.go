// Package access decides whether a principal may perform an action.
// Every role and ownership rule of the API lives in the policy table below.
package access

import (
	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
)

type Action string

const (
	CatalogRead         Action = "catalog.read"
	ProductCreate       Action = "product.create"
	ProductUpdate       Action = "product.update"
	ProductDelete       Action = "product.delete"
	ProductViewInactive Action = "product.view_inactive"
	ProductListOwn      Action = "product.list_own"

	CartRead  Action = "cart.read"
	CartWrite Action = "cart.write"

	OrderCreate       Action = "order.create"
	OrderRead         Action = "order.read"
	OrderListOwn      Action = "order.list_own"
	OrderCancel       Action = "order.cancel"
	OrderListAll      Action = "order.list_all"
	OrderUpdateStatus Action = "order.update_status"

	ProjectCreate     Action = "project.create"
	ProjectListOwn    Action = "project.list_own"
	ProjectRead       Action = "project.read"
	ProjectUpdate     Action = "project.update"
	ProjectDelete     Action = "project.delete"
	ProjectChildRead  Action = "project.child.read"
	ProjectChildWrite Action = "project.child.write"

	UserSelf  Action = "user.self"
	StatsRead Action = "stats.read"
)

// Rule describes who may perform an action. A public rule needs no
// principal. Empty Roles means any authenticated principal. Owned rules
// also require the resource owner to be the principal.
type Rule struct {
	Public bool
	Roles  []auth.Role
	Owned  bool
}

type Policy map[Action]Rule

// Resource carries the owner of the object an action touches: a product's
// seller, an order's buyer, or a project's client (also for its children).
type Resource struct {
	OwnerID string
}

func Owner(id string) *Resource { return &Resource{OwnerID: id} }

func roles(r ...auth.Role) []auth.Role { return r }

func DefaultPolicy() Policy {
	return Policy{
		CatalogRead:         {Public: true},
		ProductCreate:       {Roles: roles(auth.RoleSeller)},
		ProductUpdate:       {Roles: roles(auth.RoleSeller), Owned: true},
		ProductDelete:       {Roles: roles(auth.RoleSeller), Owned: true},
		ProductViewInactive: {Roles: roles(auth.RoleSeller), Owned: true},
		ProductListOwn:      {Roles: roles(auth.RoleSeller)},

		CartRead:  {Roles: roles(auth.RoleBuyer)},
		CartWrite: {Roles: roles(auth.RoleBuyer)},

		OrderCreate:       {Roles: roles(auth.RoleBuyer)},
		OrderRead:         {Roles: roles(auth.RoleBuyer), Owned: true},
		OrderListOwn:      {Roles: roles(auth.RoleBuyer)},
		OrderCancel:       {Roles: roles(auth.RoleBuyer), Owned: true},
		OrderListAll:      {Roles: roles(auth.RoleAdmin)},
		OrderUpdateStatus: {Roles: roles(auth.RoleAdmin)},

		ProjectCreate:     {Roles: roles(auth.RoleClient)},
		ProjectListOwn:    {Roles: roles(auth.RoleClient)},
		ProjectRead:       {Roles: roles(auth.RoleClient), Owned: true},
		ProjectUpdate:     {Roles: roles(auth.RoleClient), Owned: true},
		ProjectDelete:     {Roles: roles(auth.RoleClient), Owned: true},
		ProjectChildRead:  {Roles: roles(auth.RoleClient), Owned: true},
		ProjectChildWrite: {Roles: roles(auth.RoleClient), Owned: true},

		UserSelf:  {},
		StatsRead: {Roles: roles(auth.RoleAdmin)},
	}
}

type Gate struct {
	policy Policy
}

func NewGate(p Policy) *Gate { return &Gate{policy: p} }

// Authorize returns nil when p may perform a on res. It returns an
// authentication_required error when p is nil and the action is not public,
// and forbidden on a role or ownership mismatch or an unknown action.
// Admins pass every role and ownership check.
func (g *Gate) Authorize(p *auth.Principal, a Action, res *Resource) error {
	rule, ok := g.policy[a]
	if !ok {
		return apperr.Forbidden()
	}
	if rule.Public {
		return nil
	}
	if p == nil {
		return apperr.AuthRequired()
	}
	if p.IsAdmin() {
		return nil
	}
	if len(rule.Roles) > 0 && !hasRole(rule.Roles, p.Role) {
		return apperr.Forbidden()
	}
	if rule.Owned && (res == nil || res.OwnerID != p.ID) {
		return apperr.Forbidden()
	}
	return nil
}

// Allowed is Authorize as a boolean.
func (g *Gate) Allowed(p *auth.Principal, a Action, res *Resource) bool {
	return g.Authorize(p, a, res) == nil
}

func hasRole(rs []auth.Role, r auth.Role) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}

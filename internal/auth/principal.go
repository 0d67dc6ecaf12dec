// Package auth resolves the principal making a request: roles, bearer
// tokens and password hashes.
package auth

import "github.com/gin-gonic/gin"

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleClient, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether a user may register with the role.
func (r Role) SelfAssignable() bool { return r.Valid() && r != RoleAdmin }

// Principal is the authenticated actor of a request.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (p *Principal) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

const principalKey = "principal"

// PrincipalFrom returns the principal set by Middleware, or nil.
func PrincipalFrom(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

func SetPrincipal(c *gin.Context, p *Principal) { c.Set(principalKey, p) }

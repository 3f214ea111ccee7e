package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/terojleinonen/cms-admin-sub001/internal/authz"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
)

// RoutePolicy declares what the gate enforces for one route.
type RoutePolicy struct {
	// Name identifies the route in outcome records and metrics.
	Name string
	// Class selects the rate-limit budget.
	Class string
	// Resource is recorded as the audit resource.
	Resource string
	// Browser routes answer denials with redirects instead of JSON.
	Browser bool
	// Public routes are only rate limited.
	Public bool

	MinRole      models.UserRole
	AllowedRoles []models.UserRole
	// Permissions maps the request method to the permission it requires.
	Permissions map[string]authz.Permission
	SelfGuard   *SelfGuard
}

// SelfGuard denies requests that target the caller. Param names the path
// parameter holding the target; an empty Param marks a route that always
// acts on the caller.
type SelfGuard struct {
	Param string
	// Roles limits the guard to these caller roles; empty applies to all.
	Roles []models.UserRole
}

func (g *SelfGuard) applies(role models.UserRole) bool {
	if len(g.Roles) == 0 {
		return true
	}
	for _, r := range g.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (g *SelfGuard) targetsCaller(c *gin.Context, userID string) bool {
	if g.Param == "" {
		return true
	}
	return c.Param(g.Param) == userID
}

func (p RoutePolicy) resource() string {
	if p.Resource != "" {
		return p.Resource
	}
	if p.Name != "" {
		return p.Name
	}
	return "route"
}

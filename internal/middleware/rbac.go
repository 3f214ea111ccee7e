package middleware

import (
	"net/http"

	"github.com/terojleinonen/cms-admin-sub001/internal/authz"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
)

// methodOverrideHeaders are recorded but never change the required permission.
var methodOverrideHeaders = []string{"X-HTTP-Method-Override", "X-HTTP-Method", "X-Method-Override"}

// checkRole applies the coarse role gate. Callers below the minimum role are
// treated as escalation attempts; role allow-list misses as plain denials.
func checkRole(e authz.Evaluator, policy RoutePolicy, subject *authz.Subject) (authz.Decision, models.SecurityCode) {
	if policy.MinRole != "" && !e.HasMinimumRole(subject, policy.MinRole) {
		return authz.Denied(authz.ReasonInsufficientRole, appErrors.ErrForbidden.Code), models.SecurityPrivilegeEscalation
	}
	if len(policy.AllowedRoles) > 0 {
		for _, role := range policy.AllowedRoles {
			if role == subject.Role {
				return authz.Allowed(), ""
			}
		}
		return authz.Denied(authz.ReasonRoleNotAllowed, appErrors.ErrForbidden.Code), models.SecurityAccessDenied
	}
	return authz.Allowed(), ""
}

// checkPermission applies the fine-grained permission bound to the actual
// request method. A policy with permissions but none for the method denies.
func checkPermission(e authz.Evaluator, policy RoutePolicy, subject *authz.Subject, r *http.Request) (authz.Decision, models.SecurityCode) {
	if len(policy.Permissions) == 0 {
		return authz.Allowed(), ""
	}
	required, ok := policy.Permissions[r.Method]
	if !ok {
		return authz.Denied(authz.ReasonMissingPerm, appErrors.ErrForbidden.Code), models.SecurityAccessDenied
	}
	if decision := e.Check(subject, required); !decision.IsAllowed() {
		return decision, models.SecurityAccessDenied
	}
	return authz.Allowed(), ""
}

func methodOverride(r *http.Request) string {
	for _, h := range methodOverrideHeaders {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	return ""
}

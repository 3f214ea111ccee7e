package router

import (
	"net/http"

	"github.com/terojleinonen/cms-admin-sub001/internal/authz"
	"github.com/terojleinonen/cms-admin-sub001/internal/middleware"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/pkg/config"
)

func perms(method string, p authz.Permission) map[string]authz.Permission {
	return map[string]authz.Permission{method: p}
}

var (
	loginPolicy = middleware.RoutePolicy{Name: "auth.login", Class: config.RouteClassAuth, Resource: "auth", Public: true}

	mePolicy = middleware.RoutePolicy{
		Name: "me", Class: config.RouteClassAPI, Resource: authz.ResourceProfile,
		Permissions: perms(http.MethodGet, authz.P(authz.ResourceProfile, authz.ActionRead, authz.ScopeOwn)),
	}
	profileUpdatePolicy = middleware.RoutePolicy{
		Name: "profile.update", Class: config.RouteClassAPI, Resource: authz.ResourceProfile,
		Permissions: perms(http.MethodPut, authz.P(authz.ResourceProfile, authz.ActionUpdate, authz.ScopeOwn)),
	}
	profileDeactivatePolicy = middleware.RoutePolicy{
		Name: "profile.deactivate", Class: config.RouteClassAPI, Resource: authz.ResourceProfile,
		Permissions: perms(http.MethodPost, authz.P(authz.ResourceProfile, authz.ActionUpdate, authz.ScopeOwn)),
		SelfGuard:   &middleware.SelfGuard{Roles: []models.UserRole{models.RoleAdmin}},
	}

	// Page updates and deletes are admitted at scope own; the service compares the owner.
	pagesPolicy = middleware.RoutePolicy{
		Name: "pages", Class: config.RouteClassAPI, Resource: authz.ResourcePages,
		Permissions: map[string]authz.Permission{
			http.MethodGet:  authz.P(authz.ResourcePages, authz.ActionRead, authz.ScopeAll),
			http.MethodPost: authz.P(authz.ResourcePages, authz.ActionCreate, authz.ScopeAll),
		},
	}
	pagePolicy = middleware.RoutePolicy{
		Name: "pages.item", Class: config.RouteClassAPI, Resource: authz.ResourcePages,
		Permissions: map[string]authz.Permission{
			http.MethodGet:    authz.P(authz.ResourcePages, authz.ActionRead, authz.ScopeAll),
			http.MethodPut:    authz.P(authz.ResourcePages, authz.ActionUpdate, authz.ScopeOwn),
			http.MethodDelete: authz.P(authz.ResourcePages, authz.ActionDelete, authz.ScopeOwn),
		},
	}

	usersListPolicy = middleware.RoutePolicy{
		Name: "admin.users", Class: config.RouteClassAPI, Resource: authz.ResourceUsers,
		MinRole: models.RoleEditor,
		Permissions: map[string]authz.Permission{
			http.MethodGet:  authz.P(authz.ResourceUsers, authz.ActionRead, authz.ScopeAll),
			http.MethodPost: authz.P(authz.ResourceUsers, authz.ActionCreate, authz.ScopeAll),
		},
	}
	userPolicy = middleware.RoutePolicy{
		Name: "admin.users.item", Class: config.RouteClassAPI, Resource: authz.ResourceUsers,
		MinRole: models.RoleAdmin,
		Permissions: map[string]authz.Permission{
			http.MethodGet: authz.P(authz.ResourceUsers, authz.ActionRead, authz.ScopeAll),
			http.MethodPut: authz.P(authz.ResourceUsers, authz.ActionUpdate, authz.ScopeAll),
		},
	}
	userRolePolicy = middleware.RoutePolicy{
		Name: "admin.users.role", Class: config.RouteClassAPI, Resource: authz.ResourceUsers,
		MinRole:     models.RoleAdmin,
		Permissions: perms(http.MethodPut, authz.P(authz.ResourceUsers, authz.ActionUpdate, authz.ScopeAll)),
		SelfGuard:   &middleware.SelfGuard{Param: "id"},
	}
	userStatusPolicy = middleware.RoutePolicy{
		Name: "admin.users.status", Class: config.RouteClassAPI, Resource: authz.ResourceUsers,
		MinRole:     models.RoleAdmin,
		Permissions: perms(http.MethodPatch, authz.P(authz.ResourceUsers, authz.ActionUpdate, authz.ScopeAll)),
		SelfGuard:   &middleware.SelfGuard{Param: "id"},
	}
	roleHistoryPolicy = middleware.RoutePolicy{
		Name: "admin.users.role_history", Class: config.RouteClassAPI, Resource: authz.ResourceAudit,
		MinRole:     models.RoleAdmin,
		Permissions: perms(http.MethodGet, authz.P(authz.ResourceAudit, authz.ActionRead, authz.ScopeAll)),
	}

	auditReadPolicy = middleware.RoutePolicy{
		Name: "admin.audit", Class: config.RouteClassAPI, Resource: authz.ResourceAudit,
		MinRole:     models.RoleAdmin,
		Permissions: perms(http.MethodGet, authz.P(authz.ResourceAudit, authz.ActionRead, authz.ScopeAll)),
	}
	auditExportPolicy = middleware.RoutePolicy{
		Name: "admin.audit.export", Class: config.RouteClassExport, Resource: authz.ResourceAudit,
		MinRole:     models.RoleAdmin,
		Permissions: perms(http.MethodGet, authz.P(authz.ResourceAudit, authz.ActionRead, authz.ScopeAll)),
	}
	auditCleanupPolicy = middleware.RoutePolicy{
		Name: "admin.audit.cleanup", Class: config.RouteClassAPI, Resource: authz.ResourceAudit,
		MinRole:     models.RoleAdmin,
		Permissions: perms(http.MethodPost, authz.P(authz.ResourceAudit, authz.ActionDelete, authz.ScopeAll)),
	}
	systemPolicy = middleware.RoutePolicy{
		Name: "admin.system", Class: config.RouteClassAPI, Resource: authz.ResourceSystem,
		MinRole:     models.RoleAdmin,
		Permissions: perms(http.MethodGet, authz.P(authz.ResourceSystem, authz.ActionRead, authz.ScopeAll)),
	}

	adminShellPolicy = middleware.RoutePolicy{
		Name: "admin.shell", Class: config.RouteClassPublic, Resource: "admin",
		Browser: true, MinRole: models.RoleEditor,
	}
)

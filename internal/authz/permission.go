// Package authz holds the role permission model and the evaluator that every
// enforcement point consults.
package authz

import "github.com/terojleinonen/cms-admin-sub001/internal/models"

// Actions.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionManage = "manage"
)

// Scopes. An empty scope is role-level and not ownership-qualified.
const (
	ScopeOwn = "own"
	ScopeAll = "all"
)

// Resources.
const (
	ResourcePages      = "pages"
	ResourceProducts   = "products"
	ResourceCategories = "categories"
	ResourceMedia      = "media"
	ResourceUsers      = "users"
	ResourceSecurity   = "security"
	ResourceSystem     = "system"
	ResourceAudit      = "audit"
	ResourceSettings   = "settings"
	ResourceProfile    = "profile"
)

// Permission is a (resource, action, scope) tuple.
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Scope    string `json:"scope,omitempty"`
}

// P is shorthand for building a Permission.
func P(resource, action, scope string) Permission {
	return Permission{Resource: resource, Action: action, Scope: scope}
}

var crud = []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

var viewerPermissions = []Permission{
	P(ResourcePages, ActionRead, ScopeAll),
	P(ResourceProducts, ActionRead, ScopeAll),
	P(ResourceCategories, ActionRead, ScopeAll),
	P(ResourceMedia, ActionRead, ScopeAll),
	P(ResourceProfile, ActionRead, ScopeOwn),
	P(ResourceProfile, ActionUpdate, ScopeOwn),
}

var editorPermissions = append(append([]Permission{}, viewerPermissions...),
	P(ResourcePages, ActionCreate, ScopeAll),
	P(ResourceProducts, ActionCreate, ScopeAll),
	P(ResourceMedia, ActionCreate, ScopeAll),
	P(ResourcePages, ActionUpdate, ScopeOwn),
	P(ResourcePages, ActionDelete, ScopeOwn),
	P(ResourceProducts, ActionUpdate, ScopeOwn),
	P(ResourceProducts, ActionDelete, ScopeOwn),
	P(ResourceMedia, ActionUpdate, ScopeOwn),
	P(ResourceMedia, ActionDelete, ScopeOwn),
	P(ResourceUsers, ActionRead, ScopeAll),
	P(ResourceAudit, ActionRead, ScopeOwn),
)

var adminPermissions = []Permission{
	P(ResourcePages, ActionManage, ""),
	P(ResourceProducts, ActionManage, ""),
	P(ResourceCategories, ActionManage, ""),
	P(ResourceMedia, ActionManage, ""),
	P(ResourceUsers, ActionManage, ""),
	P(ResourceSecurity, ActionManage, ""),
	P(ResourceSystem, ActionManage, ""),
	P(ResourceAudit, ActionManage, ""),
	P(ResourceSettings, ActionManage, ""),
	P(ResourceProfile, ActionManage, ""),
}

var rolePermissions = map[models.UserRole][]Permission{
	models.RoleViewer: viewerPermissions,
	models.RoleEditor: editorPermissions,
	models.RoleAdmin:  adminPermissions,
}

// PermissionsFor returns a copy of the permissions declared for role, or nil
// for an unknown role.
func PermissionsFor(role models.UserRole) []Permission {
	declared, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(declared))
	copy(out, declared)
	return out
}

// Expand replaces every manage entry with create, read, update and delete
// at scope all. Other entries are kept as declared.
func Expand(perms []Permission) []Permission {
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if p.Action != ActionManage {
			out = append(out, p)
			continue
		}
		for _, action := range crud {
			out = append(out, Permission{Resource: p.Resource, Action: action, Scope: ScopeAll})
		}
	}
	return out
}

// Matches reports whether the held entry satisfies required.
func (p Permission) Matches(required Permission) bool {
	if p.Resource != required.Resource || p.Action != required.Action {
		return false
	}
	return p.Scope == "" || p.Scope == required.Scope || p.Scope == ScopeAll
}

// expanded caches Expand per role; the declared sets never change at runtime.
var expanded = func() map[models.UserRole][]Permission {
	out := make(map[models.UserRole][]Permission, len(rolePermissions))
	for role, perms := range rolePermissions {
		out[role] = Expand(perms)
	}
	return out
}()

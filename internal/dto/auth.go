package dto

import (
	"github.com/terojleinonen/cms-admin-sub001/internal/authz"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
)

// PermissionsResponse lets clients gate UI elements with the same evaluator
// the server enforces.
type PermissionsResponse struct {
	UserID      string             `json:"userId"`
	Role        models.UserRole    `json:"role"`
	RoleLevel   int                `json:"roleLevel"`
	Permissions []authz.Permission `json:"permissions"`
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/terojleinonen/cms-admin-sub001/internal/authz"
	"github.com/terojleinonen/cms-admin-sub001/internal/dto"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Me(ctx context.Context, userID string) (*models.UserInfo, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service   authService
	evaluator authz.Evaluator
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, evaluator authz.Evaluator) *AuthHandler {
	return &AuthHandler{service: svc, evaluator: evaluator}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req, "invalid login payload") {
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's info
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	info, err := h.service.Me(c.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, info, nil)
}

// Permissions godoc
// @Summary Effective permissions
// @Description Returns the caller's expanded permission set and role level
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/permissions [get]
func (h *AuthHandler) Permissions(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	subject := authz.SubjectFromIdentity(identity)
	perms := h.evaluator.EffectivePermissions(subject)
	if perms == nil {
		perms = []authz.Permission{}
	}

	response.JSON(c, http.StatusOK, dto.PermissionsResponse{
		UserID:      identity.UserID,
		Role:        identity.Role,
		RoleLevel:   identity.Role.Level(),
		Permissions: perms,
	}, nil)
}

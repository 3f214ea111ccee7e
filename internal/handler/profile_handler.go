package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/terojleinonen/cms-admin-sub001/internal/middleware"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/internal/service"
	"github.com/terojleinonen/cms-admin-sub001/pkg/response"
)

type profileService interface {
	UpdateProfile(ctx context.Context, req service.UpdateProfileRequest, meta models.RequestMeta) (*models.User, error)
	DeactivateSelf(ctx context.Context, req service.DeactivateSelfRequest, meta models.RequestMeta) error
}

// ProfileHandler serves the caller's own account.
type ProfileHandler struct {
	service profileService
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(svc profileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Update godoc
// @Summary Update own profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /profile [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	if _, ok := currentIdentity(c); !ok {
		return
	}
	var req service.UpdateProfileRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// Deactivate godoc
// @Summary Deactivate own account
// @Description Requires the current password; administrators cannot deactivate themselves
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.DeactivateSelfRequest true "Confirmation"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /profile/deactivate [post]
func (h *ProfileHandler) Deactivate(c *gin.Context) {
	if _, ok := currentIdentity(c); !ok {
		return
	}
	var req service.DeactivateSelfRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}

	if err := h.service.DeactivateSelf(c.Request.Context(), req, middleware.RequestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

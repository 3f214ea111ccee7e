package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/terojleinonen/cms-admin-sub001/internal/middleware"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
	"github.com/terojleinonen/cms-admin-sub001/pkg/response"
)

// currentIdentity returns the caller resolved by the gate or writes a 401.
func currentIdentity(c *gin.Context) (*models.Identity, bool) {
	identity := middleware.IdentityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return identity, true
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

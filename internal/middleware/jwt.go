package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/pkg/middleware/requestid"
)

// ContextIdentityKey is the gin context key storing the resolved caller.
const ContextIdentityKey = "currentIdentity"

// IdentityProvider verifies an access token and resolves the caller. A
// non-nil identity may accompany an error when the account is inactive.
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
}

// tokenFromRequest returns the bearer token, falling back to the session
// cookie only when no Authorization header was sent.
func tokenFromRequest(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	if cookieName == "" {
		return ""
	}
	value, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return value
}

// IdentityFromContext returns the identity stored by the gate.
func IdentityFromContext(c *gin.Context) *models.Identity {
	value, exists := c.Get(ContextIdentityKey)
	if !exists {
		return nil
	}
	identity, ok := value.(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequestMeta builds the audit attribution of the current request.
func RequestMeta(c *gin.Context) models.RequestMeta {
	meta := models.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: requestid.Value(c),
	}
	if identity := IdentityFromContext(c); identity != nil {
		meta.ActorID = identity.UserID
		meta.ActorRole = identity.Role
	}
	return meta
}

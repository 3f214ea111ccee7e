package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
)

// OutcomeRecorder persists gate outcomes.
type OutcomeRecorder interface {
	Log(ctx context.Context, entry models.AuditEntry) (*models.AuditLog, error)
	LogSecurityEvent(ctx context.Context, code models.SecurityCode, entry models.AuditEntry) (*models.AuditLog, error)
}

// outcome is the single record written for one request.
type outcome struct {
	actor    string
	code     models.SecurityCode
	action   string
	result   string
	severity models.Severity
	reason   string
	status   int
}

func (g *Gate) record(c *gin.Context, policy RoutePolicy, o outcome) {
	details := models.Details{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"route":  policy.Name,
		"status": o.status,
	}
	if o.reason != "" {
		details["reason"] = o.reason
	}
	if override := methodOverride(c.Request); override != "" {
		details["methodOverride"] = override
	}
	meta := RequestMeta(c)
	if meta.RequestID != "" {
		details["requestId"] = meta.RequestID
	}

	entry := models.AuditEntry{
		UserID:    o.actor,
		Action:    o.action,
		Resource:  policy.resource(),
		Details:   details,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Severity:  o.severity,
		Result:    o.result,
	}
	if entry.UserID == "" {
		entry.UserID = models.ActorAnonymous
	}

	// the outcome is recorded even when the client has gone away
	ctx := context.WithoutCancel(c.Request.Context())
	var err error
	if o.code != "" {
		_, err = g.audit.LogSecurityEvent(ctx, o.code, entry)
	} else {
		_, err = g.audit.Log(ctx, entry)
	}
	if err != nil {
		g.logger.Error("failed to record request outcome",
			zap.String("route", policy.Name),
			zap.String("action", o.action),
			zap.String("code", string(o.code)),
			zap.Error(err),
		)
	}
}

// recordedByHandler reports whether the handler failed with a self-target
// denial, which the user service already wrote as a security event.
func recordedByHandler(c *gin.Context) bool {
	for _, e := range c.Errors {
		if errors.Is(e.Err, appErrors.ErrSelfAction) {
			return true
		}
	}
	return false
}

// allowedOutcome classifies the response of a request the gate admitted.
// A handler-level 403 is an ownership denial and recorded as such.
func allowedOutcome(actor string, status int) outcome {
	o := outcome{actor: actor, action: models.AuditActionRequestAllowed, result: models.ResultSuccess, status: status}
	switch {
	case status == http.StatusForbidden:
		o.code = models.SecurityAccessDenied
		o.result = models.ResultDenied
		o.reason = "resource_ownership"
	case status >= http.StatusBadRequest:
		o.result = models.ResultFailure
	}
	return o
}

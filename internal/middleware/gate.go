package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/terojleinonen/cms-admin-sub001/internal/authz"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/internal/service"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
	"github.com/terojleinonen/cms-admin-sub001/pkg/logger"
	"github.com/terojleinonen/cms-admin-sub001/pkg/ratelimit"
	"github.com/terojleinonen/cms-admin-sub001/pkg/response"
)

// GateConfig carries rate-limit budgets and browser redirect targets.
type GateConfig struct {
	RateLimitEnabled bool
	Rules            map[string]ratelimit.Rule
	LoginURL         string
	CallbackParam    string
	ForbiddenURL     string
	SessionCookie    string
}

// Gate runs the per-request authorization pipeline:
// rate limit, authenticate, role, permission, self guard. Every terminal
// state writes exactly one outcome record.
type Gate struct {
	identities IdentityProvider
	limiter    ratelimit.Limiter
	audit      OutcomeRecorder
	evaluator  authz.Evaluator
	denials    *DenialTracker
	metrics    *service.MetricsService
	logger     *zap.Logger
	cfg        GateConfig
}

// NewGate constructs a Gate.
func NewGate(identities IdentityProvider, limiter ratelimit.Limiter, audit OutcomeRecorder, denials *DenialTracker, metrics *service.MetricsService, log *zap.Logger, cfg GateConfig) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = "/auth/login"
	}
	if cfg.CallbackParam == "" {
		cfg.CallbackParam = "callbackUrl"
	}
	if cfg.ForbiddenURL == "" {
		cfg.ForbiddenURL = "/"
	}
	return &Gate{
		identities: identities,
		limiter:    limiter,
		audit:      audit,
		evaluator:  authz.NewEvaluator(),
		denials:    denials,
		metrics:    metrics,
		logger:     log,
		cfg:        cfg,
	}
}

// denial describes a terminal DENY state.
type denial struct {
	decision authz.Decision
	err      *appErrors.Error
	code     models.SecurityCode
	actor    string
	login    bool
}

// Require returns the middleware enforcing policy.
func (g *Gate) Require(policy RoutePolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok := g.checkRate(c, policy); !ok {
			return
		}
		if policy.Public {
			c.Next()
			return
		}

		identity, d := g.authenticate(c)
		if d != nil {
			g.deny(c, policy, *d)
			return
		}
		subject := authz.SubjectFromIdentity(identity)

		if decision, code := checkRole(g.evaluator, policy, subject); !decision.IsAllowed() {
			g.deny(c, policy, denial{decision: decision, err: appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions"), code: code, actor: identity.UserID})
			return
		}
		if decision, code := checkPermission(g.evaluator, policy, subject, c.Request); !decision.IsAllowed() {
			g.deny(c, policy, denial{decision: decision, err: appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions"), code: code, actor: identity.UserID})
			return
		}
		if guard := policy.SelfGuard; guard != nil && guard.applies(identity.Role) && guard.targetsCaller(c, identity.UserID) {
			g.deny(c, policy, denial{
				decision: authz.Denied(authz.ReasonSelfTarget, appErrors.ErrSelfAction.Code),
				err:      appErrors.ErrSelfAction,
				code:     models.SecurityRoleManipulation,
				actor:    identity.UserID,
			})
			return
		}

		c.Set(ContextIdentityKey, identity)
		c.Set(logger.ActorKey, identity.UserID)
		g.metrics.RecordAuthzDecision(authz.KindAllowed.String(), "")

		c.Next()

		if recordedByHandler(c) {
			return
		}
		g.record(c, policy, allowedOutcome(identity.UserID, c.Writer.Status()))
	}
}

func (g *Gate) checkRate(c *gin.Context, policy RoutePolicy) bool {
	if !g.cfg.RateLimitEnabled || g.limiter == nil {
		return true
	}
	rule, ok := g.cfg.Rules[policy.Class]
	if !ok || rule.Max <= 0 {
		return true
	}

	res, err := g.limiter.Allow(c.Request.Context(), policy.Class+":"+c.ClientIP(), rule)
	if err != nil {
		g.logger.Error("rate limiter unavailable", zap.String("class", policy.Class), zap.Error(err))
		g.record(c, policy, outcome{action: models.AuditActionRequestDenied, result: models.ResultFailure, reason: "limiter_unavailable", status: http.StatusServiceUnavailable})
		response.Abort(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusServiceUnavailable, "rate limiter unavailable"))
		return false
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Max))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	if res.Allowed {
		return true
	}

	g.metrics.RecordRateLimited(policy.Class)
	g.deny(c, policy, denial{
		decision: authz.RateLimited(res.RetryAfter),
		err:      appErrors.ErrRateLimited,
		code:     models.SecurityRateLimitExceeded,
		actor:    g.optionalActor(c),
	})
	return false
}

func (g *Gate) authenticate(c *gin.Context) (*models.Identity, *denial) {
	unauthenticated := &denial{
		decision: authz.Denied(authz.ReasonUnauthenticated, appErrors.ErrUnauthorized.Code),
		err:      appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"),
		login:    true,
	}

	token := tokenFromRequest(c, g.cfg.SessionCookie)
	if token == "" || g.identities == nil {
		return nil, unauthenticated
	}

	identity, err := g.identities.Authenticate(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, appErrors.ErrInactiveAccount) && identity != nil {
			return nil, &denial{
				decision: authz.Denied(authz.ReasonInactive, appErrors.ErrInactiveAccount.Code),
				err:      appErrors.ErrInactiveAccount,
				actor:    identity.UserID,
				login:    true,
			}
		}
		g.logger.Debug("authentication failed", zap.Error(err))
		return nil, unauthenticated
	}
	if identity == nil || identity.UserID == "" || !identity.Role.Valid() {
		return nil, unauthenticated
	}
	if !identity.Active {
		return nil, &denial{
			decision: authz.Denied(authz.ReasonInactive, appErrors.ErrInactiveAccount.Code),
			err:      appErrors.ErrInactiveAccount,
			actor:    identity.UserID,
			login:    true,
		}
	}
	return identity, nil
}

// optionalActor attributes a throttled request without making it depend on authentication.
func (g *Gate) optionalActor(c *gin.Context) string {
	token := tokenFromRequest(c, g.cfg.SessionCookie)
	if token == "" || g.identities == nil {
		return models.ActorAnonymous
	}
	identity, err := g.identities.Authenticate(c.Request.Context(), token)
	if err != nil || identity == nil {
		return models.ActorAnonymous
	}
	return identity.UserID
}

// deny records the outcome and then answers the request. A failed record
// write is logged and never turns the denial into an allow.
func (g *Gate) deny(c *gin.Context, policy RoutePolicy, d denial) {
	status := d.err.Status
	o := outcome{
		actor:  d.actor,
		code:   d.code,
		action: models.AuditActionRequestDenied,
		result: models.ResultDenied,
		reason: d.decision.Reason,
		status: status,
	}
	if o.actor == "" {
		o.actor = models.ActorAnonymous
	}

	if d.decision.Kind() == authz.KindDenied {
		if count, escalated := g.denials.Record(o.actor + "|" + c.ClientIP()); escalated {
			o.code = models.SecurityRepeatedAuthFailure
			o.severity = models.SeverityCritical
			o.reason = d.decision.Reason + ";repeated=" + strconv.Itoa(count)
		}
	}

	g.metrics.RecordAuthzDecision(d.decision.Kind().String(), d.decision.Reason)
	g.record(c, policy, o)

	if d.decision.Kind() == authz.KindRateLimited {
		c.Header("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(d.decision.RetryAfter)))
	}

	if policy.Browser {
		c.Redirect(http.StatusFound, g.redirectTarget(c, d))
		c.Abort()
		return
	}
	response.Abort(c, d.err)
}

func (g *Gate) redirectTarget(c *gin.Context, d denial) string {
	if d.login {
		q := url.Values{}
		q.Set(g.cfg.CallbackParam, c.Request.URL.RequestURI())
		return g.cfg.LoginURL + "?" + q.Encode()
	}
	reason := "forbidden"
	if d.decision.Kind() == authz.KindRateLimited {
		reason = "rate_limited"
	}
	return g.cfg.ForbiddenURL + "?" + url.Values{"error": []string{reason}}.Encode()
}

// Package router assembles the HTTP surface. Every route outside the health
// checks passes through the authorization gate.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/terojleinonen/cms-admin-sub001/internal/handler"
	"github.com/terojleinonen/cms-admin-sub001/internal/middleware"
	"github.com/terojleinonen/cms-admin-sub001/internal/service"
	"github.com/terojleinonen/cms-admin-sub001/pkg/logger"
	corsmiddleware "github.com/terojleinonen/cms-admin-sub001/pkg/middleware/cors"
	reqidmiddleware "github.com/terojleinonen/cms-admin-sub001/pkg/middleware/requestid"
)

// Deps carries everything the router wires together.
type Deps struct {
	Logger         *zap.Logger
	Gate           *middleware.Gate
	Metrics        *service.MetricsService
	AllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For; nil trusts no one.
	TrustedProxies []string
	APIPrefix      string
	Docs           bool

	Auth    *handler.AuthHandler
	Profile *handler.ProfileHandler
	Pages   *handler.PageHandler
	Users   *handler.UserHandler
	Audit   *handler.AuditHandler
	System  *handler.MetricsHandler
}

// New builds the gin engine.
func New(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.APIPrefix == "" {
		d.APIPrefix = "/api"
	}

	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		d.Logger.Warn("invalid trusted proxies, trusting none", zap.Strings("proxies", d.TrustedProxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.Logger))
	r.Use(corsmiddleware.New(d.AllowedOrigins))
	r.Use(middleware.Metrics(d.Metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", d.System.Health)
	r.GET("/ready", d.System.Ready)
	r.GET("/metrics", d.System.Prometheus)

	if d.Docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	g := d.Gate
	api := r.Group(d.APIPrefix)

	api.POST("/auth/login", g.Require(loginPolicy), d.Auth.Login)

	api.GET("/me", g.Require(mePolicy), d.Auth.Me)
	api.GET("/me/permissions", g.Require(mePolicy), d.Auth.Permissions)
	api.PUT("/profile", g.Require(profileUpdatePolicy), d.Profile.Update)
	api.POST("/profile/deactivate", g.Require(profileDeactivatePolicy), d.Profile.Deactivate)

	pages := api.Group("/pages")
	{
		pages.GET("", g.Require(pagesPolicy), d.Pages.List)
		pages.POST("", g.Require(pagesPolicy), d.Pages.Create)
		pages.GET("/:id", g.Require(pagePolicy), d.Pages.Get)
		pages.PUT("/:id", g.Require(pagePolicy), d.Pages.Update)
		pages.DELETE("/:id", g.Require(pagePolicy), d.Pages.Delete)
	}

	admin := api.Group("/admin")
	{
		admin.GET("/users", g.Require(usersListPolicy), d.Users.List)
		admin.POST("/users", g.Require(usersListPolicy), d.Users.Create)
		admin.GET("/users/:id", g.Require(userPolicy), d.Users.Get)
		admin.PUT("/users/:id", g.Require(userPolicy), d.Users.Update)
		admin.PUT("/users/:id/role", g.Require(userRolePolicy), d.Users.ChangeRole)
		admin.PATCH("/users/:id/status", g.Require(userStatusPolicy), d.Users.SetStatus)
		admin.GET("/users/:id/role-history", g.Require(roleHistoryPolicy), d.Users.RoleHistory)

		audit := admin.Group("/audit")
		audit.GET("/logs", g.Require(auditReadPolicy), d.Audit.Logs)
		audit.GET("/stats", g.Require(auditReadPolicy), d.Audit.Stats)
		audit.GET("/compliance", g.Require(auditReadPolicy), d.Audit.Compliance)
		audit.GET("/integrity", g.Require(auditReadPolicy), d.Audit.Integrity)
		audit.GET("/security-events", g.Require(auditReadPolicy), d.Audit.SecurityEvents)
		audit.GET("/export", g.Require(auditExportPolicy), d.Audit.Export)
		audit.POST("/cleanup", g.Require(auditCleanupPolicy), d.Audit.Cleanup)

		admin.GET("/system/metrics", g.Require(systemPolicy), d.System.System)
	}

	r.GET("/admin", g.Require(adminShellPolicy), adminShell)
	r.GET("/admin/*path", g.Require(adminShellPolicy), adminShell)

	return r
}

// adminShell is the landing payload for browser routes; the client renders the UI.
func adminShell(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"path": c.Request.URL.Path,
		"user": identity,
	})
}

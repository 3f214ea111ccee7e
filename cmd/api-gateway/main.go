package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/terojleinonen/cms-admin-sub001/api/swagger"
	"github.com/terojleinonen/cms-admin-sub001/internal/authz"
	"github.com/terojleinonen/cms-admin-sub001/internal/handler"
	"github.com/terojleinonen/cms-admin-sub001/internal/middleware"
	"github.com/terojleinonen/cms-admin-sub001/internal/repository"
	"github.com/terojleinonen/cms-admin-sub001/internal/router"
	"github.com/terojleinonen/cms-admin-sub001/internal/service"
	"github.com/terojleinonen/cms-admin-sub001/pkg/cache"
	"github.com/terojleinonen/cms-admin-sub001/pkg/config"
	"github.com/terojleinonen/cms-admin-sub001/pkg/database"
	"github.com/terojleinonen/cms-admin-sub001/pkg/logger"
	"github.com/terojleinonen/cms-admin-sub001/pkg/ratelimit"
)

// @title CMS Admin API
// @version 1.0.0
// @description Authorization, audit and compliance endpoints of the CMS admin
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, using in-process fallbacks", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	evaluator := authz.NewEvaluator()
	tx := database.NewTxManager(db)

	userRepo := repository.NewUserRepository(db)
	pageRepo := repository.NewPageRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "cms", logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Audit.StatsCacheTTL, logr, cacheRepo != nil)

	auditSvc := service.NewAuditService(auditRepo, userRepo, tx, cacheSvc, service.NewExportService(nil), metrics, validate, logr, service.AuditConfig{
		RetentionDays:    cfg.Audit.RetentionDays,
		MinRetentionDays: cfg.Audit.MinRetentionDays,
		StatsWindowDays:  cfg.Audit.StatsWindowDays,
		StatsRecentLimit: cfg.Audit.StatsRecentLimit,
		StatsCacheTTL:    cfg.Audit.StatsCacheTTL,
		ExportLimit:      cfg.Audit.ExportLimit,
	})
	authSvc := service.NewAuthService(userRepo, auditSvc, tx, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, auditSvc, tx, validate, logr)
	pageSvc := service.NewPageService(pageRepo, auditSvc, tx, evaluator, validate, logr)

	gate := middleware.NewGate(
		authSvc,
		newLimiter(cfg.RateLimit, redisClient, logr),
		auditSvc,
		middleware.NewDenialTracker(cfg.Audit.EscalationThreshold, cfg.Audit.EscalationWindow),
		metrics,
		logr,
		middleware.GateConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			Rules:            rateRules(cfg.RateLimit),
			LoginURL:         cfg.Auth.LoginURL,
			CallbackParam:    cfg.Auth.CallbackParam,
			ForbiddenURL:     cfg.Auth.ForbiddenURL,
			SessionCookie:    cfg.Auth.SessionCookie,
		},
	)

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	engine := router.New(router.Deps{
		Logger:         logr,
		Gate:           gate,
		Metrics:        metrics,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		APIPrefix:      cfg.APIPrefix,
		Docs:           cfg.Env != config.EnvProduction,
		Auth:           handler.NewAuthHandler(authSvc, evaluator),
		Profile:        handler.NewProfileHandler(userSvc),
		Pages:          handler.NewPageHandler(pageSvc),
		Users:          handler.NewUserHandler(userSvc, auditSvc),
		Audit:          handler.NewAuditHandler(auditSvc),
		System:         handler.NewMetricsHandler(metrics, checks),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newLimiter prefers the shared Redis counters and falls back to the
// in-process limiter when Redis is disabled or failing.
func newLimiter(cfg config.RateLimitConfig, client *redis.Client, logr *zap.Logger) ratelimit.Limiter {
	memory := ratelimit.NewMemoryLimiter()
	if cfg.Backend != "redis" || client == nil {
		return memory
	}
	return ratelimit.NewFailoverLimiter(ratelimit.NewRedisLimiter(client, cfg.Prefix), memory, logr)
}

func rateRules(cfg config.RateLimitConfig) map[string]ratelimit.Rule {
	rules := make(map[string]ratelimit.Rule, len(cfg.Classes))
	for class, r := range cfg.Classes {
		rules[class] = ratelimit.Rule{Max: r.Max, Window: r.Window}
	}
	return rules
}

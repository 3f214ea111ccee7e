package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Rate limit route classes.
const (
	RouteClassAuth   = "auth"
	RouteClassAPI    = "api"
	RouteClassPublic = "public"
	RouteClassExport = "export"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	HTTP      HTTPConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Auth      AuthConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// HTTPConfig lists the proxies whose X-Forwarded-For is believed. Empty
// trusts none, so the client IP is always the TCP peer.
type HTTPConfig struct {
	TrustedProxies []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RateLimitRule is the request budget of one route class.
type RateLimitRule struct {
	Max    int
	Window time.Duration
}

// RateLimitConfig configures the shared request counters.
type RateLimitConfig struct {
	Enabled bool
	Backend string
	Prefix  string
	Classes map[string]RateLimitRule
}

// AuditConfig tunes retention, statistics and escalation detection.
type AuditConfig struct {
	RetentionDays       int
	MinRetentionDays    int
	StatsWindowDays     int
	StatsRecentLimit    int
	StatsCacheTTL       time.Duration
	ExportLimit         int
	EscalationThreshold int
	EscalationWindow    time.Duration
}

// AuthConfig controls browser-route redirects and session extraction.
type AuthConfig struct {
	LoginURL      string
	CallbackParam string
	ForbiddenURL  string
	SessionCookie string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}
	cfg.HTTP = HTTPConfig{TrustedProxies: splitAndTrim(v.GetString("TRUSTED_PROXIES"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
		Backend: strings.ToLower(v.GetString("RATE_LIMIT_BACKEND")),
		Prefix:  v.GetString("RATE_LIMIT_PREFIX"),
		Classes: map[string]RateLimitRule{
			RouteClassAuth:   rule(v, "AUTH", time.Minute),
			RouteClassAPI:    rule(v, "API", time.Minute),
			RouteClassPublic: rule(v, "PUBLIC", time.Minute),
			RouteClassExport: rule(v, "EXPORT", time.Hour),
		},
	}

	cfg.Audit = AuditConfig{
		RetentionDays:       v.GetInt("AUDIT_RETENTION_DAYS"),
		MinRetentionDays:    v.GetInt("AUDIT_MIN_RETENTION_DAYS"),
		StatsWindowDays:     v.GetInt("AUDIT_STATS_WINDOW_DAYS"),
		StatsRecentLimit:    v.GetInt("AUDIT_STATS_RECENT_LIMIT"),
		StatsCacheTTL:       parseDuration(v.GetString("AUDIT_STATS_CACHE_TTL"), time.Minute),
		ExportLimit:         v.GetInt("AUDIT_EXPORT_LIMIT"),
		EscalationThreshold: v.GetInt("AUDIT_ESCALATION_THRESHOLD"),
		EscalationWindow:    parseDuration(v.GetString("AUDIT_ESCALATION_WINDOW"), 15*time.Minute),
	}

	cfg.Auth = AuthConfig{
		LoginURL:      v.GetString("AUTH_LOGIN_URL"),
		CallbackParam: v.GetString("AUTH_CALLBACK_PARAM"),
		ForbiddenURL:  v.GetString("AUTH_FORBIDDEN_URL"),
		SessionCookie: v.GetString("AUTH_SESSION_COOKIE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "cms_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "cms-admin")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_BACKEND", "memory")
	v.SetDefault("RATE_LIMIT_PREFIX", "ratelimit")
	v.SetDefault("RATE_LIMIT_AUTH_MAX", 5)
	v.SetDefault("RATE_LIMIT_AUTH_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_API_MAX", 300)
	v.SetDefault("RATE_LIMIT_API_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_PUBLIC_MAX", 600)
	v.SetDefault("RATE_LIMIT_PUBLIC_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_EXPORT_MAX", 10)
	v.SetDefault("RATE_LIMIT_EXPORT_WINDOW", "1h")

	v.SetDefault("AUDIT_RETENTION_DAYS", 365)
	v.SetDefault("AUDIT_MIN_RETENTION_DAYS", 30)
	v.SetDefault("AUDIT_STATS_WINDOW_DAYS", 30)
	v.SetDefault("AUDIT_STATS_RECENT_LIMIT", 10)
	v.SetDefault("AUDIT_STATS_CACHE_TTL", "1m")
	v.SetDefault("AUDIT_EXPORT_LIMIT", 10000)
	v.SetDefault("AUDIT_ESCALATION_THRESHOLD", 3)
	v.SetDefault("AUDIT_ESCALATION_WINDOW", "15m")

	v.SetDefault("AUTH_LOGIN_URL", "/auth/login")
	v.SetDefault("AUTH_CALLBACK_PARAM", "callbackUrl")
	v.SetDefault("AUTH_FORBIDDEN_URL", "/")
	v.SetDefault("AUTH_SESSION_COOKIE", "session_token")
}

func rule(v *viper.Viper, class string, fallback time.Duration) RateLimitRule {
	return RateLimitRule{
		Max:    v.GetInt("RATE_LIMIT_" + class + "_MAX"),
		Window: parseDuration(v.GetString("RATE_LIMIT_"+class+"_WINDOW"), fallback),
	}
}

// viper reports a missing explicit config file as an fs error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

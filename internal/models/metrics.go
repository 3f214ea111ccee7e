package models

import "time"

// SystemMetrics is a lightweight snapshot of process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	AuthzAllowed             uint64    `json:"authz_allowed"`
	AuthzDenied              uint64    `json:"authz_denied"`
	RateLimited              uint64    `json:"rate_limited"`
	AuditWriteFailures       uint64    `json:"audit_write_failures"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Audit actions written by business operations.
const (
	AuditActionUserCreated        = "user.created"
	AuditActionUserUpdated        = "user.updated"
	AuditActionUserRoleChanged    = "user.role_changed"
	AuditActionUserActivated      = "user.activated"
	AuditActionUserDeactivated    = "user.deactivated"
	AuditActionUserProfileUpdated = "user.profile_updated"
	AuditActionPageCreated        = "page.created"
	AuditActionPageUpdated        = "page.updated"
	AuditActionPageDeleted        = "page.deleted"
	AuditActionLogin              = "auth.login"
	AuditActionCleanup            = "audit.cleanup"
	AuditActionRequestAllowed     = "request.allowed"
	AuditActionRequestDenied      = "request.denied"
)

// Audit record kinds.
const (
	AuditKindAction   = "action"
	AuditKindSecurity = "security"
)

// Actor ids used when no user is attributable.
const (
	ActorAnonymous = "anonymous"
	ActorSystem    = "system"
)

// Severity grades an audit record.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Outcome results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDenied  = "denied"
)

// SecurityCode classifies a security event.
type SecurityCode string

const (
	SecurityAccessDenied         SecurityCode = "ACCESS_DENIED"
	SecurityPrivilegeEscalation  SecurityCode = "PRIVILEGE_ESCALATION_ATTEMPT"
	SecurityRoleManipulation     SecurityCode = "ROLE_MANIPULATION_ATTEMPT"
	SecurityRepeatedAuthFailure  SecurityCode = "REPEATED_AUTH_FAILURE"
	SecurityAuthenticationFailed SecurityCode = "AUTHENTICATION_FAILED"
	SecurityRateLimitExceeded    SecurityCode = "RATE_LIMIT_EXCEEDED"
	SecurityDataExport           SecurityCode = "DATA_EXPORT"
)

// Action returns the audit action recorded for the security code.
func (c SecurityCode) Action() string {
	return "security." + strings.ToLower(string(c))
}

// Details is a structured key/value payload stored as JSONB.
type Details map[string]interface{}

// Value implements driver.Valuer.
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *Details) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Details{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported details type %T", src)
	}
	out := Details{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*d = out
	return nil
}

// AuditEntry is the write-side input for a single audit record.
type AuditEntry struct {
	UserID         string   `validate:"required"`
	Action         string   `validate:"required,max=128"`
	Resource       string   `validate:"required,max=64"`
	ResourceID     string   `validate:"omitempty,max=128"`
	Details        Details  `validate:"-"`
	IPAddress      string   `validate:"omitempty,max=64"`
	UserAgent      string   `validate:"omitempty,max=512"`
	Severity       Severity `validate:"omitempty,oneof=low medium high critical"`
	Result         string   `validate:"omitempty,oneof=success failure denied"`
	Classification SecurityCode
}

// AuditLog represents an audit trail record. Records are append-only.
type AuditLog struct {
	ID             string    `db:"id" json:"id"`
	Kind           string    `db:"kind" json:"kind"`
	UserID         string    `db:"user_id" json:"user_id"`
	Action         string    `db:"action" json:"action"`
	Resource       string    `db:"resource" json:"resource"`
	ResourceID     *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details        Details   `db:"details" json:"details"`
	IPAddress      string    `db:"ip_address" json:"ip_address"`
	UserAgent      string    `db:"user_agent" json:"user_agent"`
	Severity       Severity  `db:"severity" json:"severity"`
	Classification *string   `db:"classification" json:"classification,omitempty"`
	Result         string    `db:"result" json:"result"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// RoleChangeHistory records a single role transition.
type RoleChangeHistory struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	OldRole   UserRole  `db:"old_role" json:"old_role"`
	NewRole   UserRole  `db:"new_role" json:"new_role"`
	ChangedBy string    `db:"changed_by" json:"changed_by"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit queries. Actions and Resources match by set membership.
type AuditFilter struct {
	UserID         string
	Actions        []string
	Resources      []string
	Kind           string
	Classification string
	StartDate      *time.Time
	EndDate        *time.Time
	Page           int
	PageSize       int
}

// CountBucket is one row of a grouped count.
type CountBucket struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// AuditStats aggregates activity over a trailing window.
type AuditStats struct {
	WindowDays     int           `json:"window_days"`
	Since          time.Time     `json:"since"`
	Total          int           `json:"total"`
	ByAction       []CountBucket `json:"by_action"`
	ByResource     []CountBucket `json:"by_resource"`
	SecurityEvents int           `json:"security_events"`
	Recent         []AuditLog    `json:"recent"`
}

// ComplianceSummary is computed over the filtered range.
type ComplianceSummary struct {
	TotalActions  int `db:"total_actions" json:"total_actions"`
	UniqueUsers   int `db:"unique_users" json:"unique_users"`
	FailedActions int `db:"failed_actions" json:"failed_actions"`
}

// ComplianceReport combines matching records with their summary.
type ComplianceReport struct {
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	Logs        []AuditLog        `json:"logs"`
	Total       int               `json:"total"`
	Page        int               `json:"page"`
	Summary     ComplianceSummary `json:"summary"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// IntegrityReport is the outcome of a read-only consistency scan.
type IntegrityReport struct {
	IsValid   bool     `json:"is_valid"`
	ValidLogs int      `json:"valid_logs"`
	TotalLogs int      `json:"total_logs"`
	Issues    []string `json:"issues"`
}

// ExportResult is a rendered audit export.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	RecordCount int
}

// DefaultSeverity is the severity recorded when the caller does not set one.
func (c SecurityCode) DefaultSeverity() Severity {
	switch c {
	case SecurityRepeatedAuthFailure:
		return SeverityCritical
	case SecurityPrivilegeEscalation, SecurityRoleManipulation:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

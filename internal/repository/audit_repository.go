package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/pkg/database"
)

const auditColumns = `id, kind, user_id, action, resource, resource_id, details, ip_address, user_agent, severity, classification, result, created_at`

// AuditRepository is the append-only store for audit records, security
// events and role change history.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit record. It joins the transaction carried by ctx.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	const query = `INSERT INTO audit_logs (` + auditColumns + `) VALUES (:id, :kind, :user_id, :action, :resource, :resource_id, :details, :ip_address, :user_agent, :severity, :classification, :result, :created_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func buildAuditWhere(filter models.AuditFilter) (string, []interface{}) {
	where := `WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if len(filter.Actions) > 0 {
		conditions = append(conditions, fmt.Sprintf("action = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.Actions))
	}
	if len(filter.Resources) > 0 {
		conditions = append(conditions, fmt.Sprintf("resource = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.Resources))
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Classification != "" {
		conditions = append(conditions, fmt.Sprintf("classification = $%d", len(args)+1))
		args = append(args, filter.Classification)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}

	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// List returns one page of records matching filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	where, args := buildAuditWhere(filter)
	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM audit_logs %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", auditColumns, where, size, (page-1)*size)

	logs := []models.AuditLog{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

// ListAll returns every record matching filter up to limit, newest first.
func (r *AuditRepository) ListAll(ctx context.Context, filter models.AuditFilter, limit int) ([]models.AuditLog, error) {
	where, args := buildAuditWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM audit_logs %s ORDER BY created_at DESC, id DESC LIMIT %d", auditColumns, where, limit)

	logs := []models.AuditLog{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("export audit logs: %w", err)
	}
	return logs, nil
}

// Count returns the number of records matching filter.
func (r *AuditRepository) Count(ctx context.Context, filter models.AuditFilter) (int, error) {
	where, args := buildAuditWhere(filter)
	var total int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs "+where, args...); err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return total, nil
}

// Summary computes compliance totals over filter.
func (r *AuditRepository) Summary(ctx context.Context, filter models.AuditFilter) (models.ComplianceSummary, error) {
	where, args := buildAuditWhere(filter)
	query := `SELECT COUNT(*) AS total_actions, COUNT(DISTINCT user_id) AS unique_users, COUNT(*) FILTER (WHERE result <> 'success') AS failed_actions FROM audit_logs ` + where

	var summary models.ComplianceSummary
	if err := database.Conn(ctx, r.db).GetContext(ctx, &summary, query, args...); err != nil {
		return models.ComplianceSummary{}, fmt.Errorf("summarize audit logs: %w", err)
	}
	return summary, nil
}

func (r *AuditRepository) countBy(ctx context.Context, column string, since time.Time, limit int) ([]models.CountBucket, error) {
	query := fmt.Sprintf("SELECT %s AS key, COUNT(*) AS count FROM audit_logs WHERE created_at >= $1 GROUP BY %s ORDER BY count DESC, key ASC LIMIT %d", column, column, limit)
	buckets := []models.CountBucket{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &buckets, query, since); err != nil {
		return nil, fmt.Errorf("count audit logs by %s: %w", column, err)
	}
	return buckets, nil
}

// CountByAction groups records since the given time by action.
func (r *AuditRepository) CountByAction(ctx context.Context, since time.Time, limit int) ([]models.CountBucket, error) {
	return r.countBy(ctx, "action", since, limit)
}

// CountByResource groups records since the given time by resource.
func (r *AuditRepository) CountByResource(ctx context.Context, since time.Time, limit int) ([]models.CountBucket, error) {
	return r.countBy(ctx, "resource", since, limit)
}

// Recent returns the newest n records.
func (r *AuditRepository) Recent(ctx context.Context, n int) ([]models.AuditLog, error) {
	query := fmt.Sprintf("SELECT %s FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT %d", auditColumns, n)
	logs := []models.AuditLog{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &logs, query); err != nil {
		return nil, fmt.Errorf("recent audit logs: %w", err)
	}
	return logs, nil
}

// ListRange returns every record created inside [start, end], newest first.
func (r *AuditRepository) ListRange(ctx context.Context, start, end time.Time) ([]models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE created_at >= $1 AND created_at <= $2 ORDER BY created_at DESC, id DESC`
	logs := []models.AuditLog{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &logs, query, start, end); err != nil {
		return nil, fmt.Errorf("list audit range: %w", err)
	}
	return logs, nil
}

// DeleteOlderThan removes audit records and role history created before cutoff.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	conn := database.Conn(ctx, r.db)

	res, err := conn.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit logs: %w", err)
	}
	logs, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete audit logs: %w", err)
	}

	res, err = conn.ExecContext(ctx, `DELETE FROM role_change_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete role history: %w", err)
	}
	history, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete role history: %w", err)
	}

	return logs + history, nil
}

// CreateRoleChange appends a role change history row.
func (r *AuditRepository) CreateRoleChange(ctx context.Context, change *models.RoleChangeHistory) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO role_change_history (id, user_id, old_role, new_role, changed_by, reason, created_at) VALUES (:id, :user_id, :old_role, :new_role, :changed_by, :reason, :created_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, change); err != nil {
		return fmt.Errorf("create role change: %w", err)
	}
	return nil
}

// ListRoleChanges returns the role history of a user, newest first.
func (r *AuditRepository) ListRoleChanges(ctx context.Context, userID string) ([]models.RoleChangeHistory, error) {
	const query = `SELECT id, user_id, old_role, new_role, changed_by, reason, created_at FROM role_change_history WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	changes := []models.RoleChangeHistory{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &changes, query, userID); err != nil {
		return nil, fmt.Errorf("list role changes: %w", err)
	}
	return changes, nil
}

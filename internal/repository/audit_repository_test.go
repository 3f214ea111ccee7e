package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
)

var auditRowColumns = []string{"id", "kind", "user_id", "action", "resource", "resource_id", "details", "ip_address", "user_agent", "severity", "classification", "result", "created_at"}

func TestAuditCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.AuditLog{
		ID:        "01HZ",
		Kind:      models.AuditKindAction,
		UserID:    "u1",
		Action:    models.AuditActionUserCreated,
		Resource:  "user",
		Details:   models.Details{"email": "a@example.com"},
		Severity:  models.SeverityLow,
		Result:    models.ResultSuccess,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditListUsesSetMembershipAndStableOrder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	now := start.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, kind, user_id, action, resource, resource_id, details, ip_address, user_agent, severity, classification, result, created_at FROM audit_logs WHERE 1=1 AND action = ANY($1) AND resource = ANY($2) AND created_at >= $3 AND created_at <= $4 ORDER BY created_at DESC, id DESC LIMIT 50 OFFSET 0")).
		WithArgs(`{"user.created","user.updated"}`, `{"user"}`, start, end).
		WillReturnRows(sqlmock.NewRows(auditRowColumns).
			AddRow("01HZ", "action", "u1", "user.created", "user", "u2", []byte(`{"email":"b@example.com"}`), "10.0.0.1", "curl", "low", nil, "success", now))

	logs, err := repo.List(context.Background(), models.AuditFilter{
		Actions:   []string{"user.created", "user.updated"},
		Resources: []string{"user"},
		StartDate: &start,
		EndDate:   &end,
		PageSize:  50,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "b@example.com", logs[0].Details["email"])
	require.NotNil(t, logs[0].ResourceID)
	assert.Equal(t, "u2", *logs[0].ResourceID)
	assert.Nil(t, logs[0].Classification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditSummary(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS total_actions, COUNT(DISTINCT user_id) AS unique_users, COUNT(*) FILTER (WHERE result <> 'success') AS failed_actions FROM audit_logs WHERE 1=1 AND action = ANY($1)")).
		WithArgs(`{"user.created"}`).
		WillReturnRows(sqlmock.NewRows([]string{"total_actions", "unique_users", "failed_actions"}).AddRow(3, 2, 1))

	summary, err := repo.Summary(context.Background(), models.AuditFilter{Actions: []string{"user.created"}})
	require.NoError(t, err)
	assert.Equal(t, models.ComplianceSummary{TotalActions: 3, UniqueUsers: 2, FailedActions: 1}, summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditCountByAction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)
	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT action AS key, COUNT(*) AS count FROM audit_logs WHERE created_at >= $1 GROUP BY action ORDER BY count DESC, key ASC LIMIT 20")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("request.allowed", 10).AddRow("user.created", 2))

	buckets, err := repo.CountByAction(context.Background(), since, 20)
	require.NoError(t, err)
	assert.Equal(t, []models.CountBucket{{Key: "request.allowed", Count: 10}, {Key: "user.created", Count: 2}}, buckets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditDeleteOlderThan(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)
	cutoff := time.Now().AddDate(0, 0, -90)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_logs WHERE created_at < $1")).WithArgs(cutoff).WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_change_history WHERE created_at < $1")).WithArgs(cutoff).WillReturnResult(sqlmock.NewResult(0, 2))

	deleted, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(9), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRoleChanges(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)
	now := time.Now()

	mock.ExpectExec("INSERT INTO role_change_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM role_change_history WHERE user_id = $1 ORDER BY created_at DESC, id DESC")).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "old_role", "new_role", "changed_by", "reason", "created_at"}).
			AddRow("h1", "u2", "VIEWER", "ADMIN", "u1", "Emergency escalation", now))

	change := &models.RoleChangeHistory{UserID: "u2", OldRole: models.RoleViewer, NewRole: models.RoleAdmin, ChangedBy: "u1", Reason: "Emergency escalation"}
	require.NoError(t, repo.CreateRoleChange(context.Background(), change))
	assert.NotEmpty(t, change.ID)

	changes, err := repo.ListRoleChanges(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.RoleAdmin, changes[0].NewRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
)

type auditFixture struct {
	svc   *AuditService
	store *memAuditStore
	users *memUserStore
	tx    *fakeTx
	cache *stubCacheRepo
}

func newAuditFixture(t *testing.T, users ...models.User) *auditFixture {
	t.Helper()
	store := &memAuditStore{}
	userStore := newMemUserStore(users...)
	tx := &fakeTx{stores: []interface{ snapshot() func() }{store, userStore}}
	cacheRepo := &stubCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewAuditService(store, userStore, tx, cache, nil, nil, nil, nil, AuditConfig{ExportLimit: 100})
	return &auditFixture{svc: svc, store: store, users: userStore, tx: tx, cache: cacheRepo}
}

func TestAuditLogRedactsAndDefaults(t *testing.T) {
	f := newAuditFixture(t)

	record, err := f.svc.Log(context.Background(), models.AuditEntry{
		UserID:   "u1",
		Action:   models.AuditActionUserUpdated,
		Resource: "user",
		Details: models.Details{
			"email":    "a@example.com",
			"password": "hunter2",
			"nested": map[string]interface{}{
				"apiToken": "abc",
				"list":     []interface{}{map[string]interface{}{"passwordHash": "x"}},
			},
		},
	})
	require.NoError(t, err)

	assert.Len(t, record.ID, 26)
	assert.Equal(t, models.AuditKindAction, record.Kind)
	assert.Equal(t, models.SeverityLow, record.Severity)
	assert.Equal(t, models.ResultSuccess, record.Result)
	assert.Equal(t, "a@example.com", record.Details["email"])
	assert.Equal(t, redactedValue, record.Details["password"])

	nested := record.Details["nested"].(map[string]interface{})
	assert.Equal(t, redactedValue, nested["apiToken"])
	item := nested["list"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, redactedValue, item["passwordHash"])

	require.Len(t, f.store.logs, 1)
}

func TestAuditLogRejectsIncompleteEntry(t *testing.T) {
	f := newAuditFixture(t)

	_, err := f.svc.Log(context.Background(), models.AuditEntry{UserID: "u1", Resource: "user"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAuditWrite))
	assert.Empty(t, f.store.logs)
}

func TestAuditLogStoreFailure(t *testing.T) {
	f := newAuditFixture(t)
	f.store.createErr = errors.New("connection reset")

	_, err := f.svc.Log(context.Background(), models.AuditEntry{UserID: "u1", Action: "x", Resource: "user"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAuditWrite))
	assert.Equal(t, "internal server error", appErrors.Public(appErrors.FromError(err)).Message)
}

func TestAuditLogOrderIsMonotonic(t *testing.T) {
	f := newAuditFixture(t)
	frozen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.clock = newMonotonicClock(func() time.Time { return frozen })

	for i := 0; i < 50; i++ {
		_, err := f.svc.Log(context.Background(), models.AuditEntry{UserID: "u1", Action: "page.updated", Resource: "page"})
		require.NoError(t, err)
	}

	ids := make([]string, 0, len(f.store.logs))
	for i, log := range f.store.logs {
		ids = append(ids, log.ID)
		if i > 0 {
			assert.True(t, log.CreatedAt.After(f.store.logs[i-1].CreatedAt))
		}
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestLogSecurityEventDefaults(t *testing.T) {
	f := newAuditFixture(t)

	record, err := f.svc.LogSecurityEvent(context.Background(), models.SecurityRepeatedAuthFailure, models.AuditEntry{
		UserID:   "u1",
		Resource: "/api/users",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AuditKindSecurity, record.Kind)
	assert.Equal(t, "security.repeated_auth_failure", record.Action)
	assert.Equal(t, models.SeverityCritical, record.Severity)
	assert.Equal(t, models.ResultDenied, record.Result)
	require.NotNil(t, record.Classification)
	assert.Equal(t, "REPEATED_AUTH_FAILURE", *record.Classification)
}

func TestLogRoleChangeIsAtomic(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	err := f.svc.LogRoleChange(ctx, &models.RoleChangeHistory{
		UserID: "u2", OldRole: models.RoleViewer, NewRole: models.RoleEditor, ChangedBy: "admin", Reason: "promotion",
	}, models.RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)

	entries := f.store.byAction(models.AuditActionUserRoleChanged)
	require.Len(t, entries, 1)
	assert.Equal(t, "VIEWER", entries[0].Details["oldRole"])
	assert.Equal(t, "EDITOR", entries[0].Details["newRole"])
	assert.Equal(t, models.SeverityHigh, entries[0].Severity)
	require.Len(t, f.store.changes, 1)

	f.store.createErr = errors.New("disk full")
	err = f.svc.LogRoleChange(ctx, &models.RoleChangeHistory{
		UserID: "u3", OldRole: models.RoleViewer, NewRole: models.RoleAdmin, ChangedBy: "admin", Reason: "x",
	}, models.RequestMeta{})
	require.Error(t, err)
	assert.Len(t, f.store.changes, 1)
	assert.Equal(t, 1, f.tx.rollbacks)
}

func TestGetLogsPagination(t *testing.T) {
	f := newAuditFixture(t)
	for i := 0; i < 60; i++ {
		_, err := f.svc.Log(context.Background(), models.AuditEntry{UserID: "u1", Action: "page.updated", Resource: "page"})
		require.NoError(t, err)
	}

	logs, pagination, err := f.svc.GetLogs(context.Background(), models.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 50)
	assert.Equal(t, 60, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
	assert.True(t, logs[0].CreatedAt.After(logs[1].CreatedAt))

	logs, pagination, err = f.svc.GetLogs(context.Background(), models.AuditFilter{Page: 2, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, pagination.PageSize)
	assert.Empty(t, logs)

	start := time.Now().Add(time.Hour)
	end := time.Now()
	_, _, err = f.svc.GetLogs(context.Background(), models.AuditFilter{StartDate: &start, EndDate: &end})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestGetStatsCachesAndCleanupInvalidates(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()
	for _, action := range []string{"page.created", "page.created", "user.updated"} {
		_, err := f.svc.Log(ctx, models.AuditEntry{UserID: "u1", Action: action, Resource: "page"})
		require.NoError(t, err)
	}
	_, err := f.svc.LogSecurityEvent(ctx, models.SecurityAccessDenied, models.AuditEntry{UserID: "u1", Resource: "/api/users"})
	require.NoError(t, err)

	stats, hit, err := f.svc.GetStats(ctx, 7)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.SecurityEvents)
	require.NotEmpty(t, stats.ByAction)
	assert.Equal(t, models.CountBucket{Key: "page.created", Count: 2}, stats.ByAction[0])
	assert.Len(t, stats.Recent, 4)

	_, hit, err = f.svc.GetStats(ctx, 7)
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = f.svc.Cleanup(ctx, 30, models.RequestMeta{ActorID: "admin"})
	require.NoError(t, err)
	assert.Contains(t, f.cache.deleted, "audit:stats:*")

	_, hit, err = f.svc.GetStats(ctx, 7)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGetStatsClampsWindow(t *testing.T) {
	f := newAuditFixture(t)
	stats, _, err := f.svc.GetStats(context.Background(), 5000)
	require.NoError(t, err)
	assert.Equal(t, 365, stats.WindowDays)
}

func TestComplianceReportRequiresRange(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetComplianceReport(ctx, models.AuditFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Log(ctx, models.AuditEntry{UserID: "u1", Action: "page.created", Resource: "page"})
	require.NoError(t, err)
	_, err = f.svc.Log(ctx, models.AuditEntry{UserID: "u2", Action: "page.deleted", Resource: "page", Result: models.ResultFailure})
	require.NoError(t, err)

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	report, err := f.svc.GetComplianceReport(ctx, models.AuditFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, models.ComplianceSummary{TotalActions: 2, UniqueUsers: 2, FailedActions: 1}, report.Summary)
}

func TestExportLogsRecordsDataExport(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Log(ctx, models.AuditEntry{UserID: "u1", Action: "page.created", Resource: "page"})
		require.NoError(t, err)
	}

	result, err := f.svc.ExportLogs(ctx, models.AuditFilter{Resources: []string{"page"}}, "CSV", models.RequestMeta{ActorID: "admin", IP: "10.0.0.9"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.RecordCount)
	assert.Equal(t, "text/csv", result.ContentType)

	exports := f.store.byAction(models.SecurityDataExport.Action())
	require.Len(t, exports, 1)
	assert.Equal(t, "admin", exports[0].UserID)
	assert.Equal(t, "csv", exports[0].Details["format"])
	assert.Equal(t, 3, exports[0].Details["recordCount"])
	assert.Equal(t, models.ResultSuccess, exports[0].Result)
}

func TestExportLogsWithheldWhenAuditFails(t *testing.T) {
	f := newAuditFixture(t)
	f.store.createErr = errors.New("read only")
	f.store.failOn = models.SecurityDataExport.Action()

	result, err := f.svc.ExportLogs(context.Background(), models.AuditFilter{}, "json", models.RequestMeta{ActorID: "admin"})
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestExportLogsRejectsUnknownFormat(t *testing.T) {
	f := newAuditFixture(t)
	_, err := f.svc.ExportLogs(context.Background(), models.AuditFilter{}, "xlsx", models.RequestMeta{ActorID: "admin"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.store.logs)
}

func TestCleanupDeletesExpiredAndRecords(t *testing.T) {
	f := newAuditFixture(t)
	old := time.Now().UTC().AddDate(0, 0, -400)
	f.store.logs = []models.AuditLog{
		{ID: "a", UserID: "u1", Action: "page.created", Resource: "page", CreatedAt: old},
		{ID: "b", UserID: "u1", Action: "page.created", Resource: "page", CreatedAt: old},
	}

	deleted, err := f.svc.Cleanup(context.Background(), 0, models.RequestMeta{ActorID: "admin"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	cleanups := f.store.byAction(models.AuditActionCleanup)
	require.Len(t, cleanups, 1)
	assert.Equal(t, int64(2), cleanups[0].Details["deletedCount"])
	assert.Equal(t, 365, cleanups[0].Details["retentionDays"])
	assert.Len(t, f.store.logs, 1)
}

func TestCleanupRollsBackWhenAuditFails(t *testing.T) {
	f := newAuditFixture(t)
	old := time.Now().UTC().AddDate(0, 0, -400)
	f.store.logs = []models.AuditLog{{ID: "a", UserID: "u1", Action: "page.created", Resource: "page", CreatedAt: old}}
	f.store.createErr = errors.New("boom")

	_, err := f.svc.Cleanup(context.Background(), 30, models.RequestMeta{ActorID: "admin"})
	require.Error(t, err)
	assert.Len(t, f.store.logs, 1)
}

func TestValidateIntegrity(t *testing.T) {
	f := newAuditFixture(t, models.User{ID: "u1", Role: models.RoleAdmin, Active: true})
	now := time.Now().UTC()
	f.store.logs = []models.AuditLog{
		{ID: "l1", UserID: "u1", Action: "page.created", Resource: "page", CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "l2", UserID: "u1", Action: "", Resource: "page", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "l3", UserID: "ghost", Action: "page.created", Resource: "page", CreatedAt: now.Add(-time.Hour)},
		{ID: "l4", UserID: models.ActorAnonymous, Action: "security.access_denied", Resource: "/api/users", CreatedAt: now.Add(-time.Minute)},
	}
	before := len(f.store.logs)

	report, err := f.svc.ValidateIntegrity(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.False(t, report.IsValid)
	assert.Equal(t, 4, report.TotalLogs)
	assert.Equal(t, 2, report.ValidLogs)
	assert.ElementsMatch(t, []string{"log l2: missing action", "log l3: user ghost does not exist"}, report.Issues)
	assert.Len(t, f.store.logs, before)
}

func TestValidateIntegrityEmptyRange(t *testing.T) {
	f := newAuditFixture(t)
	report, err := f.svc.ValidateIntegrity(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, report.IsValid)
	assert.NotNil(t, report.Issues)
}

func TestAuditLogClampsAttribution(t *testing.T) {
	f := newAuditFixture(t)

	record, err := f.svc.Log(context.Background(), models.AuditEntry{
		UserID:    "u1",
		Action:    models.AuditActionUserUpdated,
		Resource:  "user",
		IPAddress: strings.Repeat("9", 100),
		UserAgent: strings.Repeat("é", 600),
	})
	require.NoError(t, err)

	assert.Len(t, record.IPAddress, maxIPAddressLen)
	assert.Equal(t, maxUserAgentLen, utf8.RuneCountInString(record.UserAgent))
	require.Len(t, f.store.logs, 1)
}

func TestCleanupEnforcesRetentionFloor(t *testing.T) {
	f := newAuditFixture(t)
	recent := time.Now().UTC().AddDate(0, 0, -2)
	f.store.logs = []models.AuditLog{{ID: "a", UserID: "u1", Action: "page.created", Resource: "page", CreatedAt: recent}}

	_, err := f.svc.Cleanup(context.Background(), 1, models.RequestMeta{ActorID: "admin"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Len(t, f.store.logs, 1)
	assert.Empty(t, f.store.byAction(models.AuditActionCleanup))
}

package service

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
)

func exportFixture() []models.AuditLog {
	rid := "u2"
	return []models.AuditLog{{
		ID: "01J", Kind: models.AuditKindAction, UserID: "u1", Action: models.AuditActionUserCreated,
		Resource: "user", ResourceID: &rid, Details: models.Details{"email": "b@example.com"},
		Severity: models.SeverityLow, Result: models.ResultSuccess, CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}}
}

func TestExportServiceCSV(t *testing.T) {
	svc := NewExportService(nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC) }

	res, err := svc.Render(exportFixture(), "CSV", nil)
	require.NoError(t, err)
	assert.Equal(t, "audit_logs_20250302_080000.csv", res.Filename)
	assert.Equal(t, "text/csv", res.ContentType)
	assert.Equal(t, 1, res.RecordCount)
	assert.True(t, strings.HasPrefix(string(res.Data), "id,created_at,kind,user_id,action"))
	assert.Contains(t, string(res.Data), "user.created")
}

func TestExportServiceJSON(t *testing.T) {
	svc := NewExportService(nil)
	res, err := svc.Render(exportFixture(), ExportFormatJSON, map[string]any{"actions": []string{"user.created"}})
	require.NoError(t, err)

	var decoded struct {
		RecordCount int               `json:"record_count"`
		Logs        []models.AuditLog `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &decoded))
	assert.Equal(t, 1, decoded.RecordCount)
	assert.Equal(t, "u2", *decoded.Logs[0].ResourceID)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(nil)
	assert.False(t, svc.Supports("xlsx"))
	assert.True(t, svc.Supports("pdf"))
	_, err := svc.Render(exportFixture(), "xlsx", nil)
	assert.Error(t, err)
}

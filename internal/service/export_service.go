package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/pkg/export"
)

// Export formats accepted by the audit export endpoint.
const (
	ExportFormatCSV  = "csv"
	ExportFormatJSON = "json"
	ExportFormatPDF  = "pdf"
)

var auditExportHeaders = []string{"id", "created_at", "kind", "user_id", "action", "resource", "resource_id", "severity", "classification", "result", "ip_address", "user_agent", "details"}

// ExportService renders audit records into downloadable documents.
type ExportService struct {
	renderers export.Registry
	now       func() time.Time
}

// NewExportService constructs an ExportService. A nil registry uses the csv and pdf renderers.
func NewExportService(renderers export.Registry) *ExportService {
	if renderers == nil {
		renderers = export.DefaultRegistry()
	}
	return &ExportService{renderers: renderers, now: time.Now}
}

// Supports reports whether format can be rendered.
func (s *ExportService) Supports(format string) bool {
	format = strings.ToLower(format)
	if format == ExportFormatJSON {
		return true
	}
	_, err := s.renderers.Get(format)
	return err == nil
}

type jsonExport struct {
	ExportedAt  time.Time         `json:"exported_at"`
	Filters     map[string]any    `json:"filters"`
	RecordCount int               `json:"record_count"`
	Logs        []models.AuditLog `json:"logs"`
}

// Render serialises logs in the requested format.
func (s *ExportService) Render(logs []models.AuditLog, format string, filters map[string]any) (*models.ExportResult, error) {
	format = strings.ToLower(format)
	now := s.now().UTC()
	filename := fmt.Sprintf("audit_logs_%s.%s", now.Format("20060102_150405"), format)

	if format == ExportFormatJSON {
		payload, err := json.MarshalIndent(jsonExport{ExportedAt: now, Filters: filters, RecordCount: len(logs), Logs: logs}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("render json export: %w", err)
		}
		return &models.ExportResult{Filename: filename, ContentType: "application/json", Data: payload, RecordCount: len(logs)}, nil
	}

	renderer, err := s.renderers.Get(format)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(auditDataset(logs, now))
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}
	return &models.ExportResult{Filename: filename, ContentType: renderer.ContentType(), Data: payload, RecordCount: len(logs)}, nil
}

func auditDataset(logs []models.AuditLog, at time.Time) export.Dataset {
	rows := make([][]string, 0, len(logs))
	for _, log := range logs {
		details, _ := json.Marshal(log.Details)
		rows = append(rows, []string{
			log.ID,
			log.CreatedAt.UTC().Format(time.RFC3339Nano),
			log.Kind,
			log.UserID,
			log.Action,
			log.Resource,
			deref(log.ResourceID),
			string(log.Severity),
			deref(log.Classification),
			log.Result,
			log.IPAddress,
			log.UserAgent,
			string(details),
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Audit log export %s", at.Format(time.RFC3339)),
		Headers: auditExportHeaders,
		Rows:    rows,
	}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/terojleinonen/cms-admin-sub001/internal/dto"
	"github.com/terojleinonen/cms-admin-sub001/internal/middleware"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
	"github.com/terojleinonen/cms-admin-sub001/pkg/response"
)

type auditService interface {
	GetLogs(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
	ListSecurityEvents(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
	GetStats(ctx context.Context, windowDays int) (*models.AuditStats, bool, error)
	GetComplianceReport(ctx context.Context, filter models.AuditFilter) (*models.ComplianceReport, error)
	ExportLogs(ctx context.Context, filter models.AuditFilter, format string, meta models.RequestMeta) (*models.ExportResult, error)
	Cleanup(ctx context.Context, retentionDays int, meta models.RequestMeta) (int64, error)
	ValidateIntegrity(ctx context.Context, start, end *time.Time) (*models.IntegrityReport, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

func parseAuditQuery(c *gin.Context) (dto.AuditQuery, models.AuditFilter, bool) {
	var q dto.AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return q, models.AuditFilter{}, false
	}
	filter, err := q.Filter()
	if err != nil {
		var dateErr *dto.DateError
		if errors.As(err, &dateErr) {
			response.Error(c, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid date"),
				[]appErrors.FieldError{{Field: dateErr.Field, Rule: "date"}}))
			return q, filter, false
		}
		response.Error(c, err)
		return q, filter, false
	}
	return q, filter, true
}

// Logs godoc
// @Summary List audit logs
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param userId query string false "Actor ID"
// @Param action query []string false "Actions" collectionFormat(multi)
// @Param resource query []string false "Resources" collectionFormat(multi)
// @Param startDate query string false "Start date (YYYY-MM-DD or RFC3339)"
// @Param endDate query string false "End date (YYYY-MM-DD or RFC3339)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/audit/logs [get]
func (h *AuditHandler) Logs(c *gin.Context) {
	_, filter, ok := parseAuditQuery(c)
	if !ok {
		return
	}

	logs, pagination, err := h.service.GetLogs(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, logs, pagination)
}

// SecurityEvents godoc
// @Summary List security events
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param classification query string false "Security code"
// @Param startDate query string false "Start date"
// @Param endDate query string false "End date"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/audit/security-events [get]
func (h *AuditHandler) SecurityEvents(c *gin.Context) {
	_, filter, ok := parseAuditQuery(c)
	if !ok {
		return
	}

	logs, pagination, err := h.service.ListSecurityEvents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, logs, pagination)
}

// Stats godoc
// @Summary Audit statistics
// @Description Aggregates over a trailing window; cached briefly
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param days query int false "Window in days (max 365)"
// @Success 200 {object} response.Envelope
// @Router /admin/audit/stats [get]
func (h *AuditHandler) Stats(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			response.Error(c, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "days must be a positive integer"),
				[]appErrors.FieldError{{Field: "days", Rule: "min=1"}}))
			return
		}
		days = v
	}

	stats, hit, err := h.service.GetStats(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Compliance godoc
// @Summary Compliance report
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param startDate query string true "Start date"
// @Param endDate query string true "End date"
// @Param userId query string false "Actor ID"
// @Param action query []string false "Actions" collectionFormat(multi)
// @Param resource query []string false "Resources" collectionFormat(multi)
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/audit/compliance [get]
func (h *AuditHandler) Compliance(c *gin.Context) {
	_, filter, ok := parseAuditQuery(c)
	if !ok {
		return
	}

	report, err := h.service.GetComplianceReport(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Export audit logs
// @Description Downloads matching records as csv, json or pdf; the export itself is audited
// @Tags Audit
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv, json or pdf"
// @Param startDate query string false "Start date"
// @Param endDate query string false "End date"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /admin/audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	q, filter, ok := parseAuditQuery(c)
	if !ok {
		return
	}

	result, err := h.service.ExportLogs(c.Request.Context(), filter, q.Format, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("X-Record-Count", strconv.Itoa(result.RecordCount))
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}

// Cleanup godoc
// @Summary Apply audit retention
// @Tags Audit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CleanupRequest false "Retention override"
// @Success 200 {object} response.Envelope
// @Router /admin/audit/cleanup [post]
func (h *AuditHandler) Cleanup(c *gin.Context) {
	var req dto.CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.RetentionDays < 0 {
		response.Error(c, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "retentionDays must be positive"),
			[]appErrors.FieldError{{Field: "retentionDays", Rule: "min=1"}}))
		return
	}

	deleted, err := h.service.Cleanup(c.Request.Context(), req.RetentionDays, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.CleanupResponse{DeletedCount: deleted}, nil)
}

// Integrity godoc
// @Summary Validate audit integrity
// @Description Read-only scan for records with missing fields or unknown actors
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "Start date"
// @Param endDate query string false "End date"
// @Success 200 {object} response.Envelope
// @Router /admin/audit/integrity [get]
func (h *AuditHandler) Integrity(c *gin.Context) {
	_, filter, ok := parseAuditQuery(c)
	if !ok {
		return
	}

	report, err := h.service.ValidateIntegrity(c.Request.Context(), filter.StartDate, filter.EndDate)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

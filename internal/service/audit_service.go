package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/pkg/database"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
)

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
	ListAll(ctx context.Context, filter models.AuditFilter, limit int) ([]models.AuditLog, error)
	Count(ctx context.Context, filter models.AuditFilter) (int, error)
	Summary(ctx context.Context, filter models.AuditFilter) (models.ComplianceSummary, error)
	CountByAction(ctx context.Context, since time.Time, limit int) ([]models.CountBucket, error)
	CountByResource(ctx context.Context, since time.Time, limit int) ([]models.CountBucket, error)
	Recent(ctx context.Context, n int) ([]models.AuditLog, error)
	ListRange(ctx context.Context, start, end time.Time) ([]models.AuditLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CreateRoleChange(ctx context.Context, change *models.RoleChangeHistory) error
	ListRoleChanges(ctx context.Context, userID string) ([]models.RoleChangeHistory, error)
}

type userDirectory interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// AuditConfig tunes the audit service.
type AuditConfig struct {
	RetentionDays    int
	MinRetentionDays int
	StatsWindowDays  int
	StatsRecentLimit int
	StatsCacheTTL    time.Duration
	ExportLimit      int
}

const (
	auditDefaultPageSize = 50
	auditMaxPageSize     = 100
	statsBucketLimit     = 20
	maxStatsWindowDays   = 365
	integrityDefaultDays = 30
	redactedValue        = "[REDACTED]"
	statsCachePattern    = "audit:stats:*"

	defaultMinRetentionDays = 30

	// column widths of audit_logs.ip_address and the stored user agent
	maxIPAddressLen = 64
	maxUserAgentLen = 512
)

var sensitiveKeys = []string{"password", "secret", "token", "hash", "authorization", "cookie", "stack"}

// AuditService is the write path for audit records and the read side used
// for compliance.
type AuditService struct {
	repo      auditStore
	users     userDirectory
	tx        database.Transactor
	cache     *CacheService
	exporter  *ExportService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AuditConfig
	clock     *monotonicClock
	ids       *idGenerator
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditStore, users userDirectory, tx database.Transactor, cache *CacheService, exporter *ExportService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if exporter == nil {
		exporter = NewExportService(nil)
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 365
	}
	if cfg.MinRetentionDays <= 0 {
		cfg.MinRetentionDays = defaultMinRetentionDays
	}
	if cfg.StatsWindowDays <= 0 {
		cfg.StatsWindowDays = 30
	}
	if cfg.StatsRecentLimit <= 0 {
		cfg.StatsRecentLimit = 10
	}
	if cfg.ExportLimit <= 0 {
		cfg.ExportLimit = 10000
	}
	return &AuditService{
		repo:      repo,
		users:     users,
		tx:        tx,
		cache:     cache,
		exporter:  exporter,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		clock:     newMonotonicClock(nil),
		ids:       newIDGenerator(),
	}
}

// Log appends one audit record. When ctx carries a transaction the write
// joins it, so a failed write rolls back the mutation it describes.
func (s *AuditService) Log(ctx context.Context, entry models.AuditEntry) (*models.AuditLog, error) {
	kind := models.AuditKindAction
	if entry.Classification != "" {
		kind = models.AuditKindSecurity
	}

	// attribution comes from request headers and must never block the write
	entry.IPAddress = clampRunes(entry.IPAddress, maxIPAddressLen)
	entry.UserAgent = clampRunes(entry.UserAgent, maxUserAgentLen)

	if err := s.validator.Struct(entry); err != nil {
		s.metrics.RecordAuditWrite(kind, false)
		return nil, appErrors.Wrap(err, appErrors.ErrAuditWrite.Code, appErrors.ErrAuditWrite.Status, "invalid audit entry")
	}

	createdAt := s.clock.Now()
	id, err := s.ids.New(createdAt)
	if err != nil {
		s.metrics.RecordAuditWrite(kind, false)
		return nil, appErrors.Wrap(err, appErrors.ErrAuditWrite.Code, appErrors.ErrAuditWrite.Status, "failed to allocate audit id")
	}

	record := &models.AuditLog{
		ID:         id,
		Kind:       kind,
		UserID:     entry.UserID,
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: optional(entry.ResourceID),
		Details:    Redact(entry.Details),
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		Severity:   entry.Severity,
		Result:     entry.Result,
		CreatedAt:  createdAt,
	}
	if record.Severity == "" {
		record.Severity = models.SeverityLow
	}
	if record.Result == "" {
		record.Result = models.ResultSuccess
	}
	if entry.Classification != "" {
		code := string(entry.Classification)
		record.Classification = &code
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.metrics.RecordAuditWrite(kind, false)
		s.logger.Error("audit write failed",
			zap.String("action", record.Action),
			zap.String("user_id", record.UserID),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrAuditWrite.Code, appErrors.ErrAuditWrite.Status, "failed to write audit record")
	}

	s.metrics.RecordAuditWrite(kind, true)
	return record, nil
}

// LogSecurityEvent records a classified security event.
func (s *AuditService) LogSecurityEvent(ctx context.Context, code models.SecurityCode, entry models.AuditEntry) (*models.AuditLog, error) {
	entry.Action = code.Action()
	entry.Classification = code
	if entry.Severity == "" {
		entry.Severity = code.DefaultSeverity()
	}
	if entry.Result == "" {
		entry.Result = models.ResultDenied
	}
	return s.Log(ctx, entry)
}

// LogRoleChange writes the history row and its user.role_changed entry atomically.
func (s *AuditService) LogRoleChange(ctx context.Context, change *models.RoleChangeHistory, meta models.RequestMeta) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		change.CreatedAt = s.clock.Now()
		if err := s.repo.CreateRoleChange(ctx, change); err != nil {
			return appErrors.Wrap(err, appErrors.ErrAuditWrite.Code, appErrors.ErrAuditWrite.Status, "failed to write role history")
		}
		_, err := s.Log(ctx, models.AuditEntry{
			UserID:     change.ChangedBy,
			Action:     models.AuditActionUserRoleChanged,
			Resource:   "user",
			ResourceID: change.UserID,
			Details: models.Details{
				"oldRole":   string(change.OldRole),
				"newRole":   string(change.NewRole),
				"reason":    change.Reason,
				"historyId": change.ID,
			},
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Severity:  models.SeverityHigh,
		})
		return err
	})
}

// GetLogs returns one page of records, newest first.
func (s *AuditService) GetLogs(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizeAuditPage(filter.Page, filter.PageSize)
	if err := validateRange(filter.StartDate, filter.EndDate); err != nil {
		return nil, nil, err
	}

	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count audit logs")
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListSecurityEvents returns one page of security events.
func (s *AuditService) ListSecurityEvents(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	filter.Kind = models.AuditKindSecurity
	return s.GetLogs(ctx, filter)
}

// GetStats aggregates activity over the trailing window. The boolean reports a cache hit.
func (s *AuditService) GetStats(ctx context.Context, windowDays int) (*models.AuditStats, bool, error) {
	if windowDays <= 0 {
		windowDays = s.cfg.StatsWindowDays
	}
	if windowDays > maxStatsWindowDays {
		windowDays = maxStatsWindowDays
	}

	key := fmt.Sprintf("audit:stats:%d", windowDays)
	var cached models.AuditStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	stats := &models.AuditStats{WindowDays: windowDays, Since: since}

	var err error
	if stats.Total, err = s.repo.Count(ctx, models.AuditFilter{StartDate: &since}); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute audit stats")
	}
	if stats.SecurityEvents, err = s.repo.Count(ctx, models.AuditFilter{StartDate: &since, Kind: models.AuditKindSecurity}); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute audit stats")
	}
	if stats.ByAction, err = s.repo.CountByAction(ctx, since, statsBucketLimit); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute audit stats")
	}
	if stats.ByResource, err = s.repo.CountByResource(ctx, since, statsBucketLimit); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute audit stats")
	}
	if stats.Recent, err = s.repo.Recent(ctx, s.cfg.StatsRecentLimit); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent audit logs")
	}

	s.cache.Set(ctx, key, stats, s.cfg.StatsCacheTTL)
	return stats, false, nil
}

// GetComplianceReport returns matching records and summary statistics over
// an explicit date range.
func (s *AuditService) GetComplianceReport(ctx context.Context, filter models.AuditFilter) (*models.ComplianceReport, error) {
	if filter.StartDate == nil || filter.EndDate == nil {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "compliance reports require startDate and endDate"),
			[]appErrors.FieldError{{Field: "startDate", Rule: "required"}, {Field: "endDate", Rule: "required"}})
	}

	logs, pagination, err := s.GetLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	summaryFilter := filter
	summaryFilter.Page, summaryFilter.PageSize = 0, 0
	summary, err := s.repo.Summary(ctx, summaryFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize audit logs")
	}

	return &models.ComplianceReport{
		StartDate:   *filter.StartDate,
		EndDate:     *filter.EndDate,
		Logs:        logs,
		Total:       pagination.TotalCount,
		Page:        pagination.Page,
		Summary:     summary,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ExportLogs renders every record matching filter and records the export as
// a DATA_EXPORT security event. The export is not returned when that record
// cannot be written.
func (s *AuditService) ExportLogs(ctx context.Context, filter models.AuditFilter, format string, meta models.RequestMeta) (*models.ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if !s.exporter.Supports(format) {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unsupported export format"),
			[]appErrors.FieldError{{Field: "format", Rule: "oneof=csv json pdf"}})
	}
	if err := validateRange(filter.StartDate, filter.EndDate); err != nil {
		return nil, err
	}

	logs, err := s.repo.ListAll(ctx, filter, s.cfg.ExportLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit logs for export")
	}

	filters := describeFilter(filter)
	result, err := s.exporter.Render(logs, format, filters)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	if _, err := s.LogSecurityEvent(ctx, models.SecurityDataExport, models.AuditEntry{
		UserID:   meta.ActorID,
		Resource: "audit",
		Details: models.Details{
			"format":      format,
			"filters":     filters,
			"recordCount": result.RecordCount,
			"truncated":   result.RecordCount >= s.cfg.ExportLimit,
		},
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Result:    models.ResultSuccess,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Cleanup deletes records older than retentionDays and records the cleanup
// in the same transaction. It returns the number of removed rows.
func (s *AuditService) Cleanup(ctx context.Context, retentionDays int, meta models.RequestMeta) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = s.cfg.RetentionDays
	}
	if retentionDays < s.cfg.MinRetentionDays {
		return 0, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("retentionDays must be at least %d", s.cfg.MinRetentionDays)),
			[]appErrors.FieldError{{Field: "retentionDays", Rule: "min"}},
		)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	var deleted int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete expired audit logs")
		}
		deleted = n
		_, err = s.Log(ctx, models.AuditEntry{
			UserID:   actorOrSystem(meta.ActorID),
			Action:   models.AuditActionCleanup,
			Resource: "audit",
			Details: models.Details{
				"retentionDays": retentionDays,
				"cutoff":        cutoff.Format(time.RFC3339),
				"deletedCount":  n,
			},
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Severity:  models.SeverityHigh,
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	s.cache.Invalidate(ctx, statsCachePattern)
	s.logger.Info("audit retention cleanup", zap.Int64("deleted", deleted), zap.Int("retention_days", retentionDays))
	return deleted, nil
}

// ValidateIntegrity scans records in [start, end] for structural problems.
// It never modifies the store.
func (s *AuditService) ValidateIntegrity(ctx context.Context, start, end *time.Time) (*models.IntegrityReport, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	to := time.Now().UTC()
	if end != nil {
		to = *end
	}
	from := to.AddDate(0, 0, -integrityDefaultDays)
	if start != nil {
		from = *start
	}

	logs, err := s.repo.ListRange(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit logs")
	}

	seen := make(map[string]bool)
	var ids []string
	for _, log := range logs {
		if log.UserID == "" || isPseudoActor(log.UserID) || seen[log.UserID] {
			continue
		}
		seen[log.UserID] = true
		ids = append(ids, log.UserID)
	}
	known, err := s.users.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve audit users")
	}

	report := &models.IntegrityReport{TotalLogs: len(logs), Issues: []string{}}
	for _, log := range logs {
		var issues []string
		if strings.TrimSpace(log.Action) == "" {
			issues = append(issues, fmt.Sprintf("log %s: missing action", log.ID))
		}
		switch {
		case log.UserID == "":
			issues = append(issues, fmt.Sprintf("log %s: missing user id", log.ID))
		case isPseudoActor(log.UserID):
		case !known[log.UserID]:
			issues = append(issues, fmt.Sprintf("log %s: user %s does not exist", log.ID, log.UserID))
		}
		if len(issues) == 0 {
			report.ValidLogs++
			continue
		}
		report.Issues = append(report.Issues, issues...)
	}
	report.IsValid = len(report.Issues) == 0
	return report, nil
}

// ListRoleChanges returns the role history of a user.
func (s *AuditService) ListRoleChanges(ctx context.Context, userID string) ([]models.RoleChangeHistory, error) {
	changes, err := s.repo.ListRoleChanges(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list role history")
	}
	return changes, nil
}

// Redact returns a copy of details with sensitive keys masked at any depth.
func Redact(details models.Details) models.Details {
	out := make(models.Details, len(details))
	for k, v := range details {
		if isSensitiveKey(k) {
			out[k] = redactedValue
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case models.Details:
		return Redact(typed)
	case map[string]interface{}:
		return map[string]interface{}(Redact(models.Details(typed)))
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	case error:
		// error text can carry driver and host details
		return redactedValue
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func normalizeAuditPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = auditDefaultPageSize
	}
	if size > auditMaxPageSize {
		size = auditMaxPageSize
	}
	return page, size
}

func validateRange(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "startDate must not be after endDate"),
			[]appErrors.FieldError{{Field: "startDate", Rule: "ltefield=endDate"}})
	}
	return nil
}

func describeFilter(filter models.AuditFilter) map[string]any {
	out := map[string]any{}
	if filter.UserID != "" {
		out["userId"] = filter.UserID
	}
	if len(filter.Actions) > 0 {
		out["actions"] = filter.Actions
	}
	if len(filter.Resources) > 0 {
		out["resources"] = filter.Resources
	}
	if filter.Kind != "" {
		out["kind"] = filter.Kind
	}
	if filter.Classification != "" {
		out["classification"] = filter.Classification
	}
	if filter.StartDate != nil {
		out["startDate"] = filter.StartDate.UTC().Format(time.RFC3339)
	}
	if filter.EndDate != nil {
		out["endDate"] = filter.EndDate.UTC().Format(time.RFC3339)
	}
	return out
}

func isPseudoActor(id string) bool {
	return id == models.ActorAnonymous || id == models.ActorSystem
}

func actorOrSystem(id string) string {
	if id == "" {
		return models.ActorSystem
	}
	return id
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// clampRunes cuts s to at most n runes.
func clampRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

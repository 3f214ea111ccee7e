package dto

import (
	"strings"
	"time"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
)

const dateLayout = "2006-01-02"

// AuditQuery captures the audit listing, compliance and export query string.
// Array parameters are accepted both as `action=a&action=b` and `action[]=a`.
type AuditQuery struct {
	UserID         string   `form:"userId"`
	Actions        []string `form:"action"`
	ActionsArray   []string `form:"action[]"`
	Resources      []string `form:"resource"`
	ResourcesArray []string `form:"resource[]"`
	Classification string   `form:"classification"`
	StartDate      string   `form:"startDate"`
	EndDate        string   `form:"endDate"`
	Page           int      `form:"page"`
	Limit          int      `form:"limit"`
	Format         string   `form:"format"`
}

// DateError reports an unparseable date parameter.
type DateError struct {
	Field string
	Value string
}

func (e *DateError) Error() string {
	return "invalid " + e.Field + ": " + e.Value
}

// Filter converts the query into a repository filter. A date-only endDate
// covers the whole day.
func (q AuditQuery) Filter() (models.AuditFilter, error) {
	filter := models.AuditFilter{
		UserID:         strings.TrimSpace(q.UserID),
		Actions:        compact(append(q.Actions, q.ActionsArray...)),
		Resources:      compact(append(q.Resources, q.ResourcesArray...)),
		Classification: strings.TrimSpace(q.Classification),
		Page:           q.Page,
		PageSize:       q.Limit,
	}

	if q.StartDate != "" {
		start, _, err := parseDate(q.StartDate)
		if err != nil {
			return filter, &DateError{Field: "startDate", Value: q.StartDate}
		}
		filter.StartDate = &start
	}
	if q.EndDate != "" {
		end, dateOnly, err := parseDate(q.EndDate)
		if err != nil {
			return filter, &DateError{Field: "endDate", Value: q.EndDate}
		}
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		filter.EndDate = &end
	}
	return filter, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), true, nil
}

func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CleanupRequest is the body of POST /admin/audit/cleanup.
type CleanupRequest struct {
	RetentionDays int `json:"retentionDays"`
}

// CleanupResponse reports how many records were removed.
type CleanupResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

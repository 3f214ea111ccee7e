package router

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/internal/repository"
)

type inlineTx struct{}

func (inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *memUsers) get(id string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

func (m *memUsers) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) Update(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) UpdateRole(ctx context.Context, id string, from, to models.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Role != from {
		return repository.ErrStaleWrite
	}
	u.Role = to
	return nil
}

func (m *memUsers) SetActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Active = active
	}
	return nil
}

func (m *memUsers) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (m *memUsers) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, id := range ids {
		if _, ok := m.users[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

type memPages struct {
	mu    sync.Mutex
	pages map[string]*models.Page
}

func newMemPages() *memPages { return &memPages{pages: map[string]*models.Page{}} }

func (m *memPages) FindByID(ctx context.Context, id string) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *memPages) List(ctx context.Context, filter models.PageFilter) ([]models.Page, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Page, 0, len(m.pages))
	for _, p := range m.pages {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *memPages) Create(ctx context.Context, page *models.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if page.ID == "" {
		page.ID = "page-" + page.Slug
	}
	cp := *page
	m.pages[page.ID] = &cp
	return nil
}

func (m *memPages) Update(ctx context.Context, page *models.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *page
	m.pages[page.ID] = &cp
	return nil
}

func (m *memPages) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, id)
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	logs    []models.AuditLog
	changes []models.RoleChangeHistory
}

func (m *memAudit) Create(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

func in(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func (m *memAudit) filtered(f models.AuditFilter) []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditLog
	for _, l := range m.logs {
		switch {
		case f.UserID != "" && l.UserID != f.UserID,
			f.Kind != "" && l.Kind != f.Kind,
			len(f.Actions) > 0 && !in(f.Actions, l.Action),
			len(f.Resources) > 0 && !in(f.Resources, l.Resource),
			f.StartDate != nil && l.CreatedAt.Before(*f.StartDate),
			f.EndDate != nil && l.CreatedAt.After(*f.EndDate):
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memAudit) List(ctx context.Context, f models.AuditFilter) ([]models.AuditLog, error) {
	all := m.filtered(f)
	start := (f.Page - 1) * f.PageSize
	if start >= len(all) {
		return []models.AuditLog{}, nil
	}
	end := start + f.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *memAudit) ListAll(ctx context.Context, f models.AuditFilter, limit int) ([]models.AuditLog, error) {
	all := m.filtered(f)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memAudit) Count(ctx context.Context, f models.AuditFilter) (int, error) {
	return len(m.filtered(f)), nil
}

func (m *memAudit) Summary(ctx context.Context, f models.AuditFilter) (models.ComplianceSummary, error) {
	all := m.filtered(f)
	users := map[string]bool{}
	s := models.ComplianceSummary{TotalActions: len(all)}
	for _, l := range all {
		users[l.UserID] = true
		if l.Result != models.ResultSuccess {
			s.FailedActions++
		}
	}
	s.UniqueUsers = len(users)
	return s, nil
}

func (m *memAudit) CountByAction(ctx context.Context, since time.Time, limit int) ([]models.CountBucket, error) {
	return nil, nil
}

func (m *memAudit) CountByResource(ctx context.Context, since time.Time, limit int) ([]models.CountBucket, error) {
	return nil, nil
}

func (m *memAudit) Recent(ctx context.Context, n int) ([]models.AuditLog, error) {
	return m.ListAll(ctx, models.AuditFilter{}, n)
}

func (m *memAudit) ListRange(ctx context.Context, start, end time.Time) ([]models.AuditLog, error) {
	return m.filtered(models.AuditFilter{StartDate: &start, EndDate: &end}), nil
}

func (m *memAudit) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *memAudit) CreateRoleChange(ctx context.Context, change *models.RoleChangeHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, *change)
	return nil
}

func (m *memAudit) ListRoleChanges(ctx context.Context, userID string) ([]models.RoleChangeHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RoleChangeHistory
	for _, c := range m.changes {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memAudit) matching(action string, pred func(models.AuditLog) bool) []models.AuditLog {
	var out []models.AuditLog
	for _, l := range m.filtered(models.AuditFilter{Actions: []string{action}}) {
		if pred == nil || pred(l) {
			out = append(out, l)
		}
	}
	return out
}

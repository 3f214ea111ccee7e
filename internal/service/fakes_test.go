package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/internal/repository"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
)

// memAuditStore is an in-memory audit store. It is snapshotted by fakeTx so
// a failed transaction leaves no rows behind.
type memAuditStore struct {
	mu        sync.Mutex
	logs      []models.AuditLog
	changes   []models.RoleChangeHistory
	createErr error
	failOn    string
}

func (m *memAuditStore) Create(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil && (m.failOn == "" || m.failOn == log.Action) {
		return m.createErr
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memAuditStore) match(filter models.AuditFilter, log models.AuditLog) bool {
	if filter.UserID != "" && log.UserID != filter.UserID {
		return false
	}
	if filter.Kind != "" && log.Kind != filter.Kind {
		return false
	}
	if len(filter.Actions) > 0 && !contains(filter.Actions, log.Action) {
		return false
	}
	if len(filter.Resources) > 0 && !contains(filter.Resources, log.Resource) {
		return false
	}
	if filter.StartDate != nil && log.CreatedAt.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && log.CreatedAt.After(*filter.EndDate) {
		return false
	}
	return true
}

func (m *memAuditStore) filtered(filter models.AuditFilter) []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditLog
	for _, log := range m.logs {
		if m.match(filter, log) {
			out = append(out, log)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *memAuditStore) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	all := m.filtered(filter)
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(all) {
		return []models.AuditLog{}, nil
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *memAuditStore) ListAll(ctx context.Context, filter models.AuditFilter, limit int) ([]models.AuditLog, error) {
	all := m.filtered(filter)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memAuditStore) Count(ctx context.Context, filter models.AuditFilter) (int, error) {
	return len(m.filtered(filter)), nil
}

func (m *memAuditStore) Summary(ctx context.Context, filter models.AuditFilter) (models.ComplianceSummary, error) {
	all := m.filtered(filter)
	users := map[string]bool{}
	summary := models.ComplianceSummary{TotalActions: len(all)}
	for _, log := range all {
		users[log.UserID] = true
		if log.Result != models.ResultSuccess {
			summary.FailedActions++
		}
	}
	summary.UniqueUsers = len(users)
	return summary, nil
}

func (m *memAuditStore) countBy(since time.Time, key func(models.AuditLog) string) []models.CountBucket {
	counts := map[string]int{}
	for _, log := range m.filtered(models.AuditFilter{StartDate: &since}) {
		counts[key(log)]++
	}
	out := make([]models.CountBucket, 0, len(counts))
	for k, c := range counts {
		out = append(out, models.CountBucket{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Key < out[j].Key
		}
		return out[i].Count > out[j].Count
	})
	return out
}

func (m *memAuditStore) CountByAction(ctx context.Context, since time.Time, limit int) ([]models.CountBucket, error) {
	return m.countBy(since, func(l models.AuditLog) string { return l.Action }), nil
}

func (m *memAuditStore) CountByResource(ctx context.Context, since time.Time, limit int) ([]models.CountBucket, error) {
	return m.countBy(since, func(l models.AuditLog) string { return l.Resource }), nil
}

func (m *memAuditStore) Recent(ctx context.Context, n int) ([]models.AuditLog, error) {
	return m.ListAll(ctx, models.AuditFilter{}, n)
}

func (m *memAuditStore) ListRange(ctx context.Context, start, end time.Time) ([]models.AuditLog, error) {
	return m.filtered(models.AuditFilter{StartDate: &start, EndDate: &end}), nil
}

func (m *memAuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []models.AuditLog
	var deleted int64
	for _, log := range m.logs {
		if log.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, log)
	}
	m.logs = kept
	return deleted, nil
}

func (m *memAuditStore) CreateRoleChange(ctx context.Context, change *models.RoleChangeHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if change.ID == "" {
		change.ID = "rc-" + change.UserID
	}
	m.changes = append(m.changes, *change)
	return nil
}

func (m *memAuditStore) ListRoleChanges(ctx context.Context, userID string) ([]models.RoleChangeHistory, error) {
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

func (m *memAuditStore) byAction(action string) []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditLog
	for _, log := range m.logs {
		if log.Action == action {
			out = append(out, log)
		}
	}
	return out
}

func (m *memAuditStore) snapshot() func() {
	m.mu.Lock()
	logs := append([]models.AuditLog(nil), m.logs...)
	changes := append([]models.RoleChangeHistory(nil), m.changes...)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.logs, m.changes = logs, changes
		m.mu.Unlock()
	}
}

// memUserStore is an in-memory user store.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserStore(users ...models.User) *memUserStore {
	s := &memUserStore{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		s.users[u.ID] = &u
	}
	return s
}

func (m *memUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUserStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memUserStore) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = "u-" + strings.Split(user.Email, "@")[0]
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *memUserStore) Update(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[user.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Email = user.Email
	existing.FullName = user.FullName
	return nil
}

func (m *memUserStore) UpdateRole(ctx context.Context, id string, from, to models.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Role != from {
		return repository.ErrStaleWrite
	}
	u.Role = to
	return nil
}

func (m *memUserStore) SetActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Active = active
	}
	return nil
}

func (m *memUserStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (m *memUserStore) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
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

func (m *memUserStore) snapshot() func() {
	m.mu.Lock()
	saved := make(map[string]models.User, len(m.users))
	for id, u := range m.users {
		saved[id] = *u
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.users = make(map[string]*models.User, len(saved))
		for id := range saved {
			u := saved[id]
			m.users[id] = &u
		}
	}
}

// fakeTx restores every registered store when fn fails, mirroring a rollback.
type fakeTx struct {
	stores    []interface{ snapshot() func() }
	depth     int
	rollbacks int
	commits   int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.depth > 0 {
		return fn(ctx)
	}
	restores := make([]func(), 0, len(f.stores))
	for _, s := range f.stores {
		restores = append(restores, s.snapshot())
	}
	f.depth++
	err := fn(ctx)
	f.depth--
	if err != nil {
		for _, restore := range restores {
			restore()
		}
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

type stubCacheRepo struct {
	mu      sync.Mutex
	values  map[string]interface{}
	deleted []string
}

func (s *stubCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return errCacheMissForTest
	}
	if stats, ok := v.(*models.AuditStats); ok {
		if out, ok := dest.(*models.AuditStats); ok {
			*out = *stats
			return nil
		}
	}
	return errCacheMissForTest
}

func (s *stubCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]interface{}{}
	}
	s.values[key] = value
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			delete(s.values, k)
		}
	}
	return nil
}

var errCacheMissForTest = appErrors.ErrCacheMiss

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terojleinonen/cms-admin-sub001/internal/authz"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
)

type memPageStore struct {
	mu    sync.Mutex
	pages map[string]models.Page
	seq   int
}

func (m *memPageStore) FindByID(ctx context.Context, id string) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memPageStore) List(ctx context.Context, filter models.PageFilter) ([]models.Page, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Page
	for _, p := range m.pages {
		if filter.OwnerID != "" && p.OwnerID != filter.OwnerID {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memPageStore) Create(ctx context.Context, page *models.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pages == nil {
		m.pages = map[string]models.Page{}
	}
	m.seq++
	page.ID = "p" + string(rune('0'+m.seq))
	m.pages[page.ID] = *page
	return nil
}

func (m *memPageStore) Update(ctx context.Context, page *models.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page.ID] = *page
	return nil
}

func (m *memPageStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, id)
	return nil
}

func (m *memPageStore) snapshot() func() {
	m.mu.Lock()
	saved := make(map[string]models.Page, len(m.pages))
	for k, v := range m.pages {
		saved[k] = v
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.pages = saved
		m.mu.Unlock()
	}
}

func newPageFixture(t *testing.T) (*PageService, *memPageStore, *memAuditStore) {
	t.Helper()
	pages := &memPageStore{pages: map[string]models.Page{
		"mine":   {ID: "mine", Title: "Mine", Slug: "mine", Status: models.PageStatusDraft, OwnerID: "editor"},
		"theirs": {ID: "theirs", Title: "Theirs", Slug: "theirs", Status: models.PageStatusDraft, OwnerID: "other"},
	}}
	store := &memAuditStore{}
	tx := &fakeTx{stores: []interface{ snapshot() func() }{pages, store}}
	audit := NewAuditService(store, newMemUserStore(), tx, nil, nil, nil, nil, nil, AuditConfig{})
	return NewPageService(pages, audit, tx, authz.NewEvaluator(), nil, nil), pages, store
}

var editorMeta = models.RequestMeta{ActorID: "editor", ActorRole: models.RoleEditor}

func TestPageCreateOwnedByActor(t *testing.T) {
	svc, _, store := newPageFixture(t)

	page, err := svc.Create(context.Background(), PageRequest{Title: "Hello, World!"}, editorMeta)
	require.NoError(t, err)
	assert.Equal(t, "editor", page.OwnerID)
	assert.Equal(t, "hello-world", page.Slug)
	assert.Equal(t, models.PageStatusDraft, page.Status)
	assert.Len(t, store.byAction(models.AuditActionPageCreated), 1)
}

func TestPageUpdateOwnership(t *testing.T) {
	svc, pages, store := newPageFixture(t)
	ctx := context.Background()

	updated, err := svc.Update(ctx, "mine", PageRequest{Title: "Mine v2", Status: models.PageStatusPublished}, editorMeta)
	require.NoError(t, err)
	assert.Equal(t, "mine-v2", updated.Slug)
	assert.Len(t, store.byAction(models.AuditActionPageUpdated), 1)

	_, err = svc.Update(ctx, "theirs", PageRequest{Title: "Hijacked"}, editorMeta)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, "Theirs", pages.pages["theirs"].Title)
	assert.Len(t, store.byAction(models.AuditActionPageUpdated), 1)

	admin := models.RequestMeta{ActorID: "admin", ActorRole: models.RoleAdmin}
	_, err = svc.Update(ctx, "theirs", PageRequest{Title: "Moderated"}, admin)
	require.NoError(t, err)
}

func TestPageDelete(t *testing.T) {
	svc, pages, store := newPageFixture(t)
	ctx := context.Background()

	err := svc.Delete(ctx, "theirs", editorMeta)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Contains(t, pages.pages, "theirs")

	viewer := models.RequestMeta{ActorID: "other", ActorRole: models.RoleViewer}
	err = svc.Delete(ctx, "theirs", viewer)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Delete(ctx, "mine", editorMeta))
	assert.NotContains(t, pages.pages, "mine")
	assert.Len(t, store.byAction(models.AuditActionPageDeleted), 1)

	err = svc.Delete(ctx, "missing", editorMeta)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestPageDeleteRollsBackWhenAuditFails(t *testing.T) {
	svc, pages, store := newPageFixture(t)
	store.createErr = errors.New("audit down")

	err := svc.Delete(context.Background(), "mine", editorMeta)
	require.Error(t, err)
	assert.Contains(t, pages.pages, "mine")
}

func TestSlugOrTitle(t *testing.T) {
	assert.Equal(t, "about-us", slugOrTitle("", "  About   Us "))
	assert.Equal(t, "custom", slugOrTitle("Custom", "ignored"))
	assert.Equal(t, "", slugOrTitle("", "!!!"))
}

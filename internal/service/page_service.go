package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/terojleinonen/cms-admin-sub001/internal/authz"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/internal/repository"
	"github.com/terojleinonen/cms-admin-sub001/pkg/database"
	appErrors "github.com/terojleinonen/cms-admin-sub001/pkg/errors"
)

type pageRepository interface {
	FindByID(ctx context.Context, id string) (*models.Page, error)
	List(ctx context.Context, filter models.PageFilter) ([]models.Page, int, error)
	Create(ctx context.Context, page *models.Page) error
	Update(ctx context.Context, page *models.Page) error
	Delete(ctx context.Context, id string) error
}

// PageRequest is the payload for creating or replacing a page.
type PageRequest struct {
	Title  string `json:"title" validate:"required,max=200"`
	Slug   string `json:"slug" validate:"omitempty,max=200"`
	Body   string `json:"body"`
	Status string `json:"status" validate:"omitempty,oneof=draft published"`
}

// PageService manages CMS pages. Updates and deletes are checked against the
// page owner so editors may only touch their own pages.
type PageService struct {
	repo      pageRepository
	audit     auditWriter
	tx        database.Transactor
	evaluator authz.Evaluator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPageService constructs a PageService.
func NewPageService(repo pageRepository, audit auditWriter, tx database.Transactor, evaluator authz.Evaluator, validate *validator.Validate, logger *zap.Logger) *PageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PageService{repo: repo, audit: audit, tx: tx, evaluator: evaluator, validator: validate, logger: logger}
}

// List returns pages and pagination metadata.
func (s *PageService) List(ctx context.Context, filter models.PageFilter) ([]models.Page, *models.Pagination, error) {
	pages, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pages")
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return pages, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a page by id.
func (s *PageService) Get(ctx context.Context, id string) (*models.Page, error) {
	page, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "page not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load page")
	}
	return page, nil
}

// Create stores a page owned by the acting user.
func (s *PageService) Create(ctx context.Context, req PageRequest, meta models.RequestMeta) (*models.Page, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid page payload")
	}

	page := &models.Page{
		Title:   strings.TrimSpace(req.Title),
		Slug:    slugOrTitle(req.Slug, req.Title),
		Body:    req.Body,
		Status:  req.Status,
		OwnerID: meta.ActorID,
	}
	if page.Status == "" {
		page.Status = models.PageStatusDraft
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, page); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "slug already exists")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create page")
		}
		_, err := s.audit.Log(ctx, models.AuditEntry{
			UserID:     meta.ActorID,
			Action:     models.AuditActionPageCreated,
			Resource:   "page",
			ResourceID: page.ID,
			Details:    models.Details{"title": page.Title, "slug": page.Slug, "status": page.Status},
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Update replaces the mutable fields of a page.
func (s *PageService) Update(ctx context.Context, id string, req PageRequest, meta models.RequestMeta) (*models.Page, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid page payload")
	}

	var updated *models.Page
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		page, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if !s.evaluator.CanAccess(subjectOf(meta), authz.P(authz.ResourcePages, authz.ActionUpdate, ""), page.OwnerID) {
			return appErrors.Clone(appErrors.ErrForbidden, "you cannot edit this page")
		}

		old := models.Details{"title": page.Title, "slug": page.Slug, "status": page.Status}
		page.Title = strings.TrimSpace(req.Title)
		page.Slug = slugOrTitle(req.Slug, req.Title)
		page.Body = req.Body
		if req.Status != "" {
			page.Status = req.Status
		}
		if err := s.repo.Update(ctx, page); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "slug already exists")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update page")
		}
		updated = page

		_, err = s.audit.Log(ctx, models.AuditEntry{
			UserID:     meta.ActorID,
			Action:     models.AuditActionPageUpdated,
			Resource:   "page",
			ResourceID: page.ID,
			Details: models.Details{
				"old":     old,
				"new":     models.Details{"title": page.Title, "slug": page.Slug, "status": page.Status},
				"ownerId": page.OwnerID,
			},
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a page.
func (s *PageService) Delete(ctx context.Context, id string, meta models.RequestMeta) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		page, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if !s.evaluator.CanAccess(subjectOf(meta), authz.P(authz.ResourcePages, authz.ActionDelete, ""), page.OwnerID) {
			return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete this page")
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete page")
		}
		_, err = s.audit.Log(ctx, models.AuditEntry{
			UserID:     meta.ActorID,
			Action:     models.AuditActionPageDeleted,
			Resource:   "page",
			ResourceID: page.ID,
			Details:    models.Details{"title": page.Title, "ownerId": page.OwnerID},
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
			Severity:   models.SeverityMedium,
		})
		return err
	})
}

// subjectOf builds the evaluator subject for an actor that already passed the gate.
func subjectOf(meta models.RequestMeta) *authz.Subject {
	if meta.ActorID == "" {
		return nil
	}
	return &authz.Subject{ID: meta.ActorID, Role: meta.ActorRole, Active: true}
}

func slugOrTitle(slug, title string) string {
	source := slug
	if strings.TrimSpace(source) == "" {
		source = title
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(source)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteRune('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

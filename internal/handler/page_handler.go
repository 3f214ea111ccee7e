package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/terojleinonen/cms-admin-sub001/internal/middleware"
	"github.com/terojleinonen/cms-admin-sub001/internal/models"
	"github.com/terojleinonen/cms-admin-sub001/internal/service"
	"github.com/terojleinonen/cms-admin-sub001/pkg/response"
)

type pageService interface {
	List(ctx context.Context, filter models.PageFilter) ([]models.Page, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Page, error)
	Create(ctx context.Context, req service.PageRequest, meta models.RequestMeta) (*models.Page, error)
	Update(ctx context.Context, id string, req service.PageRequest, meta models.RequestMeta) (*models.Page, error)
	Delete(ctx context.Context, id string, meta models.RequestMeta) error
}

// PageHandler exposes CMS page endpoints.
type PageHandler struct {
	service pageService
}

// NewPageHandler creates a page handler.
func NewPageHandler(svc pageService) *PageHandler {
	return &PageHandler{service: svc}
}

// List godoc
// @Summary List pages
// @Tags Pages
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "draft or published"
// @Param owner query string false "Owner user ID"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /pages [get]
func (h *PageHandler) List(c *gin.Context) {
	filter := models.PageFilter{
		OwnerID: c.Query("owner"),
		Status:  c.Query("status"),
		Search:  c.Query("search"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	pages, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, pages, pagination)
}

// Get godoc
// @Summary Get page
// @Tags Pages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Page ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pages/{id} [get]
func (h *PageHandler) Get(c *gin.Context) {
	page, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, page, nil)
}

// Create godoc
// @Summary Create page
// @Tags Pages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.PageRequest true "Page payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pages [post]
func (h *PageHandler) Create(c *gin.Context) {
	var req service.PageRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}

	page, err := h.service.Create(c.Request.Context(), req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, page)
}

// Update godoc
// @Summary Update page
// @Description Editors may only update pages they own
// @Tags Pages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Page ID"
// @Param payload body service.PageRequest true "Page payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pages/{id} [put]
func (h *PageHandler) Update(c *gin.Context) {
	var req service.PageRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}

	page, err := h.service.Update(c.Request.Context(), c.Param("id"), req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, page, nil)
}

// Delete godoc
// @Summary Delete page
// @Tags Pages
// @Security BearerAuth
// @Param id path string true "Page ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pages/{id} [delete]
func (h *PageHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), middleware.RequestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

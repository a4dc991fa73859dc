package handler

import (
	rebateapp "github.com/rfa/backend/internal/application/rebate"
	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TemplateHandler handles rebate template API endpoints
type TemplateHandler struct {
	BaseHandler
	templateService *rebateapp.TemplateService
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templateService *rebateapp.TemplateService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
	}
}

// Create godoc
// @ID           createTemplate
// @Summary      Create a rebate template
// @Description  Register a reusable rebate condition template
// @Tags         templates
// @Accept       json
// @Produce      json
// @Param        request body rebateapp.CreateTemplateRequest true "Template creation request"
// @Success      201 {object} APIResponse[rebateapp.TemplateResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req rebateapp.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	tpl, err := h.templateService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, tpl)
}

// GetByID godoc
// @ID           getTemplateById
// @Summary      Get template by ID
// @Tags         templates
// @Produce      json
// @Param        id path string true "Template ID" format(uuid)
// @Success      200 {object} APIResponse[rebateapp.TemplateResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/templates/{id} [get]
func (h *TemplateHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid template ID format")
		return
	}

	tpl, err := h.templateService.Get(c.Request.Context(), tenantID, templateID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, tpl)
}

// List godoc
// @ID           listTemplates
// @Summary      List rebate templates
// @Tags         templates
// @Produce      json
// @Param        rebate_type query string false "Filter by rebate type"
// @Param        scope query string false "Filter by scope"
// @Param        search query string false "Search by name"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]rebateapp.TemplateResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := rebate.TemplateFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	if raw := c.Query("rebate_type"); raw != "" {
		rebateType := rebate.RebateType(raw)
		filter.RebateType = &rebateType
	}
	if raw := c.Query("scope"); raw != "" {
		scope := rebate.TemplateScope(raw)
		filter.Scope = &scope
	}

	page, err := h.templateService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update godoc
// @ID           updateTemplate
// @Summary      Update a rebate template
// @Tags         templates
// @Accept       json
// @Produce      json
// @Param        id path string true "Template ID" format(uuid)
// @Param        request body rebateapp.UpdateTemplateRequest true "Template update request"
// @Success      200 {object} APIResponse[rebateapp.TemplateResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/templates/{id} [patch]
func (h *TemplateHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid template ID format")
		return
	}

	var req rebateapp.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	tpl, err := h.templateService.Update(c.Request.Context(), tenantID, templateID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, tpl)
}

// Delete godoc
// @ID           deleteTemplate
// @Summary      Delete a rebate template
// @Tags         templates
// @Produce      json
// @Param        id path string true "Template ID" format(uuid)
// @Success      204
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/templates/{id} [delete]
func (h *TemplateHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid template ID format")
		return
	}

	if err := h.templateService.Delete(c.Request.Context(), tenantID, templateID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

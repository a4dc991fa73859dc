package handler

import (
	partnerapp "github.com/rfa/backend/internal/application/partner"
	"github.com/rfa/backend/internal/domain/shared"
	"github.com/rfa/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LaboratoryHandler handles laboratory-related API endpoints
type LaboratoryHandler struct {
	BaseHandler
	laboratoryService *partnerapp.LaboratoryService
}

// NewLaboratoryHandler creates a new LaboratoryHandler
func NewLaboratoryHandler(laboratoryService *partnerapp.LaboratoryService) *LaboratoryHandler {
	return &LaboratoryHandler{
		laboratoryService: laboratoryService,
	}
}

// Create godoc
// @ID           createLaboratory
// @Summary      Create a new laboratory
// @Description  Register a pharmaceutical laboratory for the tenant
// @Tags         laboratories
// @Accept       json
// @Produce      json
// @Param        request body partnerapp.CreateLaboratoryRequest true "Laboratory creation request"
// @Success      201 {object} APIResponse[partnerapp.LaboratoryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /laboratories [post]
func (h *LaboratoryHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req partnerapp.CreateLaboratoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lab, err := h.laboratoryService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, lab)
}

// GetByID godoc
// @ID           getLaboratoryById
// @Summary      Get laboratory by ID
// @Tags         laboratories
// @Produce      json
// @Param        id path string true "Laboratory ID" format(uuid)
// @Success      200 {object} APIResponse[partnerapp.LaboratoryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /laboratories/{id} [get]
func (h *LaboratoryHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	labID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID format")
		return
	}

	lab, err := h.laboratoryService.Get(c.Request.Context(), tenantID, labID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lab)
}

// List godoc
// @ID           listLaboratories
// @Summary      List laboratories
// @Tags         laboratories
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        search query string false "Search by name"
// @Success      200 {object} APIResponse[[]partnerapp.LaboratoryResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /laboratories [get]
func (h *LaboratoryHandler) List(c *gin.Context) {
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

	page, err := h.laboratoryService.List(c.Request.Context(), tenantID, shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update godoc
// @ID           updateLaboratory
// @Summary      Update a laboratory
// @Tags         laboratories
// @Accept       json
// @Produce      json
// @Param        id path string true "Laboratory ID" format(uuid)
// @Param        request body partnerapp.UpdateLaboratoryRequest true "Laboratory update request"
// @Success      200 {object} APIResponse[partnerapp.LaboratoryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /laboratories/{id} [put]
func (h *LaboratoryHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	labID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID format")
		return
	}

	var req partnerapp.UpdateLaboratoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lab, err := h.laboratoryService.Update(c.Request.Context(), tenantID, labID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lab)
}

// Delete godoc
// @ID           deleteLaboratory
// @Summary      Delete a laboratory
// @Tags         laboratories
// @Produce      json
// @Param        id path string true "Laboratory ID" format(uuid)
// @Success      204
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /laboratories/{id} [delete]
func (h *LaboratoryHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	labID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID format")
		return
	}

	if err := h.laboratoryService.Delete(c.Request.Context(), tenantID, labID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

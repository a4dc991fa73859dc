package handler

import (
	rebateapp "github.com/rfa/backend/internal/application/rebate"
	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AgreementHandler handles laboratory agreement API endpoints
type AgreementHandler struct {
	BaseHandler
	agreementService *rebateapp.AgreementService
}

// NewAgreementHandler creates a new AgreementHandler
func NewAgreementHandler(agreementService *rebateapp.AgreementService) *AgreementHandler {
	return &AgreementHandler{
		agreementService: agreementService,
	}
}

// actor builds the audit actor from the authenticated request.
func (h *AgreementHandler) actor(c *gin.Context) (rebateapp.Actor, error) {
	userID, err := getUserID(c)
	if err != nil {
		return rebateapp.Actor{}, err
	}
	return rebateapp.Actor{
		UserID:    userID,
		IPAddress: c.ClientIP(),
	}, nil
}

// Create godoc
// @ID           createAgreement
// @Summary      Create an agreement
// @Description  Create a draft rebate agreement for a laboratory
// @Tags         agreements
// @Accept       json
// @Produce      json
// @Param        request body rebateapp.CreateAgreementRequest true "Agreement creation request"
// @Success      201 {object} APIResponse[rebateapp.AgreementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/agreements [post]
func (h *AgreementHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	actor, err := h.actor(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req rebateapp.CreateAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	agreement, err := h.agreementService.Create(c.Request.Context(), tenantID, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, agreement)
}

// GetByID godoc
// @ID           getAgreementById
// @Summary      Get agreement by ID
// @Tags         agreements
// @Produce      json
// @Param        id path string true "Agreement ID" format(uuid)
// @Success      200 {object} APIResponse[rebateapp.AgreementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/agreements/{id} [get]
func (h *AgreementHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	agreementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid agreement ID format")
		return
	}

	agreement, err := h.agreementService.Get(c.Request.Context(), tenantID, agreementID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, agreement)
}

// List godoc
// @ID           listAgreements
// @Summary      List agreements
// @Tags         agreements
// @Produce      json
// @Param        laboratory_id query string false "Filter by laboratory" format(uuid)
// @Param        status query string false "Filter by status" Enums(draft, active, suspended, expired, archived)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]rebateapp.AgreementResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/agreements [get]
func (h *AgreementHandler) List(c *gin.Context) {
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

	filter := rebate.AgreementFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	if raw := c.Query("laboratory_id"); raw != "" {
		labID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid laboratory_id format")
			return
		}
		filter.LaboratoryID = &labID
	}
	if raw := c.Query("status"); raw != "" {
		status := rebate.AgreementStatus(raw)
		filter.Status = &status
	}

	page, err := h.agreementService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update godoc
// @ID           updateAgreement
// @Summary      Update an agreement
// @Description  Create a new version of the agreement with the given changes
// @Tags         agreements
// @Accept       json
// @Produce      json
// @Param        id path string true "Agreement ID" format(uuid)
// @Param        request body rebateapp.UpdateAgreementRequest true "Agreement update request"
// @Success      200 {object} APIResponse[rebateapp.AgreementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/agreements/{id} [patch]
func (h *AgreementHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	actor, err := h.actor(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	agreementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid agreement ID format")
		return
	}

	var req rebateapp.UpdateAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	agreement, err := h.agreementService.Update(c.Request.Context(), tenantID, agreementID, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, agreement)
}

// Activate godoc
// @ID           activateAgreement
// @Summary      Activate an agreement
// @Description  Activate a draft agreement, archiving any previously active one
// @Tags         agreements
// @Produce      json
// @Param        id path string true "Agreement ID" format(uuid)
// @Success      200 {object} APIResponse[rebateapp.AgreementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/agreements/{id}/activate [post]
func (h *AgreementHandler) Activate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	actor, err := h.actor(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	agreementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid agreement ID format")
		return
	}

	agreement, err := h.agreementService.Activate(c.Request.Context(), tenantID, agreementID, actor)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, agreement)
}

// History godoc
// @ID           getAgreementHistory
// @Summary      Get agreement version history
// @Description  List all versions of the agreement lineage, newest first
// @Tags         agreements
// @Produce      json
// @Param        id path string true "Agreement ID" format(uuid)
// @Success      200 {object} APIResponse[[]rebateapp.AgreementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/agreements/{id}/history [get]
func (h *AgreementHandler) History(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	agreementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid agreement ID format")
		return
	}

	versions, err := h.agreementService.History(c.Request.Context(), tenantID, agreementID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, versions)
}

// AuditTrail godoc
// @ID           getAgreementAuditTrail
// @Summary      Get agreement audit trail
// @Description  List the audit log entries recorded for the agreement
// @Tags         agreements
// @Produce      json
// @Param        id path string true "Agreement ID" format(uuid)
// @Success      200 {object} APIResponse[[]rebateapp.AuditEntryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/agreements/{id}/audit [get]
func (h *AgreementHandler) AuditTrail(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	agreementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid agreement ID format")
		return
	}

	entries, err := h.agreementService.AuditTrail(c.Request.Context(), tenantID, agreementID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, entries)
}

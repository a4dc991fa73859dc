package handler

import (
	"strconv"
	"time"

	rebateapp "github.com/rfa/backend/internal/application/rebate"
	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ScheduleHandler handles rebate schedule API endpoints
type ScheduleHandler struct {
	BaseHandler
	scheduleService *rebateapp.ScheduleService
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(scheduleService *rebateapp.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
	}
}

// Preview godoc
// @ID           previewSchedule
// @Summary      Preview a rebate schedule
// @Description  Compute the rebate schedule for an invoice without persisting it, optionally against an ad-hoc agreement config
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        request body rebateapp.PreviewScheduleRequest true "Invoice to preview, with an optional config override"
// @Success      200 {object} APIResponse[rebateapp.ScheduleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/preview [post]
func (h *ScheduleHandler) Preview(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req rebateapp.PreviewScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	schedule, err := h.scheduleService.Preview(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, schedule)
}

// Compute godoc
// @ID           computeSchedule
// @Summary      Compute and persist a rebate schedule
// @Description  Compute the rebate schedule for a verified invoice and store it
// @Tags         schedules
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      201 {object} APIResponse[rebateapp.ScheduleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/schedule/{id} [post]
func (h *ScheduleHandler) Compute(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	schedule, err := h.scheduleService.Compute(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, schedule)
}

// GetByInvoice godoc
// @ID           getSchedulesByInvoice
// @Summary      Get schedules for an invoice
// @Tags         schedules
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[[]rebateapp.ScheduleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/schedules/{id} [get]
func (h *ScheduleHandler) GetByInvoice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	schedules, err := h.scheduleService.GetByInvoice(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, schedules)
}

// List godoc
// @ID           listSchedules
// @Summary      List rebate schedules
// @Tags         schedules
// @Produce      json
// @Param        laboratory_id query string false "Filter by laboratory" format(uuid)
// @Param        agreement_id query string false "Filter by agreement" format(uuid)
// @Param        status query string false "Filter by status" Enums(forecast, issued, received, discrepancy, cancelled)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]rebateapp.ScheduleResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
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

	filter := rebate.ScheduleFilter{
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
	if raw := c.Query("agreement_id"); raw != "" {
		agreementID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid agreement_id format")
			return
		}
		filter.AgreementID = &agreementID
	}
	if raw := c.Query("status"); raw != "" {
		status := rebate.ScheduleStatus(raw)
		filter.Status = &status
	}

	page, err := h.scheduleService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// RecordReception godoc
// @ID           recordScheduleReception
// @Summary      Record a rebate reception
// @Description  Record an amount actually received against a schedule entry
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        id path string true "Schedule ID" format(uuid)
// @Param        request body rebateapp.RecordReceptionRequest true "Reception details"
// @Success      200 {object} APIResponse[rebateapp.ScheduleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/schedules/{id}/reception [post]
func (h *ScheduleHandler) RecordReception(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid schedule ID format")
		return
	}

	var req rebateapp.RecordReceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	schedule, err := h.scheduleService.RecordReception(c.Request.Context(), tenantID, scheduleID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, schedule)
}

// MonthlyDashboard godoc
// @ID           getMonthlyDashboard
// @Summary      Monthly rebate dashboard
// @Description  Aggregate expected and received rebates per laboratory for one month
// @Tags         schedules
// @Produce      json
// @Param        year query int true "Year" example(2025)
// @Param        month query int true "Month (1-12)" example(6)
// @Success      200 {object} APIResponse[rebateapp.MonthlyDashboardResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rebate/dashboard/monthly [get]
func (h *ScheduleHandler) MonthlyDashboard(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year < 2000 || year > 2100 {
		h.BadRequest(c, "Invalid or missing year")
		return
	}

	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		h.BadRequest(c, "Invalid or missing month, expected 1-12")
		return
	}

	dashboard, err := h.scheduleService.MonthlyDashboard(c.Request.Context(), tenantID, year, time.Month(month))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, dashboard)
}

package handler

import (
	"io"
	"time"

	invoiceapp "github.com/rfa/backend/internal/application/invoice"
	"github.com/rfa/backend/internal/domain/invoice"
	"github.com/rfa/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvoiceHandler handles laboratory invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *invoiceapp.InvoiceService
	importService  *invoiceapp.CSVImportService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *invoiceapp.InvoiceService, importService *invoiceapp.CSVImportService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		importService:  importService,
	}
}

// Import godoc
// @ID           importInvoice
// @Summary      Import an invoice
// @Description  Import a single laboratory invoice with its lines
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body invoiceapp.ImportInvoiceRequest true "Invoice import request"
// @Success      201 {object} APIResponse[invoiceapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices-labo [post]
func (h *InvoiceHandler) Import(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req invoiceapp.ImportInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	inv, err := h.invoiceService.Import(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, inv)
}

// Upload godoc
// @ID           uploadInvoiceFile
// @Summary      Upload an invoice CSV file
// @Description  Parse and import a CSV export of laboratory invoices
// @Tags         invoices
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "CSV file"
// @Success      200 {object} APIResponse[invoiceapp.CSVImportResult]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices-labo/upload [post]
func (h *InvoiceHandler) Upload(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "Missing file in multipart form")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.BadRequest(c, "Cannot open uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.InternalError(c, "Failed to read uploaded file")
		return
	}

	result, err := h.importService.ImportCSV(c.Request.Context(), tenantID, userID, fileHeader.Filename, data)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Verify godoc
// @ID           verifyInvoice
// @Summary      Verify an invoice
// @Description  Run the verification checks against the active agreement
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[invoiceapp.VerificationReport]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices-labo/{id}/verify [post]
func (h *InvoiceHandler) Verify(c *gin.Context) {
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

	report, err := h.invoiceService.Verify(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, report)
}

// GetVerification godoc
// @ID           getInvoiceVerification
// @Summary      Get invoice verification report
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[invoiceapp.VerificationReport]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices-labo/{id}/verification [get]
func (h *InvoiceHandler) GetVerification(c *gin.Context) {
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

	report, err := h.invoiceService.GetVerification(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, report)
}

// ResolveAnomaly godoc
// @ID           resolveInvoiceAnomaly
// @Summary      Resolve an anomaly
// @Description  Mark a verification anomaly as resolved with a note
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Anomaly ID" format(uuid)
// @Param        request body invoiceapp.ResolveAnomalyRequest true "Resolution note"
// @Success      200 {object} APIResponse[invoiceapp.AnomalyResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices-labo/anomalies/{id}/resolve [post]
func (h *InvoiceHandler) ResolveAnomaly(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	anomalyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid anomaly ID format")
		return
	}

	var req invoiceapp.ResolveAnomalyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	anomaly, err := h.invoiceService.ResolveAnomaly(c.Request.Context(), tenantID, anomalyID, req.Note)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, anomaly)
}

// GetByID godoc
// @ID           getInvoiceById
// @Summary      Get invoice by ID
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[invoiceapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices-labo/{id} [get]
func (h *InvoiceHandler) GetByID(c *gin.Context) {
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

	inv, err := h.invoiceService.Get(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, inv)
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Param        laboratory_id query string false "Filter by laboratory" format(uuid)
// @Param        status query string false "Filter by status" Enums(IMPORTED, VERIFIED, ANOMALY, ARCHIVED)
// @Param        from query string false "Invoice date lower bound (RFC 3339)"
// @Param        to query string false "Invoice date upper bound (RFC 3339)"
// @Param        search query string false "Search by invoice number"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]invoiceapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices-labo [get]
func (h *InvoiceHandler) List(c *gin.Context) {
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

	filter := invoice.InvoiceFilter{
		Search:   req.Search,
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
		status := invoice.InvoiceStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "Invalid from date, expected RFC 3339")
			return
		}
		filter.FromDate = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "Invalid to date, expected RFC 3339")
			return
		}
		filter.ToDate = &to
	}

	page, err := h.invoiceService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

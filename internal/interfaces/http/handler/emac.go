package handler

import (
	"io"
	"strconv"
	"time"

	emacapp "github.com/rfa/backend/internal/application/emac"
	"github.com/rfa/backend/internal/domain/emac"
	"github.com/rfa/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EMACHandler handles EMAC statement API endpoints
type EMACHandler struct {
	BaseHandler
	emacService   *emacapp.EMACService
	importService *emacapp.CSVImportService
}

// NewEMACHandler creates a new EMACHandler
func NewEMACHandler(emacService *emacapp.EMACService, importService *emacapp.CSVImportService) *EMACHandler {
	return &EMACHandler{
		emacService:   emacService,
		importService: importService,
	}
}

// Upload godoc
// @ID           uploadEMACFile
// @Summary      Upload an EMAC CSV file
// @Description  Parse a CSV of annual statements and register each row
// @Tags         emac
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "CSV file"
// @Success      200 {object} APIResponse[emacapp.CSVImportResult]
// @Failure      400 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /emac/upload [post]
func (h *EMACHandler) Upload(c *gin.Context) {
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

// Create godoc
// @ID           createEMAC
// @Summary      Register an EMAC statement
// @Description  Register an annual laboratory statement and run the three-way verification
// @Tags         emac
// @Accept       json
// @Produce      json
// @Param        request body emacapp.CreateEMACRequest true "EMAC creation request"
// @Success      201 {object} APIResponse[emacapp.EMACResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /emac/manual [post]
func (h *EMACHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req emacapp.CreateEMACRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	statement, err := h.emacService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, statement)
}

// GetByID godoc
// @ID           getEMACById
// @Summary      Get EMAC statement by ID
// @Description  Return the statement together with its verification outcome
// @Tags         emac
// @Produce      json
// @Param        id path string true "EMAC ID" format(uuid)
// @Success      200 {object} APIResponse[emacapp.VerificationResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /emac/{id} [get]
func (h *EMACHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	emacID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid EMAC ID format")
		return
	}

	result, err := h.emacService.Get(c.Request.Context(), tenantID, emacID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// List godoc
// @ID           listEMAC
// @Summary      List EMAC statements
// @Tags         emac
// @Produce      json
// @Param        laboratory_id query string false "Filter by laboratory" format(uuid)
// @Param        status query string false "Filter by status" Enums(non_verifie, conforme, ecart_detecte, anomalie)
// @Param        year query int false "Filter by year"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]emacapp.EMACResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /emac [get]
func (h *EMACHandler) List(c *gin.Context) {
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

	filter := emac.EMACFilter{
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
		status := emac.EMACStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			h.BadRequest(c, "Invalid year")
			return
		}
		filter.Year = &year
	}

	page, err := h.emacService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Verify godoc
// @ID           verifyEMAC
// @Summary      Re-run EMAC verification
// @Description  Recompute the three-way comparison between declared, theoretical and received amounts
// @Tags         emac
// @Produce      json
// @Param        id path string true "EMAC ID" format(uuid)
// @Success      200 {object} APIResponse[emacapp.VerificationResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /emac/{id}/verify [post]
func (h *EMACHandler) Verify(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	emacID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid EMAC ID format")
		return
	}

	result, err := h.emacService.Verify(c.Request.Context(), tenantID, emacID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Triangle godoc
// @ID           getEMACTriangle
// @Summary      Get EMAC triangle comparison
// @Description  Return the declared, theoretical and received amounts side by side
// @Tags         emac
// @Produce      json
// @Param        id path string true "EMAC ID" format(uuid)
// @Success      200 {object} APIResponse[emacapp.TriangleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /emac/{id}/triangle [get]
func (h *EMACHandler) Triangle(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	emacID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid EMAC ID format")
		return
	}

	triangle, err := h.emacService.Triangle(c.Request.Context(), tenantID, emacID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, triangle)
}

// Missing godoc
// @ID           listMissingEMAC
// @Summary      List laboratories with a missing EMAC
// @Description  List laboratories that had rebate activity in a year but no registered statement
// @Tags         emac
// @Produce      json
// @Param        year query int false "Year, defaults to the previous calendar year"
// @Success      200 {object} APIResponse[[]emacapp.MissingEMACResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /emac/missing [get]
func (h *EMACHandler) Missing(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	year := time.Now().Year() - 1
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2000 || parsed > 2100 {
			h.BadRequest(c, "Invalid year")
			return
		}
		year = parsed
	}

	missing, err := h.emacService.Missing(c.Request.Context(), tenantID, year)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, missing)
}

package emac

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/partner"
	"github.com/rfa/backend/internal/domain/shared"
	csvimport "github.com/rfa/backend/internal/infrastructure/import"
)

// CSV column names expected in an EMAC upload. One row per statement.
const (
	colLaboratory       = "laboratoire"
	colPeriodStart      = "periode_debut"
	colPeriodEnd        = "periode_fin"
	colDeclaredCA       = "ca_declare"
	colDeclaredRFA      = "rfa_declaree"
	colDeclaredCOP      = "cop_declaree"
	colDeclaredDiffered = "differee_declaree"
	colOtherAdvantages  = "autres_avantages"
	colTotalDeclared    = "total_avantages_declare"
	colAmountPaid       = "montant_verse"
	colRemainingBalance = "solde_restant"
)

const emacDateFormat = "2006-01-02"

const refLaboratory = "laboratory"

// CSVImportService turns an uploaded EMAC file into registered statements.
// Each row is one annual statement; rows that fail validation are reported
// and skipped, the rest are registered and verified one by one.
type CSVImportService struct {
	statements     *EMACService
	laboratoryRepo partner.LaboratoryRepository
	logger         *zap.Logger
}

// NewCSVImportService creates a new CSVImportService
func NewCSVImportService(
	statements *EMACService,
	laboratoryRepo partner.LaboratoryRepository,
	logger *zap.Logger,
) *CSVImportService {
	return &CSVImportService{
		statements:     statements,
		laboratoryRepo: laboratoryRepo,
		logger:         logger,
	}
}

// CSVImportResult reports the outcome of one EMAC upload.
type CSVImportResult struct {
	SessionID string               `json:"session_id"`
	FileName  string               `json:"file_name"`
	TotalRows int                  `json:"total_rows"`
	ValidRows int                  `json:"valid_rows"`
	ErrorRows int                  `json:"error_rows"`
	RowErrors []csvimport.RowError `json:"row_errors,omitempty"`
	Imported  []EMACResponse       `json:"imported"`
	Failures  []CSVImportFailure   `json:"failures,omitempty"`
}

// CSVImportFailure describes one statement that passed row validation but
// was rejected on registration.
type CSVImportFailure struct {
	Laboratory string `json:"laboratory"`
	Row        int    `json:"row"`
	Error      string `json:"error"`
}

// ImportCSV validates and registers an uploaded EMAC file.
func (s *CSVImportService) ImportCSV(ctx context.Context, tenantID, userID uuid.UUID, fileName string, data []byte) (*CSVImportResult, error) {
	if len(data) == 0 {
		return nil, shared.NewDomainError("EMPTY_FILE", "Uploaded file is empty")
	}

	session := csvimport.NewImportSession(tenantID, userID, csvimport.EntityEMAC, fileName, int64(len(data)))
	processor := csvimport.NewImportProcessor(
		csvimport.WithReferenceLookup(s.referenceLookup(ctx, tenantID)),
	)

	validation, err := processor.Validate(ctx, session, bytes.NewReader(data), emacFieldRules())
	if err != nil {
		return nil, err
	}

	result := &CSVImportResult{
		SessionID: session.ID.String(),
		FileName:  fileName,
		TotalRows: validation.TotalRows,
		ValidRows: validation.ValidRows,
		ErrorRows: validation.ErrorRows,
		RowErrors: validation.Errors,
	}

	if validation.ValidRows > 0 {
		if err := s.importRows(ctx, tenantID, data, erroredRows(validation), result); err != nil {
			return nil, err
		}
	}

	s.logger.Info("EMAC CSV processed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("file", fileName),
		zap.Int("rows", result.TotalRows),
		zap.Int("statements_registered", len(result.Imported)),
		zap.Int("statements_failed", len(result.Failures)),
		zap.Int("row_errors", result.ErrorRows))

	return result, nil
}

// referenceLookup resolves laboratory names against the tenant's partners.
func (s *CSVImportService) referenceLookup(ctx context.Context, tenantID uuid.UUID) func(refType, value string) (bool, error) {
	return func(refType, value string) (bool, error) {
		if refType != refLaboratory {
			return false, nil
		}
		_, err := s.laboratoryRepo.FindByNameForTenant(ctx, tenantID, value)
		if err != nil {
			if shared.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}
}

// importRows re-reads the file and registers each valid row as a statement.
func (s *CSVImportService) importRows(ctx context.Context, tenantID uuid.UUID, data []byte, errored map[int]bool, result *CSVImportResult) error {
	parser, err := csvimport.ParseFromBytes(data)
	if err != nil {
		return err
	}
	if err := parser.ParseHeader(); err != nil {
		return err
	}
	rows, err := parser.ReadAllRows()
	if err != nil {
		return err
	}

	for _, row := range rows {
		if errored[row.LineNumber] {
			continue
		}
		resp, err := s.importRow(ctx, tenantID, row)
		if err != nil {
			result.Failures = append(result.Failures, CSVImportFailure{
				Laboratory: row.Get(colLaboratory),
				Row:        row.LineNumber,
				Error:      err.Error(),
			})
			continue
		}
		result.Imported = append(result.Imported, *resp)
	}
	return nil
}

func (s *CSVImportService) importRow(ctx context.Context, tenantID uuid.UUID, row *csvimport.Row) (*EMACResponse, error) {
	lab, err := s.laboratoryRepo.FindByNameForTenant(ctx, tenantID, row.Get(colLaboratory))
	if err != nil {
		return nil, err
	}

	periodStart, err := time.Parse(emacDateFormat, row.Get(colPeriodStart))
	if err != nil {
		return nil, shared.NewDomainError("INVALID_DATE", "Field "+colPeriodStart+" is not a valid date")
	}
	periodEnd, err := time.Parse(emacDateFormat, row.Get(colPeriodEnd))
	if err != nil {
		return nil, shared.NewDomainError("INVALID_DATE", "Field "+colPeriodEnd+" is not a valid date")
	}

	return s.statements.Create(ctx, tenantID, CreateEMACRequest{
		LaboratoryID:     lab.ID,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		DeclaredCA:       row.Get(colDeclaredCA),
		DeclaredRFA:      row.Get(colDeclaredRFA),
		DeclaredCOP:      row.Get(colDeclaredCOP),
		DeclaredDiffered: row.Get(colDeclaredDiffered),
		OtherAdvantages:  row.Get(colOtherAdvantages),
		TotalDeclared:    row.Get(colTotalDeclared),
		AmountPaid:       row.Get(colAmountPaid),
		RemainingBalance: row.Get(colRemainingBalance),
	})
}

func emacFieldRules() []csvimport.FieldRule {
	return []csvimport.FieldRule{
		csvimport.Field(colLaboratory).Required().Reference(refLaboratory).Build(),
		csvimport.Field(colPeriodStart).Required().DateFormat(emacDateFormat).Build(),
		csvimport.Field(colPeriodEnd).Required().DateFormat(emacDateFormat).Build(),
		csvimport.Field(colDeclaredCA).Required().Decimal().Build(),
		csvimport.Field(colDeclaredRFA).Decimal().Build(),
		csvimport.Field(colDeclaredCOP).Decimal().Build(),
		csvimport.Field(colDeclaredDiffered).Decimal().Build(),
		csvimport.Field(colOtherAdvantages).Decimal().Build(),
		csvimport.Field(colTotalDeclared).Decimal().Build(),
		csvimport.Field(colAmountPaid).Decimal().Build(),
		csvimport.Field(colRemainingBalance).Decimal().Build(),
	}
}

func erroredRows(result *csvimport.ValidationResult) map[int]bool {
	errored := make(map[int]bool, len(result.Errors))
	for _, e := range result.Errors {
		errored[e.Row] = true
	}
	return errored
}

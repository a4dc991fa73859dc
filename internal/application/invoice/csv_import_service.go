package invoice

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/partner"
	"github.com/rfa/backend/internal/domain/shared"
	csvimport "github.com/rfa/backend/internal/infrastructure/import"
)

// CSV column names expected in a laboratory invoice upload. One row per
// invoice line; invoice-level columns repeat on every line of the invoice.
const (
	colInvoiceNumber = "numero_facture"
	colInvoiceDate   = "date_facture"
	colLaboratory    = "laboratoire"
	colCIP13         = "cip13"
	colDesignation   = "designation"
	colLot           = "lot"
	colQuantity      = "quantite"
	colPuHT          = "pu_ht"
	colRemisePct     = "remise_pct"
	colPuNet         = "pu_net"
	colMontantHT     = "montant_ht"
	colTauxTVA       = "taux_tva"
	colBrutHT        = "brut_ht"
	colNetHT         = "net_ht"
	colTotalTVA      = "total_tva"
	colTTC           = "ttc"
	colPaymentMode   = "mode_paiement"
	colPaymentDelay  = "delai_paiement"
)

const invoiceDateFormat = "2006-01-02"

// refLaboratory is the reference type used for laboratory name lookups.
const refLaboratory = "laboratory"

// defaultUploadDedupTTL is how long an upload hash blocks identical re-uploads.
const defaultUploadDedupTTL = 24 * time.Hour

// CSVImportService turns an uploaded CSV file into imported invoices. The
// file is validated row by row, grouped into invoices by laboratory and
// invoice number, imported through InvoiceService and archived for disputes.
type CSVImportService struct {
	invoices       *InvoiceService
	laboratoryRepo partner.LaboratoryRepository
	idempotency    shared.IdempotencyStore
	documents      DocumentStore
	dedupTTL       time.Duration
	logger         *zap.Logger
}

// NewCSVImportService creates a new CSVImportService
func NewCSVImportService(
	invoices *InvoiceService,
	laboratoryRepo partner.LaboratoryRepository,
	idempotency shared.IdempotencyStore,
	documents DocumentStore,
	logger *zap.Logger,
) *CSVImportService {
	return &CSVImportService{
		invoices:       invoices,
		laboratoryRepo: laboratoryRepo,
		idempotency:    idempotency,
		documents:      documents,
		dedupTTL:       defaultUploadDedupTTL,
		logger:         logger,
	}
}

// ImportCSV validates and imports an uploaded invoice file. A file whose
// content was already processed for the tenant is rejected. Rows that fail
// validation are reported and skipped; the remaining rows are imported
// invoice by invoice, so one bad invoice does not block the others.
func (s *CSVImportService) ImportCSV(ctx context.Context, tenantID, userID uuid.UUID, fileName string, data []byte) (*CSVImportResult, error) {
	if len(data) == 0 {
		return nil, shared.NewDomainError("EMPTY_FILE", "Uploaded file is empty")
	}

	isNew, err := s.idempotency.MarkProcessed(ctx, uploadKey(tenantID, data), s.dedupTTL)
	if err != nil {
		return nil, fmt.Errorf("upload deduplication check failed: %w", err)
	}
	if !isNew {
		return nil, shared.NewDomainError("DUPLICATE_UPLOAD", "This file was already imported")
	}

	session := csvimport.NewImportSession(tenantID, userID, csvimport.EntityInvoices, fileName, int64(len(data)))
	processor := csvimport.NewImportProcessor(
		csvimport.WithReferenceLookup(s.referenceLookup(ctx, tenantID)),
	)

	validation, err := processor.Validate(ctx, session, bytes.NewReader(data), invoiceFieldRules())
	if err != nil {
		return nil, err
	}

	result := &CSVImportResult{
		SessionID: session.ID,
		FileName:  fileName,
		TotalRows: validation.TotalRows,
		ValidRows: validation.ValidRows,
		ErrorRows: validation.ErrorRows,
		RowErrors: validation.Errors,
	}

	if validation.ValidRows > 0 {
		groups, err := s.groupRows(data, erroredRows(validation))
		if err != nil {
			return nil, err
		}
		s.importGroups(ctx, tenantID, groups, result)
	}

	result.ArchiveKey = s.archive(ctx, tenantID, fileName, data)

	s.logger.Info("Invoice CSV processed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("file", fileName),
		zap.Int("rows", result.TotalRows),
		zap.Int("invoices_imported", len(result.Imported)),
		zap.Int("invoices_failed", len(result.Failures)),
		zap.Int("row_errors", result.ErrorRows))

	return result, nil
}

// referenceLookup resolves laboratory names against the tenant's partners.
func (s *CSVImportService) referenceLookup(ctx context.Context, tenantID uuid.UUID) func(refType, value string) (bool, error) {
	return func(refType, value string) (bool, error) {
		if refType != refLaboratory {
			return false, fmt.Errorf("unknown reference type: %s", refType)
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

// invoiceGroup collects the lines of one invoice in upload order.
type invoiceGroup struct {
	laboratory string
	number     string
	rows       []*csvimport.Row
}

// groupRows re-reads the file and buckets valid rows into invoices keyed by
// laboratory and invoice number.
func (s *CSVImportService) groupRows(data []byte, errored map[int]bool) ([]*invoiceGroup, error) {
	parser, err := csvimport.ParseFromBytes(data)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}
	rows, err := parser.ReadAllRows()
	if err != nil {
		return nil, err
	}

	var groups []*invoiceGroup
	index := make(map[string]*invoiceGroup)
	for _, row := range rows {
		if errored[row.LineNumber] {
			continue
		}
		lab := row.Get(colLaboratory)
		number := row.Get(colInvoiceNumber)
		key := lab + "\x00" + number
		group, ok := index[key]
		if !ok {
			group = &invoiceGroup{laboratory: lab, number: number}
			index[key] = group
			groups = append(groups, group)
		}
		group.rows = append(group.rows, row)
	}
	return groups, nil
}

// importGroups imports each invoice group independently and records the
// outcome on the result.
func (s *CSVImportService) importGroups(ctx context.Context, tenantID uuid.UUID, groups []*invoiceGroup, result *CSVImportResult) {
	for _, group := range groups {
		resp, err := s.importGroup(ctx, tenantID, group)
		if err != nil {
			result.Failures = append(result.Failures, CSVInvoiceFailure{
				Laboratory: group.laboratory,
				Number:     group.number,
				Error:      err.Error(),
			})
			continue
		}
		result.Imported = append(result.Imported, *resp)
	}
}

func (s *CSVImportService) importGroup(ctx context.Context, tenantID uuid.UUID, group *invoiceGroup) (*InvoiceResponse, error) {
	lab, err := s.laboratoryRepo.FindByNameForTenant(ctx, tenantID, group.laboratory)
	if err != nil {
		return nil, err
	}

	first := group.rows[0]
	invoiceDate, err := time.Parse(invoiceDateFormat, first.Get(colInvoiceDate))
	if err != nil {
		return nil, shared.NewDomainError("INVALID_DATE", "Field "+colInvoiceDate+" is not a valid date")
	}

	req := ImportInvoiceRequest{
		LaboratoryID: lab.ID,
		Number:       group.number,
		InvoiceDate:  invoiceDate,
		BrutHT:       first.Get(colBrutHT),
		NetHT:        first.Get(colNetHT),
		TotalTVA:     first.Get(colTotalTVA),
		TTC:          first.Get(colTTC),
		PaymentMode:  first.Get(colPaymentMode),
		PaymentDelay: first.Get(colPaymentDelay),
	}
	for _, row := range group.rows {
		quantity, err := strconv.Atoi(row.Get(colQuantity))
		if err != nil {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Field "+colQuantity+" is not a valid integer")
		}
		req.Lines = append(req.Lines, ImportLineRequest{
			CIP13:         row.Get(colCIP13),
			Designation:   row.Get(colDesignation),
			Lot:           row.Get(colLot),
			Quantity:      quantity,
			PuHT:          row.Get(colPuHT),
			RemisePct:     row.Get(colRemisePct),
			PuAfterRemise: row.Get(colPuNet),
			MontantHT:     row.Get(colMontantHT),
			TauxTVA:       row.Get(colTauxTVA),
		})
	}

	return s.invoices.Import(ctx, tenantID, req)
}

// archive stores the raw upload for later disputes. Archiving is best effort:
// a storage outage must not fail an import that already happened.
func (s *CSVImportService) archive(ctx context.Context, tenantID uuid.UUID, fileName string, data []byte) string {
	if s.documents == nil {
		return ""
	}
	key := fmt.Sprintf("tenants/%s/imports/%s-%s", tenantID, uuid.New(), fileName)
	if err := s.documents.Put(ctx, key, data, "text/csv"); err != nil {
		s.logger.Warn("Failed to archive uploaded invoice file",
			zap.String("tenant_id", tenantID.String()),
			zap.String("file", fileName),
			zap.Error(err))
		return ""
	}
	return key
}

func invoiceFieldRules() []csvimport.FieldRule {
	return []csvimport.FieldRule{
		csvimport.Field(colInvoiceNumber).Required().MaxLength(100).Build(),
		csvimport.Field(colInvoiceDate).Required().DateFormat(invoiceDateFormat).Build(),
		csvimport.Field(colLaboratory).Required().Reference(refLaboratory).Build(),
		csvimport.Field(colCIP13).Required().Length(13, 13).Build(),
		csvimport.Field(colDesignation).Required().MaxLength(300).Build(),
		csvimport.Field(colLot).MaxLength(50).Build(),
		csvimport.Field(colQuantity).Required().Int().MinValue(decimal.NewFromInt(1)).Build(),
		csvimport.Field(colPuHT).Required().Decimal().Build(),
		csvimport.Field(colRemisePct).Decimal().Build(),
		csvimport.Field(colPuNet).Required().Decimal().Build(),
		csvimport.Field(colMontantHT).Required().Decimal().Build(),
		csvimport.Field(colTauxTVA).Required().Decimal().Build(),
		csvimport.Field(colBrutHT).Decimal().Build(),
		csvimport.Field(colNetHT).Decimal().Build(),
		csvimport.Field(colTotalTVA).Decimal().Build(),
		csvimport.Field(colTTC).Decimal().Build(),
		csvimport.Field(colPaymentMode).MaxLength(50).Build(),
		csvimport.Field(colPaymentDelay).MaxLength(100).Build(),
	}
}

func erroredRows(result *csvimport.ValidationResult) map[int]bool {
	errored := make(map[int]bool, len(result.Errors))
	for _, e := range result.Errors {
		errored[e.Row] = true
	}
	return errored
}

func uploadKey(tenantID uuid.UUID, data []byte) string {
	sum := sha256.Sum256(data)
	return tenantID.String() + ":" + hex.EncodeToString(sum[:])
}

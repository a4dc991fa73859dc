package emac

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/emac"
	"github.com/rfa/backend/internal/domain/invoice"
	"github.com/rfa/backend/internal/domain/partner"
	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared"
)

// EMACService handles statement entry, reconciliation and missing detection.
type EMACService struct {
	emacRepo       emac.EMACRepository
	anomalyRepo    emac.EMACAnomalyRepository
	invoiceRepo    invoice.InvoiceRepository
	agreementRepo  rebate.AgreementRepository
	laboratoryRepo partner.LaboratoryRepository
	scheduleRepo   rebate.ScheduleRepository
	reconciler     *emac.Reconciler
	detector       *emac.MissingDetector
	txManager      shared.TransactionManager
	logger         *zap.Logger
}

// NewEMACService creates a new EMACService
func NewEMACService(
	emacRepo emac.EMACRepository,
	anomalyRepo emac.EMACAnomalyRepository,
	invoiceRepo invoice.InvoiceRepository,
	agreementRepo rebate.AgreementRepository,
	laboratoryRepo partner.LaboratoryRepository,
	scheduleRepo rebate.ScheduleRepository,
	txManager shared.TransactionManager,
	logger *zap.Logger,
) *EMACService {
	return &EMACService{
		emacRepo:       emacRepo,
		anomalyRepo:    anomalyRepo,
		invoiceRepo:    invoiceRepo,
		agreementRepo:  agreementRepo,
		laboratoryRepo: laboratoryRepo,
		scheduleRepo:   scheduleRepo,
		reconciler:     emac.NewReconciler(),
		detector:       emac.NewMissingDetector(),
		txManager:      txManager,
		logger:         logger,
	}
}

// Create stores a manually entered statement, unverified.
func (s *EMACService) Create(ctx context.Context, tenantID uuid.UUID, req CreateEMACRequest) (*EMACResponse, error) {
	if _, err := s.laboratoryRepo.FindByIDForTenant(ctx, tenantID, req.LaboratoryID); err != nil {
		return nil, err
	}

	statement, err := emac.NewEMAC(tenantID, req.LaboratoryID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if err := s.fillDeclared(statement, req); err != nil {
		return nil, err
	}

	if err := s.emacRepo.Save(ctx, statement); err != nil {
		return nil, err
	}

	s.logger.Info("EMAC statement recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("emac_id", statement.ID.String()),
		zap.String("laboratory_id", statement.LaboratoryID.String()))

	resp := ToEMACResponse(statement)
	return &resp, nil
}

// Get returns one statement with its findings.
func (s *EMACService) Get(ctx context.Context, tenantID, id uuid.UUID) (*VerificationResult, error) {
	statement, err := s.emacRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	anomalies, err := s.anomalyRepo.FindByEMAC(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return buildResult(statement, anomalies), nil
}

// List returns a page of statements.
func (s *EMACService) List(ctx context.Context, tenantID uuid.UUID, filter emac.EMACFilter) (*shared.Paginated[EMACResponse], error) {
	statements, total, err := s.emacRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]EMACResponse, 0, len(statements))
	for i := range statements {
		out = append(out, ToEMACResponse(&statements[i]))
	}
	page := shared.NewPaginated(out, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Verify reconciles a statement three ways inside one transaction: declared
// CA against the period's invoices, declared advantages against the agreement
// in force, and the statement's internal arithmetic. Unresolved findings of
// previous runs are replaced; re-running on unchanged data is idempotent.
func (s *EMACService) Verify(ctx context.Context, tenantID, emacID uuid.UUID) (*VerificationResult, error) {
	var result *VerificationResult

	err := s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		statement, err := s.emacRepo.FindByIDForTenant(txCtx, tenantID, emacID)
		if err != nil {
			return err
		}

		caReel, invoiceCount, err := s.invoiceRepo.SumBrutForPeriod(txCtx, tenantID,
			statement.LaboratoryID, statement.PeriodStart, statement.PeriodEnd)
		if err != nil {
			return err
		}

		terms, err := s.resolveTerms(txCtx, tenantID, statement)
		if err != nil {
			return err
		}

		findings := s.reconciler.Reconcile(statement, caReel, invoiceCount, terms)

		if err := s.anomalyRepo.DeleteUnresolvedByEMAC(txCtx, tenantID, emacID); err != nil {
			return err
		}
		if len(findings) > 0 {
			if err := s.anomalyRepo.SaveAll(txCtx, findings); err != nil {
				return err
			}
		}
		if err := s.emacRepo.Save(txCtx, statement); err != nil {
			return err
		}

		result = buildResult(statement, findings)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("EMAC statement verified",
		zap.String("tenant_id", tenantID.String()),
		zap.String("emac_id", emacID.String()),
		zap.String("status", result.EMAC.Status),
		zap.Int("anomalies", len(result.Anomalies)))
	return result, nil
}

// Triangle returns the three-way view of one statement: declared figures,
// invoiced reality and the rebate the schedules expect over the period.
func (s *EMACService) Triangle(ctx context.Context, tenantID, emacID uuid.UUID) (*TriangleResponse, error) {
	statement, err := s.emacRepo.FindByIDForTenant(ctx, tenantID, emacID)
	if err != nil {
		return nil, err
	}

	scheduled, err := s.scheduledRFAForPeriod(ctx, tenantID, statement)
	if err != nil {
		return nil, err
	}

	return &TriangleResponse{
		EMACID:             statement.ID,
		LaboratoryID:       statement.LaboratoryID,
		PeriodStart:        statement.PeriodStart,
		PeriodEnd:          statement.PeriodEnd,
		DeclaredCA:         statement.DeclaredCA,
		InvoicedCA:         statement.CAReel,
		EcartCA:            statement.EcartCA,
		DeclaredRFA:        statement.DeclaredRFA,
		ExpectedRFA:        statement.RFAAttendue,
		ScheduledRFA:       scheduled,
		EcartRFA:           statement.EcartRFA,
		Status:             string(statement.Status),
		MontantRecouvrable: statement.MontantRecouvrable,
	}, nil
}

// Missing lists months of the year that have invoices but no statement
// coverage. Inactive laboratories and future months are skipped; any period
// overlap counts as covered.
func (s *EMACService) Missing(ctx context.Context, tenantID uuid.UUID, year int) ([]MissingEMACResponse, error) {
	laboratories, err := s.laboratoryRepo.FindActiveForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	activity, err := s.invoiceRepo.MonthlyActivityForYear(ctx, tenantID, year)
	if err != nil {
		return nil, err
	}
	statements, err := s.emacRepo.FindByYearForTenant(ctx, tenantID, year)
	if err != nil {
		return nil, err
	}

	missing := s.detector.Detect(year, time.Now(), laboratories, activity, statements)
	out := make([]MissingEMACResponse, 0, len(missing))
	for _, m := range missing {
		out = append(out, MissingEMACResponse{
			LaboratoryID:   m.LaboratoryID,
			LaboratoryName: m.LaboratoryName,
			Year:           m.Year,
			Month:          int(m.Month),
			PeriodStart:    m.PeriodStart,
			PeriodEnd:      m.PeriodEnd,
			InvoiceCount:   m.InvoiceCount,
			CA:             m.CA,
		})
	}
	return out, nil
}

// resolveTerms maps the agreement in force into the reconciler's view. No
// active agreement skips the agreement-dependent check.
func (s *EMACService) resolveTerms(ctx context.Context, tenantID uuid.UUID, statement *emac.EMAC) (*emac.ReconcileTerms, error) {
	agreement, err := s.agreementRepo.FindActiveForPair(ctx, tenantID, statement.LaboratoryID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	year := statement.PeriodStart.Year()
	cumul, err := s.invoiceRepo.YearCumulativeBrut(ctx, tenantID, statement.LaboratoryID, year, statement.PeriodEnd)
	if err != nil {
		return nil, err
	}

	return &emac.ReconcileTerms{
		Tiers:              agreement.CustomTiers,
		EscompteApplicable: agreement.EscompteApplicable,
		EscompteRate:       agreement.EscompteRate,
		AnnualCumulative:   cumul,
	}, nil
}

// scheduledRFAForPeriod sums forecast entries due inside the statement period
// for the statement's laboratory.
func (s *EMACService) scheduledRFAForPeriod(ctx context.Context, tenantID uuid.UUID, statement *emac.EMAC) (decimal.Decimal, error) {
	total := decimal.Zero
	for cursor := statement.PeriodStart; !cursor.After(statement.PeriodEnd); cursor = cursor.AddDate(0, 1, 0) {
		forecasts, err := s.scheduleRepo.MonthlyForecast(ctx, tenantID, cursor.Year(), cursor.Month())
		if err != nil {
			return decimal.Zero, err
		}
		for i := range forecasts {
			if forecasts[i].LaboratoryID == statement.LaboratoryID {
				total = total.Add(forecasts[i].ExpectedTotal)
			}
		}
	}
	return total, nil
}

func (s *EMACService) fillDeclared(statement *emac.EMAC, req CreateEMACRequest) error {
	fields := []struct {
		value string
		name  string
		dst   *decimal.Decimal
	}{
		{req.DeclaredCA, "declared_ca", &statement.DeclaredCA},
		{req.DeclaredRFA, "declared_rfa", &statement.DeclaredRFA},
		{req.DeclaredCOP, "declared_cop", &statement.DeclaredCOP},
		{req.DeclaredDiffered, "declared_differed", &statement.DeclaredDiffered},
		{req.OtherAdvantages, "other_advantages", &statement.OtherAdvantages},
		{req.TotalDeclared, "total_declared_advantages", &statement.TotalDeclared},
		{req.AmountPaid, "amount_paid", &statement.AmountPaid},
		{req.RemainingBalance, "remaining_balance", &statement.RemainingBalance},
	}
	for _, f := range fields {
		if f.value == "" {
			*f.dst = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return shared.NewDomainError("INVALID_AMOUNT", "Field "+f.name+" is not a valid amount")
		}
		*f.dst = d
	}
	return nil
}

func buildResult(statement *emac.EMAC, anomalies []emac.Anomaly) *VerificationResult {
	result := &VerificationResult{
		EMAC:      ToEMACResponse(statement),
		Anomalies: make([]EMACAnomalyResponse, 0, len(anomalies)),
	}
	for i := range anomalies {
		result.Anomalies = append(result.Anomalies, ToEMACAnomalyResponse(&anomalies[i]))
	}
	return result
}

package invoice

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/invoice"
	"github.com/rfa/backend/internal/domain/partner"
	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared"
	"github.com/rfa/backend/internal/domain/shared/valueobject"
)

// InvoiceService handles invoice import, verification and anomaly resolution.
type InvoiceService struct {
	invoiceRepo    invoice.InvoiceRepository
	anomalyRepo    invoice.AnomalyRepository
	laboratoryRepo partner.LaboratoryRepository
	agreementRepo  rebate.AgreementRepository
	verifier       *invoice.Verifier
	txManager      shared.TransactionManager
	logger         *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo invoice.InvoiceRepository,
	anomalyRepo invoice.AnomalyRepository,
	laboratoryRepo partner.LaboratoryRepository,
	agreementRepo rebate.AgreementRepository,
	txManager shared.TransactionManager,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo:    invoiceRepo,
		anomalyRepo:    anomalyRepo,
		laboratoryRepo: laboratoryRepo,
		agreementRepo:  agreementRepo,
		verifier:       invoice.NewVerifier(),
		txManager:      txManager,
		logger:         logger,
	}
}

// Import persists a normalized vendor invoice, classifies every line and
// recomputes the per-tranche aggregates. Totals left empty in the upload are
// derived from the lines.
func (s *InvoiceService) Import(ctx context.Context, tenantID uuid.UUID, req ImportInvoiceRequest) (*InvoiceResponse, error) {
	if _, err := s.laboratoryRepo.FindByIDForTenant(ctx, tenantID, req.LaboratoryID); err != nil {
		return nil, err
	}
	if existing, err := s.invoiceRepo.FindByNumberForTenant(ctx, tenantID, req.LaboratoryID, req.Number); err == nil && existing != nil {
		return nil, shared.NewDomainError("DUPLICATE_INVOICE", "An invoice with this number already exists for this laboratory")
	}

	inv, err := invoice.NewLaboInvoice(tenantID, req.LaboratoryID, req.Number, req.InvoiceDate)
	if err != nil {
		return nil, err
	}
	inv.PaymentMode = req.PaymentMode
	inv.PaymentDelay = req.PaymentDelay

	for i := range req.Lines {
		line, err := s.buildLine(&req.Lines[i])
		if err != nil {
			return nil, err
		}
		inv.AddLine(line)
	}
	inv.ClassifyLines()

	if err := s.fillTotals(inv, req); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice imported",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.Int("lines", len(inv.Lines)))

	resp := ToInvoiceResponse(inv, true)
	return &resp, nil
}

func (s *InvoiceService) buildLine(req *ImportLineRequest) (*invoice.InvoiceLine, error) {
	puHT, err := parseAmount(req.PuHT, "pu_ht")
	if err != nil {
		return nil, err
	}
	remise := decimal.Zero
	if req.RemisePct != "" {
		if remise, err = parseAmount(req.RemisePct, "remise_pct"); err != nil {
			return nil, err
		}
	}
	puAfter, err := parseAmount(req.PuAfterRemise, "pu_after_remise")
	if err != nil {
		return nil, err
	}
	montantHT, err := parseAmount(req.MontantHT, "montant_ht")
	if err != nil {
		return nil, err
	}
	tauxTVA, err := parseAmount(req.TauxTVA, "taux_tva")
	if err != nil {
		return nil, err
	}

	line, err := invoice.NewInvoiceLine(req.CIP13, req.Designation, req.Quantity, puHT, remise, puAfter, montantHT, tauxTVA)
	if err != nil {
		return nil, err
	}
	line.Lot = req.Lot
	return line, nil
}

// fillTotals takes the vendor-declared totals when present and derives the
// missing ones from the classified lines.
func (s *InvoiceService) fillTotals(inv *invoice.LaboInvoice, req ImportInvoiceRequest) error {
	derivedBrut := decimal.Zero
	derivedNet := decimal.Zero
	derivedTVA := decimal.Zero
	hundred := decimal.NewFromInt(100)
	for i := range inv.Lines {
		derivedBrut = derivedBrut.Add(inv.Lines[i].MontantBrut)
		derivedNet = derivedNet.Add(inv.Lines[i].MontantHT)
		derivedTVA = derivedTVA.Add(inv.Lines[i].MontantHT.Mul(inv.Lines[i].TauxTVA).Div(hundred))
	}

	var err error
	if inv.BrutHT, err = amountOrDefault(req.BrutHT, "brut_ht", derivedBrut); err != nil {
		return err
	}
	if inv.NetHT, err = amountOrDefault(req.NetHT, "net_ht", derivedNet); err != nil {
		return err
	}
	if inv.TotalTVA, err = amountOrDefault(req.TotalTVA, "total_tva", valueobject.RoundHalfUp(derivedTVA)); err != nil {
		return err
	}
	if inv.TTC, err = amountOrDefault(req.TTC, "ttc", inv.NetHT.Add(inv.TotalTVA)); err != nil {
		return err
	}
	return nil
}

// Verify runs the seven-check verifier inside one transaction. The invoice row
// is locked so concurrent verifications of the same invoice serialize;
// unresolved anomalies of previous runs are replaced, resolved ones kept.
func (s *InvoiceService) Verify(ctx context.Context, tenantID, invoiceID uuid.UUID) (*VerificationReport, error) {
	var report *VerificationReport

	err := s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForTenantLocked(txCtx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		inv.ClassifyLines()

		terms, hasAgreement, err := s.resolveTerms(txCtx, tenantID, inv)
		if err != nil {
			return err
		}

		found := s.verifier.Verify(inv, terms)

		if err := s.anomalyRepo.DeleteUnresolvedByInvoice(txCtx, tenantID, invoiceID); err != nil {
			return err
		}
		if len(found) > 0 {
			if err := s.anomalyRepo.SaveAll(txCtx, found); err != nil {
				return err
			}
		}

		hasCritical := false
		for i := range found {
			if found[i].Severity == invoice.SeverityCritical {
				hasCritical = true
				break
			}
		}
		inv.MarkVerified(hasCritical)
		if err := s.invoiceRepo.Save(txCtx, inv); err != nil {
			return err
		}

		all, err := s.anomalyRepo.FindByInvoice(txCtx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		report = buildReport(inv, all, hasAgreement)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice verified",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("status", report.Status),
		zap.Int("anomalies", len(report.Anomalies)))
	return report, nil
}

// GetVerification returns the stored verification outcome without re-running
// the checks.
func (s *InvoiceService) GetVerification(ctx context.Context, tenantID, invoiceID uuid.UUID) (*VerificationReport, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	anomalies, err := s.anomalyRepo.FindByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	return buildReport(inv, anomalies, false), nil
}

// ResolveAnomaly marks an anomaly handled. When the last unresolved critical
// anomaly of an invoice is resolved the invoice leaves the ANOMALY status.
func (s *InvoiceService) ResolveAnomaly(ctx context.Context, tenantID, anomalyID uuid.UUID, note string) (*AnomalyResponse, error) {
	var resp AnomalyResponse

	err := s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		anomaly, err := s.anomalyRepo.FindByIDForTenant(txCtx, tenantID, anomalyID)
		if err != nil {
			return err
		}
		if err := anomaly.Resolve(note); err != nil {
			return err
		}
		if err := s.anomalyRepo.Save(txCtx, anomaly); err != nil {
			return err
		}

		inv, err := s.invoiceRepo.FindByIDForTenantLocked(txCtx, tenantID, anomaly.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == invoice.InvoiceStatusAnomaly {
			remaining, err := s.anomalyRepo.FindByInvoice(txCtx, tenantID, anomaly.InvoiceID)
			if err != nil {
				return err
			}
			if !hasUnresolvedCritical(remaining) {
				inv.MarkVerified(false)
				if err := s.invoiceRepo.Save(txCtx, inv); err != nil {
					return err
				}
			}
		}

		resp = ToAnomalyResponse(anomaly)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get returns one invoice with its lines.
func (s *InvoiceService) Get(ctx context.Context, tenantID, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv, true)
	return &resp, nil
}

// List returns a page of invoices without their lines.
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, filter invoice.InvoiceFilter) (*shared.Paginated[InvoiceResponse], error) {
	invoices, total, err := s.invoiceRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, ToInvoiceResponse(&invoices[i], false))
	}
	page := shared.NewPaginated(out, total, filter.Page, filter.PageSize)
	return &page, nil
}

// resolveTerms maps the active agreement and the laboratory record into the
// verifier's terms. No active agreement is not an error: the data-quality
// checks still run.
func (s *InvoiceService) resolveTerms(ctx context.Context, tenantID uuid.UUID, inv *invoice.LaboInvoice) (*invoice.AgreementTerms, bool, error) {
	lab, err := s.laboratoryRepo.FindByIDForTenant(ctx, tenantID, inv.LaboratoryID)
	if err != nil {
		return nil, false, err
	}

	agreement, err := s.agreementRepo.FindActiveForPair(ctx, tenantID, inv.LaboratoryID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	cumul, err := s.invoiceRepo.YearCumulativeBrut(ctx, tenantID, inv.LaboratoryID, inv.InvoiceDate.Year(), inv.InvoiceDate)
	if err != nil {
		return nil, false, err
	}

	return MapAgreementTerms(agreement, lab, cumul), true, nil
}

// MapAgreementTerms builds the verifier's view of an agreement. Franco fields
// fall back to the laboratory record when the agreement leaves them unset.
func MapAgreementTerms(agreement *rebate.LaboratoryAgreement, lab *partner.Laboratory, yearCumulative decimal.Decimal) *invoice.AgreementTerms {
	terms := &invoice.AgreementTerms{
		TargetRateA:        agreement.TargetRateA,
		TargetRateB:        agreement.TargetRateB,
		TargetRateOTC:      agreement.TargetRateOTC,
		EscompteApplicable: agreement.EscompteApplicable,
		EscompteRate:       agreement.EscompteRate,
		EscompteDelayDays:  agreement.EscompteDelayDays,
		FrancoThreshold:    agreement.FrancoThreshold,
		ShippingFeeEstim:   agreement.ShippingFeeEstim,
		YearCumulativeBrut: yearCumulative,
	}
	if !terms.FrancoThreshold.IsPositive() && lab != nil {
		terms.FrancoThreshold = lab.FrancoThreshold
		terms.ShippingFeeEstim = lab.ShippingFeeEstim
	}

	if agreement.FreeGoodsEnabled {
		if buy, free, ok := rebate.ParseFreeGoodsRatio(agreement.FreeGoodsRatio); ok {
			terms.FreeGoodsEnabled = true
			terms.FreeGoodsBuy = buy
			terms.FreeGoodsFree = free
			terms.FreeGoodsThreshold = agreement.FreeGoodsThreshold
		}
	}

	for _, tier := range agreement.CustomTiers {
		rt := invoice.RevenueTier{Min: tier.Min, Rate: tier.Rate, Label: tier.Label}
		if tier.Max != nil {
			max := *tier.Max
			rt.Max = &max
		}
		terms.Tiers = append(terms.Tiers, rt)
	}
	return terms
}

func buildReport(inv *invoice.LaboInvoice, anomalies []invoice.Anomaly, agreementApplied bool) *VerificationReport {
	report := &VerificationReport{
		InvoiceID:           inv.ID,
		Status:              string(inv.Status),
		Anomalies:           make([]AnomalyResponse, 0, len(anomalies)),
		RecoverableEstimate: decimal.Zero,
		AgreementApplied:    agreementApplied,
		VerifiedAt:          inv.UpdatedAt,
	}
	for i := range anomalies {
		a := &anomalies[i]
		report.Anomalies = append(report.Anomalies, ToAnomalyResponse(a))
		switch a.Severity {
		case invoice.SeverityCritical:
			report.CriticalCount++
		case invoice.SeverityWarning:
			report.WarningCount++
		case invoice.SeverityOpportunity:
			report.OpportunityCount++
		case invoice.SeverityInfo:
			report.InfoCount++
		}
		// unresolved monetary gaps the pharmacy can still claim
		if !a.Resolu && a.MontantEcart.IsPositive() &&
			(a.Severity == invoice.SeverityCritical || a.Severity == invoice.SeverityOpportunity) {
			report.RecoverableEstimate = report.RecoverableEstimate.Add(a.MontantEcart)
		}
	}
	report.RecoverableEstimate = valueobject.RoundHalfUp(report.RecoverableEstimate)
	return report
}

func hasUnresolvedCritical(anomalies []invoice.Anomaly) bool {
	for i := range anomalies {
		if !anomalies[i].Resolu && anomalies[i].Severity == invoice.SeverityCritical {
			return true
		}
	}
	return false
}

func parseAmount(value, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, shared.NewDomainError("INVALID_AMOUNT", "Field "+field+" is not a valid amount")
	}
	return d, nil
}

func amountOrDefault(value, field string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if value == "" {
		return fallback, nil
	}
	return parseAmount(value, field)
}

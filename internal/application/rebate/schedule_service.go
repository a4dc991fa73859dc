package rebate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/invoice"
	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared"
)

// ScheduleService computes and tracks rebate schedules.
type ScheduleService struct {
	scheduleRepo  rebate.ScheduleRepository
	invoiceRepo   invoice.InvoiceRepository
	agreementRepo rebate.AgreementRepository
	engine        *rebate.Engine
	txManager     shared.TransactionManager
	logger        *zap.Logger
}

// NewScheduleService creates a new ScheduleService
func NewScheduleService(
	scheduleRepo rebate.ScheduleRepository,
	invoiceRepo invoice.InvoiceRepository,
	agreementRepo rebate.AgreementRepository,
	txManager shared.TransactionManager,
	logger *zap.Logger,
) *ScheduleService {
	return &ScheduleService{
		scheduleRepo:  scheduleRepo,
		invoiceRepo:   invoiceRepo,
		agreementRepo: agreementRepo,
		engine:        rebate.NewEngine(),
		txManager:     txManager,
		logger:        logger,
	}
}

// Preview computes the schedule an invoice would generate without persisting
// anything. A config or structure carried in the request replaces the stored
// grid for this simulation only.
func (s *ScheduleService) Preview(ctx context.Context, tenantID uuid.UUID, req PreviewScheduleRequest) (*ScheduleResponse, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	agreement, cumul, err := s.activeAgreementFor(ctx, tenantID, inv)
	if err != nil {
		return nil, err
	}

	if req.Config != nil || req.Structure != nil {
		simulated := *agreement
		if req.Config != nil {
			simulated.Config = *req.Config
		}
		if req.Structure != nil {
			simulated.Structure = *req.Structure
		}
		agreement = &simulated
	}

	schedule, err := s.engine.Compute(inv, agreement, cumul)
	if err != nil {
		return nil, err
	}
	resp := ToScheduleResponse(schedule)
	return &resp, nil
}

// Compute builds and persists the schedule for an invoice. Recomputation never
// edits the previous row: it is cancelled and a replacement written in the
// same transaction, with any manually recorded reception carried over. When
// the agreement moves under the computation the attempt aborts and is retried
// once; a second stale read surfaces as a conflict.
func (s *ScheduleService) Compute(ctx context.Context, tenantID, invoiceID uuid.UUID) (*ScheduleResponse, error) {
	result, err := s.computeOnce(ctx, tenantID, invoiceID)
	if errors.Is(err, shared.ErrStaleRead) {
		result, err = s.computeOnce(ctx, tenantID, invoiceID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Rebate schedule computed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("schedule_id", result.ID.String()),
		zap.String("montant_prevu", result.MontantPrevu.String()))

	resp := ToScheduleResponse(result)
	return &resp, nil
}

// computeOnce runs one compute transaction. The invoice is read under a row
// lock but the agreement is not, so its version is re-checked after the
// computation: a concurrent activation or version bump invalidates the
// snapshot and the attempt is abandoned.
func (s *ScheduleService) computeOnce(ctx context.Context, tenantID, invoiceID uuid.UUID) (*rebate.RebateSchedule, error) {
	var result *rebate.RebateSchedule

	err := s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForTenantLocked(txCtx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		agreement, cumul, err := s.activeAgreementFor(txCtx, tenantID, inv)
		if err != nil {
			return err
		}

		schedule, err := s.engine.Compute(inv, agreement, cumul)
		if err != nil {
			return err
		}

		latest, err := s.agreementRepo.FindByIDForTenant(txCtx, tenantID, agreement.ID)
		if err != nil {
			return err
		}
		if latest.Version != agreement.Version || latest.Status != agreement.Status {
			return shared.ErrStaleRead
		}

		previous, err := s.scheduleRepo.FindCurrentByInvoice(txCtx, tenantID, invoiceID)
		if err != nil && !shared.IsNotFound(err) {
			return err
		}
		if previous != nil {
			if err := previous.Cancel(); err != nil {
				return err
			}
			if err := s.scheduleRepo.Save(txCtx, previous); err != nil {
				return err
			}
			schedule.CarryReception(previous)
		}

		if err := s.scheduleRepo.Save(txCtx, schedule); err != nil {
			return err
		}
		result = schedule
		return nil
	})
	return result, err
}

// GetByInvoice returns every schedule of an invoice, superseded rows included.
func (s *ScheduleService) GetByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]ScheduleResponse, error) {
	schedules, err := s.scheduleRepo.FindAllByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	out := make([]ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		out = append(out, ToScheduleResponse(&schedules[i]))
	}
	return out, nil
}

// List returns a page of schedules.
func (s *ScheduleService) List(ctx context.Context, tenantID uuid.UUID, filter rebate.ScheduleFilter) (*shared.Paginated[ScheduleResponse], error) {
	schedules, total, err := s.scheduleRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		out = append(out, ToScheduleResponse(&schedules[i]))
	}
	page := shared.NewPaginated(out, total, filter.Page, filter.PageSize)
	return &page, nil
}

// RecordReception stores the amount actually received against the forecast.
func (s *ScheduleService) RecordReception(ctx context.Context, tenantID, scheduleID uuid.UUID, req RecordReceptionRequest) (*ScheduleResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Received amount is not a valid amount")
	}

	schedule, err := s.scheduleRepo.FindByIDForTenant(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	if err := schedule.RecordReception(amount, req.ReceivedAt); err != nil {
		return nil, err
	}
	if err := s.scheduleRepo.Save(ctx, schedule); err != nil {
		return nil, err
	}

	resp := ToScheduleResponse(schedule)
	return &resp, nil
}

// MonthlyDashboard aggregates expected rebate entries due in one month per
// laboratory.
func (s *ScheduleService) MonthlyDashboard(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) (*MonthlyDashboardResponse, error) {
	forecasts, err := s.scheduleRepo.MonthlyForecast(ctx, tenantID, year, month)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for i := range forecasts {
		total = total.Add(forecasts[i].ExpectedTotal)
	}
	return &MonthlyDashboardResponse{
		Year:          year,
		Month:         int(month),
		ExpectedTotal: total,
		Laboratories:  forecasts,
	}, nil
}

func (s *ScheduleService) activeAgreementFor(ctx context.Context, tenantID uuid.UUID, inv *invoice.LaboInvoice) (*rebate.LaboratoryAgreement, decimal.Decimal, error) {
	agreement, err := s.agreementRepo.FindActiveForPair(ctx, tenantID, inv.LaboratoryID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, decimal.Zero, shared.ErrNoActiveAgreement
		}
		return nil, decimal.Zero, err
	}
	if !agreement.CoversDate(inv.InvoiceDate) {
		return nil, decimal.Zero, shared.ErrNoActiveAgreement
	}
	cumul, err := s.invoiceRepo.YearCumulativeBrut(ctx, tenantID, inv.LaboratoryID, inv.InvoiceDate.Year(), inv.InvoiceDate)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return agreement, cumul, nil
}

package rebate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/partner"
	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared"
)

// Actor identifies who performs an agreement mutation, for the audit trail.
type Actor struct {
	UserID    uuid.UUID
	IPAddress string
}

// AgreementService handles agreement lifecycle, versioning and activation.
type AgreementService struct {
	agreementRepo  rebate.AgreementRepository
	templateRepo   rebate.TemplateRepository
	laboratoryRepo partner.LaboratoryRepository
	auditRepo      rebate.AuditRepository
	txManager      shared.TransactionManager
	logger         *zap.Logger
}

// NewAgreementService creates a new AgreementService
func NewAgreementService(
	agreementRepo rebate.AgreementRepository,
	templateRepo rebate.TemplateRepository,
	laboratoryRepo partner.LaboratoryRepository,
	auditRepo rebate.AuditRepository,
	txManager shared.TransactionManager,
	logger *zap.Logger,
) *AgreementService {
	return &AgreementService{
		agreementRepo:  agreementRepo,
		templateRepo:   templateRepo,
		laboratoryRepo: laboratoryRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		logger:         logger,
	}
}

// Create registers a draft agreement, optionally seeded from a template.
// The creation audit entry is written in the same transaction.
func (s *AgreementService) Create(ctx context.Context, tenantID uuid.UUID, actor Actor, req CreateAgreementRequest) (*AgreementResponse, error) {
	if _, err := s.laboratoryRepo.FindByIDForTenant(ctx, tenantID, req.LaboratoryID); err != nil {
		return nil, err
	}

	agreement, err := rebate.NewLaboratoryAgreement(tenantID, req.LaboratoryID, req.Name, req.StartDate)
	if err != nil {
		return nil, err
	}
	agreement.EndDate = req.EndDate

	if req.TemplateID != nil {
		tpl, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, *req.TemplateID)
		if err != nil {
			return nil, err
		}
		agreement.ApplyTemplate(tpl)
	}

	if err := s.applyCreateFields(agreement, req); err != nil {
		return nil, err
	}
	if len(agreement.Config.TrancheConfigurations) > 0 {
		if err := agreement.ValidateConfig(); err != nil {
			return nil, err
		}
	}

	err = s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if err := s.agreementRepo.Save(txCtx, agreement); err != nil {
			return err
		}
		return s.appendAudit(txCtx, agreement, actor, rebate.AuditActionCreate,
			"Création de l'accord", nil, rebate.SnapshotAgreement(agreement))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Agreement created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("agreement_id", agreement.ID.String()),
		zap.String("laboratory_id", agreement.LaboratoryID.String()))

	resp := ToAgreementResponse(agreement)
	return &resp, nil
}

// Get returns one agreement of the tenant.
func (s *AgreementService) Get(ctx context.Context, tenantID, id uuid.UUID) (*AgreementResponse, error) {
	agreement, err := s.agreementRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToAgreementResponse(agreement)
	return &resp, nil
}

// List returns a page of the tenant's agreements.
func (s *AgreementService) List(ctx context.Context, tenantID uuid.UUID, filter rebate.AgreementFilter) (*shared.Paginated[AgreementResponse], error) {
	agreements, total, err := s.agreementRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]AgreementResponse, 0, len(agreements))
	for i := range agreements {
		out = append(out, ToAgreementResponse(&agreements[i]))
	}
	page := shared.NewPaginated(out, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Update modifies an agreement. A draft or suspended agreement is edited in
// place. An active agreement evolves copy-on-write: the current row is
// archived and an activated successor at version+1 carries the changes, so
// existing schedule snapshots stay pinned to the old version.
func (s *AgreementService) Update(ctx context.Context, tenantID, id uuid.UUID, actor Actor, req UpdateAgreementRequest) (*AgreementResponse, error) {
	var result *rebate.LaboratoryAgreement

	err := s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		agreement, err := s.agreementRepo.FindByIDForTenant(txCtx, tenantID, id)
		if err != nil {
			return err
		}
		before := rebate.SnapshotAgreement(agreement)

		if agreement.IsActive() {
			next, err := agreement.NewVersion()
			if err != nil {
				return err
			}
			if err := s.applyUpdateFields(next, req); err != nil {
				return err
			}
			if len(next.Config.TrancheConfigurations) > 0 {
				if err := next.ValidateConfig(); err != nil {
					return err
				}
			}
			if err := next.Activate(); err != nil {
				return err
			}
			if err := s.agreementRepo.SaveWithLock(txCtx, agreement); err != nil {
				return err
			}
			if err := s.agreementRepo.Save(txCtx, next); err != nil {
				return err
			}
			if err := s.appendAudit(txCtx, agreement, actor, rebate.AuditActionArchive,
				fmt.Sprintf("Archivé au profit de la version %d", next.AgreementVersion),
				before, rebate.SnapshotAgreement(agreement)); err != nil {
				return err
			}
			if err := s.appendAudit(txCtx, next, actor, rebate.AuditActionVersionBump,
				fmt.Sprintf("Version %d créée par modification de l'accord actif", next.AgreementVersion),
				before, rebate.SnapshotAgreement(next)); err != nil {
				return err
			}
			result = next
			return nil
		}

		if err := s.applyUpdateFields(agreement, req); err != nil {
			return err
		}
		if len(agreement.Config.TrancheConfigurations) > 0 {
			if err := agreement.ValidateConfig(); err != nil {
				return err
			}
		}
		if err := s.agreementRepo.Save(txCtx, agreement); err != nil {
			return err
		}
		if err := s.appendAudit(txCtx, agreement, actor, rebate.AuditActionUpdate,
			"Modification de l'accord", before, rebate.SnapshotAgreement(agreement)); err != nil {
			return err
		}
		result = agreement
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Agreement updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("agreement_id", result.ID.String()),
		zap.Int("agreement_version", result.AgreementVersion))

	resp := ToAgreementResponse(result)
	return &resp, nil
}

// Activate puts an agreement in force. Any other active agreement for the
// same (tenant, laboratory) pair is suspended in the same transaction, so at
// most one agreement per pair is ever active. Every transition gets its own
// audit entry.
func (s *AgreementService) Activate(ctx context.Context, tenantID, id uuid.UUID, actor Actor) (*AgreementResponse, error) {
	var result *rebate.LaboratoryAgreement

	err := s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		agreement, err := s.agreementRepo.FindByIDForTenant(txCtx, tenantID, id)
		if err != nil {
			return err
		}

		others, err := s.agreementRepo.FindActiveOthersForPair(txCtx, tenantID, agreement.LaboratoryID, agreement.ID)
		if err != nil {
			return err
		}
		for i := range others {
			other := &others[i]
			before := rebate.SnapshotAgreement(other)
			if err := other.Suspend(); err != nil {
				return err
			}
			if err := s.agreementRepo.SaveWithLock(txCtx, other); err != nil {
				return err
			}
			if err := s.appendAudit(txCtx, other, actor, rebate.AuditActionSuspend,
				fmt.Sprintf("Suspendu par l'activation de l'accord %s", agreement.ID),
				before, rebate.SnapshotAgreement(other)); err != nil {
				return err
			}
		}

		before := rebate.SnapshotAgreement(agreement)
		if err := agreement.Activate(); err != nil {
			return err
		}
		if err := s.agreementRepo.SaveWithLock(txCtx, agreement); err != nil {
			return err
		}
		if err := s.appendAudit(txCtx, agreement, actor, rebate.AuditActionActivate,
			"Activation de l'accord", before, rebate.SnapshotAgreement(agreement)); err != nil {
			return err
		}

		result = agreement
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Agreement activated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("agreement_id", result.ID.String()))

	resp := ToAgreementResponse(result)
	return &resp, nil
}

// History returns the version chain of an agreement, newest first, following
// previous_version_id links.
func (s *AgreementService) History(ctx context.Context, tenantID, id uuid.UUID) ([]AgreementResponse, error) {
	var chain []AgreementResponse
	currentID := &id
	// version counters are small; the bound only guards against a broken link cycle
	for depth := 0; currentID != nil && depth < 100; depth++ {
		agreement, err := s.agreementRepo.FindByIDForTenant(ctx, tenantID, *currentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, ToAgreementResponse(agreement))
		currentID = agreement.PreviousVersionID
	}
	return chain, nil
}

// AuditTrail returns the audit entries of one agreement.
func (s *AgreementService) AuditTrail(ctx context.Context, tenantID, id uuid.UUID) ([]AuditEntryResponse, error) {
	if _, err := s.agreementRepo.FindByIDForTenant(ctx, tenantID, id); err != nil {
		return nil, err
	}
	entries, err := s.auditRepo.FindByAgreement(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	out := make([]AuditEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, ToAuditEntryResponse(&entries[i]))
	}
	return out, nil
}

func (s *AgreementService) appendAudit(ctx context.Context, agreement *rebate.LaboratoryAgreement, actor Actor, action, description string, before, after rebate.AuditState) error {
	entry, err := rebate.NewAuditEntry(agreement.TenantID, agreement.ID, actor.UserID, action, description, actor.IPAddress, before, after)
	if err != nil {
		return err
	}
	return s.auditRepo.Append(ctx, entry)
}

func (s *AgreementService) applyCreateFields(a *rebate.LaboratoryAgreement, req CreateAgreementRequest) error {
	var err error
	if a.TargetRateA, err = rateOrZero(req.TargetRateA, "target_rate_a"); err != nil {
		return err
	}
	if a.TargetRateB, err = rateOrZero(req.TargetRateB, "target_rate_b"); err != nil {
		return err
	}
	if a.TargetRateOTC, err = rateOrZero(req.TargetRateOTC, "target_rate_otc"); err != nil {
		return err
	}
	a.EscompteApplicable = req.EscompteApplicable
	if req.EscompteRate != "" {
		if a.EscompteRate, err = rateOrZero(req.EscompteRate, "escompte_rate"); err != nil {
			return err
		}
	}
	a.EscompteDelayDays = req.EscompteDelayDays
	if a.FrancoThreshold, err = amountFieldOrDefault(req.FrancoThreshold, "franco_threshold", a.FrancoThreshold); err != nil {
		return err
	}
	if a.ShippingFeeEstim, err = amountFieldOrDefault(req.ShippingFeeEstim, "shipping_fee_estim", a.ShippingFeeEstim); err != nil {
		return err
	}
	if a.AnnualObjective, err = amountFieldOrDefault(req.AnnualObjective, "annual_objective", a.AnnualObjective); err != nil {
		return err
	}
	if req.Config != nil {
		a.Config = *req.Config
	}
	if len(req.CustomTiers) > 0 {
		a.CustomTiers = req.CustomTiers
	}
	return nil
}

func (s *AgreementService) applyUpdateFields(a *rebate.LaboratoryAgreement, req UpdateAgreementRequest) error {
	var err error
	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.EndDate != nil {
		a.EndDate = req.EndDate
	}
	if req.TargetRateA != nil {
		if a.TargetRateA, err = rateOrZero(*req.TargetRateA, "target_rate_a"); err != nil {
			return err
		}
	}
	if req.TargetRateB != nil {
		if a.TargetRateB, err = rateOrZero(*req.TargetRateB, "target_rate_b"); err != nil {
			return err
		}
	}
	if req.TargetRateOTC != nil {
		if a.TargetRateOTC, err = rateOrZero(*req.TargetRateOTC, "target_rate_otc"); err != nil {
			return err
		}
	}
	if req.EscompteApplicable != nil {
		a.EscompteApplicable = *req.EscompteApplicable
	}
	if req.EscompteRate != nil {
		if a.EscompteRate, err = rateOrZero(*req.EscompteRate, "escompte_rate"); err != nil {
			return err
		}
	}
	if req.EscompteDelayDays != nil {
		a.EscompteDelayDays = *req.EscompteDelayDays
	}
	if req.FrancoThreshold != nil {
		if a.FrancoThreshold, err = amountFieldOrDefault(*req.FrancoThreshold, "franco_threshold", a.FrancoThreshold); err != nil {
			return err
		}
	}
	if req.ShippingFeeEstim != nil {
		if a.ShippingFeeEstim, err = amountFieldOrDefault(*req.ShippingFeeEstim, "shipping_fee_estim", a.ShippingFeeEstim); err != nil {
			return err
		}
	}
	if req.AnnualObjective != nil {
		if a.AnnualObjective, err = amountFieldOrDefault(*req.AnnualObjective, "annual_objective", a.AnnualObjective); err != nil {
			return err
		}
	}
	if req.Config != nil {
		a.Config = *req.Config
	}
	if req.CustomTiers != nil {
		a.CustomTiers = *req.CustomTiers
	}
	return nil
}

func amountFieldOrDefault(value, field string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, shared.NewDomainError("INVALID_AMOUNT", "Field "+field+" is not a valid amount")
	}
	if d.IsNegative() {
		return decimal.Zero, shared.NewDomainError("INVALID_AMOUNT", "Field "+field+" cannot be negative")
	}
	return d, nil
}

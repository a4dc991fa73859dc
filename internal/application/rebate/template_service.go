package rebate

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared"
)

// TemplateService handles rebate template operations.
type TemplateService struct {
	templateRepo rebate.TemplateRepository
	logger       *zap.Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(templateRepo rebate.TemplateRepository, logger *zap.Logger) *TemplateService {
	return &TemplateService{templateRepo: templateRepo, logger: logger}
}

// Create registers a new rebate template for the tenant.
func (s *TemplateService) Create(ctx context.Context, tenantID uuid.UUID, req CreateTemplateRequest) (*TemplateResponse, error) {
	if existing, err := s.templateRepo.FindByNameForTenant(ctx, tenantID, req.Name); err == nil && existing != nil {
		return nil, shared.NewDomainError("DUPLICATE_TEMPLATE", "A template with this name already exists")
	}

	tpl, err := rebate.NewRebateTemplate(tenantID, req.Name, req.LaboratoryName,
		rebate.RebateType(req.RebateType), rebate.Frequency(req.Frequency), rebate.TemplateScope(req.Scope))
	if err != nil {
		return nil, err
	}

	if req.Structure != nil {
		if err := tpl.SetStructure(*req.Structure); err != nil {
			return nil, err
		}
	}
	if err := tpl.SetFreeGoods(req.FreeGoodsRatio, req.FreeGoodsThreshold); err != nil {
		return nil, err
	}
	tpl.Tiers = req.Tiers
	if tpl.EscompteRate, err = rateOrZero(req.EscompteRate, "escompte_rate"); err != nil {
		return nil, err
	}
	if tpl.CooperationRate, err = rateOrZero(req.CooperationRate, "cooperation_rate"); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Save(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info("Rebate template created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("template_id", tpl.ID.String()),
		zap.String("name", tpl.Name))

	resp := ToTemplateResponse(tpl)
	return &resp, nil
}

// Get returns one template of the tenant.
func (s *TemplateService) Get(ctx context.Context, tenantID, id uuid.UUID) (*TemplateResponse, error) {
	tpl, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToTemplateResponse(tpl)
	return &resp, nil
}

// List returns a page of the tenant's templates.
func (s *TemplateService) List(ctx context.Context, tenantID uuid.UUID, filter rebate.TemplateFilter) (*shared.Paginated[TemplateResponse], error) {
	templates, total, err := s.templateRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]TemplateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, ToTemplateResponse(&templates[i]))
	}
	page := shared.NewPaginated(out, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Update applies a partial update and bumps the template version so
// agreements referencing the previous grid keep their pinned snapshot.
func (s *TemplateService) Update(ctx context.Context, tenantID, id uuid.UUID, req UpdateTemplateRequest) (*TemplateResponse, error) {
	tpl, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		tpl.Name = *req.Name
	}
	if req.Structure != nil {
		if err := tpl.SetStructure(*req.Structure); err != nil {
			return nil, err
		}
	}
	if req.Tiers != nil {
		tpl.Tiers = *req.Tiers
	}
	if req.EscompteRate != nil {
		if tpl.EscompteRate, err = rateOrZero(*req.EscompteRate, "escompte_rate"); err != nil {
			return nil, err
		}
	}
	if req.CooperationRate != nil {
		if tpl.CooperationRate, err = rateOrZero(*req.CooperationRate, "cooperation_rate"); err != nil {
			return nil, err
		}
	}
	if req.FreeGoodsRatio != nil || req.FreeGoodsThreshold != nil {
		ratio := tpl.FreeGoodsRatio
		threshold := tpl.FreeGoodsThreshold
		if req.FreeGoodsRatio != nil {
			ratio = *req.FreeGoodsRatio
		}
		if req.FreeGoodsThreshold != nil {
			threshold = *req.FreeGoodsThreshold
		}
		if err := tpl.SetFreeGoods(ratio, threshold); err != nil {
			return nil, err
		}
	}
	if req.Active != nil {
		tpl.Active = *req.Active
	}

	tpl.BumpVersion()
	if err := s.templateRepo.Save(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info("Rebate template updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("template_id", tpl.ID.String()),
		zap.Int("template_version", tpl.TemplateVersion))

	resp := ToTemplateResponse(tpl)
	return &resp, nil
}

// Delete removes a template of the tenant. Agreements keep the snapshot they
// pinned at apply time.
func (s *TemplateService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, id); err != nil {
		return err
	}
	return s.templateRepo.DeleteForTenant(ctx, tenantID, id)
}

func rateOrZero(value, field string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, shared.NewDomainError("INVALID_RATE", "Field "+field+" is not a valid rate")
	}
	if d.IsNegative() {
		return decimal.Zero, shared.NewDomainError("INVALID_RATE", "Field "+field+" cannot be negative")
	}
	return d, nil
}

package partner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/partner"
	"github.com/rfa/backend/internal/domain/shared"
)

// CreateLaboratoryRequest represents a request to create a laboratory
type CreateLaboratoryRequest struct {
	Name              string  `json:"name" binding:"required,min=1,max=200"`
	ContactEmail      string  `json:"contact_email" binding:"omitempty,email"`
	ContactPhone      string  `json:"contact_phone" binding:"max=30"`
	FrancoThreshold   string  `json:"franco_threshold"`
	ShippingFeeEstim  string  `json:"shipping_fee_estim"`
	DefaultPaymentDay int     `json:"default_payment_day" binding:"gte=0,lte=31"`
	Notes             string  `json:"notes" binding:"max=2000"`
}

// UpdateLaboratoryRequest represents a partial update of a laboratory
type UpdateLaboratoryRequest struct {
	Name              *string `json:"name" binding:"omitempty,min=1,max=200"`
	ContactEmail      *string `json:"contact_email" binding:"omitempty,email"`
	ContactPhone      *string `json:"contact_phone" binding:"omitempty,max=30"`
	FrancoThreshold   *string `json:"franco_threshold"`
	ShippingFeeEstim  *string `json:"shipping_fee_estim"`
	DefaultPaymentDay *int    `json:"default_payment_day" binding:"omitempty,gte=0,lte=31"`
	Notes             *string `json:"notes" binding:"omitempty,max=2000"`
	Active            *bool   `json:"active"`
}

// LaboratoryResponse is the public view of a laboratory
type LaboratoryResponse struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	ContactEmail      string          `json:"contact_email"`
	ContactPhone      string          `json:"contact_phone"`
	Active            bool            `json:"active"`
	FrancoThreshold   decimal.Decimal `json:"franco_threshold"`
	ShippingFeeEstim  decimal.Decimal `json:"shipping_fee_estim"`
	DefaultPaymentDay int             `json:"default_payment_day"`
	Notes             string          `json:"notes"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ToLaboratoryResponse maps a laboratory aggregate to its response
func ToLaboratoryResponse(l *partner.Laboratory) LaboratoryResponse {
	return LaboratoryResponse{
		ID:                l.ID,
		Name:              l.Name,
		ContactEmail:      l.ContactEmail,
		ContactPhone:      l.ContactPhone,
		Active:            l.Active,
		FrancoThreshold:   l.FrancoThreshold,
		ShippingFeeEstim:  l.ShippingFeeEstim,
		DefaultPaymentDay: l.DefaultPaymentDay,
		Notes:             l.Notes,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

// LaboratoryService handles laboratory operations
type LaboratoryService struct {
	laboratoryRepo partner.LaboratoryRepository
	logger         *zap.Logger
}

// NewLaboratoryService creates a new LaboratoryService
func NewLaboratoryService(laboratoryRepo partner.LaboratoryRepository, logger *zap.Logger) *LaboratoryService {
	return &LaboratoryService{laboratoryRepo: laboratoryRepo, logger: logger}
}

// Create registers a new laboratory for the tenant
func (s *LaboratoryService) Create(ctx context.Context, tenantID uuid.UUID, req CreateLaboratoryRequest) (*LaboratoryResponse, error) {
	if existing, err := s.laboratoryRepo.FindByNameForTenant(ctx, tenantID, req.Name); err == nil && existing != nil {
		return nil, shared.NewDomainError("DUPLICATE_LABORATORY", "A laboratory with this name already exists")
	}

	lab, err := partner.NewLaboratory(tenantID, req.Name)
	if err != nil {
		return nil, err
	}
	lab.ContactEmail = req.ContactEmail
	lab.ContactPhone = req.ContactPhone
	lab.DefaultPaymentDay = req.DefaultPaymentDay
	lab.Notes = req.Notes

	threshold, fee, err := parseFrancoFields(req.FrancoThreshold, req.ShippingFeeEstim)
	if err != nil {
		return nil, err
	}
	if threshold != nil || fee != nil {
		t, f := decimal.Zero, decimal.Zero
		if threshold != nil {
			t = *threshold
		}
		if fee != nil {
			f = *fee
		}
		if err := lab.SetFranco(t, f); err != nil {
			return nil, err
		}
	}

	if err := s.laboratoryRepo.Save(ctx, lab); err != nil {
		return nil, err
	}

	s.logger.Info("Laboratory created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("laboratory_id", lab.ID.String()),
		zap.String("name", lab.Name))

	resp := ToLaboratoryResponse(lab)
	return &resp, nil
}

// Get returns one laboratory of the tenant
func (s *LaboratoryService) Get(ctx context.Context, tenantID, id uuid.UUID) (*LaboratoryResponse, error) {
	lab, err := s.laboratoryRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToLaboratoryResponse(lab)
	return &resp, nil
}

// List returns a page of the tenant's laboratories
func (s *LaboratoryService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[LaboratoryResponse], error) {
	labs, total, err := s.laboratoryRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]LaboratoryResponse, 0, len(labs))
	for i := range labs {
		out = append(out, ToLaboratoryResponse(&labs[i]))
	}
	page := shared.NewPaginated(out, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Update applies a partial update to a laboratory
func (s *LaboratoryService) Update(ctx context.Context, tenantID, id uuid.UUID, req UpdateLaboratoryRequest) (*LaboratoryResponse, error) {
	lab, err := s.laboratoryRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if err := lab.Rename(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.ContactEmail != nil {
		lab.ContactEmail = *req.ContactEmail
	}
	if req.ContactPhone != nil {
		lab.ContactPhone = *req.ContactPhone
	}
	if req.DefaultPaymentDay != nil {
		lab.DefaultPaymentDay = *req.DefaultPaymentDay
	}
	if req.Notes != nil {
		lab.Notes = *req.Notes
	}
	if req.FrancoThreshold != nil || req.ShippingFeeEstim != nil {
		threshold := lab.FrancoThreshold
		fee := lab.ShippingFeeEstim
		if req.FrancoThreshold != nil {
			parsed, err := decimal.NewFromString(*req.FrancoThreshold)
			if err != nil {
				return nil, shared.NewDomainError("INVALID_AMOUNT", "Franco threshold is not a valid amount")
			}
			threshold = parsed
		}
		if req.ShippingFeeEstim != nil {
			parsed, err := decimal.NewFromString(*req.ShippingFeeEstim)
			if err != nil {
				return nil, shared.NewDomainError("INVALID_AMOUNT", "Shipping fee estimate is not a valid amount")
			}
			fee = parsed
		}
		if err := lab.SetFranco(threshold, fee); err != nil {
			return nil, err
		}
	}
	if req.Active != nil {
		if *req.Active {
			lab.Activate()
		} else {
			lab.Deactivate()
		}
	}

	if err := s.laboratoryRepo.Save(ctx, lab); err != nil {
		return nil, err
	}
	resp := ToLaboratoryResponse(lab)
	return &resp, nil
}

// Delete removes a laboratory of the tenant
func (s *LaboratoryService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.laboratoryRepo.FindByIDForTenant(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.laboratoryRepo.DeleteForTenant(ctx, tenantID, id); err != nil {
		return err
	}
	s.logger.Info("Laboratory deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("laboratory_id", id.String()))
	return nil
}

func parseFrancoFields(threshold, fee string) (*decimal.Decimal, *decimal.Decimal, error) {
	var t, f *decimal.Decimal
	if threshold != "" {
		parsed, err := decimal.NewFromString(threshold)
		if err != nil {
			return nil, nil, shared.NewDomainError("INVALID_AMOUNT", "Franco threshold is not a valid amount")
		}
		t = &parsed
	}
	if fee != "" {
		parsed, err := decimal.NewFromString(fee)
		if err != nil {
			return nil, nil, shared.NewDomainError("INVALID_AMOUNT", "Shipping fee estimate is not a valid amount")
		}
		f = &parsed
	}
	return t, f, nil
}

package partner

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rfa/backend/internal/domain/shared"
)

// Laboratory is a pharmaceutical vendor (generic or branded), scoped to one
// pharmacy tenant. The franco fields feed the order-threshold check of the
// invoice verifier.
type Laboratory struct {
	shared.TenantAggregateRoot
	Name              string          `json:"name"`
	ContactEmail      string          `json:"contact_email"`
	ContactPhone      string          `json:"contact_phone"`
	Active            bool            `json:"active"`
	FrancoThreshold   decimal.Decimal `json:"franco_threshold"`    // order brut_ht above which shipping is free
	ShippingFeeEstim  decimal.Decimal `json:"shipping_fee_estim"`  // vendor's shipping fee when under franco
	DefaultPaymentDay int             `json:"default_payment_day"` // usual payment delay in days
	Notes             string          `json:"notes"`
}

// NewLaboratory creates a laboratory for a tenant.
func NewLaboratory(tenantID uuid.UUID, name string) (*Laboratory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_LABORATORY_NAME", "Laboratory name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_LABORATORY_NAME", "Laboratory name cannot exceed 200 characters")
	}

	return &Laboratory{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Active:              true,
		FrancoThreshold:     decimal.Zero,
		ShippingFeeEstim:    decimal.Zero,
	}, nil
}

// Rename changes the laboratory name.
func (l *Laboratory) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_LABORATORY_NAME", "Laboratory name cannot be empty")
	}
	l.Name = name
	l.touch()
	return nil
}

// SetFranco sets the franco threshold and the shipping fee charged under it.
func (l *Laboratory) SetFranco(threshold, shippingFee decimal.Decimal) error {
	if threshold.IsNegative() || shippingFee.IsNegative() {
		return shared.NewDomainError("INVALID_FRANCO", "Franco threshold and shipping fee cannot be negative")
	}
	l.FrancoThreshold = threshold
	l.ShippingFeeEstim = shippingFee
	l.touch()
	return nil
}

// Deactivate marks the laboratory inactive. Inactive laboratories are skipped
// by missing-EMAC detection.
func (l *Laboratory) Deactivate() {
	l.Active = false
	l.touch()
}

// Activate marks the laboratory active.
func (l *Laboratory) Activate() {
	l.Active = true
	l.touch()
}

// HasFranco reports whether a franco threshold is configured.
func (l *Laboratory) HasFranco() bool {
	return l.FrancoThreshold.IsPositive()
}

func (l *Laboratory) touch() {
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}

// LaboratoryRepository provides access to laboratories.
type LaboratoryRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Laboratory, error)
	FindByNameForTenant(ctx context.Context, tenantID uuid.UUID, name string) (*Laboratory, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Laboratory, int64, error)
	FindActiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]Laboratory, error)
	Save(ctx context.Context, laboratory *Laboratory) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

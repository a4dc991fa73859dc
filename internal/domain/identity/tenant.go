package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rfa/backend/internal/domain/shared"
)

// TenantStatus represents the lifecycle status of a pharmacy tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusSuspended TenantStatus = "SUSPENDED"
)

// Tenant is a subscribing pharmacy. It is the scoping root: every domain
// entity belongs to exactly one tenant and every query filters on it.
type Tenant struct {
	shared.BaseAggregateRoot
	Name   string       `json:"name"`
	Code   string       `json:"code"` // short unique identifier, e.g. FINESS-derived
	Status TenantStatus `json:"status"`
}

// NewTenant creates an active tenant.
func NewTenant(name, code string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_TENANT_NAME", "Tenant name cannot be empty")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_TENANT_CODE", "Tenant code cannot be empty")
	}

	return &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Code:              code,
		Status:            TenantStatusActive,
	}, nil
}

// Suspend suspends the tenant.
func (t *Tenant) Suspend() {
	t.Status = TenantStatusSuspended
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}

// IsActive reports whether the tenant may use the service.
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// TenantRepository provides access to tenants.
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindByCode(ctx context.Context, code string) (*Tenant, error)
	Save(ctx context.Context, tenant *Tenant) error
}

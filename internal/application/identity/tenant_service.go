package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rfa/backend/internal/domain/identity"
	"github.com/rfa/backend/internal/domain/shared"
)

// CreateTenantRequest provisions a new pharmacy together with its first
// administrator account.
type CreateTenantRequest struct {
	Name          string `json:"name" binding:"required,min=2,max=200"`
	Code          string `json:"code" binding:"required,min=2,max=50"`
	AdminEmail    string `json:"admin_email" binding:"required,email"`
	AdminPassword string `json:"admin_password" binding:"required,min=8"`
	AdminName     string `json:"admin_name" binding:"omitempty,max=200"`
}

// TenantResponse is the public view of a tenant.
type TenantResponse struct {
	ID        uuid.UUID             `json:"id"`
	Name      string                `json:"name"`
	Code      string                `json:"code"`
	Status    identity.TenantStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func toTenantResponse(t *identity.Tenant) *TenantResponse {
	return &TenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Code:      t.Code,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// TenantService handles tenant provisioning and lifecycle.
type TenantService struct {
	tenantRepo identity.TenantRepository
	userRepo   identity.UserRepository
	txManager  shared.TransactionManager
	logger     *zap.Logger
}

// NewTenantService creates a new tenant service
func NewTenantService(
	tenantRepo identity.TenantRepository,
	userRepo identity.UserRepository,
	txManager shared.TransactionManager,
	logger *zap.Logger,
) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		userRepo:   userRepo,
		txManager:  txManager,
		logger:     logger,
	}
}

// Create provisions a tenant and its administrator user in one transaction.
func (s *TenantService) Create(ctx context.Context, req CreateTenantRequest) (*TenantResponse, error) {
	existing, err := s.tenantRepo.FindByCode(ctx, req.Code)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("TENANT_CODE_EXISTS", "A tenant with this code already exists")
	}

	tenant, err := identity.NewTenant(req.Name, req.Code)
	if err != nil {
		return nil, err
	}

	admin, err := identity.NewUser(tenant.ID, req.AdminEmail, req.AdminPassword, req.AdminName)
	if err != nil {
		return nil, err
	}

	err = s.txManager.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.tenantRepo.Save(ctx, tenant); err != nil {
			return err
		}
		return s.userRepo.Save(ctx, admin)
	})
	if err != nil {
		s.logger.Error("Failed to provision tenant",
			zap.String("code", req.Code),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Tenant provisioned",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("code", tenant.Code))

	return toTenantResponse(tenant), nil
}

// Get returns a tenant by ID.
func (s *TenantService) Get(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTenantResponse(tenant), nil
}

// GetByCode returns a tenant by its short code.
func (s *TenantService) GetByCode(ctx context.Context, code string) (*TenantResponse, error) {
	tenant, err := s.tenantRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return toTenantResponse(tenant), nil
}

// Suspend blocks all access for the tenant. Authentication rejects users of
// a suspended tenant on their next login.
func (s *TenantService) Suspend(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tenant.Suspend()
	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		return nil, err
	}

	s.logger.Info("Tenant suspended", zap.String("tenant_id", tenant.ID.String()))
	return toTenantResponse(tenant), nil
}

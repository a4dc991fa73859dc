package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared"
	"github.com/rfa/backend/internal/infrastructure/persistence/models"
)

// GormAgreementRepository implements AgreementRepository using GORM
type GormAgreementRepository struct {
	db *gorm.DB
}

// NewGormAgreementRepository creates a new GormAgreementRepository
func NewGormAgreementRepository(db *gorm.DB) *GormAgreementRepository {
	return &GormAgreementRepository{db: db}
}

// FindByIDForTenant finds an agreement by ID within a tenant
func (r *GormAgreementRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*rebate.LaboratoryAgreement, error) {
	var m models.LaboratoryAgreementModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindActiveForPair returns the single active agreement for a
// (tenant, laboratory) pair, or a not-found error
func (r *GormAgreementRepository) FindActiveForPair(ctx context.Context, tenantID, laboratoryID uuid.UUID) (*rebate.LaboratoryAgreement, error) {
	var m models.LaboratoryAgreementModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND laboratory_id = ? AND status = ?",
			tenantID, laboratoryID, rebate.AgreementStatusActive).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindActiveOthersForPair lists active agreements for the pair excluding one
// id. Used by the activation compare-and-swap.
func (r *GormAgreementRepository) FindActiveOthersForPair(ctx context.Context, tenantID, laboratoryID, excludeID uuid.UUID) ([]rebate.LaboratoryAgreement, error) {
	var rows []models.LaboratoryAgreementModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND laboratory_id = ? AND status = ? AND id <> ?",
			tenantID, laboratoryID, rebate.AgreementStatusActive, excludeID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]rebate.LaboratoryAgreement, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// FindAllForTenant finds agreements matching the filter with the total count
func (r *GormAgreementRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter rebate.AgreementFilter) ([]rebate.LaboratoryAgreement, int64, error) {
	query := dbFromContext(ctx, r.db).Model(&models.LaboratoryAgreementModel{}).Where("tenant_id = ?", tenantID)
	if filter.LaboratoryID != nil {
		query = query.Where("laboratory_id = ?", *filter.LaboratoryID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.LaboratoryAgreementModel
	if err := applyPagination(query.Order("start_date DESC, agreement_version DESC"), filter.Page, filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]rebate.LaboratoryAgreement, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save creates or updates an agreement
func (r *GormAgreementRepository) Save(ctx context.Context, agreement *rebate.LaboratoryAgreement) error {
	m := models.LaboratoryAgreementModelFromDomain(agreement)
	return translateUniqueViolation(dbFromContext(ctx, r.db).Save(m).Error,
		"INVARIANT_VIOLATION", "Another agreement is already active for this laboratory")
}

// SaveWithLock updates an agreement only if the stored row has not moved past
// the version this aggregate was loaded at. The domain bumps the version on
// every mutation, so the write matches rows strictly below the new version.
func (r *GormAgreementRepository) SaveWithLock(ctx context.Context, agreement *rebate.LaboratoryAgreement) error {
	m := models.LaboratoryAgreementModelFromDomain(agreement)
	result := dbFromContext(ctx, r.db).
		Model(&models.LaboratoryAgreementModel{}).
		Where("tenant_id = ? AND id = ? AND version < ?", m.TenantID, m.ID, m.Version).
		Select("*").
		Omit("id", "tenant_id", "created_at").
		Updates(m)
	if result.Error != nil {
		return translateUniqueViolation(result.Error,
			"INVARIANT_VIOLATION", "Another agreement is already active for this laboratory")
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormAgreementRepository implements AgreementRepository
var _ rebate.AgreementRepository = (*GormAgreementRepository)(nil)

package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rfa/backend/internal/domain/partner"
	"github.com/rfa/backend/internal/domain/shared"
	"github.com/rfa/backend/internal/infrastructure/persistence/models"
)

// GormLaboratoryRepository implements LaboratoryRepository using GORM
type GormLaboratoryRepository struct {
	db *gorm.DB
}

// NewGormLaboratoryRepository creates a new GormLaboratoryRepository
func NewGormLaboratoryRepository(db *gorm.DB) *GormLaboratoryRepository {
	return &GormLaboratoryRepository{db: db}
}

// FindByIDForTenant finds a laboratory by ID within a tenant
func (r *GormLaboratoryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Laboratory, error) {
	var m models.LaboratoryModel
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

// FindByNameForTenant finds a laboratory by exact name within a tenant
func (r *GormLaboratoryRepository) FindByNameForTenant(ctx context.Context, tenantID uuid.UUID, name string) (*partner.Laboratory, error) {
	var m models.LaboratoryModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND name = ?", tenantID, strings.TrimSpace(name)).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAllForTenant finds all laboratories for a tenant with the total count
func (r *GormLaboratoryRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]partner.Laboratory, int64, error) {
	query := dbFromContext(ctx, r.db).Model(&models.LaboratoryModel{}).Where("tenant_id = ?", tenantID)
	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, LaboratorySortFields, "name")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var rows []models.LaboratoryModel
	if err := applyPagination(query.Order(orderBy+" "+orderDir), filter.Page, filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]partner.Laboratory, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// FindActiveForTenant finds all active laboratories for a tenant
func (r *GormLaboratoryRepository) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]partner.Laboratory, error) {
	var rows []models.LaboratoryModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]partner.Laboratory, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a laboratory
func (r *GormLaboratoryRepository) Save(ctx context.Context, laboratory *partner.Laboratory) error {
	m := models.LaboratoryModelFromDomain(laboratory)
	return translateUniqueViolation(dbFromContext(ctx, r.db).Save(m).Error,
		"DUPLICATE_LABORATORY", "A laboratory with this name already exists")
}

// DeleteForTenant deletes a laboratory within a tenant
func (r *GormLaboratoryRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := dbFromContext(ctx, r.db).
		Delete(&models.LaboratoryModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormLaboratoryRepository implements LaboratoryRepository
var _ partner.LaboratoryRepository = (*GormLaboratoryRepository)(nil)

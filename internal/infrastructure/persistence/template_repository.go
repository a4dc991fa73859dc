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

// GormTemplateRepository implements TemplateRepository using GORM
type GormTemplateRepository struct {
	db *gorm.DB
}

// NewGormTemplateRepository creates a new GormTemplateRepository
func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

// FindByIDForTenant finds a template by ID within a tenant
func (r *GormTemplateRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*rebate.RebateTemplate, error) {
	var m models.RebateTemplateModel
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

// FindByNameForTenant finds a template by exact name within a tenant
func (r *GormTemplateRepository) FindByNameForTenant(ctx context.Context, tenantID uuid.UUID, name string) (*rebate.RebateTemplate, error) {
	var m models.RebateTemplateModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAllForTenant finds templates matching the filter with the total count
func (r *GormTemplateRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter rebate.TemplateFilter) ([]rebate.RebateTemplate, int64, error) {
	query := dbFromContext(ctx, r.db).Model(&models.RebateTemplateModel{}).Where("tenant_id = ?", tenantID)
	if filter.RebateType != nil {
		query = query.Where("rebate_type = ?", *filter.RebateType)
	}
	if filter.Scope != nil {
		query = query.Where("scope = ?", *filter.Scope)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR laboratory_name ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.RebateTemplateModel
	if err := applyPagination(query.Order("name ASC"), filter.Page, filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]rebate.RebateTemplate, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save creates or updates a template
func (r *GormTemplateRepository) Save(ctx context.Context, template *rebate.RebateTemplate) error {
	m := models.RebateTemplateModelFromDomain(template)
	return translateUniqueViolation(dbFromContext(ctx, r.db).Save(m).Error,
		"DUPLICATE_TEMPLATE", "A template with this name already exists")
}

// DeleteForTenant deletes a template within a tenant
func (r *GormTemplateRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := dbFromContext(ctx, r.db).
		Delete(&models.RebateTemplateModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormTemplateRepository implements TemplateRepository
var _ rebate.TemplateRepository = (*GormTemplateRepository)(nil)

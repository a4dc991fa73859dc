package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rfa/backend/internal/domain/emac"
	"github.com/rfa/backend/internal/domain/shared"
	"github.com/rfa/backend/internal/infrastructure/persistence/models"
)

// GormEMACRepository implements EMACRepository using GORM
type GormEMACRepository struct {
	db *gorm.DB
}

// NewGormEMACRepository creates a new GormEMACRepository
func NewGormEMACRepository(db *gorm.DB) *GormEMACRepository {
	return &GormEMACRepository{db: db}
}

// FindByIDForTenant finds a statement by ID within a tenant
func (r *GormEMACRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*emac.EMAC, error) {
	var m models.EMACModel
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

// FindAllForTenant finds statements matching the filter with the total count
func (r *GormEMACRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter emac.EMACFilter) ([]emac.EMAC, int64, error) {
	query := dbFromContext(ctx, r.db).Model(&models.EMACModel{}).Where("tenant_id = ?", tenantID)
	if filter.LaboratoryID != nil {
		query = query.Where("laboratory_id = ?", *filter.LaboratoryID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Year != nil {
		query = query.Where("EXTRACT(YEAR FROM period_start) = ? OR EXTRACT(YEAR FROM period_end) = ?",
			*filter.Year, *filter.Year)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.EMACModel
	if err := applyPagination(query.Order("period_start DESC"), filter.Page, filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]emac.EMAC, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// FindByYearForTenant returns every statement whose period touches the
// calendar year
func (r *GormEMACRepository) FindByYearForTenant(ctx context.Context, tenantID uuid.UUID, year int) ([]emac.EMAC, error) {
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)

	var rows []models.EMACModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND period_end >= ? AND period_start < ?", tenantID, yearStart, yearEnd).
		Order("laboratory_id, period_start").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]emac.EMAC, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a statement
func (r *GormEMACRepository) Save(ctx context.Context, statement *emac.EMAC) error {
	m := models.EMACModelFromDomain(statement)
	return dbFromContext(ctx, r.db).Save(m).Error
}

// DeleteForTenant deletes a statement within a tenant
func (r *GormEMACRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := dbFromContext(ctx, r.db).
		Delete(&models.EMACModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormEMACRepository implements EMACRepository
var _ emac.EMACRepository = (*GormEMACRepository)(nil)

// GormEMACAnomalyRepository implements EMACAnomalyRepository using GORM
type GormEMACAnomalyRepository struct {
	db *gorm.DB
}

// NewGormEMACAnomalyRepository creates a new GormEMACAnomalyRepository
func NewGormEMACAnomalyRepository(db *gorm.DB) *GormEMACAnomalyRepository {
	return &GormEMACAnomalyRepository{db: db}
}

// FindByEMAC finds all findings of one statement, critical first
func (r *GormEMACAnomalyRepository) FindByEMAC(ctx context.Context, tenantID, emacID uuid.UUID) ([]emac.Anomaly, error) {
	var rows []models.EMACAnomalyModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND emac_id = ?", tenantID, emacID).
		Order("CASE severity WHEN 'CRITICAL' THEN 0 WHEN 'WARNING' THEN 1 ELSE 2 END, created_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]emac.Anomaly, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// DeleteUnresolvedByEMAC clears unresolved findings before a re-run
func (r *GormEMACAnomalyRepository) DeleteUnresolvedByEMAC(ctx context.Context, tenantID, emacID uuid.UUID) error {
	return dbFromContext(ctx, r.db).
		Delete(&models.EMACAnomalyModel{}, "tenant_id = ? AND emac_id = ? AND resolu = ?", tenantID, emacID, false).
		Error
}

// SaveAll inserts a batch of findings
func (r *GormEMACAnomalyRepository) SaveAll(ctx context.Context, anomalies []emac.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}
	rows := make([]models.EMACAnomalyModel, len(anomalies))
	for i := range anomalies {
		rows[i] = *models.EMACAnomalyModelFromDomain(&anomalies[i])
	}
	return dbFromContext(ctx, r.db).Create(&rows).Error
}

// Save creates or updates one finding
func (r *GormEMACAnomalyRepository) Save(ctx context.Context, anomaly *emac.Anomaly) error {
	m := models.EMACAnomalyModelFromDomain(anomaly)
	return dbFromContext(ctx, r.db).Save(m).Error
}

// Ensure GormEMACAnomalyRepository implements EMACAnomalyRepository
var _ emac.EMACAnomalyRepository = (*GormEMACAnomalyRepository)(nil)

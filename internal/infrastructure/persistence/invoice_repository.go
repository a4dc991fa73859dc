package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rfa/backend/internal/domain/invoice"
	"github.com/rfa/backend/internal/domain/shared"
	"github.com/rfa/backend/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForTenant finds an invoice with its lines within a tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoice.LaboInvoice, error) {
	return r.findOne(dbFromContext(ctx, r.db), tenantID, id)
}

// FindByIDForTenantLocked loads the invoice row FOR UPDATE so concurrent
// verifications and schedule computations of the same invoice serialize.
func (r *GormInvoiceRepository) FindByIDForTenantLocked(ctx context.Context, tenantID, id uuid.UUID) (*invoice.LaboInvoice, error) {
	db := dbFromContext(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findOne(db, tenantID, id)
}

func (r *GormInvoiceRepository) findOne(db *gorm.DB, tenantID, id uuid.UUID) (*invoice.LaboInvoice, error) {
	var m models.LaboInvoiceModel
	if err := db.
		Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByNumberForTenant finds an invoice by vendor number for one laboratory
func (r *GormInvoiceRepository) FindByNumberForTenant(ctx context.Context, tenantID, laboratoryID uuid.UUID, number string) (*invoice.LaboInvoice, error) {
	var m models.LaboInvoiceModel
	if err := dbFromContext(ctx, r.db).
		Preload("Lines").
		Where("tenant_id = ? AND laboratory_id = ? AND number = ?", tenantID, laboratoryID, number).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAllForTenant finds invoices matching the filter with the total count.
// List rows do not carry lines; Get loads them.
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoice.InvoiceFilter) ([]invoice.LaboInvoice, int64, error) {
	query := dbFromContext(ctx, r.db).Model(&models.LaboInvoiceModel{}).Where("tenant_id = ?", tenantID)
	if filter.LaboratoryID != nil {
		query = query.Where("laboratory_id = ?", *filter.LaboratoryID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("invoice_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("invoice_date <= ?", *filter.ToDate)
	}
	if filter.Search != "" {
		query = query.Where("number ILIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.LaboInvoiceModel
	if err := applyPagination(query.Order("invoice_date DESC, number DESC"), filter.Page, filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]invoice.LaboInvoice, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save creates or updates an invoice and its lines
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoice.LaboInvoice) error {
	m := models.LaboInvoiceModelFromDomain(inv)
	err := dbFromContext(ctx, r.db).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(m).Error
	return translateUniqueViolation(err,
		"DUPLICATE_INVOICE", "An invoice with this number already exists for this laboratory")
}

// YearCumulativeBrut sums brut_ht for a laboratory over one calendar year up
// to and including asOf
func (r *GormInvoiceRepository) YearCumulativeBrut(ctx context.Context, tenantID, laboratoryID uuid.UUID, year int, asOf time.Time) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := dbFromContext(ctx, r.db).
		Model(&models.LaboInvoiceModel{}).
		Select("COALESCE(SUM(brut_ht), 0) AS total").
		Where("tenant_id = ? AND laboratory_id = ?", tenantID, laboratoryID).
		Where("EXTRACT(YEAR FROM invoice_date) = ? AND invoice_date <= ?", year, asOf).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumBrutForPeriod aggregates brut_ht and the invoice count over a date range
func (r *GormInvoiceRepository) SumBrutForPeriod(ctx context.Context, tenantID, laboratoryID uuid.UUID, from, to time.Time) (decimal.Decimal, int, error) {
	var result struct {
		Total decimal.Decimal
		Count int
	}
	err := dbFromContext(ctx, r.db).
		Model(&models.LaboInvoiceModel{}).
		Select("COALESCE(SUM(brut_ht), 0) AS total, COUNT(*) AS count").
		Where("tenant_id = ? AND laboratory_id = ?", tenantID, laboratoryID).
		Where("invoice_date >= ? AND invoice_date <= ?", from, to).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	return result.Total, result.Count, nil
}

// MonthlyActivityForYear returns per-laboratory monthly invoice counts and
// totals for missing-EMAC detection
func (r *GormInvoiceRepository) MonthlyActivityForYear(ctx context.Context, tenantID uuid.UUID, year int) ([]invoice.MonthlyActivity, error) {
	var rows []struct {
		LaboratoryID uuid.UUID
		Month        int
		InvoiceCount int
		TotalBrutHT  decimal.Decimal
	}
	err := dbFromContext(ctx, r.db).
		Model(&models.LaboInvoiceModel{}).
		Select("laboratory_id, EXTRACT(MONTH FROM invoice_date)::int AS month, COUNT(*) AS invoice_count, COALESCE(SUM(brut_ht), 0) AS total_brut_ht").
		Where("tenant_id = ? AND EXTRACT(YEAR FROM invoice_date) = ?", tenantID, year).
		Group("laboratory_id, EXTRACT(MONTH FROM invoice_date)").
		Order("laboratory_id, month").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]invoice.MonthlyActivity, len(rows))
	for i, row := range rows {
		out[i] = invoice.MonthlyActivity{
			LaboratoryID: row.LaboratoryID,
			Year:         year,
			Month:        time.Month(row.Month),
			InvoiceCount: row.InvoiceCount,
			TotalBrutHT:  row.TotalBrutHT,
		}
	}
	return out, nil
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ invoice.InvoiceRepository = (*GormInvoiceRepository)(nil)

// GormInvoiceAnomalyRepository implements AnomalyRepository using GORM
type GormInvoiceAnomalyRepository struct {
	db *gorm.DB
}

// NewGormInvoiceAnomalyRepository creates a new GormInvoiceAnomalyRepository
func NewGormInvoiceAnomalyRepository(db *gorm.DB) *GormInvoiceAnomalyRepository {
	return &GormInvoiceAnomalyRepository{db: db}
}

// FindByIDForTenant finds an anomaly by ID within a tenant
func (r *GormInvoiceAnomalyRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoice.Anomaly, error) {
	var m models.InvoiceAnomalyModel
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

// FindByInvoice finds all anomalies of one invoice, critical first
func (r *GormInvoiceAnomalyRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]invoice.Anomaly, error) {
	var rows []models.InvoiceAnomalyModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("CASE severity WHEN 'CRITICAL' THEN 0 WHEN 'WARNING' THEN 1 WHEN 'OPPORTUNITY' THEN 2 ELSE 3 END, created_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]invoice.Anomaly, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// DeleteUnresolvedByInvoice removes unresolved anomalies before a re-run;
// resolved rows keep their human history
func (r *GormInvoiceAnomalyRepository) DeleteUnresolvedByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) error {
	return dbFromContext(ctx, r.db).
		Delete(&models.InvoiceAnomalyModel{}, "tenant_id = ? AND invoice_id = ? AND resolu = ?", tenantID, invoiceID, false).
		Error
}

// SaveAll inserts a batch of anomalies
func (r *GormInvoiceAnomalyRepository) SaveAll(ctx context.Context, anomalies []invoice.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}
	rows := make([]models.InvoiceAnomalyModel, len(anomalies))
	for i := range anomalies {
		rows[i] = *models.InvoiceAnomalyModelFromDomain(&anomalies[i])
	}
	return dbFromContext(ctx, r.db).Create(&rows).Error
}

// Save creates or updates one anomaly
func (r *GormInvoiceAnomalyRepository) Save(ctx context.Context, anomaly *invoice.Anomaly) error {
	m := models.InvoiceAnomalyModelFromDomain(anomaly)
	return dbFromContext(ctx, r.db).Save(m).Error
}

// Ensure GormInvoiceAnomalyRepository implements AnomalyRepository
var _ invoice.AnomalyRepository = (*GormInvoiceAnomalyRepository)(nil)
